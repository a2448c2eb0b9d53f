package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"airquality-server/internal/modules/airquality/analysis"
	"airquality-server/internal/modules/airquality/dataset"
	"airquality-server/internal/modules/airquality/export"
	"airquality-server/internal/modules/airquality/service"
	"airquality-server/internal/modules/airquality/types"
)

type rfmFlags struct {
	source    string
	threshold float64
	xlsx      string
}

func newRFMCmd(c *cli) *cobra.Command {
	f := &rfmFlags{}

	cmd := &cobra.Command{
		Use:   "rfm",
		Short: "Load the dataset once and print the RFM table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("source") {
				f.source = c.cfg.DataSource
			}
			if !cmd.Flags().Changed("threshold") {
				f.threshold = c.cfg.PM25Threshold
			}
			return c.rfm(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVar(&f.source, "source", "", "dataset path or http(s) URL (default DATA_SOURCE)")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "PM2.5 high-pollution threshold (default PM25_THRESHOLD)")
	cmd.Flags().StringVar(&f.xlsx, "xlsx", "", "write the RFM workbook to this path instead of printing")
	return cmd
}

func (c *cli) rfm(ctx context.Context, out io.Writer, f *rfmFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if math.IsNaN(f.threshold) || math.IsInf(f.threshold, 0) {
		return fmt.Errorf("invalid threshold %v: must be a finite number", f.threshold)
	}
	if f.threshold < 0 {
		return fmt.Errorf("invalid threshold %v: must not be negative", f.threshold)
	}

	loader := dataset.NewLoader(&http.Client{Timeout: c.cfg.DataFetchTimeout}, c.logger)
	svc := service.NewService(loader, nil, service.Options{
		Source:    f.source,
		Threshold: &f.threshold,
		Logger:    c.logger,
	})

	rows, err := svc.RFM(ctx, service.Selection{}, f.threshold)
	if err != nil {
		c.logger.Error("rfm", "source", f.source, "error", err)
		return err
	}

	if f.xlsx != "" {
		if err := export.SaveRFMWorkbook(f.xlsx, rows, analysis.RFMCorrelation(rows), f.threshold); err != nil {
			return err
		}
		c.logger.Info("rfm workbook written", "path", f.xlsx, "stations", len(rows))
		return nil
	}
	return printRFM(out, rows, f.threshold)
}

func printRFM(w io.Writer, rows []types.RFMRow, threshold float64) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "No high-pollution events (PM2.5 > %g).\n", threshold)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "station\trecency\tfrequency\tmagnitude\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t\n", r.Station, r.Recency, r.Frequency, r.Magnitude)
	}
	return tw.Flush()
}
