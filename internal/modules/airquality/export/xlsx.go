// Package export writes the RFM summary and readings to downloadable files.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/xuri/excelize/v2"

	"airquality-server/internal/modules/airquality/types"
)

const (
	SheetRFM         = "RFM"
	SheetCorrelation = "Correlation"
)

// ContentTypeXLSX is the media type of a workbook.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteRFMWorkbook writes a workbook with the RFM table on the first sheet
// and its correlation matrix on the second.
func WriteRFMWorkbook(w io.Writer, rows []types.RFMRow, corr types.CorrelationMatrix, threshold float64) error {
	f, err := rfmWorkbook(rows, corr, threshold)
	if err != nil {
		return err
	}
	defer closeFile(f)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveRFMWorkbook is WriteRFMWorkbook to a file path.
func SaveRFMWorkbook(path string, rows []types.RFMRow, corr types.CorrelationMatrix, threshold float64) error {
	f, err := rfmWorkbook(rows, corr, threshold)
	if err != nil {
		return err
	}
	defer closeFile(f)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func rfmWorkbook(rows []types.RFMRow, corr types.CorrelationMatrix, threshold float64) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetRFM); err != nil {
		closeFile(f)
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeRFMSheet(f, rows, threshold); err != nil {
		closeFile(f)
		return nil, err
	}
	if _, err := f.NewSheet(SheetCorrelation); err != nil {
		closeFile(f)
		return nil, fmt.Errorf("add sheet %s: %w", SheetCorrelation, err)
	}
	if err := writeMatrixSheet(f, SheetCorrelation, corr); err != nil {
		closeFile(f)
		return nil, err
	}
	return f, nil
}

func writeRFMSheet(f *excelize.File, rows []types.RFMRow, threshold float64) error {
	header := []any{"station", types.MetricRecency, types.MetricFrequency, types.MetricMagnitude}
	if err := f.SetSheetRow(SheetRFM, "A1", &header); err != nil {
		return fmt.Errorf("write rfm header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(SheetRFM, "A1", "D1", bold); err != nil {
		return fmt.Errorf("style rfm header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Station, r.Recency, r.Frequency, r.Magnitude}
		if err := f.SetSheetRow(SheetRFM, cell, &row); err != nil {
			return fmt.Errorf("write rfm row %d: %w", i, err)
		}
	}

	// Threshold note two columns right of the table.
	note := []any{"PM2.5 threshold", threshold}
	if err := f.SetSheetRow(SheetRFM, "F1", &note); err != nil {
		return fmt.Errorf("write threshold: %w", err)
	}
	return f.SetColWidth(SheetRFM, "A", "A", 14)
}

func writeMatrixSheet(f *excelize.File, sheet string, m types.CorrelationMatrix) error {
	for j, name := range m.Columns {
		cell, err := excelize.CoordinatesToCellName(j+2, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for i, name := range m.Columns {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
		for j, v := range m.Values[i] {
			if math.IsNaN(v) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+2, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write %s cell %s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func closeFile(f *excelize.File) {
	if err := f.Close(); err != nil {
		slog.Warn("close workbook", "error", err)
	}
}
