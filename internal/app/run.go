package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"airquality-server/internal/config"
	db "airquality-server/internal/db"
	httpapi "airquality-server/internal/httpapi"
	"airquality-server/internal/migrate"
	airquality "airquality-server/internal/modules/airquality"
	"airquality-server/internal/modules/airquality/dataset"
	"airquality-server/internal/modules/airquality/repository"
	"airquality-server/internal/modules/airquality/service"
	aqviews "airquality-server/internal/modules/airquality/views"
	"airquality-server/internal/mqtt"
)

// refreshTimeout bounds one scheduled reload.
const refreshTimeout = 2 * time.Minute

// datasetHealth adapts the dataset service to the health report.
type datasetHealth struct {
	svc *service.Service
}

func (d datasetHealth) DatasetStatus() httpapi.DatasetStatus {
	st := d.svc.Status()
	return httpapi.DatasetStatus{
		Source:   st.Source,
		Loaded:   st.Loaded,
		Expired:  st.Expired,
		Rows:     st.Rows,
		LoadedAt: st.LoadedAt,
	}
}

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dataSource", cfg.DataSource,
		"dataCacheTTL", cfg.DataCacheTTL,
		"dataFetchTimeout", cfg.DataFetchTimeout,
		"dataWatch", cfg.DataWatch,
		"dataRefreshCron", cfg.DataRefreshCron,
		"pm25Threshold", cfg.PM25Threshold,
		"dbDriver", cfg.DBDriver,
		"sqlitePath", cfg.SQLitePath,
		"dbMaxOpenConns", cfg.DBMaxOpenConns,
		"dbMaxIdleConns", cfg.DBMaxIdleConns,
		"dbConnMaxLifetime", cfg.DBConnMaxLifetime,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	applied, err := migrate.Run(ctx, dbConn)
	if err != nil {
		return err
	}
	logger.Info("database ready", "migrationsApplied", applied)

	if err := aqviews.LoadTemplates(); err != nil {
		return err
	}

	threshold := cfg.PM25Threshold
	opts := service.Options{
		Source:    cfg.DataSource,
		TTL:       cfg.DataCacheTTL,
		Threshold: &threshold,
		Logger:    logger,
	}

	var publisher *mqtt.Publisher
	if cfg.MQTTEnabled() {
		publisher = mqtt.NewPublisher(cfg, logger)

		// Short timeout so a missing broker does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without notifications)", "error", err)
		}
		opts.Notifier = publisher
	}

	loader := dataset.NewLoader(&http.Client{Timeout: cfg.DataFetchTimeout}, logger)
	svc := service.NewService(loader, repository.NewRepository(dbConn), opts)
	defer svc.Stop()

	if cfg.DataWatch && !dataset.IsRemote(cfg.DataSource) {
		go func() {
			if err := svc.Watch(ctx); err != nil {
				logger.Warn("data watch stopped", "source", cfg.DataSource, "error", err)
			}
		}()
	}
	if cfg.DataRefreshCron != "" {
		if err := svc.StartScheduler(cfg.DataRefreshCron, refreshTimeout); err != nil {
			return err
		}
		logger.Info("data refresh scheduled", "cron", cfg.DataRefreshCron)
	}

	mux := httpapi.NewMux(dbConn, datasetHealth{svc})
	airquality.RegisterFeature(mux, svc)

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if publisher != nil {
		logger.Info("mqtt disconnecting")
		publisher.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
