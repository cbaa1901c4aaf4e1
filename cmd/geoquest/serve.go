package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/pedrabranca/geoquest/internal/config"
	"github.com/pedrabranca/geoquest/internal/events"
	"github.com/pedrabranca/geoquest/internal/logging"
	"github.com/pedrabranca/geoquest/internal/mission"
	"github.com/pedrabranca/geoquest/internal/monitor"
	intOtel "github.com/pedrabranca/geoquest/internal/otel"
	"github.com/pedrabranca/geoquest/internal/server"
	"github.com/pedrabranca/geoquest/internal/storage"
	"github.com/pedrabranca/geoquest/internal/telemetry"
)

const appName = "geoquest"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	sessionStart := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}
	level := config.GetString("logLevel")

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		logger.Error("Failed to create logs dir", "error", err, "path", logsDir)
	}
	logFilePath := logging.LogFilePath(logsDir, appName, sessionStart)
	var logOut io.Writer = os.Stdout
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
	} else {
		defer logFile.Close()
		logOut = logFile
	}

	// OTel writes to the log file when there is one
	var otelProvider *intOtel.Provider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			MetricInterval: otelCfg.MetricInterval,
			LogWriter:      logOut,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
			otelProvider = nil
		}
	}

	var extra []io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			logger.Error("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			defer w.Close()
			extra = append(extra, w)
		}
	}

	var running atomic.Pointer[server.Server]
	slogManager.SetContextProvider(func() []slog.Attr {
		srv := running.Load()
		if srv == nil {
			return nil
		}
		return []slog.Attr{slog.Int("activeSessions", srv.Sessions())}
	})

	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	slogManager.Setup(logOut, level, otelLogProvider, extra...)
	logger = slogManager.Logger()
	logger.Info("Starting up", "version", Version, "buildDate", BuildDate, "logFile", logFilePath)

	zlog := logging.NewZerolog(logOut, level)

	catalog, err := loadCatalog(logger, config.GetString("missions.file"))
	if err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	db := storage.NewManager(storageCfg, zlog.With().Str("component", "storage").Logger())
	if err := db.Connect(); err != nil {
		return fmt.Errorf("connecting to storage: %w", err)
	}
	defer db.Close()
	if err := db.Setup(); err != nil {
		return fmt.Errorf("migrating storage: %w", err)
	}
	kv := storage.NewKV(db.DB, db.Logger)

	dumpCtx, stopDump := context.WithCancel(context.Background())
	dumpDone := make(chan struct{})
	go func() {
		defer close(dumpDone)
		db.RunDumpLoop(dumpCtx, storageCfg.SQLite.DumpInterval)
	}()
	defer func() {
		stopDump()
		<-dumpDone
	}()

	opts := server.Options{
		Server:  config.GetServerConfig(),
		Game:    config.GetGameConfig(),
		Catalog: catalog,
		Logger:  logger,
		BusOpts: busOptions(zlog, level),
		Store:   storage.NewProgressStore(db.DB, db.Logger),
		Players: storage.NewPlayers(kv),
	}

	influx := telemetry.NewManager(config.GetInfluxConfig(), zlog.With().Str("component", "telemetry").Logger())
	switch err := influx.Connect(ctx); {
	case errors.Is(err, telemetry.ErrDisabled):
		logger.Info("Telemetry disabled")
	case err != nil:
		logger.Error("Failed to set up telemetry", "error", err)
	default:
		defer influx.Close()
		opts.Recorder = influx
		opts.Metrics = influx
	}

	srv := server.New(opts)
	running.Store(srv)

	statusCfg := config.GetStatusConfig()
	status := monitor.NewService(monitor.Dependencies{
		Logger:           logger,
		StatusPath:       statusCfg.Path,
		Interval:         statusCfg.Interval,
		Missions:         len(catalog),
		Sessions:         srv.Sessions,
		DatabaseInMemory: db.InMemory,
		TelemetryOnline:  func() bool { return influx.IsValid },
	})
	status.Start()
	defer status.Stop()

	err = srv.ListenAndServe(ctx)

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	return err
}

func loadCatalog(logger *slog.Logger, path string) ([]mission.Mission, error) {
	catalog, err := mission.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading missions: %w", err)
	}
	for _, p := range mission.Validate(catalog) {
		logger.Warn("Mission catalog problem", "problem", p.String())
	}
	logger.Info("Loaded missions", "path", path, "count", len(catalog))
	return catalog, nil
}

func busOptions(zlog zerolog.Logger, level string) []events.Option {
	opts := []events.Option{events.WithLogger(logging.NewBusLogger(zlog.With().Str("component", "events").Logger()))}
	if strings.EqualFold(level, "debug") {
		opts = append(opts, events.Logged())
	}
	return opts
}
