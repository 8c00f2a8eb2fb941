package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "tunnel_hmi/docs"
	"tunnel_hmi/internal/config"
	"tunnel_hmi/internal/events"
	"tunnel_hmi/internal/handlers"
	"tunnel_hmi/internal/logger"
	"tunnel_hmi/internal/metrics"
	"tunnel_hmi/internal/models"
	"tunnel_hmi/internal/plc"
	"tunnel_hmi/internal/repository"
	"tunnel_hmi/internal/repository/db"
	"tunnel_hmi/internal/server"
	"tunnel_hmi/internal/service"
	"tunnel_hmi/internal/telemetry"
	"tunnel_hmi/internal/zones"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Warnw("config_adjusted", "detail", w)
	}

	sqlDB, err := openDB(cfg.DB.Path, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	reg, err := zones.NewRegistry(cfg.Zones)
	if err != nil {
		log.Fatalw("invalid zone configuration", "err", err)
	}
	if err := service.ApplyOverrides(ctx, reg, repos.Overrides, log); err != nil {
		log.Fatalw("failed to load zone overrides", "err", err)
	}

	bus := events.NewBus(log)
	build := service.NewBackendBuilder(reg, plc.NewS7TransportFactory(cfg.PLC.Timeout()), log)
	rt := service.NewRuntime(reg, bus, build, log)
	rt.Start(ctx, initialSettings(ctx, cfg, repos.Connection, log))

	services := service.NewService(service.Deps{
		Repos:      repos,
		Registry:   reg,
		Runtime:    rt,
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
	})

	m := metrics.New()
	m.WatchDropped(bus.Dropped)
	stream, unsubscribe := bus.Subscribe(events.DefaultBuffer)
	defer unsubscribe()
	go m.Run(ctx, stream)

	sinks := startTelemetry(ctx, cfg.Telemetry, bus, log)

	apiHandler := handlers.NewHandler(services, bus, log).WithMetrics(m.Handler())

	srv := &server.Server{}
	runHTTPServer(srv, cfg.HTTP.Port, apiHandler, log)

	waitForShutdown(cancel, srv, log)

	rt.Stop()
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Warnw("telemetry_close_failed", "sink", s.Name(), "err", err)
		}
	}
}

// openDB initializes the SQLite database.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "tunnel_hmi.db")
		path = "tunnel_hmi.db"
	}
	return db.InitDB(path)
}

// initialSettings prefers the last connection an operator applied over the
// static config.
func initialSettings(ctx context.Context, cfg *config.AppConfig, repo repository.ConnectionRepo, log *logger.Logger) models.ConnectionSettings {
	s := models.ConnectionSettings{
		Address:          cfg.PLC.Address,
		Rack:             cfg.PLC.Rack,
		Slot:             cfg.PLC.Slot,
		Port:             cfg.PLC.Port,
		PollIntervalMs:   cfg.PLC.PollIntervalMs,
		Simulation:       cfg.PLC.Simulation,
		RetryDefaultPort: cfg.PLC.RetryDefaultPort,
	}
	saved, ok, err := repo.Load(ctx)
	switch {
	case err != nil:
		log.Warnw("connection_settings_load_failed", "err", err)
	case ok:
		log.Infow("connection_settings_restored", "address", saved.Address, "updated_at", saved.UpdatedAt)
		return saved
	}
	return s
}

// startTelemetry subscribes every enabled sink to the bus.
func startTelemetry(ctx context.Context, cfg config.Telemetry, bus *events.Bus, log *logger.Logger) []telemetry.Sink {
	var sinks []telemetry.Sink
	if cfg.MQTT.Enabled {
		p, err := telemetry.DialMQTT(telemetry.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		if err != nil {
			log.Warnw("telemetry_mqtt_disabled", "err", err)
		} else {
			sinks = append(sinks, p)
		}
	}
	if cfg.Kafka.Enabled {
		sinks = append(sinks, telemetry.NewKafkaPublisher(telemetry.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)))
	}
	for _, s := range sinks {
		s := s
		stream, unsubscribe := bus.Subscribe(events.DefaultBuffer)
		go func() {
			defer unsubscribe()
			telemetry.Forward(ctx, stream, s, telemetry.DefaultPublishTimeout, log)
		}()
		log.Infow("telemetry_started", "sink", s.Name())
	}
	return sinks
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
	log.Infow("http_listening", "port", port)
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
