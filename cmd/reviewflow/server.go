package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/api"
	"github.com/reviewflow/reviewflow/api/handlers"
	"github.com/reviewflow/reviewflow/config"
	"github.com/reviewflow/reviewflow/internal/metrics"
	"github.com/reviewflow/reviewflow/internal/server"
	"github.com/reviewflow/reviewflow/internal/telemetry"
	"github.com/reviewflow/reviewflow/review"
	"github.com/reviewflow/reviewflow/store"
)

// Server assembles and runs the reviewflow service: the workflow store, the
// review engine, the API server, and the metrics server.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	telemetry *telemetry.Providers

	workflowStore review.Store
	bus           *review.SimpleEventBus
	engine        *review.Engine

	rateLimiterCancel context.CancelFunc
}

// NewServer creates an unstarted server instance.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up. On error the caller should exit; partial
// startups are torn down by Shutdown.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("reviewflow", s.logger)

	providers, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	} else {
		s.telemetry = providers
	}

	ctx := context.Background()
	st, err := store.Open(ctx, s.cfg.Storage, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open workflow store: %w", err)
	}
	s.workflowStore = st

	s.bus = review.NewEventBus(s.logger)
	s.subscribeMetrics()

	s.engine = review.NewEngine(st, review.DefaultRegistry(), s.logger,
		review.WithEventBus(s.bus),
		review.WithAutoApprove(s.cfg.Review.AutoApprove),
		review.WithMaxSaveRetries(s.cfg.Review.MaxSaveRetries),
	)

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("storage_backend", s.cfg.Storage.Backend),
		zap.Bool("auto_approve", s.cfg.Review.AutoApprove),
	)
	return nil
}

// subscribeMetrics feeds review events into the Prometheus collector.
func (s *Server) subscribeMetrics() {
	s.bus.SubscribeAll(func(ev review.Event) {
		switch ev.Type {
		case review.EventWorkflowCreated:
			s.collector.RecordWorkflowCreated()
		case review.EventWorkflowDeleted:
			s.collector.RecordWorkflowDeleted()
		case review.EventCheckpointReady:
			s.collector.RecordCheckpointReady(string(ev.CheckpointType))
		case review.EventReviewDecision:
			s.collector.RecordDecision(string(ev.CheckpointType), string(ev.Decision))
			if ev.Actor == review.AutoApprovalReviewer {
				s.collector.RecordAutoApproval(string(ev.CheckpointType), ev.Decision == review.DecisionApproved)
			}
		}
	})
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	versionInfo := api.VersionResponse{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}

	healthHandler := handlers.NewHealthHandler(s.logger)
	healthHandler.RegisterCheck(handlers.HealthCheck{
		Name:  "store",
		Check: s.workflowStore.Ping,
	})
	healthHandler.Register(mux, versionInfo)

	var origins []string
	if s.cfg.Server.CORSOrigin != "" {
		origins = []string{s.cfg.Server.CORSOrigin}
	}

	handlers.NewWorkflowHandler(s.engine, s.logger).Register(mux)
	handlers.NewCheckpointHandler(s.engine, s.logger).Register(mux)
	handlers.NewReviewHandler(s.engine, s.collector, s.logger).Register(mux)
	handlers.NewEventsHandler(s.bus, origins, s.logger).Register(mux)

	skipAuthPaths := []string{"/healthz", "/readyz", "/version"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSOrigin),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(rateLimiterCtx,
			s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	if len(s.cfg.Server.APIKeys) > 0 {
		chain = append(chain, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger))
	}
	if s.cfg.Auth.JWTEnabled {
		chain = append(chain, JWTAuth(s.cfg.Auth, skipAuthPaths, s.logger))
	}
	handler := Chain(mux, chain...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM or a server error, then tears
// everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops all components in dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if s.bus != nil {
		if dropped := s.bus.Dropped(); dropped > 0 {
			s.collector.RecordEventsDropped(dropped)
			s.logger.Warn("events dropped during run", zap.Int64("dropped", dropped))
		}
		s.bus.Stop()
	}
	if s.workflowStore != nil {
		if err := s.workflowStore.Close(); err != nil {
			s.logger.Error("Workflow store close error", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
