package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightjar-systems/logship/internal/audit"
	"github.com/nightjar-systems/logship/internal/backend"
	"github.com/nightjar-systems/logship/internal/handlers"
	"github.com/nightjar-systems/logship/internal/logging"
	"github.com/nightjar-systems/logship/internal/metrics"
	"github.com/nightjar-systems/logship/internal/middleware"
	"github.com/nightjar-systems/logship/internal/natsfeed"
	"github.com/nightjar-systems/logship/internal/ratelimit"
	"github.com/nightjar-systems/logship/internal/server"
	"github.com/nightjar-systems/logship/internal/sink"
	"github.com/nightjar-systems/logship/pkg/entry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the log shipping daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	writer, err := backend.NewOpenSearchWriter(backend.OpenSearchConfig{
		URL:           cfg.Backend.URL,
		Username:      cfg.Backend.Username,
		Password:      cfg.Backend.Password,
		TLSSkipVerify: cfg.Backend.TLSSkipVerify,
		Index:         fmt.Sprintf("%s-%s", cfg.Backend.IndexPrefix, cfg.Sink.Name),
	})
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var auditRepo audit.Repository
	if cfg.Audit.Enabled {
		auditRepo, err = audit.NewPostgresRepository(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			return fmt.Errorf("init audit: %w", err)
		}
		defer auditRepo.Close()
	}

	var resource *entry.Resource
	if cfg.Sink.ResourceType != "" {
		resource = &entry.Resource{Type: cfg.Sink.ResourceType, Labels: cfg.Sink.ResourceLabels}
	}

	s, err := sink.New(sink.Options{
		Name:       cfg.Sink.Name,
		Resource:   resource,
		ProjectID:  cfg.Sink.ProjectID,
		Backend:    writer,
		QueueSize:  cfg.Sink.QueueSize,
		OnDelivery: deliveryObserver(ctx, auditRepo, cfg.Sink.Name),
	})
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}
	defer s.Close()

	var limiter ratelimit.RateLimiter = ratelimit.NoOpRateLimiter{}
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.NewRedisRateLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.Limit, cfg.RateLimit.Window())
		if err != nil {
			return fmt.Errorf("init rate limiter: %w", err)
		}
	}
	defer limiter.Close()

	if cfg.NATS.Enabled {
		feed, err := natsfeed.New(natsfeed.Config{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Name:    cfg.Sink.Name,
		}, s)
		if err != nil {
			return fmt.Errorf("init nats feed: %w", err)
		}
		if err := feed.Start(); err != nil {
			return fmt.Errorf("start nats feed: %w", err)
		}
		defer feed.Stop()
	}

	var authMiddleware *middleware.BearerAuth
	if cfg.Auth.Enabled {
		authMiddleware = middleware.NewBearerAuth(cfg.Auth.JWTSecret)
	}

	handler := handlers.NewIngestHandler(s, limiter)
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.NewRouter(handler, server.Options{
			Auth:      authMiddleware,
			AccessLog: s,
			Instance:  cfg.Sink.Name,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}

	go func() {
		logger.Info("logship listening", slog.String("addr", srv.Addr), slog.String("stream", cfg.Sink.Name))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.String("error", err.Error()))
	}
	s.Flush()
	return nil
}

// deliveryObserver feeds metrics and the optional audit trail from delivery
// outcomes.
func deliveryObserver(ctx context.Context, repo audit.Repository, stream string) func([]*entry.Entry, error) {
	return func(entries []*entry.Entry, err error) {
		if err != nil {
			metrics.DeliveryFailures.Inc()
		} else {
			metrics.EntriesDelivered.Add(float64(len(entries)))
		}
		if repo == nil {
			return
		}
		rec := &audit.Record{
			At:      time.Now().UTC(),
			Stream:  stream,
			Entries: len(entries),
			Success: err == nil,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if aerr := repo.Record(ctx, rec); aerr != nil {
			slog.Warn("audit record failed", slog.String("error", aerr.Error()))
		}
	}
}
