package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/okian/payday/internal/adapters/http/api"
	service "github.com/okian/payday/internal/app"
	"github.com/okian/payday/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Process payouts on the configured schedule and expose ops endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()
			log := c.log

			svc := c.service(cfg)
			if err := svc.Start(ctx); err != nil {
				return err
			}

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cfg.Schedule, func() { runCycle(ctx, svc, log) }); err != nil {
				_ = svc.Stop(ctx)
				return err
			}
			scheduler.Start()
			log.Info(ctx, "payout schedule started", logger.String("schedule", cfg.Schedule))
			if runNow {
				go runCycle(ctx, svc, log)
			}

			mux := http.NewServeMux()
			api.NewServer(svc).Register(ctx, mux)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           mux,
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			// Wait for shutdown signal or a listener failure
			select {
			case <-ctx.Done():
				err = nil
			case err = <-serveErr:
				log.Error(ctx, "HTTP server failed", logger.Error(err))
			}
			log.Info(ctx, "shutting down...")

			// Graceful shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// waits for a running cycle to return
			<-scheduler.Stop().Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
			}
			if err := svc.Stop(shutdownCtx); err != nil {
				log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
			}
			log.Info(shutdownCtx, "server stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run one cycle immediately instead of waiting for the schedule")
	return cmd
}

// runCycle processes every league and logs the outcome. Failures are left
// for the next scheduled run.
func runCycle(ctx context.Context, svc *service.Service, log logger.Logger) {
	start := time.Now()
	reports, err := svc.ProcessAll(ctx)
	resolved := 0
	for _, r := range reports {
		resolved += len(r.Resolved)
	}
	fields := []logger.Field{
		logger.Int("leagues", len(reports)),
		logger.Int("resolved", resolved),
		logger.Duration("took", time.Since(start)),
	}
	if err != nil {
		log.Error(ctx, "payout run finished with errors", append(fields, logger.Error(err))...)
		return
	}
	log.Info(ctx, "payout run finished", fields...)
}
