package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsharvest"
	"github.com/pevans/newsharvest/logger"
)

const shutdownTimeout = 30 * time.Second

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := configFlag(fs)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	fs.Parse(args)

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if *addr == "" {
		*addr = a.cfg.Server.Addr
	}
	if !a.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	if a.cfg.Server.APIKey == "" {
		a.log.Warn("API key not set, scrape endpoint is unauthenticated")
	}

	if spec := a.cfg.Server.SweepSchedule; spec != "" {
		sweeper, err := a.harvester.ScheduleSweeps(spec)
		if err != nil {
			return err
		}
		defer sweeper.Stop()
		a.log.Info("Scheduled seen-store sweeps", logger.String("schedule", spec))
	}

	api := newsharvest.NewAPIServer(a.harvester, a.cfg.Server.APIKey, a.metrics, a.log)
	api.SetRateLimit(a.cfg.Server.RateLimit, a.cfg.Server.RateBurst)
	server := api.Server(*addr)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Starting scrape API server", logger.String("addr", *addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("Shutting down scrape API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
