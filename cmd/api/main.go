package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"interview-insights-go/internal/app"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/httpapi"
	"interview-insights-go/internal/logger"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.Info("starting service")

	cfg, err := config.Load("")
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer a.Close()
	log.WithField("driver", cfg.Database.Driver).Info("store ready")

	srv := httpapi.New(a).NewHTTPServer()
	g, gctx := errgroup.WithContext(ctx)

	// The API process runs the job worker too unless RUN_WORKER=false, e.g.
	// when insightsctl worker runs separately.
	if runWorker() {
		g.Go(func() error { return a.Worker.Run(gctx) })
	}

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("stopped")
}

func runWorker() bool {
	v, ok := os.LookupEnv("RUN_WORKER")
	if !ok {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}
