package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"

	"zkaccount-backend/internal/app"
	"zkaccount-backend/internal/config"
)

type options struct {
	Config string `short:"c" long:"config" description:"Config file (default config.local.yaml or config.yaml)"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	container, err := app.InitializeContainer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("❌ Failed to initialize services")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           container.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("🚀 HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("❌ HTTP server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("🛑 Shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("⚠️ HTTP server did not shut down cleanly")
	}
	container.Close()
}
