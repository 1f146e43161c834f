package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/smartlead-export/internal/attio"
	"github.com/ignite/smartlead-export/internal/config"
	"github.com/ignite/smartlead-export/internal/gmail"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
	"github.com/ignite/smartlead-export/internal/tracker"
	"github.com/ignite/smartlead-export/internal/webhook"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to YAML config file")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()

	var store tracker.Store
	if cfg.Tracker.S3Bucket != "" {
		store, err = tracker.NewS3Store(ctx, cfg.Tracker.S3Bucket, cfg.Tracker.S3Region, cfg.Tracker.S3Key)
		if err != nil {
			log.Fatalf("s3 tracker store: %v", err)
		}
	} else {
		store = tracker.NewFileStore(cfg.Tracker.Path)
	}
	tr, err := tracker.New(ctx, store, cfg.Tracker.FlushEvery)
	if err != nil {
		log.Fatalf("opening upload tracker: %v", err)
	}

	redirect := fmt.Sprintf("http://localhost:%d/oauth2callback", cfg.Webhook.Port)
	auth := gmail.NewAuthenticator(cfg.Gmail, redirect)

	newUploader := func(ctx context.Context) (webhook.Uploader, error) {
		svc, err := auth.Service(ctx)
		if err != nil {
			return nil, err
		}
		return gmail.NewUploader(svc, cfg.Gmail)
	}

	handler := webhook.NewServer(cfg.Webhook.SecretKey, auth, newUploader, tr)
	if cfg.Attio.Enabled {
		crm := attio.NewClient(attio.Config{APIKey: cfg.Attio.APIKey, BaseURL: cfg.Attio.BaseURL})
		handler.SetCRM(attio.NewSyncer(crm, ""))
		logger.Info("attio CRM mirror enabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Webhook.Port),
		Handler:      handler.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("webhook receiver listening",
			"port", cfg.Webhook.Port, "authenticated", auth.IsAuthenticated())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down webhook receiver")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if err := tr.Flush(context.Background()); err != nil {
		logger.Error("final tracking flush failed", "error", err)
	}
}
