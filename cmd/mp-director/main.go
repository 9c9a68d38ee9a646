package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/mp-director/internal/api"
	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/engine"
	"github.com/yegors/mp-director/internal/ingest"
	"github.com/yegors/mp-director/internal/refdata"
	"github.com/yegors/mp-director/internal/storage/sqlite"
	"github.com/yegors/mp-director/internal/tracker"
	"github.com/yegors/mp-director/internal/websocket"
	"github.com/yegors/mp-director/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting mp-director",
		logger.String("config", *configPath),
		logger.String("merge_point", cfg.RefData.MergePoint))

	ref, err := refdata.Load(cfg.RefData.Path, cfg.RefData.MergePoint, log)
	if err != nil {
		log.Error("Failed to load reference data", logger.Error(err))
		os.Exit(1)
	}

	var store engine.Store
	var storage *sqlite.AdvisoryStorage
	if cfg.Storage.Path != "" {
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			log.Error("Failed to open database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()

		storage, err = sqlite.NewAdvisoryStorage(db, log)
		if err != nil {
			log.Error("Failed to initialize storage", logger.Error(err))
			os.Exit(1)
		}
		store = storage
		log.Info("Advisory persistence enabled", logger.String("path", cfg.Storage.Path))
	} else {
		log.Info("Advisory persistence disabled")
	}

	// the websocket server feeds the engine, the engine delivers back
	// through the same server
	var eng *engine.Engine
	wsServer := websocket.NewServer(func(snap tracker.Snapshot) {
		eng.Submit(snap)
	}, log)
	eng = engine.New(cfg, ref, wsServer, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)

	if cfg.Ingest.URL != "" {
		poller := ingest.NewClient(cfg.Ingest, eng.Submit, log)
		poller.Start(ctx)
		defer poller.Stop()
	}

	router := api.NewRouter(eng, storage, wsServer, cfg, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	go func() {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", logger.Error(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", logger.Error(err))
	}
	eng.Stop()
	log.Info("Shutdown complete")
}
