package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomfle18/aiostreams/internal/config"
	"github.com/tomfle18/aiostreams/internal/db"
	"github.com/tomfle18/aiostreams/internal/endpoint"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/server"
	"github.com/tomfle18/aiostreams/internal/store"
	"github.com/tomfle18/aiostreams/internal/store/realdebrid"
	"github.com/tomfle18/aiostreams/internal/telemetry"
	"github.com/tomfle18/aiostreams/internal/worker"
)

func main() {
	log := logger.Default()

	if _, err := db.Open(config.DatabaseURI); err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	store.Register(realdebrid.NewStoreClient())

	stopWorkers := worker.InitWorkers()
	defer stopWorkers()
	defer telemetry.Close()

	mux := http.NewServeMux()
	endpoint.AddEndpoints(mux)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           server.WithReqCtx(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
