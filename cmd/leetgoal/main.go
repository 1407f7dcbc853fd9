package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/cors"

	"example.com/leetgoal/internal/config"
	"example.com/leetgoal/internal/leetcode"
	"example.com/leetgoal/internal/logging"
	"example.com/leetgoal/internal/server"
	"example.com/leetgoal/internal/sqliteutil"
	"example.com/leetgoal/internal/store"
	"example.com/leetgoal/internal/tracker"
)

func main() {
	var (
		dbPath = flag.String("db", "", "path to the sqlite database file (overrides DB_PATH)")
		addr   = flag.String("addr", "", "HTTP listen address (overrides LISTEN_ADDR)")
	)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	db, err := sqliteutil.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open db failed", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer db.Close()

	kv := store.NewStore(db)
	if err := kv.Init(ctx); err != nil {
		logger.Error("init schema failed", "error", err)
		os.Exit(1)
	}

	client := leetcode.NewClient(cfg.LeetCodeBaseURL, cfg.SessionCookie, cfg.CSRFToken, cfg.HTTPTimeout)
	resolver := tracker.NewDifficultyResolver(kv, client)
	builder := tracker.NewBuilder(kv, client, resolver, logger.With("component", "tracker"))

	srv := server.NewServer(builder, client, kv, cfg.Username, logger.With("component", "http"))
	srv.StartAutoRefresh(ctx, cfg.RefreshInterval)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: corsHandler.Handler(srv.Router()),
	}

	go func() {
		logger.Info("API listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, cancel)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped")
}
