package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/wdesk/groupbroker/internal/api"
	"github.com/wdesk/groupbroker/internal/config"
	"github.com/wdesk/groupbroker/internal/groups"
	"github.com/wdesk/groupbroker/internal/logging"
	"github.com/wdesk/groupbroker/internal/notify"
	"github.com/wdesk/groupbroker/internal/settings"
	"github.com/wdesk/groupbroker/internal/store"
	"github.com/wdesk/groupbroker/internal/transfer"
	"github.com/wdesk/groupbroker/internal/withdraw"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	ctx := context.Background()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	var notifier notify.Notifier
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Error("nats connection failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		notifier = notify.NewNATS(conn, "")
	} else {
		logger.Warn("NATS_URL not set, notifications are recorded in-process only")
		notifier = notify.NewMemory()
	}

	cfgStore := settings.New(st)
	if err := cfgStore.Load(ctx); err != nil {
		logger.Error("settings load failed", "error", err)
		os.Exit(1)
	}

	inspector := groups.NewClient(cfg.UserbotURL, 30*time.Second)
	registry := transfer.NewRegistry()
	transfers := transfer.NewService(registry, st, inspector, notifier, cfgStore, logger, cfg.UserbotID, cfg.TransferTTL)
	withdrawals := withdraw.NewService(st, notifier, logger, cfg.AdminIDs)

	srv := api.NewServer(transfers, withdrawals, st, cfgStore, notifier, logger, cfg.AuthToken, cfg.AdminIDs)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
