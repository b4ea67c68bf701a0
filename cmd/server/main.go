// Package main runs the platform API server: the auction endpoints, the lock
// verification endpoint and the operational surface (health, metrics).
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/chopshop-gg/platform/internal/app"
	"github.com/chopshop-gg/platform/internal/app/httpapi"
	auctionsvc "github.com/chopshop-gg/platform/internal/app/services/auction"
	ethlocksvc "github.com/chopshop-gg/platform/internal/app/services/ethlock"
	"github.com/chopshop-gg/platform/internal/app/storage/postgres"
	"github.com/chopshop-gg/platform/internal/config"
	"github.com/chopshop-gg/platform/internal/platform/migrations"
	"github.com/chopshop-gg/platform/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Lock.Validate(); err != nil {
		return err
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := app.Stores{}
	if cfg.Database.URL != "" {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := migrations.Apply(ctx, db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		store := postgres.New(db)
		stores = app.Stores{Auction: store, TickLock: store, Locks: store, Audit: store}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	amountWei, err := cfg.Lock.AmountWeiBig()
	if err != nil {
		return err
	}

	application, err := app.New(stores, app.Config{
		Auction: auctionsvc.Config{
			SubmissionWindow: cfg.Auction.SubmissionWindow,
			BiddingWindow:    cfg.Auction.BiddingWindow,
		},
		Lock: ethlocksvc.Config{
			RecipientAddress: cfg.Lock.RecipientAddress,
			LockAmountWei:    amountWei,
			MinConfirmations: cfg.Lock.MinConfirmations,
			PollAttempts:     cfg.Lock.PollAttempts,
			PollInterval:     cfg.Lock.PollInterval,
			MaxAttempts:      cfg.Lock.MaxAttempts,
		},
		RPCEndpoint: cfg.Lock.RPCURL,
	}, log)
	if err != nil {
		return err
	}

	audits, err := httpapi.NewAuditLog(0, cfg.Server.AuditLogPath)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}

	limiter := httpapi.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst,
		[]string{"/eth-lock/verify", "/auction/bids", "/auction/submissions"}, log)

	handler := httpapi.WrapWithAuth(
		audits.Middleware(limiter.Handler(httpapi.NewHandler(application))),
		cfg.Server.Tokens(), audits)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("api server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
