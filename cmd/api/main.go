package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaughan-dsouza/taskboard/internal/auth"
	"github.com/vaughan-dsouza/taskboard/internal/config"
	"github.com/vaughan-dsouza/taskboard/internal/db"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
	"github.com/vaughan-dsouza/taskboard/internal/mail"
	"github.com/vaughan-dsouza/taskboard/internal/server"
	"github.com/vaughan-dsouza/taskboard/internal/service"
	"github.com/vaughan-dsouza/taskboard/internal/session"
	"github.com/vaughan-dsouza/taskboard/internal/store"
)

const mailTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}

	mailer, err := newMailer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	svc := service.NewUserService(users, issuer, auth.NewHasher(), mailer, logger, service.Options{
		ClientURL:      cfg.ClientURL,
		VerifyTokenTTL: cfg.VerifyTokenTTL,
		ResetTokenTTL:  cfg.ResetTokenTTL,
	})

	carrier := session.New(cfg)
	logger.Info(ctx, "session transport", "mode", carrier.Mode())

	router := server.NewRouter(svc, carrier, cfg.AllowedOrigins, logger)
	srv := server.New(":"+cfg.Port, router, svc, cfg.TokenSweepInterval, logger)
	return srv.Run(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (store.UserRepository, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn(ctx, "using in-memory store; data is lost on restart")
		return store.NewMemoryRepository(), func() {}, nil
	}

	conn, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxOpen:     cfg.DBMaxOpen,
		MaxIdle:     cfg.DBMaxIdle,
		MaxLifetime: cfg.DBMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("db migrate: %w", err)
	}
	logger.Info(ctx, "database ready")

	return store.NewPostgresRepository(conn), closer(conn), nil
}

func closer(conn *sqlx.DB) func() {
	return func() { _ = conn.Close() }
}

func newMailer(ctx context.Context, cfg *config.Config, logger logging.Logger) (mail.Mailer, error) {
	m, err := mail.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return mail.NewAsync(m, logger, mailTimeout), nil
}
