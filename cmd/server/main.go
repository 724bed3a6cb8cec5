package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gatekeeper/internal/api"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/config"
	"gatekeeper/internal/db"
	"gatekeeper/internal/email"
	"gatekeeper/internal/models"
	"gatekeeper/internal/revocation"
	"gatekeeper/internal/social"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	})))

	slog.Info("starting server", "name", cfg.Server.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(ctx, db.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "driver", database.Driver())

	users := db.NewUserRepository(database)
	identities := db.NewSocialIdentityRepository(database)
	revokedTokens := db.NewRevokedTokenRepository(database)

	tokens, err := auth.NewTokenIssuer(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		cfg.Auth.ResetTokenTTL,
	)
	if err != nil {
		slog.Error("failed to initialize token issuer", "error", err)
		os.Exit(1)
	}

	health := map[string]api.Pinger{"database": database}

	var cache revocation.Cache
	if cfg.Revocation.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Revocation.Redis.Addr,
			Password: cfg.Revocation.Redis.Password,
			DB:       cfg.Revocation.Redis.DB,
		})
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			// lookups fall back to SQL while redis is unreachable
			slog.Warn("redis unreachable at startup", "addr", cfg.Revocation.Redis.Addr, "error", err)
		}
		pingCancel()

		cache = revocation.NewRedisCache(client)
		health["redis"] = api.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		slog.Info("revocation cache enabled", "addr", cfg.Revocation.Redis.Addr)
	}
	revocations := revocation.NewService(revokedTokens, cache)

	verifiers := make(map[models.Provider]social.Verifier)
	if cfg.Social.Google.Enabled {
		google, err := social.NewGoogleVerifier(cfg.Social.Google.ClientID)
		if err != nil {
			slog.Error("failed to initialize google verifier", "error", err)
			os.Exit(1)
		}
		verifiers[models.ProviderGoogle] = google
	}
	if cfg.Social.Facebook.Enabled {
		verifiers[models.ProviderFacebook] = social.NewFacebookVerifier(
			cfg.Social.Facebook.GraphURL,
			&http.Client{Timeout: cfg.Social.Timeout},
		)
	}
	registry := social.NewRegistry(cfg.Social.Timeout, verifiers)

	var sink audit.Sink
	switch cfg.Audit.Driver {
	case "amqp":
		amqpSink := audit.NewAMQPSink(cfg.Audit.AMQP.URL, cfg.Audit.AMQP.Queue, cfg.Audit.AMQP.BufferSize)
		go amqpSink.Start(ctx)
		sink = amqpSink
		slog.Info("audit events published to amqp", "queue", cfg.Audit.AMQP.Queue)
	default:
		sink = audit.NewLogSink(slog.Default())
	}

	var mailer auth.ResetMailer = email.LogMailer{}
	if cfg.Email.SMTP.Configured() {
		mailer = email.NewSMTPService(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
			cfg.Email.SMTP.From,
			cfg.Email.ResetURL,
		)
		slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)
	}

	service := auth.NewService(auth.Dependencies{
		Users:       users,
		Identities:  identities,
		Tokens:      tokens,
		Passwords:   auth.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.BcryptConcurrency),
		Revocations: revocations,
		Social:      registry,
		Audit:       sink,
		Mailer:      mailer,
	})

	if cfg.Revocation.CleanupInterval > 0 {
		go db.NewCleanupService(revokedTokens, cfg.Revocation.CleanupInterval).Start(ctx)
	}

	server, err := api.NewServer(cfg, service, health)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	cancel()

	slog.Info("server stopped")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
