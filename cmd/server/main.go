package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"edms/internal/auth"
	"edms/internal/config"
	"edms/internal/handler"
	"edms/internal/metrics"
	"edms/internal/middleware"
	"edms/internal/repository/cache"
	"edms/internal/repository/postgres"
	"edms/internal/service/documents"
	"edms/internal/service/notify"
	"edms/internal/service/transfer"
	"edms/internal/service/users"
	"edms/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// resetSweepInterval is how often expired password reset links are purged
const resetSweepInterval = time.Hour

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create pgx connection pool
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", pool.Config().MaxConns,
		"min_conns", pool.Config().MinConns,
	)

	// Create table names and make sure the schema exists
	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.RunSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	userRepo := cache.NewUserRepository(postgres.NewUserRepository(repoConfig), 0)
	docRepo := postgres.NewDocumentRepository(repoConfig)
	sigRepo := postgres.NewSignatureRepository(repoConfig)
	logRepo := postgres.NewDocumentLogRepository(repoConfig)
	notifRepo := postgres.NewNotificationRepository(repoConfig)
	resetRepo := postgres.NewPasswordResetRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Tokens: locally issued HS256, optionally also an external provider via JWKS
	tokens, err := auth.NewHMACTokens(cfg.JWTSecret, cfg.JWTTTL, logger)
	if err != nil {
		log.Fatalf("Failed to create token issuer: %v", err)
	}
	verifier := auth.ChainVerifier{tokens}
	if cfg.JWKSURL != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		verifier = append(verifier, jwksVerifier)
	}
	defer verifier.Close()

	// Email delivery
	var mailer notify.Mailer
	if cfg.MailEnabled() {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			SSL:      cfg.SMTPSSL,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Warn("SMTP not configured, emails are only logged")
		mailer = notify.NewLogMailer(logger)
	}
	outbox, closeOutbox := setupOutbox(ctx, cfg, mailer, m, logger)
	defer closeOutbox()

	catalog, err := notify.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load notification templates: %v", err)
	}
	dispatcher := notify.NewDispatcher(notifRepo, outbox, catalog, m, logger, cfg.PublicBaseURL)

	// File storage
	files, err := storage.New(ctx, storage.Config{
		Type:      cfg.StorageType,
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		Region:    cfg.StorageRegion,
		UseSSL:    cfg.StorageUseSSL,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to set up file storage: %v", err)
	}

	// Create services
	userService := users.NewService(userRepo, docRepo, resetRepo, txManager, tokens, dispatcher, cfg.PublicBaseURL, logger)
	docService := documents.NewDocumentService(docRepo, sigRepo, logRepo, userRepo, txManager, dispatcher, files, logger)
	activityService := documents.NewActivityService(docRepo, logRepo, notifRepo, userRepo, logger)
	transferService := transfer.NewService(
		userRepo,
		docRepo,
		sigRepo,
		logRepo,
		txManager,
		transfer.NewRegistry(),
		transfer.NewPgDumper(cfg.PgDumpPath, cfg.DatabaseURL, logger),
		m,
		logger,
	)

	go sweepResetTokens(ctx, resetRepo, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handlers := &handler.Handlers{
		Health:   handler.NewHealthHandler(pool, logger),
		Auth:     handler.NewAuthHandler(userService, logger),
		Users:    handler.NewUserHandler(userService, logger),
		Docs:     handler.NewDocumentHandler(docService, logger),
		Activity: handler.NewActivityHandler(activityService, logger),
		Transfer: handler.NewTransferHandler(transferService, logger),
	}
	handlers.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Metrics → Logging → Auth → Routes
	h = middleware.AuthMiddleware(verifier, userRepo, handler.PublicPaths, logger)(h)
	h = middleware.RequestLogger(logger)(h)
	h = middleware.Metrics(m, mux)(h)
	h = middleware.Recovery(logger, mux)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Database dumps stream for a while
		IdleTimeout:  60 * time.Second,
	}

	// drained is closed once in-flight requests have finished, so the
	// deferred outbox and pool closes run after the last handler
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	<-drained
	logger.Info("server stopped")
}

// setupOutbox picks the email queue configured by MAIL_QUEUE. The returned
// func releases it.
func setupOutbox(ctx context.Context, cfg *config.Config, mailer notify.Mailer, m *metrics.Metrics, logger *slog.Logger) (notify.Outbox, func()) {
	switch cfg.MailQueue {
	case "direct":
		return notify.NewDirectOutbox(mailer, m, logger), func() {}

	case "redis":
		client, err := notify.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		outbox := notify.NewRedisOutbox(client, "emails", mailer, m, logger)
		go func() {
			if err := outbox.Run(ctx); err != nil {
				logger.Error("email worker stopped", "error", err)
			}
		}()
		return outbox, func() { closeQuietly(client, logger) }

	default:
		outbox := notify.NewChannelOutbox(mailer, 256, m, logger)
		return outbox, func() { closeQuietly(outbox, logger) }
	}
}

func closeQuietly(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "error", err)
	}
}

type expiredTokenSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// sweepResetTokens purges expired password reset links until ctx ends
func sweepResetTokens(ctx context.Context, repo expiredTokenSweeper, logger *slog.Logger) {
	ticker := time.NewTicker(resetSweepInterval)
	defer ticker.Stop()
	for {
		n, err := repo.DeleteExpired(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("failed to purge expired reset tokens", "error", err)
		case n > 0:
			logger.Info("purged expired reset tokens", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
