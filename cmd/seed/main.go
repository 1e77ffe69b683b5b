package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	"edms/internal/auth"
	"edms/internal/config"
	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"
	"edms/internal/domain/services"
	"edms/internal/metrics"
	"edms/internal/repository/postgres"
	"edms/internal/service/documents"
	"edms/internal/service/notify"
	"edms/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed data")
	clearData := flag.Bool("clear-data", false, "Clear all rows (keep schema)")
	adminEmail := flag.String("admin-email", "admin@example.com", "Email of the bootstrap administrator")
	adminPassword := flag.String("admin-password", "", "Password of the bootstrap administrator (required unless -schema-only or -clear-data)")
	demo := flag.Bool("demo", false, "Also create demo staff accounts and documents")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *clearData {
		log.Printf("🧹 Clearing data only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	// Run schema to ensure tables exist
	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.RunSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	if *clearData {
		log.Println("🧹 Clearing all rows...")
		if err := postgres.ClearData(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("✅ Data cleared successfully")
		return
	}

	if len(*adminPassword) < config.MinPasswordLength {
		log.Fatalf("-admin-password must be at least %d characters", config.MinPasswordLength)
	}

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	userRepo := postgres.NewUserRepository(repoConfig)

	admin, err := ensureUser(ctx, userRepo, *adminEmail, "Administrator", models.RoleAdmin, *adminPassword)
	if err != nil {
		log.Fatalf("Failed to create administrator: %v", err)
	}
	log.Printf("✅ Administrator ready: %s (ID: %d)", admin.Email, admin.ID)

	if !*demo {
		log.Println("🎉 Seeding complete!")
		return
	}

	if err := seedDemo(ctx, repoConfig, logger); err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}
	log.Println("🎉 Seeding complete!")
}

// ensureUser creates the account unless the email is already registered
func ensureUser(ctx context.Context, userRepo repositories.UserRepository, email, name string, role models.Role, password string) (*models.User, error) {
	existing, err := userRepo.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:              email,
		FullName:           name,
		PasswordHash:       hash,
		Role:               role,
		EmailNotifications: false,
		IsActive:           true,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

type seedDocument struct {
	owner      int
	title      string
	recipients []int
	signers    []int
}

// seedDemo creates staff accounts and documents in every status through
// the document service, so statuses, signatures and audit entries are
// consistent. Emails go to the log.
func seedDemo(ctx context.Context, repoConfig *postgres.RepositoryConfig, logger *slog.Logger) error {
	userRepo := postgres.NewUserRepository(repoConfig)
	txManager := postgres.NewTransactionManager(repoConfig.Pool, logger)
	notifRepo := postgres.NewNotificationRepository(repoConfig)

	catalog, err := notify.LoadCatalog()
	if err != nil {
		return err
	}
	m := metrics.NewNop()
	dispatcher := notify.NewDispatcher(notifRepo, notify.NewDirectOutbox(notify.NewLogMailer(logger), m, logger), catalog, m, logger, "")
	docService := documents.NewDocumentService(
		postgres.NewDocumentRepository(repoConfig),
		postgres.NewSignatureRepository(repoConfig),
		postgres.NewDocumentLogRepository(repoConfig),
		userRepo,
		txManager,
		dispatcher,
		storage.Disabled{},
		logger,
	)

	staff := []struct{ email, name string }{
		{"anna@example.com", "Anna Petrova"},
		{"boris@example.com", "Boris Ivanov"},
		{"clara@example.com", "Clara Smith"},
	}
	var people []*models.User
	for _, s := range staff {
		u, err := ensureUser(ctx, userRepo, s.email, s.name, models.RoleStaff, "demo-password")
		if err != nil {
			return err
		}
		people = append(people, u)
		log.Printf("✅ Staff account: %s (password: demo-password)", u.Email)
	}

	docs := []seedDocument{
		{owner: 0, title: "Internal memo draft"},
		{owner: 0, title: "Supply contract #42", recipients: []int{1, 2}},
		{owner: 1, title: "Vacation request", recipients: []int{0}, signers: []int{0}},
		{owner: 2, title: "NDA with Example Corp", recipients: []int{0, 1}, signers: []int{1}},
	}
	for i, d := range docs {
		owner := people[d.owner]
		ids := []int64{}
		for _, r := range d.recipients {
			ids = append(ids, people[r].ID)
		}
		doc, err := docService.CreateDocument(ctx, owner, &services.CreateDocumentRequest{Title: d.title, RecipientIDs: ids})
		if err != nil {
			log.Printf("❌ Failed to create document '%s': %v", d.title, err)
			continue
		}
		for _, s := range d.signers {
			if doc, err = docService.SignDocument(ctx, people[s], doc.ID); err != nil {
				return err
			}
		}
		log.Printf("✅ Created document %d/%d: %s (ID: %d, status: %s)", i+1, len(docs), doc.Title, doc.ID, doc.Status)
	}
	return nil
}
