package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"edms/internal/domain"
	"edms/internal/domain/models"
	"edms/internal/domain/repositories"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"
)

var userColumns = []any{"id", "email", "full_name", "password_hash", "role", "email_notifications", "is_active", "date_joined", "last_login"}

const userSelect = `id, email, full_name, password_hash, role, email_notifications, is_active, date_joined, last_login`

// PostgresUserRepository implements the UserRepository interface
type PostgresUserRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(config *RepositoryConfig) repositories.UserRepository {
	return &PostgresUserRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&role,
		&user.EmailNotifications,
		&user.IsActive,
		&user.DateJoined,
		&user.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	if user.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	return &user, nil
}

// Create creates a new user
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (email, full_name, password_hash, role, email_notifications, is_active, date_joined)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, date_joined
	`, r.tables.Users)

	var joined any
	if !user.DateJoined.IsZero() {
		joined = user.DateJoined
	}

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.Role.String(),
		user.EmailNotifications,
		user.IsActive,
		joined,
	).Scan(&user.ID, &user.DateJoined)

	if err != nil {
		if IsPgDuplicateError(err) {
			return r.emailConflict(ctx, user.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// emailConflict builds a ConflictError pointing at the user holding email
func (r *PostgresUserRepository) emailConflict(ctx context.Context, email string) error {
	existing, err := r.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("email '%s' already registered: %w", email, domain.ErrConflict)
	}
	return &domain.ConflictError{
		Message:      fmt.Sprintf("email '%s' already registered", email),
		ResourceType: "user",
		ResourceID:   fmt.Sprint(existing.ID),
	}
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userSelect, r.tables.Users)

	user, err := scanUser(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE LOWER(email) = LOWER($1)`, userSelect, r.tables.Users)

	user, err := scanUser(GetExecutor(ctx, r.pool).QueryRow(ctx, query, email))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("user '%s': %w", email, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// GetByIDs retrieves the users among ids that exist
func (r *PostgresUserRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1) ORDER BY id`, userSelect, r.tables.Users)
	return r.queryUsers(ctx, query, ids)
}

// List retrieves all users, newest first
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY date_joined DESC, id DESC`, userSelect, r.tables.Users)
	return r.queryUsers(ctx, query)
}

// Search finds active users whose email or full name contains query
func (r *PostgresUserRepository) Search(ctx context.Context, query string, exclude []int64, limit int) ([]models.User, error) {
	pattern := containsPattern(query)
	ds := builder().
		From(r.tables.Users).
		Select(userColumns...).
		Where(
			goqu.I("is_active").IsTrue(),
			goqu.Or(
				goqu.I("email").ILike(pattern),
				goqu.I("full_name").ILike(pattern),
			),
		).
		Order(goqu.I("full_name").Asc(), goqu.I("id").Asc())

	if len(exclude) > 0 {
		ds = ds.Where(goqu.I("id").NotIn(exclude))
	}
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	sql, args, err := toSQL(ds)
	if err != nil {
		return nil, err
	}
	return r.queryUsers(ctx, sql, args...)
}

func (r *PostgresUserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Update saves the mutable profile fields of a user
func (r *PostgresUserRepository) Update(ctx context.Context, user *models.User) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET email = $1, full_name = $2, role = $3, email_notifications = $4, is_active = $5
		WHERE id = $6
	`, r.tables.Users)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		user.Email,
		user.FullName,
		user.Role.String(),
		user.EmailNotifications,
		user.IsActive,
		user.ID,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return r.emailConflict(ctx, user.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", user.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $1 WHERE id = $2`, r.tables.Users)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateLastLogin records a successful login
func (r *PostgresUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET last_login = $1 WHERE id = $2`, r.tables.Users)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, at, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Delete removes a user. Owned documents, recipient relations,
// notifications and log entries go with it.
func (r *PostgresUserRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Users)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
