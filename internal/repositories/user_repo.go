package repositories

import (
	"context"
	"strings"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// GetByEmail looks a user up case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, email_confirmed_at, created_at, updated_at
		FROM users WHERE LOWER(email) = LOWER($1)
	`

	var user models.User
	err := r.pool.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.EmailConfirmedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// Create inserts a user; the password must already be hashed
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, email_confirmed_at)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, email_confirmed_at, created_at, updated_at
	`

	var created models.User
	err := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(user.Email)), user.PasswordHash, user.EmailConfirmedAt).Scan(
		&created.ID, &created.Email, &created.PasswordHash, &created.EmailConfirmedAt,
		&created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &created, nil
}
