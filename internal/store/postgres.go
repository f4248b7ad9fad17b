package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/rajatsgill7/medicalledger/pkg/database"
	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/types"
)

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *database.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log,
	}
}

// CreateUser creates a new user in the database
func (s *PostgresStore) CreateUser(ctx context.Context, user *types.User) error {
	query := `
		INSERT INTO users (id, username, email, name, role, specialty,
			password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Name,
		user.Role,
		user.Specialty,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if strings.Contains(pqErr.Detail, "username") {
					return types.NewValidationError("USERNAME_EXISTS", "username already exists", nil)
				}
				return types.NewValidationError(types.ErrCodeConflict, "user already exists", nil)
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created successfully", "user_id", user.ID, "username", user.Username)
	return nil
}

// GetUser retrieves a user by ID
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*types.User, error) {
	return s.getUserWhere(ctx, "id = $1", id)
}

// GetUserByUsername retrieves a user by username
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return s.getUserWhere(ctx, "username = $1", username)
}

func (s *PostgresStore) getUserWhere(ctx context.Context, where string, arg interface{}) (*types.User, error) {
	query := `
		SELECT id, username, email, name, role, specialty,
			password_hash, is_active, created_at, updated_at
		FROM users
		WHERE ` + where

	var user types.User

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Specialty,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("USER_NOT_FOUND", "user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateUserProfile updates mutable profile fields
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id string, updates *types.ProfileUpdates) error {
	setParts := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	argIndex := 1

	if updates.Name != "" {
		setParts = append(setParts, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, updates.Name)
		argIndex++
	}
	if updates.Email != "" {
		setParts = append(setParts, fmt.Sprintf("email = $%d", argIndex))
		args = append(args, updates.Email)
		argIndex++
	}
	if updates.Specialty != "" {
		setParts = append(setParts, fmt.Sprintf("specialty = $%d", argIndex))
		args = append(args, updates.Specialty)
		argIndex++
	}

	if len(setParts) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "no profile updates provided", nil)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, time.Now().UTC())
	argIndex++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d",
		strings.Join(setParts, ", "), argIndex)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}

	return s.requireRowAffected(result, "USER_NOT_FOUND", "user not found")
}

// UpdateUserPassword replaces the stored password hash
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user password: %w", err)
	}

	return s.requireRowAffected(result, "USER_NOT_FOUND", "user not found")
}

// GetNotificationPreferences returns the stored settings blob, nil when unset
func (s *PostgresStore) GetNotificationPreferences(ctx context.Context, id string) ([]byte, error) {
	query := `SELECT notification_prefs FROM users WHERE id = $1`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("USER_NOT_FOUND", "user not found")
		}
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}

	return raw, nil
}

// SetNotificationPreferences replaces the stored settings blob
func (s *PostgresStore) SetNotificationPreferences(ctx context.Context, id string, raw []byte) error {
	query := `UPDATE users SET notification_prefs = $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, raw, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set notification preferences: %w", err)
	}

	return s.requireRowAffected(result, "USER_NOT_FOUND", "user not found")
}

func (s *PostgresStore) requireRowAffected(result sql.Result, code, message string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return types.NewNotFoundError(code, message)
	}
	return nil
}
