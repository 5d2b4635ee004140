package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/sqlutil"
	"github.com/mcdev12/bingo/go/internal/store"
)

var userColumns = []string{"id", "name", "email", "role", "created_at"}

func scanUser(row scanner) (*models.User, error) {
	var (
		u     models.User
		email sql.Null[string]
		role  string
	)
	if err := row.Scan(&u.ID, &u.Name, &email, &role, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	u.Email = sqlutil.Optional(email)
	u.Role = models.UserRole(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	user := &models.User{
		ID:        uuid.New(),
		Name:      params.Name,
		Email:     params.Email,
		Role:      params.Role,
		CreatedAt: s.now(),
	}

	query, args, err := builder.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Name, sqlutil.Nullable(user.Email), string(user.Role), user.CreatedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query, args, err := builder.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(s.conn(ctx).QueryRowContext(ctx, query, args...))
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query, args, err := builder.Select(userColumns...).From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(s.conn(ctx).QueryRowContext(ctx, query, args...))
}
