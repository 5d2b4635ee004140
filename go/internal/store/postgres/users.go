package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/store"
)

var userColumns = []string{"id", "name", "email", "role", "created_at"}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	u.Role = models.UserRole(role)
	return &u, nil
}

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	query, args, err := psql.Insert("users").
		Columns("id", "name", "email", "role").
		Values(uuid.New(), params.Name, params.Email, string(params.Role)).
		Suffix("RETURNING id, name, email, role, created_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	user, err := scanUser(s.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(s.conn(ctx).QueryRow(ctx, query, args...))
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanUser(s.conn(ctx).QueryRow(ctx, query, args...))
}
