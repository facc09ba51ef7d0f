package repository

import (
	"context"

	"userauth/internal/domain"
)

// UserRepository defines persistence operations for UserRecord entities.
// Passwords are passed in clear and stored in the form chosen by the
// repository's password hasher.
type UserRepository interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, username, password, email string) error
	InsertIfAbsent(ctx context.Context, username, password, email string) (*domain.UserRecord, error)
	FindByCredentials(ctx context.Context, username, password string) (*domain.UserRecord, error)
	FindByUsername(ctx context.Context, username string) (*domain.UserRecord, error)
	UpdatePassword(ctx context.Context, username, password string) error
}
