package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"userauth/internal/domain"
	"userauth/internal/password"
	"userauth/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type UserRepository struct {
	db     *sql.DB
	hasher password.Hasher
}

func NewUserRepository(db *sql.DB, hasher password.Hasher) repository.UserRepository {
	if hasher == nil {
		hasher = password.Plain{}
	}
	return &UserRepository{db: db, hasher: hasher}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return storageErr("create users table", err)
	}
	return nil
}

func (r *UserRepository) Upsert(ctx context.Context, username, pass, email string) error {
	stored, err := r.hasher.Hash(pass)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
INSERT INTO users (username, password, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(username) DO UPDATE SET
	password = excluded.password,
	email = excluded.email,
	updated_at = excluded.updated_at`,
		username,
		stored,
		email,
		now,
		now,
	)
	if err != nil {
		return storageErr("upsert user", err)
	}
	return nil
}

func (r *UserRepository) InsertIfAbsent(ctx context.Context, username, pass, email string) (*domain.UserRecord, error) {
	stored, err := r.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &domain.UserRecord{
		Username:  username,
		Password:  stored,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(username) DO NOTHING`,
		rec.Username,
		rec.Password,
		rec.Email,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return nil, storageErr("insert user", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr("user rows affected", err)
	}
	if affected == 0 {
		return nil, domain.ErrUserAlreadyExists
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("user last insert id", err)
	}
	rec.ID = id
	return rec, nil
}

func (r *UserRepository) FindByCredentials(ctx context.Context, username, pass string) (*domain.UserRecord, error) {
	rec, err := r.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !r.hasher.Matches(rec.Password, pass) {
		return nil, domain.ErrUserNotFound
	}
	return rec, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password, email, created_at, updated_at
FROM users
WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, username, pass string) error {
	stored, err := r.hasher.Hash(pass)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET password = ?, updated_at = ?
WHERE username = ?`,
		stored,
		time.Now().UTC(),
		username,
	)
	if err != nil {
		return storageErr("update password", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("password rows affected", err)
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.UserRecord, error) {
	var rec domain.UserRecord
	if err := row.Scan(
		&rec.ID,
		&rec.Username,
		&rec.Password,
		&rec.Email,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageErr("scan user", err)
	}
	return &rec, nil
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: fmt.Errorf("sqlite: %w", err)}
}
