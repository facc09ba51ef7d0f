package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserAlreadyExists is returned when attempting to register with an existing username.
	ErrUserAlreadyExists = errors.New("this username is already registered")
	// ErrUserNotFound is returned when no record matches the given username.
	ErrUserNotFound = errors.New("no account found with that username")
	// ErrInvalidInput rejects requests with missing username or password.
	ErrInvalidInput = errors.New("username and password are required")
	// ErrStorage marks failures of the persistence layer.
	ErrStorage = errors.New("storage error")
)

// UserRecord is the persisted credential and profile tuple keyed by username.
type UserRecord struct {
	ID        int64
	Username  string
	Password  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is the public view of a UserRecord. It never carries the password.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PublicUser maps a stored record to its public view.
func PublicUser(rec *UserRecord) *User {
	if rec == nil {
		return nil
	}
	return &User{
		ID:    rec.ID,
		Name:  rec.Username,
		Email: rec.Email,
	}
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
