package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"userauth/internal/domain"
	"userauth/internal/metrics"
	"userauth/internal/repository"
)

// AuthService describes the register / login / reset-password operations.
type AuthService interface {
	Register(ctx context.Context, username, password, email string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	ResetPassword(ctx context.Context, username, newPassword string) error
}

type authService struct {
	users  repository.UserRepository
	logger logrus.FieldLogger
}

// NewAuthService returns an AuthService backed by the local user store.
func NewAuthService(users repository.UserRepository, logger logrus.FieldLogger) AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &authService{
		users:  users,
		logger: logger.WithField("component", "auth"),
	}
}

func (s *authService) Register(ctx context.Context, username, password, email string) (user *domain.User, err error) {
	defer func() { s.observe("register", username, err) }()

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidInput
	}

	rec, err := s.users.InsertIfAbsent(ctx, username, password, email)
	if err != nil {
		return nil, err
	}
	return domain.PublicUser(rec), nil
}

func (s *authService) Login(ctx context.Context, username, password string) (user *domain.User, err error) {
	defer func() { s.observe("login", username, err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidInput
	}

	rec, err := s.users.FindByCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	return domain.PublicUser(rec), nil
}

func (s *authService) ResetPassword(ctx context.Context, username, newPassword string) (err error) {
	defer func() { s.observe("reset_password", username, err) }()

	username = strings.TrimSpace(username)
	if username == "" || newPassword == "" {
		return domain.ErrInvalidInput
	}

	return s.users.UpdatePassword(ctx, username, newPassword)
}

func (s *authService) observe(op, username string, err error) {
	outcome := Outcome(err)
	metrics.AuthOperationsTotal.WithLabelValues(op, outcome).Inc()

	entry := s.logger.WithFields(logrus.Fields{
		"operation": op,
		"username":  username,
		"outcome":   outcome,
	})
	switch {
	case err == nil:
		entry.Debug("auth operation succeeded")
	case outcome == "error":
		entry.WithError(err).Error("auth operation failed")
	default:
		entry.Warn("auth operation rejected")
	}
}

// Outcome classifies err into a metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return "already_exists"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
