package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"userauth/internal/domain"
	"userauth/internal/metrics"
	"userauth/internal/repository"
)

const (
	keyIsLoggedIn     = "isLoggedIn"
	keyUsername       = "username"
	keyUserID         = "userId"
	keyLoginTimestamp = "loginTimestamp"
)

var sessionKeys = []string{keyIsLoggedIn, keyUsername, keyUserID, keyLoginTimestamp}

// SessionManager tracks the logged-in user of this process in a KVStore.
type SessionManager struct {
	store  repository.KVStore
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewSessionManager(store repository.KVStore, logger logrus.FieldLogger) *SessionManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionManager{
		store:  store,
		logger: logger.WithField("component", "session"),
		now:    time.Now,
	}
}

// Save marks username as logged in from now on.
func (m *SessionManager) Save(ctx context.Context, username string, userID int64) (*domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || userID == 0 {
		return nil, fmt.Errorf("%w: session requires username and user id", domain.ErrInvalidInput)
	}

	sess := &domain.Session{
		Username:       username,
		UserID:         userID,
		LoginTimestamp: m.now().UTC().Truncate(time.Second),
	}
	err := m.store.SetMany(ctx, map[string]string{
		keyIsLoggedIn:     "true",
		keyUsername:       sess.Username,
		keyUserID:         strconv.FormatInt(sess.UserID, 10),
		keyLoginTimestamp: strconv.FormatInt(sess.LoginTimestamp.Unix(), 10),
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	metrics.SessionActive.Set(1)
	m.logger.WithField("username", username).Info("session started")
	return sess, nil
}

// Clear logs the current user out.
func (m *SessionManager) Clear(ctx context.Context) error {
	if err := m.store.DeleteMany(ctx, sessionKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	metrics.SessionActive.Set(0)
	m.logger.Info("session cleared")
	return nil
}

// Current returns the active session, or nil when nobody is logged in.
// Incomplete key sets read as logged out.
func (m *SessionManager) Current(ctx context.Context) (*domain.Session, error) {
	values, err := m.store.GetMany(ctx, sessionKeys...)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if values[keyIsLoggedIn] != "true" {
		return nil, nil
	}

	username := values[keyUsername]
	userID, idErr := strconv.ParseInt(values[keyUserID], 10, 64)
	ts, tsErr := strconv.ParseInt(values[keyLoginTimestamp], 10, 64)
	if username == "" || idErr != nil || userID == 0 || tsErr != nil {
		m.logger.Warn("ignoring incomplete session state")
		return nil, nil
	}

	return &domain.Session{
		Username:       username,
		UserID:         userID,
		LoginTimestamp: time.Unix(ts, 0).UTC(),
	}, nil
}

func (m *SessionManager) IsLoggedIn(ctx context.Context) bool {
	return m.current(ctx) != nil
}

func (m *SessionManager) CurrentUsername(ctx context.Context) (string, bool) {
	if s := m.current(ctx); s != nil {
		return s.Username, true
	}
	return "", false
}

func (m *SessionManager) CurrentUserID(ctx context.Context) (int64, bool) {
	if s := m.current(ctx); s != nil {
		return s.UserID, true
	}
	return 0, false
}

func (m *SessionManager) LoginTimestamp(ctx context.Context) (time.Time, bool) {
	if s := m.current(ctx); s != nil {
		return s.LoginTimestamp, true
	}
	return time.Time{}, false
}

// Duration reports how long the current session has lasted.
func (m *SessionManager) Duration(ctx context.Context) (time.Duration, bool) {
	if s := m.current(ctx); s != nil {
		return s.Duration(m.now()), true
	}
	return 0, false
}

// DurationString is Duration formatted for display, e.g. "1h 20m".
func (m *SessionManager) DurationString(ctx context.Context) (string, bool) {
	d, ok := m.Duration(ctx)
	if !ok {
		return "", false
	}
	return domain.FormatDuration(d), true
}

func (m *SessionManager) current(ctx context.Context) *domain.Session {
	s, err := m.Current(ctx)
	if err != nil {
		m.logger.WithError(err).Error("read session")
		return nil
	}
	return s
}
