package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"userauth/internal/domain"
	"userauth/internal/metrics"
	"userauth/internal/password"
	"userauth/internal/repository"
	"userauth/internal/repository/sqlite"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestUsers(t *testing.T, hasher password.Hasher) repository.UserRepository {
	t.Helper()
	users := sqlite.NewUserRepository(openTestDB(t), hasher)
	require.NoError(t, users.Init(context.Background()))
	return users
}

func newTestAuth(t *testing.T) (AuthService, repository.UserRepository) {
	t.Helper()
	users := newTestUsers(t, password.Bcrypt{Cost: bcrypt.MinCost})
	return NewAuthService(users, quietLogger()), users
}

func TestAuthService_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	user, err := svc.Register(ctx, "alice", "secret1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, "a@x.com", user.Email)

	logged, err := svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", logged.Name)
	assert.Equal(t, user.ID, logged.ID)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.NoError(t, svc.ResetPassword(ctx, "alice", "secret2"))

	_, err = svc.Login(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	logged, err = svc.Login(ctx, "alice", "secret2")
	require.NoError(t, err)
	assert.Equal(t, "alice", logged.Name)
}

func TestAuthService_RegisterExistingLeavesRecord(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestAuth(t)

	_, err := svc.Register(ctx, "alice", "secret1", "a@x.com")
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.AuthOperationsTotal.WithLabelValues("register", "already_exists"))
	_, err = svc.Register(ctx, "alice", "other-pass", "other@x.com")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	after := testutil.ToFloat64(metrics.AuthOperationsTotal.WithLabelValues("register", "already_exists"))
	assert.Equal(t, before+1, after)

	rec, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", rec.Email)

	_, err = svc.Login(ctx, "alice", "secret1")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "other-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_WrongPasswordKeepsRecord(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestAuth(t)

	_, err := svc.Register(ctx, "alice", "secret1", "a@x.com")
	require.NoError(t, err)
	before, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	after, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAuthService_ResetUnknownUser(t *testing.T) {
	svc, _ := newTestAuth(t)
	err := svc.ResetPassword(context.Background(), "ghost", "secret2")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	_, err := svc.Register(ctx, "  ", "secret1", "a@x.com")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Register(ctx, "alice", "", "a@x.com")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Login(ctx, "", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "alice", ""), domain.ErrInvalidInput)
}

func TestAuthService_PasswordTooLongForBcrypt(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)
	before := testutil.ToFloat64(metrics.AuthOperationsTotal.WithLabelValues("register", "invalid_input"))

	_, err := svc.Register(ctx, "bob", strings.Repeat("a", 80), "b@x.com")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthOperationsTotal.WithLabelValues("register", "invalid_input")))

	_, err = svc.Register(ctx, "carol", strings.Repeat("€", 30), "c@x.com")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Register(ctx, "dave", "secret1", "d@x.com")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "dave", strings.Repeat("a", 80)), domain.ErrInvalidInput)
}

func TestAuthService_PlainScheme(t *testing.T) {
	ctx := context.Background()
	users := newTestUsers(t, password.Plain{})
	svc := NewAuthService(users, quietLogger())

	_, err := svc.Register(ctx, "bob", "hunter22", "b@x.com")
	require.NoError(t, err)

	rec, err := users.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "hunter22", rec.Password)

	_, err = svc.Login(ctx, "bob", "hunter22")
	assert.NoError(t, err)
}

type failingUsers struct {
	repository.UserRepository
	err error
}

func (f failingUsers) InsertIfAbsent(context.Context, string, string, string) (*domain.UserRecord, error) {
	return nil, f.err
}

func (f failingUsers) FindByCredentials(context.Context, string, string) (*domain.UserRecord, error) {
	return nil, f.err
}

func (f failingUsers) UpdatePassword(context.Context, string, string) error {
	return f.err
}

func TestAuthService_SurfacesStorageErrors(t *testing.T) {
	ctx := context.Background()
	storeErr := &domain.StorageError{Op: "insert user", Err: errors.New("disk full")}
	svc := NewAuthService(failingUsers{err: storeErr}, quietLogger())

	_, err := svc.Register(ctx, "alice", "secret1", "a@x.com")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = svc.Login(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "alice", "secret2"), domain.ErrStorage)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "invalid_credentials", Outcome(domain.ErrInvalidCredentials))
	assert.Equal(t, "already_exists", Outcome(domain.ErrUserAlreadyExists))
	assert.Equal(t, "not_found", Outcome(domain.ErrUserNotFound))
	assert.Equal(t, "invalid_input", Outcome(domain.ErrInvalidInput))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
