package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"userauth/internal/domain"
	"userauth/internal/password"
	"userauth/internal/repository"
)

func newUserRepo(t *testing.T, hasher password.Hasher) repository.UserRepository {
	t.Helper()
	repo := NewUserRepository(openTestDB(t), hasher)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestUserRepository_UpsertCreatesAndOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, password.Plain{})

	require.NoError(t, repo.Upsert(ctx, "alice", "secret1", "a@x.com"))
	rec, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "secret1", rec.Password)
	assert.Equal(t, "a@x.com", rec.Email)
	firstID := rec.ID

	require.NoError(t, repo.Upsert(ctx, "alice", "secret2", "alice@x.com"))
	rec, err = repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, firstID, rec.ID)
	assert.Equal(t, "secret2", rec.Password)
	assert.Equal(t, "alice@x.com", rec.Email)
}

func TestUserRepository_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, password.Plain{})

	rec, err := repo.InsertIfAbsent(ctx, "alice", "secret1", "a@x.com")
	require.NoError(t, err)
	assert.Positive(t, rec.ID)
	assert.Equal(t, "alice", rec.Username)

	_, err = repo.InsertIfAbsent(ctx, "alice", "other", "other@x.com")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	stored, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "secret1", stored.Password)
	assert.Equal(t, "a@x.com", stored.Email)

	bob, err := repo.InsertIfAbsent(ctx, "bob", "pw", "b@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, bob.ID)
}

func TestUserRepository_FindByCredentials(t *testing.T) {
	ctx := context.Background()
	for name, hasher := range map[string]password.Hasher{
		"plain":  password.Plain{},
		"bcrypt": password.Bcrypt{Cost: bcrypt.MinCost},
	} {
		t.Run(name, func(t *testing.T) {
			repo := newUserRepo(t, hasher)
			_, err := repo.InsertIfAbsent(ctx, "alice", "secret1", "a@x.com")
			require.NoError(t, err)

			rec, err := repo.FindByCredentials(ctx, "alice", "secret1")
			require.NoError(t, err)
			assert.Equal(t, "alice", rec.Username)

			_, err = repo.FindByCredentials(ctx, "alice", "wrong")
			assert.ErrorIs(t, err, domain.ErrUserNotFound)

			_, err = repo.FindByCredentials(ctx, "nobody", "secret1")
			assert.ErrorIs(t, err, domain.ErrUserNotFound)
		})
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, password.Plain{})

	err := repo.UpdatePassword(ctx, "alice", "secret2")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.InsertIfAbsent(ctx, "alice", "secret1", "a@x.com")
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePassword(ctx, "alice", "secret2"))

	_, err = repo.FindByCredentials(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	rec, err := repo.FindByCredentials(ctx, "alice", "secret2")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", rec.Email)
}

func TestUserRepository_StorageErrors(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewUserRepository(db, nil)
	require.NoError(t, repo.Init(ctx))
	require.NoError(t, db.Close())

	_, err := repo.FindByUsername(ctx, "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.False(t, errors.Is(err, domain.ErrUserNotFound))

	err = repo.Upsert(ctx, "alice", "secret1", "a@x.com")
	assert.ErrorIs(t, err, domain.ErrStorage)
}
