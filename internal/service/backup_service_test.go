package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userauth/internal/password"
	"userauth/internal/repository/sqlite"
	"userauth/internal/storage"
)

type fakeStorage struct {
	objects   map[string]storage.ObjectInfo
	uploaded  []string
	deleted   []string
	uploadErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]storage.ObjectInfo{}}
}

func (f *fakeStorage) UploadFile(_ context.Context, localPath string, opts storage.UploadOptions) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	fi, err := os.Stat(localPath)
	if err != nil {
		return "", err
	}
	if opts.ProgressCallback != nil {
		opts.ProgressCallback(fi.Size(), fi.Size())
	}
	f.uploaded = append(f.uploaded, opts.Key)
	f.objects[opts.Key] = storage.ObjectInfo{Key: opts.Key, Size: fi.Size()}
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (f *fakeStorage) ListObjects(_ context.Context, _ string, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStorage) DeleteObjects(_ context.Context, _ string, keys []string) error {
	for _, k := range keys {
		delete(f.objects, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func TestBackupService_CreateListPrune(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := sqlite.NewUserRepository(db, password.Plain{})
	require.NoError(t, users.Init(ctx))
	require.NoError(t, users.Upsert(ctx, "alice", "secret1", "a@x.com"))

	store := newFakeStorage()
	snapDir := t.TempDir()
	svc := NewBackupService(db, store, BackupConfig{
		Bucket:      "backups",
		KeyPrefix:   "/userauth/",
		SnapshotDir: snapDir,
		Retain:      2,
	}, quietLogger())

	clock := time.Date(2025, 11, 25, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	var locations []string
	for i := 0; i < 3; i++ {
		loc, err := svc.Create(ctx)
		require.NoError(t, err)
		locations = append(locations, loc)
		clock = clock.Add(time.Hour)
	}
	assert.Equal(t, "s3://backups/userauth/userauth-20251125T090000Z.db", locations[0])

	entries, err := os.ReadDir(snapDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "local snapshots must be removed")

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "userauth/userauth-20251125T110000Z.db", list[0].Key)
	assert.Equal(t, "userauth/userauth-20251125T100000Z.db", list[1].Key)
	assert.Equal(t, []string{"userauth/userauth-20251125T090000Z.db"}, store.deleted)
}

func TestBackupService_UploadError(t *testing.T) {
	store := newFakeStorage()
	store.uploadErr = errors.New("network down")
	svc := NewBackupService(openTestDB(t), store, BackupConfig{Bucket: "b", SnapshotDir: t.TempDir()}, quietLogger())

	_, err := svc.Create(context.Background())
	assert.ErrorContains(t, err, "network down")
}

func TestBackupService_Disabled(t *testing.T) {
	svc := NewBackupService(nil, nil, BackupConfig{}, quietLogger())
	assert.False(t, svc.Enabled())
	_, err := svc.Create(context.Background())
	assert.ErrorIs(t, err, ErrBackupsDisabled)
	_, err = svc.List(context.Background())
	assert.ErrorIs(t, err, ErrBackupsDisabled)

	var nilSvc *BackupService
	assert.False(t, nilSvc.Enabled())
}
