package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"userauth/internal/metrics"
	"userauth/internal/repository/sqlite"
	"userauth/internal/storage"
)

// ErrBackupsDisabled is returned when no backup bucket is configured.
var ErrBackupsDisabled = errors.New("backups are not configured")

// BackupConfig describes where database snapshots go.
type BackupConfig struct {
	Bucket      string
	KeyPrefix   string
	SnapshotDir string
	// Retain is the number of remote snapshots to keep; zero keeps all.
	Retain int
}

// BackupService snapshots the user database and ships it to object storage.
type BackupService struct {
	db      *sql.DB
	storage storage.Service
	cfg     BackupConfig
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewBackupService(db *sql.DB, store storage.Service, cfg BackupConfig, logger logrus.FieldLogger) *BackupService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = os.TempDir()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &BackupService{
		db:      db,
		storage: store,
		cfg:     cfg,
		logger:  logger.WithField("component", "backup"),
		now:     time.Now,
	}
}

// Enabled reports whether backups can run.
func (s *BackupService) Enabled() bool {
	return s != nil && s.storage != nil && s.cfg.Bucket != ""
}

// Create uploads a fresh snapshot and returns its location.
func (s *BackupService) Create(ctx context.Context) (location string, err error) {
	if !s.Enabled() {
		return "", ErrBackupsDisabled
	}
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.BackupsTotal.WithLabelValues(result).Inc()
	}()

	name := fmt.Sprintf("userauth-%s.db", s.now().UTC().Format("20060102T150405Z"))
	local := filepath.Join(s.cfg.SnapshotDir, uuid.NewString()+"-"+name)
	if err := sqlite.Snapshot(ctx, s.db, local); err != nil {
		return "", err
	}
	defer func() {
		if rmErr := os.Remove(local); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.WithError(rmErr).Warn("remove local snapshot")
		}
	}()

	location, err = s.storage.UploadFile(ctx, local, storage.UploadOptions{
		Bucket: s.cfg.Bucket,
		Key:    s.key(name),
		ProgressCallback: func(done, total int64) {
			s.logger.Debugf("backup upload %d/%d bytes", done, total)
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	s.logger.WithField("location", location).Info("backup uploaded")

	if err := s.prune(ctx); err != nil {
		s.logger.WithError(err).Warn("prune backups")
	}
	return location, nil
}

// List returns the stored snapshots, newest first.
func (s *BackupService) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	if !s.Enabled() {
		return nil, ErrBackupsDisabled
	}
	prefix := ""
	if s.cfg.KeyPrefix != "" {
		prefix = s.cfg.KeyPrefix + "/"
	}
	objects, err := s.storage.ListObjects(ctx, s.cfg.Bucket, prefix)
	if err != nil {
		return nil, err
	}

	filtered := objects[:0]
	for _, obj := range objects {
		if strings.HasPrefix(path.Base(obj.Key), "userauth-") {
			filtered = append(filtered, obj)
		}
	}
	// snapshot names embed a sortable timestamp
	sort.Slice(filtered, func(i, j int) bool {
		return path.Base(filtered[i].Key) > path.Base(filtered[j].Key)
	})
	return filtered, nil
}

func (s *BackupService) prune(ctx context.Context) error {
	if s.cfg.Retain <= 0 {
		return nil
	}
	objects, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(objects) <= s.cfg.Retain {
		return nil
	}

	stale := make([]string, 0, len(objects)-s.cfg.Retain)
	for _, obj := range objects[s.cfg.Retain:] {
		stale = append(stale, obj.Key)
	}
	if err := s.storage.DeleteObjects(ctx, s.cfg.Bucket, stale); err != nil {
		return err
	}
	s.logger.WithField("count", len(stale)).Info("pruned old backups")
	return nil
}

func (s *BackupService) key(name string) string {
	if s.cfg.KeyPrefix == "" {
		return name
	}
	return s.cfg.KeyPrefix + "/" + name
}
