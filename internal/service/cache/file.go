package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lcwen/tcm-pipeline-go/pkg/errors"
	"go.uber.org/zap"
)

// FileStore caches JSON blobs as one file per key, for runs where no
// Redis is available. Entries written with a TTL carry their expiry
// inside the file; expired entries read as misses and are removed.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

type fileEntry struct {
	ExpiresAt int64           `json:"expires_at"` // unix seconds, 0 = never
	Payload   json.RawMessage `json:"payload"`
}

func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewCacheError("failed to create cache directory", "mkdir", dir, err)
	}

	logger.Info("File cache ready", zap.String("dir", dir))

	return &FileStore{
		dir:    dir,
		logger: logger,
	}, nil
}

func (s *FileStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	path := s.path(key)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewCacheError("get failed", "get", key, err)
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("Dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = os.Remove(path)
		return false, nil
	}

	if entry.ExpiresAt > 0 && time.Now().Unix() > entry.ExpiresAt {
		_ = os.Remove(path)
		return false, nil
	}

	if dest != nil {
		if err := json.Unmarshal(entry.Payload, dest); err != nil {
			return false, errors.NewCacheError("unmarshal failed", "get", key, err)
		}
	}

	return true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	entry := fileEntry{Payload: payload}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl).Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	// Write through a temp file so a crash never leaves a half-written
	// entry behind.
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.NewCacheError("write failed", "set", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.NewCacheError("rename failed", "set", key, err)
	}

	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

// sanitizeKey keeps cache keys usable as file names.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
