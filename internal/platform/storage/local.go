package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/citysafe/planning-backend/internal/platform/logger"
)

// AnnexStore persists uploaded annex files on the local filesystem and
// addresses them by an opaque key. Keys never contain path separators from
// user input, so a stored key cannot escape the root directory.
type AnnexStore interface {
	Save(filename string, r io.Reader) (key string, err error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
}

type annexStore struct {
	root string
	log  *logger.Logger
}

func NewAnnexStore(root string, baseLog *logger.Logger) (AnnexStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("annex store: empty root dir")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("annex store: create root: %w", err)
	}
	return &annexStore{root: root, log: baseLog.With("store", "AnnexStore")}, nil
}

func (s *annexStore) Save(filename string, r io.Reader) (string, error) {
	ext := filepath.Ext(filepath.Base(filename))
	key := uuid.NewString() + ext
	path := filepath.Join(s.root, key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("annex store: create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("annex store: write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	s.log.Debug("annex saved", "key", key)
	return key, nil
}

func (s *annexStore) Open(key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("annex store: invalid key %q", key)
	}
	return os.Open(filepath.Join(s.root, key))
}

func (s *annexStore) Delete(key string) error {
	if !validKey(key) {
		return fmt.Errorf("annex store: invalid key %q", key)
	}
	err := os.Remove(filepath.Join(s.root, key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && key != "." && key != ".."
}
