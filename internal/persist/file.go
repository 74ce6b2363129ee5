package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"socialsync/internal/logger"
	"socialsync/internal/model"
)

const (
	authFile  = "auth.json"
	themeFile = "theme.json"
)

// FileStore implements Store with one JSON file per key under a directory.
// Writes go through a temp file and rename so a crash never leaves a torn file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) read(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) LoadAuth(ctx context.Context) (*model.AuthState, error) {
	var state model.AuthState
	if err := s.read(authFile, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *FileStore) SaveAuth(ctx context.Context, state *model.AuthState) error {
	if err := s.write(authFile, state); err != nil {
		logger.Warnf("[FileStore] SaveAuth FAILED: err=%v", err)
		return err
	}
	logger.Debugf("[FileStore] SaveAuth OK: dir=%s", s.dir)
	return nil
}

func (s *FileStore) ClearAuth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.dir, authFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove auth: %w", err)
	}
	return nil
}

func (s *FileStore) LoadTheme(ctx context.Context) (string, error) {
	var v struct {
		Theme string `json:"theme"`
	}
	if err := s.read(themeFile, &v); err != nil {
		return "", err
	}
	return v.Theme, nil
}

func (s *FileStore) SaveTheme(ctx context.Context, theme string) error {
	return s.write(themeFile, struct {
		Theme string `json:"theme"`
	}{Theme: theme})
}
