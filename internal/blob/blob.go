package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store uploads artifact bytes and returns a publicly retrievable URL.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

var ErrInvalidName = errors.New("blob name must be a bare file name")

// LocalStore writes artifacts into a directory served by the API process.
// Development fallback only; URLs are relative to this instance.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "/files"
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Dir returns the directory the store writes into.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", ErrInvalidName
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.baseURL + "/" + name, nil
}
