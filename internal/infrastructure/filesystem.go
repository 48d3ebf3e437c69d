package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const uploadsPrefix = "/uploads/"

// FileSystemStorage keeps photos below basePath. References are the relative
// key; URLs point at the /uploads/ handler serving basePath.
type FileSystemStorage struct {
	basePath string
}

func NewFileSystemStorage(basePath string) (*FileSystemStorage, error) {
	if basePath == "" {
		basePath = "uploads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileSystemStorage{basePath: basePath}, nil
}

func (s *FileSystemStorage) BasePath() string { return s.basePath }

func (s *FileSystemStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(key, uploadsPrefix))
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *FileSystemStorage) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return key, nil
}

func (s *FileSystemStorage) GetURL(_ context.Context, key string) (string, error) {
	if strings.HasPrefix(key, uploadsPrefix) {
		return key, nil
	}
	return uploadsPrefix + key, nil
}

func (s *FileSystemStorage) Delete(_ context.Context, key string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
