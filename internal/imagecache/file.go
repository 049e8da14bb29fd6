package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileCacheDirPerm  = 0750
	fileCacheFilePerm = 0600
	fileExt           = ".img"
)

// File stores each image as one file under dir. File names are the SHA-256
// of the key so any identifier maps to a safe name.
type File struct {
	dir string
}

// NewFile creates dir if needed and returns a cache rooted there.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("image cache directory is required")
	}
	if err := os.MkdirAll(dir, fileCacheDirPerm); err != nil {
		return nil, fmt.Errorf("create image cache dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// Path returns the file that holds key's image.
func (f *File) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+fileExt)
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached image: %w", err)
	}
	return data, nil
}

// Set writes to a temp file and renames it into place, so readers never see
// a partial image.
func (f *File) Set(_ context.Context, key string, data []byte) error {
	finalPath := f.Path(key)
	tmp, err := os.CreateTemp(f.dir, filepath.Base(finalPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp image: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close temp image: %w", err)
	}
	if err := os.Chmod(tempPath, fileCacheFilePerm); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("chmod temp image: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("store image: %w", err)
	}
	return nil
}

// Clear removes every cached image. Unrelated files in dir are left alone.
func (f *File) Clear(_ context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("list image cache: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cached image: %w", err)
		}
	}
	return nil
}
