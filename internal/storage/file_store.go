// internal/storage/file_store.go
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// FileStore keeps one file per key under BaseDir. It survives restarts of a
// single instance; expiry is judged from the file's modification time.
type FileStore struct {
	BaseDir string

	fileLocks  sync.Map // path -> *sync.RWMutex
	expiration time.Duration
}

func NewFileStore(baseDir string, expiration time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if expiration <= 0 {
		expiration = 12 * time.Hour
	}
	return &FileStore{BaseDir: baseDir, expiration: expiration}, nil
}

func (fs *FileStore) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// pathFor hashes the key; cache keys embed whole scripts
func (fs *FileStore) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(fs.BaseDir, hex.EncodeToString(sum[:])+".json")
}

func (fs *FileStore) Get(ctx context.Context, key string) (string, error) {
	fullPath := fs.pathFor(key)

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat cache file: %w", err)
	}
	if time.Since(info.ModTime()) > fs.expiration {
		return "", ErrNotFound
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read cache file: %w", err)
	}
	return string(content), nil
}

// Set writes atomically through a temp file and rename
func (fs *FileStore) Set(ctx context.Context, key, value string) error {
	fullPath := fs.pathFor(key)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, []byte(value), 0644); err != nil {
		os.Remove(tempPath)
		if isNoSpace(err) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save cache file: %w", err)
	}
	return nil
}

func (fs *FileStore) Delete(ctx context.Context, key string) error {
	fullPath := fs.pathFor(key)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Sweep removes expired files and returns how many were removed
func (fs *FileStore) Sweep() int {
	entries, err := os.ReadDir(fs.BaseDir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) <= fs.expiration {
			continue
		}

		fullPath := filepath.Join(fs.BaseDir, entry.Name())
		lock := fs.getFileLock(fullPath)
		lock.Lock()
		if os.Remove(fullPath) == nil {
			removed++
		}
		lock.Unlock()
		fs.fileLocks.Delete(fullPath)
	}
	return removed
}

func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
