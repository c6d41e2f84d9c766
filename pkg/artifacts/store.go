// Package artifacts exports escalation statuses as canonical JSON into
// content-addressed storage. Blobs are keyed by the SHA-256 of their bytes
// and referenced as "sha256:<hex>".
package artifacts

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
)

const hashPrefix = "sha256:"

// ErrNotFound is returned when no blob exists for a hash.
var ErrNotFound = errors.New("artifact not found")

// Store is content-addressed storage. Store is idempotent.
type Store interface {
	Store(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	Exists(ctx context.Context, hash string) (bool, error)
	Delete(ctx context.Context, hash string) error
}

// ContentHash returns the "sha256:" reference for data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hashPrefix + hex.EncodeToString(sum[:])
}

// blobName validates a reference and returns its object name.
func blobName(hash string) (string, error) {
	raw, ok := strings.CutPrefix(hash, hashPrefix)
	if !ok {
		return "", fmt.Errorf("invalid hash format: %s", hash)
	}
	if b, err := hex.DecodeString(raw); err != nil || len(b) != sha256.Size {
		return "", fmt.Errorf("invalid hash hex: %s", hash)
	}
	return raw + ".blob", nil
}

// FileStore keeps blobs in a directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) Store(_ context.Context, data []byte) (string, error) {
	hash := ContentHash(data)
	name, _ := blobName(hash)
	path := filepath.Join(s.baseDir, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}
	return hash, nil
}

func (s *FileStore) Get(_ context.Context, hash string) ([]byte, error) {
	name, err := blobName(hash)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return data, err
}

func (s *FileStore) Exists(_ context.Context, hash string) (bool, error) {
	name, err := blobName(hash)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(filepath.Join(s.baseDir, name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *FileStore) Delete(_ context.Context, hash string) error {
	name, err := blobName(hash)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
