package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps archived audio under a single directory, laid out by the
// {source}/{date}/{filename} key scheme from Key. It is the baseline backend
// and the read-through cache in front of S3 in the tiered setup.
type LocalStore struct {
	audioDir string
}

// NewLocalStore creates a local filesystem archive rooted at audioDir.
func NewLocalStore(audioDir string) *LocalStore {
	return &LocalStore{audioDir: audioDir}
}

// Save writes the audio atomically so a crash mid-write never leaves a
// truncated file where the pipeline would later try to re-transcribe it.
// contentType is ignored; the local backend relies on file extensions.
func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	path := s.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("archive dir %s: %w", filepath.Dir(path), err)
	}
	return writeAtomic(path, data)
}

// LocalPath returns the on-disk path for key, or "" when the file is not
// present locally (never archived, or already pruned after S3 upload).
func (s *LocalStore) LocalPath(key string) string {
	path := s.keyPath(key)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// URL returns "": local files have no download URL, callers fall back to
// streaming through the API.
func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(s.keyPath(key))
}

func (s *LocalStore) Exists(ctx context.Context, key string) bool {
	_, err := os.Stat(s.keyPath(key))
	return err == nil
}

func (s *LocalStore) Type() string { return "local" }

func (s *LocalStore) keyPath(key string) string {
	return filepath.Join(s.audioDir, filepath.FromSlash(key))
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, fs.FileMode(0o644)); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
