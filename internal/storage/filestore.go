package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath = errors.New("invalid storage path")
	ErrNotFound    = errors.New("file not found")
)

// FileStore is a file store rooted at a single directory. All paths it
// accepts are relative to that root; absolute paths, traversal segments and
// home expansion are rejected before touching the filesystem.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Root() string {
	return s.root
}

// resolve validates a relative path and joins it under the root.
func (s *FileStore) resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", ErrInvalidPath
	}
	if filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "~") {
		return "", ErrInvalidPath
	}
	cleaned := filepath.Clean(relPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *FileStore) Exists(relPath string) (bool, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FileStore) Delete(relPath string) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", relPath, err)
	}
	return nil
}

func (s *FileStore) ListDirectory(relPath string) ([]os.DirEntry, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read dir %s: %w", relPath, err)
	}
	return entries, nil
}

// RemoveEmptyDirectory removes the directory only if it is empty.
func (s *FileStore) RemoveEmptyDirectory(relPath string) error {
	full, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read dir %s: %w", relPath, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("directory %s not empty", relPath)
	}
	return os.Remove(full)
}

func (s *FileStore) Save(relPath string, r io.Reader) (int64, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}

	tmp := full + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", relPath, err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", relPath, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("close %s: %w", relPath, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("commit %s: %w", relPath, err)
	}
	return n, nil
}

func (s *FileStore) Open(relPath string) (*os.File, error) {
	full, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", relPath, err)
	}
	return f, nil
}
