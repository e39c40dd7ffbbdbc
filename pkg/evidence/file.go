package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// FileStore keeps evidence records under a local directory, one file per key
type FileStore struct {
	fs   afero.Fs
	root string
}

func NewFileStore(fs afero.Fs, root string) *FileStore {
	return &FileStore{fs: fs, root: root}
}

func (s *FileStore) Location() string {
	return s.root
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	p := s.path(key)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(p), err)
	}
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", p, ErrExists)
		}
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", p, err)
	}
	logrus.WithField("path", p).Info("Wrote evidence record")
	return nil
}

func (s *FileStore) List(_ context.Context, prefix string) ([]Object, error) {
	var objects []Object
	exists, err := afero.DirExists(s.fs, s.root)
	if err != nil || !exists {
		return objects, err
	}
	err = afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, Object{Key: key, LastModified: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	return objects, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
