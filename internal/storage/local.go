package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
)

// LocalStorage stores blobs as files in a single directory.
type LocalStorage struct {
	fs afero.Fs
}

// NewLocalStorage roots a store at dir on the OS filesystem, creating it if needed.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return NewFsStorage(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewFsStorage wraps an existing afero filesystem; tests pass afero.NewMemMapFs().
func NewFsStorage(fsys afero.Fs) *LocalStorage {
	return &LocalStorage{fs: fsys}
}

func clean(name string) (string, error) {
	base := path.Base(path.Clean("/" + name))
	if base == "/" || base == "." || base != name {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return base, nil
}

func (s *LocalStorage) Put(ctx context.Context, name string, r io.Reader) error {
	name, err := clean(name)
	if err != nil {
		return err
	}
	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *LocalStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := clean(name)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStorage) Delete(ctx context.Context, name string) error {
	name, err := clean(name)
	if err != nil {
		return err
	}
	err = s.fs.Remove(name)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *LocalStorage) List(ctx context.Context) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

func (s *LocalStorage) Exists(ctx context.Context, name string) (bool, error) {
	name, err := clean(name)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, name)
}
