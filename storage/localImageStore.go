package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"fixmycity-be/errs"
)

// LocalImageStore writes images into a directory on the local filesystem.
type LocalImageStore struct {
	dir   string
	namer Namer
}

func NewLocalImageStore(dir string, namer Namer) *LocalImageStore {
	return &LocalImageStore{dir: dir, namer: namer}
}

func (s *LocalImageStore) Store(ctx context.Context, payload string) (string, error) {
	data, err := DecodePayload(payload)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create image directory: %v", errs.ErrIO, err)
	}

	path := filepath.Join(s.dir, s.namer.Name())
	if err := writeFile(path, data); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return path, nil
}

func writeFile(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = f.Write(data)
	return err
}

func (s *LocalImageStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
	}
	return f, nil
}
