package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// localStorage stores objects as files under a root directory.
type localStorage struct {
	uri  string
	root string
}

func newLocalStorage(uri *url.URL) (Storage, error) {
	root := uri.Path
	if root == "" {
		return nil, errors.Errorf("file storage uri '%s' has no path", uri.String())
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create storage root '%s'", root)
	}
	return &localStorage{uri: uri.String(), root: root}, nil
}

func (s *localStorage) URI() string {
	return s.uri
}

func (s *localStorage) Put(ctx context.Context, key string, data []byte) error {
	path := filepath.Join(s.root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for '%s'", key)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write object '%s'", key)
	}
	return nil
}

func (s *localStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, key))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read object '%s'", key)
	}
	return data, nil
}

func (s *localStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete object '%s'", key)
	}
	return nil
}

func init() {
	RegisterScheme("file", newLocalStorage)
}
