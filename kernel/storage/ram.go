package storage

import (
	"context"
	"net/url"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
)

// ramStorage keeps objects in process memory. Used by tests and local runs.
type ramStorage struct {
	uri     string
	objects cmap.ConcurrentMap[string, []byte]
}

func newRamStorage(uri *url.URL) (Storage, error) {
	return &ramStorage{
		uri:     uri.String(),
		objects: cmap.New[[]byte](),
	}, nil
}

func (s *ramStorage) URI() string {
	return s.uri
}

func (s *ramStorage) Put(ctx context.Context, key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects.Set(key, buf)
	return nil
}

func (s *ramStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects.Get(key)
	if !ok {
		return nil, errors.Errorf("object '%s' not found in '%s'", key, s.uri)
	}
	return data, nil
}

func (s *ramStorage) Delete(ctx context.Context, key string) error {
	s.objects.Remove(key)
	return nil
}

func init() {
	RegisterScheme("ram", newRamStorage)
}
