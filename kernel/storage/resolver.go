package storage

import (
	"net/url"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
)

// StorageFactory builds a Storage handle for a parsed location URI.
type StorageFactory func(uri *url.URL) (Storage, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]StorageFactory)
)

// RegisterScheme registers a factory for a URI scheme.
// e.g. RegisterScheme("s3", newS3Storage)
func RegisterScheme(scheme string, factory StorageFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[scheme]; dup {
		panic("RegisterScheme called twice for " + scheme)
	}
	registry[scheme] = factory
}

func factoryForScheme(scheme string) (StorageFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[scheme]
	return factory, ok
}

// Resolver maps storage location URIs to live handles. Resolved handles are
// cached per URI, so every pipeline pointed at the same location shares one
// handle.
type Resolver struct {
	handles cmap.ConcurrentMap[string, Storage]
}

func NewResolver() *Resolver {
	return &Resolver{handles: cmap.New[Storage]()}
}

// Resolve returns the storage handle for rawURI, building it on first use.
func (r *Resolver) Resolve(rawURI string) (Storage, error) {
	if handle, ok := r.handles.Get(rawURI); ok {
		return handle, nil
	}

	uri, err := url.Parse(rawURI)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid storage uri '%s'", rawURI)
	}
	factory, ok := factoryForScheme(uri.Scheme)
	if !ok {
		return nil, errors.Errorf("unsupported storage scheme '%s' in uri '%s'", uri.Scheme, rawURI)
	}

	handle, err := factory(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve storage uri '%s'", rawURI)
	}
	// Two racing resolves of the same URI keep the first handle.
	r.handles.SetIfAbsent(rawURI, handle)
	handle, _ = r.handles.Get(rawURI)
	return handle, nil
}
