// Package backup preserves existing file contents before the engine
// modifies them, either as a local sibling copy or as an upload to a
// content-addressed store.
package backup

import (
	"sync"

	"github.com/convergefs/convergefs/pkg/convergefs/core"
)

// Store is the contract of a remote backup bucket: a content-addressed
// upload returning the checksum the content was stored under.
type Store interface {
	Upload(localPath string) (checksum string, err error)
}

// OpenFunc resolves a bucket name to a store. Implementations are
// expected to be expensive (network handshakes), which is why the
// Registry caches their results.
type OpenFunc func(name string) (Store, error)

// Registry caches resolved buckets process-wide, keyed by name. First
// resolution under contention never creates duplicate stores for the
// same key.
type Registry struct {
	open OpenFunc

	mu      sync.Mutex
	buckets map[string]Store
}

// NewRegistry builds a registry around a bucket opener.
func NewRegistry(open OpenFunc) *Registry {
	return &Registry{
		open:    open,
		buckets: make(map[string]Store),
	}
}

// Bucket returns the store for a name, resolving and caching it on first
// use. An unresolvable name is a BackupError.
func (r *Registry) Bucket(name string) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.buckets[name]; ok {
		return s, nil
	}
	s, err := r.open(name)
	if err != nil {
		return nil, &core.BackupError{Reason: "cannot resolve bucket " + name, Cause: err}
	}
	r.buckets[name] = s
	return s, nil
}
