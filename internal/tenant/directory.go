package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/wolfman30/persona-platform/pkg/logging"
)

var (
	// ErrNotFound means no layer holds a record for the tenant.
	ErrNotFound = errors.New("tenant: not found")
	// ErrUnavailable means no record was found and at least one remote store
	// failed, so the answer may be incomplete.
	ErrUnavailable = errors.New("tenant: directory unavailable")
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// Directory is the lookup contract consumed by persona resolution.
type Directory interface {
	// Lookup consults only in-process state (cache and demo table).
	Lookup(id string) (*Record, bool)
	// Fetch may also query remote stores.
	Fetch(ctx context.Context, id string) (*Record, error)
	// Invalidate drops any cached copy of id.
	Invalidate(id string)
}

// Store is a remote backing store. Get returns ErrNotFound when the tenant is
// absent.
type Store interface {
	Name() Provenance
	Get(ctx context.Context, id string) (*Record, error)
}

// CachedDirectory layers a TTL LRU cache over an ordered chain of stores and a
// static demo table. Concurrent misses for the same tenant may each read the
// stores; records are read-only here so the duplicate read is harmless.
type CachedDirectory struct {
	cache  *expirable.LRU[string, *Record]
	demo   map[string]*Record
	stores []Store
	logger *logging.Logger
}

var _ Directory = (*CachedDirectory)(nil)

type options struct {
	size   int
	ttl    time.Duration
	demo   map[string]*Record
	stores []Store
	logger *logging.Logger
}

// Option configures a CachedDirectory.
type Option func(*options)

// WithCache sets the cache capacity and entry TTL. Non-positive values keep
// the defaults.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		if size > 0 {
			o.size = size
		}
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithDemo replaces the demo table.
func WithDemo(records map[string]*Record) Option {
	return func(o *options) { o.demo = records }
}

// WithStores appends remote stores, queried in order.
func WithStores(stores ...Store) Option {
	return func(o *options) {
		for _, s := range stores {
			if s != nil {
				o.stores = append(o.stores, s)
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewCachedDirectory builds a directory. Without WithDemo it serves the
// embedded demo table.
func NewCachedDirectory(opts ...Option) (*CachedDirectory, error) {
	o := options{size: defaultCacheSize, ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	if o.demo == nil {
		demo, err := LoadDemo()
		if err != nil {
			return nil, err
		}
		o.demo = demo
	}
	return &CachedDirectory{
		cache:  expirable.NewLRU[string, *Record](o.size, nil, o.ttl),
		demo:   o.demo,
		stores: o.stores,
		logger: o.logger,
	}, nil
}

// Lookup returns a cached or demo record without suspending.
func (d *CachedDirectory) Lookup(id string) (*Record, bool) {
	id = normalizeID(id)
	if id == "" {
		return nil, false
	}
	if rec, ok := d.cache.Get(id); ok {
		return rec.Clone(), true
	}
	return d.lookupDemo(id)
}

// Fetch checks the cache, then each store in order, then the demo table. A
// failing store is logged and skipped.
func (d *CachedDirectory) Fetch(ctx context.Context, id string) (*Record, error) {
	id = normalizeID(id)
	if id == "" {
		return nil, ErrNotFound
	}
	if rec, ok := d.cache.Get(id); ok {
		return rec.Clone(), nil
	}

	var storeErr error
	for _, s := range d.stores {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			d.logger.Warn("tenant store lookup failed", "store", s.Name(), "tenant_id", id, "error", err)
			storeErr = errors.Join(storeErr, err)
			continue
		}
		if rec == nil {
			continue
		}
		rec = rec.Clone()
		rec.ID = id
		rec.Provenance = s.Name()
		d.cache.Add(id, rec)
		return rec.Clone(), nil
	}

	if rec, ok := d.lookupDemo(id); ok {
		return rec, nil
	}
	if storeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, storeErr)
	}
	return nil, ErrNotFound
}

// Invalidate drops id from the cache.
func (d *CachedDirectory) Invalidate(id string) {
	id = normalizeID(id)
	if id == "" {
		return
	}
	if d.cache.Remove(id) {
		d.logger.Debug("tenant cache entry invalidated", "tenant_id", id)
	}
}

// Len reports the number of cached records.
func (d *CachedDirectory) Len() int {
	return d.cache.Len()
}

func (d *CachedDirectory) lookupDemo(id string) (*Record, bool) {
	rec, ok := d.demo[id]
	if !ok || rec == nil {
		return nil, false
	}
	out := rec.Clone()
	out.ID = id
	out.Provenance = ProvenanceDemo
	return out, true
}
