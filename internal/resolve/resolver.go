// Package resolve maps client addresses to display names via reverse DNS,
// with a process-lifetime cache.
package resolve

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/dnstail/internal/logger"
)

// DefaultTimeout bounds a single reverse lookup. Network identities that
// don't resolve within this window are displayed by raw address.
const DefaultTimeout = 2 * time.Second

// LookupFunc performs a reverse lookup for an address. Matches the signature
// of net.Resolver.LookupAddr so the real resolver drops in directly.
type LookupFunc func(ctx context.Context, addr string) ([]string, error)

// entry is one cached resolution. The done channel is closed exactly once,
// after which name never changes (first resolution wins).
type entry struct {
	done chan struct{}
	name string
}

// Resolver caches reverse lookups for the lifetime of the process.
//
// The cache lock only guards the map; each address is filled by its own
// goroutine, so a slow lookup for one client never blocks lookups for
// other clients. Failed or timed-out lookups cache the raw address, so
// unresolvable clients are only ever looked up once.
type Resolver struct {
	mu      sync.Mutex
	entries map[string]*entry

	timeout time.Duration
	lookup  LookupFunc
	log     logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout sets the per-address lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLookup replaces the lookup function. Used in tests.
func WithLookup(fn LookupFunc) Option {
	return func(r *Resolver) { r.lookup = fn }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// New creates a Resolver backed by the system resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		entries: make(map[string]*entry),
		timeout: DefaultTimeout,
		lookup:  net.DefaultResolver.LookupAddr,
		log:     logger.NewEnvLogger("[resolve]"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the display name for addr, blocking until the first
// resolution for that address completes or ctx is done. Repeated calls for
// the same address return the same name without re-querying.
//
// If ctx is canceled before the resolution finishes, the raw address is
// returned for this call; the in-flight lookup still completes and its
// result is what later calls see.
func (r *Resolver) Resolve(ctx context.Context, addr string) string {
	if addr == "" {
		return ""
	}

	r.mu.Lock()
	e, ok := r.entries[addr]
	if !ok {
		e = &entry{done: make(chan struct{})}
		r.entries[addr] = e
		r.mu.Unlock()
		go r.fill(e, addr)
	} else {
		r.mu.Unlock()
	}

	select {
	case <-e.done:
		return e.name
	case <-ctx.Done():
		return addr
	}
}

// Lookup starts resolution for addr without waiting on the result.
// Used to warm the cache off the hot path.
func (r *Resolver) Lookup(addr string) {
	if addr == "" {
		return
	}

	r.mu.Lock()
	if _, ok := r.entries[addr]; ok {
		r.mu.Unlock()
		return
	}
	e := &entry{done: make(chan struct{})}
	r.entries[addr] = e
	r.mu.Unlock()

	go r.fill(e, addr)
}

// fill performs the actual reverse lookup and publishes the result.
func (r *Resolver) fill(e *entry, addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	names, err := r.lookup(ctx, addr)
	if err != nil || len(names) == 0 {
		// Cache the raw address so we never retry a dead lookup.
		r.log.Debug("reverse lookup for %s failed: %v", addr, err)
		e.name = addr
	} else {
		e.name = strings.TrimSuffix(names[0], ".")
	}
	close(e.done)
}

// Size returns the number of cached addresses.
func (r *Resolver) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
