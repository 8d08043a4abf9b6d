// Package registry tracks named, versioned entries and resolves
// "latest", exact and range version queries against them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/apikit/internal/logging"
	"github.com/soyeahso/apikit/internal/semver"
)

// Latest is the version query that selects the highest registered version.
const Latest = "latest"

var (
	// ErrDuplicate is returned when a (name, version) pair is already registered
	// and the registry rejects duplicates.
	ErrDuplicate = errors.New("already registered")
	// ErrNotFound is returned by Find when no entry satisfies the query.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when an entry has an empty name or a malformed version.
	ErrInvalid = errors.New("invalid entry")
)

// Entry is anything that can be registered: it knows its own name and version.
type Entry interface {
	Name() string
	Version() string
}

// Policy decides what happens when a (name, version) pair is registered twice.
type Policy int

const (
	// Reject fails the second registration with ErrDuplicate.
	Reject Policy = iota
	// Overwrite replaces the existing entry and logs a warning.
	Overwrite
)

func (p Policy) String() string {
	if p == Overwrite {
		return "overwrite"
	}
	return "reject"
}

// ParsePolicy maps "reject" and "overwrite" to a Policy. Empty means Reject.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return Reject, nil
	case "overwrite":
		return Overwrite, nil
	default:
		return Reject, fmt.Errorf("unknown duplicate policy %q (want reject or overwrite)", s)
	}
}

// Option configures a Registry.
type Option func(*settings)

type settings struct {
	policy Policy
}

// WithPolicy sets the duplicate-registration policy.
func WithPolicy(p Policy) Option {
	return func(s *settings) { s.policy = p }
}

// Registry maps name -> version -> entry.
type Registry[T Entry] struct {
	mu      sync.RWMutex
	entries map[string]map[string]T
	policy  Policy
	log     *logging.Logger
}

// New creates an empty registry.
func New[T Entry](log *logging.Logger, opts ...Option) *Registry[T] {
	s := settings{policy: Reject}
	for _, opt := range opts {
		opt(&s)
	}
	return &Registry[T]{
		entries: make(map[string]map[string]T),
		policy:  s.policy,
		log:     logging.OrNop(log).Sub("registry"),
	}
}

// Policy returns the duplicate-registration policy in effect.
func (r *Registry[T]) Policy() Policy {
	return r.policy
}

// Register inserts e under its name and version.
func (r *Registry[T]) Register(e T) error {
	name, version := e.Name(), e.Version()
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if !semver.IsValid(version) {
		return fmt.Errorf("%w: %s has malformed version %q", ErrInvalid, name, version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.entries[name]
	if !ok {
		versions = make(map[string]T)
		r.entries[name] = versions
	}

	if _, exists := versions[version]; exists {
		if r.policy == Reject {
			return fmt.Errorf("%w: %s@%s", ErrDuplicate, name, version)
		}
		r.log.Warn().Str("api", name).Str("version", version).Msg("overwriting registered instance")
	}

	versions[version] = e
	r.log.Debug().Str("api", name).Str("version", version).Msg("instance registered")
	return nil
}

// Get resolves query against the versions registered under name.
//
// "latest" (or an empty query) selects the highest version. A query equal to
// a registered version returns it directly. A plain version that is not
// registered resolves to nothing. Anything else is parsed as a range and the
// highest satisfying version wins; malformed ranges resolve to nothing.
func (r *Registry[T]) Get(name, query string) (T, bool) {
	var zero T
	if name == "" {
		return zero, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.entries[name]
	if !ok || len(versions) == 0 {
		return zero, false
	}

	query = strings.TrimSpace(query)
	if query == "" || query == Latest {
		latest, ok := semver.Latest(keys(versions))
		if !ok {
			return zero, false
		}
		return versions[latest], true
	}

	if e, ok := versions[query]; ok {
		return e, true
	}

	if semver.IsValid(query) {
		return zero, false
	}

	match, ok, err := semver.Satisfying(query, keys(versions))
	if err != nil || !ok {
		return zero, false
	}
	return versions[match], true
}

// Find is Get with an error instead of a boolean.
func (r *Registry[T]) Find(name, query string) (T, error) {
	e, ok := r.Get(name, query)
	if !ok {
		if query == "" {
			query = Latest
		}
		return e, fmt.Errorf("%w: %s@%s", ErrNotFound, name, query)
	}
	return e, nil
}

// Has reports whether any version is registered under name.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[name]) > 0
}

// HasVersion reports whether exactly version is registered under name.
func (r *Registry[T]) HasVersion(name, version string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name][version]
	return ok
}

// Versions returns the versions registered under name, newest first.
func (r *Registry[T]) Versions(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions, ok := r.entries[name]
	if !ok {
		return []string{}
	}
	return semver.SortDescending(keys(versions))
}

// Names returns every registered name in lexical order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name, versions := range r.entries {
		if len(versions) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// List returns name -> versions (newest first) for every registered name.
func (r *Registry[T]) List() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.entries))
	for name, versions := range r.entries {
		if len(versions) == 0 {
			continue
		}
		out[name] = semver.SortDescending(keys(versions))
	}
	return out
}

// Reset discards every entry. Intended for test isolation.
func (r *Registry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]map[string]T)
	r.log.Debug().Msg("registry reset")
}

func keys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
