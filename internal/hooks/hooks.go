// Package hooks provides named extension points whose handler chains run
// sequentially in a controlled order.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/soyeahso/apikit/internal/logging"
)

var (
	// ErrInvalidEntry is returned for an empty hook, plugin or function name, or a nil handler.
	ErrInvalidEntry = errors.New("invalid hook entry")
	// ErrInvalidPlacement is returned when more than one placement directive is set.
	ErrInvalidPlacement = errors.New("conflicting placement directives")
	// ErrTargetNotFound is returned when a placement directive names no existing entry.
	ErrTargetNotFound = errors.New("placement target not found")
	// ErrDuplicateFunction is returned when a function name is already used under the same hook.
	ErrDuplicateFunction = errors.New("duplicate function name")
	// ErrBusy is returned when the table is modified while a chain is running.
	ErrBusy = errors.New("hook chain is executing")
)

// Handler handles one step of a hook chain. Returning the bool false stops
// the chain without error; every other result, nil included, lets it continue.
type Handler[A any] func(ctx context.Context, arg A) (any, error)

// Placement positions a new entry relative to existing ones. At most one
// field may be set; the zero value appends.
type Placement struct {
	BeforePlugin   string `yaml:"beforePlugin,omitempty"`
	AfterPlugin    string `yaml:"afterPlugin,omitempty"`
	BeforeFunction string `yaml:"beforeFunction,omitempty"`
	AfterFunction  string `yaml:"afterFunction,omitempty"`
}

// Validate fails when more than one directive is set.
func (p Placement) Validate() error {
	n := 0
	for _, v := range []string{p.BeforePlugin, p.AfterPlugin, p.BeforeFunction, p.AfterFunction} {
		if v != "" {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("%w: %s", ErrInvalidPlacement, p)
	}
	return nil
}

func (p Placement) String() string {
	switch {
	case p.BeforePlugin != "":
		return "beforePlugin=" + p.BeforePlugin
	case p.AfterPlugin != "":
		return "afterPlugin=" + p.AfterPlugin
	case p.BeforeFunction != "":
		return "beforeFunction=" + p.BeforeFunction
	case p.AfterFunction != "":
		return "afterFunction=" + p.AfterFunction
	default:
		return "append"
	}
}

// EntryInfo identifies a registered entry.
type EntryInfo struct {
	Plugin   string `json:"plugin"`
	Function string `json:"function"`
}

type entry[A any] struct {
	plugin   string
	function string
	handler  Handler[A]
}

// Spec is one entry to add through AddAll.
type Spec[A any] struct {
	Hook      string
	Plugin    string
	Function  string
	Placement Placement
	Handler   Handler[A]
}

// Outcome reports how a chain run ended.
type Outcome struct {
	// Ran is the number of handlers invoked.
	Ran int
	// Stopped is true when a handler returned false.
	Stopped bool
	// StoppedBy names the handler that returned false.
	StoppedBy EntryInfo
}

// Table holds the ordered entries of every hook name.
type Table[A any] struct {
	mu      sync.RWMutex
	entries map[string][]entry[A]
	active  atomic.Int32
	log     *logging.Logger
}

// NewTable creates an empty hook table.
func NewTable[A any](log *logging.Logger) *Table[A] {
	return &Table[A]{
		entries: make(map[string][]entry[A]),
		log:     logging.OrNop(log).Sub("hooks"),
	}
}

// Add inserts a handler into the chain for hook. Insertion is decided once,
// here, and never re-evaluated.
func (t *Table[A]) Add(hook, plugin, function string, p Placement, h Handler[A]) error {
	return t.AddAll([]Spec[A]{{Hook: hook, Plugin: plugin, Function: function, Placement: p, Handler: h}})
}

// AddAll inserts every spec in order. Either all specs are applied or none are.
func (t *Table[A]) AddAll(specs []Spec[A]) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active.Load() > 0 {
		return ErrBusy
	}

	staged := make(map[string][]entry[A])
	for _, s := range specs {
		list, ok := staged[s.Hook]
		if !ok {
			list = slices.Clone(t.entries[s.Hook])
		}
		list, err := insert(list, s)
		if err != nil {
			return err
		}
		staged[s.Hook] = list
	}

	for hook, list := range staged {
		t.entries[hook] = list
	}
	for _, s := range specs {
		t.log.Debug().
			Str("hook", s.Hook).
			Str("plugin", s.Plugin).
			Str("function", s.Function).
			Str("position", s.Placement.String()).
			Msg("hook registered")
	}
	return nil
}

func insert[A any](list []entry[A], s Spec[A]) ([]entry[A], error) {
	switch {
	case s.Hook == "":
		return nil, fmt.Errorf("%w: empty hook name", ErrInvalidEntry)
	case s.Plugin == "":
		return nil, fmt.Errorf("%w: empty plugin name for hook %q", ErrInvalidEntry, s.Hook)
	case s.Function == "":
		return nil, fmt.Errorf("%w: empty function name for hook %q", ErrInvalidEntry, s.Hook)
	case s.Handler == nil:
		return nil, fmt.Errorf("%w: nil handler for %s/%s", ErrInvalidEntry, s.Hook, s.Function)
	}
	if err := s.Placement.Validate(); err != nil {
		return nil, err
	}
	for _, e := range list {
		if e.function == s.Function {
			return nil, fmt.Errorf("%w: %q under hook %q", ErrDuplicateFunction, s.Function, s.Hook)
		}
	}

	e := entry[A]{plugin: s.Plugin, function: s.Function, handler: s.Handler}
	p := s.Placement

	idx := len(list)
	switch {
	case p.BeforePlugin != "":
		idx = slices.IndexFunc(list, func(x entry[A]) bool { return x.plugin == p.BeforePlugin })
	case p.AfterPlugin != "":
		idx = lastIndex(list, func(x entry[A]) bool { return x.plugin == p.AfterPlugin })
		if idx >= 0 {
			idx++
		}
	case p.BeforeFunction != "":
		idx = slices.IndexFunc(list, func(x entry[A]) bool { return x.function == p.BeforeFunction })
	case p.AfterFunction != "":
		idx = slices.IndexFunc(list, func(x entry[A]) bool { return x.function == p.AfterFunction })
		if idx >= 0 {
			idx++
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s for hook %q", ErrTargetNotFound, p, s.Hook)
	}

	return slices.Insert(list, idx, e), nil
}

func lastIndex[A any](list []entry[A], match func(entry[A]) bool) int {
	for i := len(list) - 1; i >= 0; i-- {
		if match(list[i]) {
			return i
		}
	}
	return -1
}

// Run invokes the chain for hook in order, one handler at a time. A handler
// error aborts the chain and is returned as is; effects of earlier handlers
// stay in place. Context cancellation is checked before each handler.
func (t *Table[A]) Run(ctx context.Context, hook string, arg A) (Outcome, error) {
	t.mu.RLock()
	t.active.Add(1)
	chain := slices.Clone(t.entries[hook])
	t.mu.RUnlock()
	defer t.active.Add(-1)

	var out Outcome
	for _, e := range chain {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := e.handler(ctx, arg)
		out.Ran++
		if err != nil {
			return out, err
		}

		if stop, ok := res.(bool); ok && !stop {
			out.Stopped = true
			out.StoppedBy = EntryInfo{Plugin: e.plugin, Function: e.function}
			t.log.Info().
				Str("hook", hook).
				Str("plugin", e.plugin).
				Str("function", e.function).
				Msg("hook chain stopped")
			return out, nil
		}
	}
	return out, nil
}

// Running reports whether any chain in the table is currently executing.
func (t *Table[A]) Running() bool {
	return t.active.Load() > 0
}

// Count returns the number of entries registered for hook.
func (t *Table[A]) Count(hook string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries[hook])
}

// Entries returns the entries of hook in execution order.
func (t *Table[A]) Entries(hook string) []EntryInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := t.entries[hook]
	out := make([]EntryInfo, len(list))
	for i, e := range list {
		out[i] = EntryInfo{Plugin: e.plugin, Function: e.function}
	}
	return out
}

// Hooks returns the hook names that have at least one entry, sorted.
func (t *Table[A]) Hooks() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.entries))
	for hook, list := range t.entries {
		if len(list) > 0 {
			names = append(names, hook)
		}
	}
	sort.Strings(names)
	return names
}
