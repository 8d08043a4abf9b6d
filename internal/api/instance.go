// Package api composes versioned service interfaces out of methods,
// constants, resources, hook chains and plugins.
package api

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/soyeahso/apikit/internal/hooks"
	"github.com/soyeahso/apikit/internal/logging"
	"github.com/soyeahso/apikit/internal/registry"
	"github.com/soyeahso/apikit/internal/semver"
)

// Params are the caller-supplied arguments of a method invocation.
type Params map[string]any

// Options is a configuration bag. Instance options are keyed by namespace:
// plugin options live under the plugin name and resource defaults under "resources".
type Options map[string]any

// Data is the mutable context object a hook chain threads through its handlers.
type Data map[string]any

// Placement positions a hook handler relative to existing ones.
type Placement = hooks.Placement

// HookEntry identifies a registered hook handler.
type HookEntry = hooks.EntryInfo

// HookCall is the argument bundle every hook handler receives. All handlers
// of one chain run share the same HookCall, so changes to Data are visible
// to the handlers after them.
type HookCall struct {
	ID       string
	Hook     string
	Data     Data
	View     *View
	Options  Options
	Resource string
}

// HookHandler handles one step of a hook chain. Returning false stops the chain.
type HookHandler = hooks.Handler[*HookCall]

// MethodCall is the argument bundle a method receives. View is only valid
// for the duration of the call.
type MethodCall struct {
	ID       string
	Method   string
	Params   Params
	Resource string
	View     *View
}

// Method implements a named operation.
type Method func(ctx context.Context, call *MethodCall) (any, error)

// HookSpec describes a hook handler to register.
type HookSpec struct {
	Hook      string
	Plugin    string
	Function  string
	Placement Placement
	Handler   HookHandler
}

// Registry holds every Instance by name and version.
type Registry = registry.Registry[*Instance]

// NewRegistry creates an empty instance registry.
func NewRegistry(log *logging.Logger, opts ...registry.Option) *Registry {
	return registry.New[*Instance](log, opts...)
}

// Instance is a named, versioned container of hooks, constants, methods,
// resources and installed plugins. It only ever grows.
type Instance struct {
	name    string
	version string
	log     *logging.Logger
	hooks   *hooks.Table[*HookCall]

	mu        sync.RWMutex
	constants map[string]any
	methods   map[string]Method
	resources map[string]*ResourceConfig
	options   Options
	installed map[string]bool
	plugins   []string
}

// Option configures a new Instance.
type Option func(*settings)

type settings struct {
	log       *logging.Logger
	constants map[string]any
	methods   map[string]Method
	options   Options
	hooks     []HookSpec
}

// WithLogger sets the logger the instance and its hook table write to.
func WithLogger(log *logging.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithConstants seeds instance-level constants.
func WithConstants(constants map[string]any) Option {
	return func(s *settings) { maps.Copy(s.constants, constants) }
}

// WithMethods seeds instance-level methods.
func WithMethods(methods map[string]Method) Option {
	return func(s *settings) { maps.Copy(s.methods, methods) }
}

// WithOptions seeds the instance options bag.
func WithOptions(opts Options) Option {
	return func(s *settings) { maps.Copy(s.options, opts) }
}

// WithHooks registers initial hook handlers in order.
func WithHooks(specs ...HookSpec) Option {
	return func(s *settings) { s.hooks = append(s.hooks, specs...) }
}

// New creates an Instance and registers it in reg under (name, version).
// Nothing is registered when any argument or initial table entry is invalid.
func New(reg *Registry, name, version string, opts ...Option) (*Instance, error) {
	if name == "" {
		return nil, configError("instance name must not be empty")
	}
	if !semver.IsValid(version) {
		return nil, configError("instance %s: invalid semantic version %q", name, version)
	}
	if reg == nil {
		return nil, configError("instance %s@%s: nil registry", name, version)
	}

	s := settings{
		constants: make(map[string]any),
		methods:   make(map[string]Method),
		options:   make(Options),
	}
	for _, opt := range opts {
		opt(&s)
	}
	for mname, m := range s.methods {
		if mname == "" || m == nil {
			return nil, validationError("method %q has no implementation", mname)
		}
	}

	log := logging.OrNop(s.log).Sub("api").With("api", name).With("version", version)
	i := &Instance{
		name:      name,
		version:   version,
		log:       log,
		hooks:     hooks.NewTable[*HookCall](log),
		constants: s.constants,
		methods:   s.methods,
		resources: make(map[string]*ResourceConfig),
		options:   s.options,
		installed: make(map[string]bool),
	}
	if err := i.addHooks(s.hooks); err != nil {
		return nil, err
	}

	if err := reg.Register(i); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	i.log.Info().Msg("instance registered")
	return i, nil
}

// Name returns the API name.
func (i *Instance) Name() string { return i.name }

// Version returns the semantic version.
func (i *Instance) Version() string { return i.version }

func (i *Instance) String() string { return i.name + "@" + i.version }

// AddHook registers handler for hookName on behalf of pluginName. Fails while
// any hook chain of this instance is executing.
func (i *Instance) AddHook(hookName, pluginName, functionName string, p Placement, handler HookHandler) error {
	return i.addHooks([]HookSpec{{
		Hook:      hookName,
		Plugin:    pluginName,
		Function:  functionName,
		Placement: p,
		Handler:   handler,
	}})
}

func (i *Instance) addHooks(specs []HookSpec) error {
	if len(specs) == 0 {
		return nil
	}
	batch := make([]hooks.Spec[*HookCall], len(specs))
	for n, s := range specs {
		batch[n] = hooks.Spec[*HookCall]{
			Hook:      s.Hook,
			Plugin:    s.Plugin,
			Function:  s.Function,
			Placement: s.Placement,
			Handler:   s.Handler,
		}
	}
	if err := i.hooks.AddAll(batch); err != nil {
		return hookError(err)
	}
	return nil
}

// RunHooks runs the chain for hookName against the instance-level view.
// A nil data starts from an empty context object. The (possibly mutated)
// context object is returned even when a handler fails.
func (i *Instance) RunHooks(ctx context.Context, hookName string, data Data) (Data, error) {
	return i.runHooks(ctx, hookName, data, "")
}

func (i *Instance) runHooks(ctx context.Context, hookName string, data Data, resource string) (Data, error) {
	view, err := i.buildView(resource)
	if err != nil {
		return data, err
	}
	if data == nil {
		data = make(Data)
	}

	call := &HookCall{
		ID:       uuid.NewString(),
		Hook:     hookName,
		Data:     data,
		View:     view,
		Options:  view.Options,
		Resource: resource,
	}

	out, err := i.hooks.Run(ctx, hookName, call)
	if err != nil {
		i.log.Debug().Err(err).Str("hook", hookName).Str("call", call.ID).Int("ran", out.Ran).Msg("hook chain failed")
		return call.Data, err
	}
	if out.Stopped {
		i.log.Debug().Str("hook", hookName).Str("call", call.ID).Str("resource", resource).Msg("hook chain short-circuited")
	}
	return call.Data, nil
}

// Run invokes an instance-level method.
func (i *Instance) Run(ctx context.Context, method string, params Params) (any, error) {
	view, err := i.buildView("")
	if err != nil {
		return nil, err
	}
	return view.Resolve(method).Call(ctx, params)
}

// Resolve looks a property up at instance level: constant first, then method.
func (i *Instance) Resolve(name string) Resolution {
	view, err := i.buildView("")
	if err != nil {
		return Resolution{Name: name}
	}
	return view.Resolve(name)
}

// View returns the instance-level effective view.
func (i *Instance) View() *View {
	view, _ := i.buildView("")
	return view
}

// Constant returns an instance-level constant.
func (i *Instance) Constant(name string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.constants[name]
	return v, ok
}

// Methods returns the instance-level method names, sorted.
func (i *Instance) Methods() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedKeys(i.methods)
}

// Constants returns a copy of the instance-level constants.
func (i *Instance) Constants() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return maps.Clone(i.constants)
}

// Options returns a copy of the instance options bag.
func (i *Instance) Options() Options {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return maps.Clone(i.options)
}

// Plugins returns installed plugin names in install order.
func (i *Instance) Plugins() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.plugins)
}

// HasPlugin reports whether the named plugin is installed.
func (i *Instance) HasPlugin(name string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.installed[name]
}

// HookNames returns every hook name with at least one handler, sorted.
func (i *Instance) HookNames() []string {
	return i.hooks.Hooks()
}

// HookEntries returns the handlers of hookName in execution order.
func (i *Instance) HookEntries(hookName string) []HookEntry {
	return i.hooks.Entries(hookName)
}

// Executing reports whether any hook chain of this instance is running.
func (i *Instance) Executing() bool {
	return i.hooks.Running()
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
