package api

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// ResourcesNamespace is the options key that holds resource-level defaults.
const ResourcesNamespace = "resources"

// ResourceConfig is a named sub-namespace layered over its instance.
type ResourceConfig struct {
	Options   Options
	Methods   map[string]Method
	Constants map[string]any
}

// ResourceDef is what AddResource accepts beyond the name and options.
// Hooks without a plugin name are owned by "resource:<name>". Resource hooks
// only run when the chain is run through that resource; every other run of
// the same hook skips them.
type ResourceDef struct {
	Hooks        []HookSpec
	Implementers map[string]Method
	Constants    map[string]any
}

// AddResource defines a resource. Names are unique per instance.
func (i *Instance) AddResource(name string, opts Options, def ResourceDef) error {
	if i.hooks.Running() {
		return reentrant("add resource " + name)
	}
	if name == "" {
		return validationError("resource name must not be empty")
	}
	for mname, m := range def.Implementers {
		if mname == "" || m == nil {
			return validationError("resource %s: method %q has no implementation", name, mname)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.resources[name]; exists {
		return validationError("resource %q already defined on %s", name, i)
	}

	specs := make([]HookSpec, len(def.Hooks))
	for n, s := range def.Hooks {
		if s.Plugin == "" {
			s.Plugin = "resource:" + name
		}
		if s.Handler != nil {
			s.Handler = scopedTo(name, s.Handler)
		}
		specs[n] = s
	}
	if err := i.addHooks(specs); err != nil {
		return err
	}

	rc := &ResourceConfig{
		Options:   maps.Clone(opts),
		Methods:   maps.Clone(def.Implementers),
		Constants: maps.Clone(def.Constants),
	}
	if rc.Options == nil {
		rc.Options = make(Options)
	}
	if rc.Methods == nil {
		rc.Methods = make(map[string]Method)
	}
	if rc.Constants == nil {
		rc.Constants = make(map[string]any)
	}
	i.resources[name] = rc

	i.log.Debug().Str("resource", name).Int("methods", len(rc.Methods)).Int("constants", len(rc.Constants)).Msg("resource added")
	return nil
}

// scopedTo runs h only for chains run against resource.
func scopedTo(resource string, h HookHandler) HookHandler {
	return func(ctx context.Context, call *HookCall) (any, error) {
		if call.Resource != resource {
			return nil, nil
		}
		return h(ctx, call)
	}
}

// Resources returns the defined resource names, sorted.
func (i *Instance) Resources() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedKeys(i.resources)
}

// Resource returns a handle to a defined resource.
func (i *Instance) Resource(name string) (*Resource, error) {
	i.mu.RLock()
	_, ok := i.resources[name]
	i.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: resource %q on %s", ErrNotFound, name, i)
	}
	return &Resource{inst: i, name: name}, nil
}

// Resource is a handle to a named resource of an Instance. The handle itself
// is not invocable; call one of its methods by name.
type Resource struct {
	inst *Instance
	name string
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// Instance returns the owning instance.
func (r *Resource) Instance() *Instance { return r.inst }

// Call invokes method through the resource. An empty method name is an
// attempt to invoke the handle itself and fails with ErrMethod.
func (r *Resource) Call(ctx context.Context, method string, params Params) (any, error) {
	if method == "" {
		return nil, fmt.Errorf("%w: resource %q is not callable, invoke one of its methods", ErrMethod, r.name)
	}
	view, err := r.inst.buildView(r.name)
	if err != nil {
		return nil, err
	}
	return view.Resolve(method).Call(ctx, params)
}

// Resolve looks name up with resource-over-instance precedence.
func (r *Resource) Resolve(name string) Resolution {
	view, err := r.inst.buildView(r.name)
	if err != nil {
		return Resolution{Name: name}
	}
	return view.Resolve(name)
}

// RunHooks runs the chain for hookName against this resource's view.
func (r *Resource) RunHooks(ctx context.Context, hookName string, data Data) (Data, error) {
	return r.inst.runHooks(ctx, hookName, data, r.name)
}

// View returns the resource's effective view.
func (r *Resource) View() *View {
	view, _ := r.inst.buildView(r.name)
	return view
}

// Kind tags what a property resolved to.
type Kind int

const (
	KindNone Kind = iota
	KindConstant
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindMethod:
		return "method"
	default:
		return "none"
	}
}

// BoundMethod is a resolved method. Each invocation gets a fresh MethodCall.
type BoundMethod func(ctx context.Context, params Params) (any, error)

// Resolution is the tagged result of a property lookup. Value holds the
// constant for KindConstant and a BoundMethod for KindMethod.
type Resolution struct {
	Name     string
	Kind     Kind
	Value    any
	Resource string
}

// Found reports whether the lookup matched anything.
func (r Resolution) Found() bool { return r.Kind != KindNone }

// Call invokes a resolved method.
func (r Resolution) Call(ctx context.Context, params Params) (any, error) {
	switch r.Kind {
	case KindMethod:
		return r.Value.(BoundMethod)(ctx, params)
	case KindConstant:
		return nil, fmt.Errorf("%w: %q is a constant, not a method", ErrMethod, r.Name)
	default:
		if r.Resource != "" {
			return nil, fmt.Errorf("%w: no implementation found for %q on resource %q", ErrNotFound, r.Name, r.Resource)
		}
		return nil, fmt.Errorf("%w: no implementation found for %q", ErrNotFound, r.Name)
	}
}

// View is the effective configuration seen from the instance or from one of
// its resources. Constants and Methods are merged with resource entries
// overriding same-named instance entries; Options is the effective options bag.
type View struct {
	Constants map[string]any
	Methods   map[string]Method
	Options   Options

	inst     *Instance
	resource string
	layers   [4]layer
}

type layer struct {
	kind      Kind
	constants map[string]any
	methods   map[string]Method
}

// Instance returns the instance behind the view.
func (v *View) Instance() *Instance { return v.inst }

// Resource returns the resource name, or "" for the instance-level view.
func (v *View) Resource() string { return v.resource }

// Resolve looks name up in fixed order: resource constant, resource method,
// instance constant, instance method.
func (v *View) Resolve(name string) Resolution {
	for _, l := range v.layers {
		switch l.kind {
		case KindConstant:
			if val, ok := l.constants[name]; ok {
				return Resolution{Name: name, Kind: KindConstant, Value: val, Resource: v.resource}
			}
		case KindMethod:
			if m, ok := l.methods[name]; ok {
				return Resolution{Name: name, Kind: KindMethod, Value: v.bind(name, m), Resource: v.resource}
			}
		}
	}
	return Resolution{Name: name, Resource: v.resource}
}

// RunHooks runs a hook chain against the same instance and resource.
func (v *View) RunHooks(ctx context.Context, hookName string, data Data) (Data, error) {
	return v.inst.runHooks(ctx, hookName, data, v.resource)
}

func (v *View) bind(name string, m Method) BoundMethod {
	return func(ctx context.Context, params Params) (any, error) {
		call := &MethodCall{
			ID:       uuid.NewString(),
			Method:   name,
			Params:   normalizeParams(params),
			Resource: v.resource,
			View:     v,
		}
		defer call.release()
		return m(ctx, call)
	}
}

// release drops the references injected for the duration of a call.
func (c *MethodCall) release() {
	c.View = nil
}

// normalizeParams copies params so methods never write into the caller's map.
// A nil and an empty map are treated the same.
func normalizeParams(params Params) Params {
	out := make(Params, len(params))
	maps.Copy(out, params)
	return out
}

// buildView computes the effective view for resource ("" for instance level).
func (i *Instance) buildView(resource string) (*View, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	instConsts := maps.Clone(i.constants)
	instMethods := maps.Clone(i.methods)

	v := &View{
		inst:     i,
		resource: resource,
	}

	if resource == "" {
		v.Constants = instConsts
		v.Methods = instMethods
		v.Options = cloneOptions(i.options)
		v.layers = [4]layer{
			{kind: KindConstant, constants: instConsts},
			{kind: KindMethod, methods: instMethods},
		}
		return v, nil
	}

	rc, ok := i.resources[resource]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q on %s", ErrNotFound, resource, i)
	}

	resConsts := maps.Clone(rc.Constants)
	resMethods := maps.Clone(rc.Methods)

	v.Constants = maps.Clone(instConsts)
	maps.Copy(v.Constants, resConsts)
	v.Methods = maps.Clone(instMethods)
	maps.Copy(v.Methods, resMethods)
	v.Options = effectiveOptions(i.options, rc.Options)
	v.layers = [4]layer{
		{kind: KindConstant, constants: resConsts},
		{kind: KindMethod, methods: resMethods},
		{kind: KindConstant, constants: instConsts},
		{kind: KindMethod, methods: instMethods},
	}
	return v, nil
}

// effectiveOptions copies the instance options and replaces the resources
// namespace with the instance defaults overlaid by the resource's own options.
func effectiveOptions(instance, resource Options) Options {
	out := cloneOptions(instance)
	merged := make(Options)
	if base, ok := asOptions(instance[ResourcesNamespace]); ok {
		maps.Copy(merged, base)
	}
	maps.Copy(merged, resource)
	out[ResourcesNamespace] = merged
	return out
}

// cloneOptions copies the top level and every nested namespace bag, so that
// handlers writing into the view cannot reach the instance's own options.
func cloneOptions(opts Options) Options {
	out := make(Options, len(opts))
	for k, v := range opts {
		if nested, ok := asOptions(v); ok {
			out[k] = maps.Clone(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func asOptions(v any) (Options, bool) {
	switch m := v.(type) {
	case Options:
		return m, true
	case map[string]any:
		return Options(m), true
	default:
		return nil, false
	}
}
