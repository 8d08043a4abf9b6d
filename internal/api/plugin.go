package api

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/soyeahso/apikit/internal/logging"
)

// reservedPluginNames are option namespaces owned by the instance itself.
var reservedPluginNames = map[string]bool{
	ResourcesNamespace: true,
	"scopes":           true,
}

// Installer registers a plugin's hooks, methods and constants through r.
// opts are the plugin's effective options; the plugin name is r.Plugin().
type Installer func(ctx context.Context, r *Registrar, opts Options) error

// Plugin describes an installable unit.
type Plugin struct {
	Name         string
	Dependencies []string
	Install      Installer
}

// Use installs p on the instance. Dependencies must already be installed, and
// a plugin installs at most once. Registrations are committed only when the
// installer succeeds, so a failed install has no effect and can be retried.
//
// opts are merged over any options already stored under the plugin's name and
// the result is kept there.
func (i *Instance) Use(ctx context.Context, p Plugin, opts Options) error {
	if i.hooks.Running() {
		return reentrant("use plugin " + p.Name)
	}
	if err := validatePlugin(p); err != nil {
		return err
	}

	i.mu.RLock()
	installed := i.installed[p.Name]
	var missing []string
	for _, dep := range p.Dependencies {
		if !i.installed[dep] {
			missing = append(missing, dep)
		}
	}
	effective := make(Options)
	if base, ok := asOptions(i.options[p.Name]); ok {
		maps.Copy(effective, base)
	}
	i.mu.RUnlock()
	maps.Copy(effective, opts)

	if installed {
		return &PluginError{Plugin: p.Name, Err: ErrAlreadyInstalled}
	}
	if len(missing) > 0 {
		return &PluginError{Plugin: p.Name, Err: fmt.Errorf("%w: %v", ErrMissingDependency, missing)}
	}

	reg := &Registrar{
		plugin: p.Name,
		inst:   i,
		log:    i.log.With("plugin", p.Name),
	}
	defer reg.closed.Store(true)
	if err := runInstaller(ctx, p, reg, effective); err != nil {
		i.log.Warn().Err(err).Str("plugin", p.Name).Msg("plugin install failed")
		return &PluginError{Plugin: p.Name, Err: err}
	}

	if err := i.commit(reg, effective); err != nil {
		i.log.Warn().Err(err).Str("plugin", p.Name).Msg("plugin install failed")
		return &PluginError{Plugin: p.Name, Err: err}
	}

	i.log.Info().
		Str("plugin", p.Name).
		Int("hooks", len(reg.hooks)).
		Int("methods", len(reg.methods)).
		Int("constants", len(reg.constants)).
		Msg("plugin installed")
	return nil
}

func validatePlugin(p Plugin) error {
	switch {
	case p.Name == "":
		return &PluginError{Err: fmt.Errorf("%w: name must not be empty", ErrInvalidPlugin)}
	case reservedPluginNames[p.Name]:
		return &PluginError{Plugin: p.Name, Err: ErrReservedName}
	case p.Install == nil:
		return &PluginError{Plugin: p.Name, Err: fmt.Errorf("%w: no install function", ErrInvalidPlugin)}
	}
	for _, dep := range p.Dependencies {
		if dep == "" {
			return &PluginError{Plugin: p.Name, Err: fmt.Errorf("%w: empty dependency name", ErrInvalidPlugin)}
		}
	}
	return nil
}

// runInstaller calls the installer and converts a panic into an error.
func runInstaller(ctx context.Context, p Plugin, reg *Registrar, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("install panicked: %v", r)
		}
	}()
	return p.Install(ctx, reg, opts)
}

func (i *Instance) commit(reg *Registrar, opts Options) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.installed[reg.plugin] {
		return ErrAlreadyInstalled
	}
	if err := i.addHooks(reg.hooks); err != nil {
		return err
	}

	for name, m := range reg.methods {
		if _, exists := i.methods[name]; exists {
			i.log.Warn().Str("plugin", reg.plugin).Str("method", name).Msg("plugin overrides method")
		}
		i.methods[name] = m
	}
	for name, v := range reg.constants {
		if _, exists := i.constants[name]; exists {
			i.log.Warn().Str("plugin", reg.plugin).Str("constant", name).Msg("plugin overrides constant")
		}
		i.constants[name] = v
	}

	i.options[reg.plugin] = opts
	i.installed[reg.plugin] = true
	i.plugins = append(i.plugins, reg.plugin)
	return nil
}

// Registrar is handed to an Installer. Everything registered through it is
// tagged with the plugin's name and staged until the installer returns.
type Registrar struct {
	plugin    string
	inst      *Instance
	log       *logging.Logger
	hooks     []HookSpec
	methods   map[string]Method
	constants map[string]any
	closed    atomic.Bool
}

// checkOpen fails once Use has returned for this registrar.
func (r *Registrar) checkOpen() error {
	if r.closed.Load() {
		return &PluginError{Plugin: r.plugin, Err: fmt.Errorf("%w: registrar used after install finished", ErrValidation)}
	}
	return nil
}

// Plugin returns the name of the plugin being installed.
func (r *Registrar) Plugin() string { return r.plugin }

// API returns the name and version of the target instance.
func (r *Registrar) API() (name, version string) { return r.inst.name, r.inst.version }

// Installed reports whether another plugin is already installed on the target.
func (r *Registrar) Installed(name string) bool { return r.inst.HasPlugin(name) }

// Log returns a logger tagged with the plugin name.
func (r *Registrar) Log() *logging.Logger { return r.log }

// AddHook stages a hook handler owned by this plugin. Shape errors are
// reported immediately; placement targets are checked at commit. Every Add
// method fails once Use has returned.
func (r *Registrar) AddHook(hookName, functionName string, p Placement, handler HookHandler) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	switch {
	case hookName == "":
		return validationError("plugin %s: empty hook name", r.plugin)
	case functionName == "":
		return validationError("plugin %s: empty function name for hook %q", r.plugin, hookName)
	case handler == nil:
		return validationError("plugin %s: nil handler for %s/%s", r.plugin, hookName, functionName)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if slices.ContainsFunc(r.hooks, func(s HookSpec) bool { return s.Hook == hookName && s.Function == functionName }) {
		return validationError("plugin %s: function %q already staged for hook %q", r.plugin, functionName, hookName)
	}
	r.hooks = append(r.hooks, HookSpec{
		Hook:      hookName,
		Plugin:    r.plugin,
		Function:  functionName,
		Placement: p,
		Handler:   handler,
	})
	return nil
}

// AddMethod stages an instance-level method.
func (r *Registrar) AddMethod(name string, m Method) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if name == "" || m == nil {
		return validationError("plugin %s: method %q has no implementation", r.plugin, name)
	}
	if r.methods == nil {
		r.methods = make(map[string]Method)
	}
	r.methods[name] = m
	return nil
}

// AddConstant stages an instance-level constant.
func (r *Registrar) AddConstant(name string, v any) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if name == "" {
		return validationError("plugin %s: empty constant name", r.plugin)
	}
	if r.constants == nil {
		r.constants = make(map[string]any)
	}
	r.constants[name] = v
	return nil
}
