package api

import (
	"errors"
	"fmt"

	"github.com/soyeahso/apikit/internal/hooks"
)

// Error kinds. Every error returned by this package matches exactly one kind
// with errors.Is; ErrReentrant errors also match ErrValidation.
var (
	// ErrConfiguration reports an invalid instance name or version, or a failed registration.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation reports malformed hook or resource arguments.
	ErrValidation = errors.New("validation error")
	// ErrReentrant reports a configuration change attempted while a hook chain runs.
	ErrReentrant = errors.New("instance is executing a hook chain")
	// ErrPlugin reports an invalid, reserved, duplicate or failing plugin.
	ErrPlugin = errors.New("plugin error")
	// ErrMethod reports an attempt to invoke something that is not a method.
	ErrMethod = errors.New("method error")
	// ErrNotFound reports an unresolved method, resource or constant.
	ErrNotFound = errors.New("not found")
)

// Plugin failure causes, wrapped in a *PluginError.
var (
	ErrInvalidPlugin     = errors.New("invalid plugin descriptor")
	ErrReservedName      = errors.New("reserved plugin name")
	ErrAlreadyInstalled  = errors.New("plugin already installed")
	ErrMissingDependency = errors.New("missing dependency")
)

// PluginError is returned by Use. It carries the plugin name for diagnostics
// and matches both ErrPlugin and the underlying cause.
type PluginError struct {
	Plugin string
	Err    error
}

func (e *PluginError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("plugin: %v", e.Err)
	}
	return fmt.Sprintf("plugin %s: %v", e.Plugin, e.Err)
}

func (e *PluginError) Unwrap() []error {
	return []error{ErrPlugin, e.Err}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// hookError classifies an error from the hook table.
func hookError(err error) error {
	if errors.Is(err, hooks.ErrBusy) {
		return reentrant("add hook")
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func reentrant(op string) error {
	return fmt.Errorf("%w: %w: %s", ErrValidation, ErrReentrant, op)
}
