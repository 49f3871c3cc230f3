package di

import "errors"

// Container errors.
var (
	// ErrNotRegistered is returned when resolving a type without a provider.
	ErrNotRegistered = errors.New("di: type not registered")

	// ErrAlreadyRegistered is returned when a type is provided twice.
	ErrAlreadyRegistered = errors.New("di: type already registered")

	// ErrInvalidConstructor is returned for constructors that are not
	// func(deps...) T or func(deps...) (T, error).
	ErrInvalidConstructor = errors.New("di: invalid constructor")

	// ErrDependencyCycle is returned when the dependency graph of a type has a cycle.
	ErrDependencyCycle = errors.New("di: dependency cycle detected")

	// ErrScopeMismatch is returned when a longer-lived service depends on a
	// shorter-lived scoped service.
	ErrScopeMismatch = errors.New("di: scope mismatch")

	// ErrInvalidScope is returned when opening a scope with an empty or reserved name or id.
	ErrInvalidScope = errors.New("di: invalid scope")

	// ErrScopeNotActive is returned when a scoped service is resolved without
	// an open scope of that name on the context.
	ErrScopeNotActive = errors.New("di: scope not active")

	// ErrScopeClosed is returned when an instance is created in a scope that
	// was closed concurrently.
	ErrScopeClosed = errors.New("di: scope closed")

	// ErrShutdown is returned after DrainAndShutdown has been called.
	ErrShutdown = errors.New("di: container is shut down")

	// ErrStartupHook is returned when a startup hook fails.
	ErrStartupHook = errors.New("di: startup hook failed")
)
