package manager

import (
	"errors"
	"fmt"

	"companiond/internal/catalog"
	"companiond/internal/llm"
)

// Session and manager sentinels. Match with errors.Is.
var (
	// ErrBusy is returned when a generation or a submit is already in progress.
	ErrBusy = errors.New("session busy")
	// ErrClosed is returned by every operation on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrNotSelected is returned when no model has been selected.
	ErrNotSelected = errors.New("no model selected")
	// ErrBudgetExceeded wraps budget failures of a prompt or a reply.
	ErrBudgetExceeded = errors.New("context budget exceeded")
	// ErrNotGenerating is returned by Cancel outside a generation.
	ErrNotGenerating = errors.New("session not generating")
	// ErrFailed is returned by Submit after a failure until Reset.
	ErrFailed = errors.New("session failed; reset required")
	// ErrBudgetExhausted is returned by Budget.Consume.
	ErrBudgetExhausted = errors.New("token budget exhausted")
	// ErrHandleUnloaded is returned by engine calls after Unload.
	ErrHandleUnloaded = errors.New("model handle unloaded")

	// ErrNotFound matches a LoadError of kind LoadNotFound.
	ErrNotFound = errors.New("model file not found")
	// ErrBackendInit matches a LoadError of kind LoadBackendInitFailed.
	ErrBackendInit = errors.New("backend initialization failed")
)

// LoadErrorKind classifies a model load failure.
type LoadErrorKind int

const (
	LoadNotFound LoadErrorKind = iota
	LoadBackendInitFailed
)

func (k LoadErrorKind) String() string {
	if k == LoadNotFound {
		return "not_found"
	}
	return "backend_init_failed"
}

// LoadError reports why a descriptor could not be turned into a handle.
type LoadError struct {
	Kind  LoadErrorKind
	Model string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %s", e.Model, e.Kind)
	}
	return fmt.Sprintf("load %s: %s: %v", e.Model, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) and errors.Is(err, ErrBackendInit) match.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == LoadNotFound
	case ErrBackendInit:
		return e.Kind == LoadBackendInitFailed
	}
	return false
}

// modelNotFoundError is returned when a model name is not in the catalog.
type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

// ErrModelNotFound returns an error for a name missing from the catalog.
func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether err indicates an unknown model name.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// IsBusy reports whether err should be answered with 429.
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }

// IsClosed reports whether err stems from a closed session.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) || errors.Is(err, ErrHandleUnloaded) }

// IsNotSelected reports whether err indicates that no model is selected.
func IsNotSelected(err error) bool { return errors.Is(err, ErrNotSelected) }

// IsNotGenerating reports whether err came from Cancel on an idle session.
func IsNotGenerating(err error) bool { return errors.Is(err, ErrNotGenerating) }

// IsFailed reports whether the session must be reset before use.
func IsFailed(err error) bool { return errors.Is(err, ErrFailed) }

// IsBudgetExceeded reports whether a prompt or reply overflowed the context.
func IsBudgetExceeded(err error) bool { return errors.Is(err, ErrBudgetExceeded) }

// IsFileNotFound reports a load failure because no model file resolved.
func IsFileNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsBackendInit reports a load failure inside the runtime.
func IsBackendInit(err error) bool { return errors.Is(err, ErrBackendInit) }

// IsConfigError reports an invalid descriptor.
func IsConfigError(err error) bool { return catalog.IsConfigError(err) }

// IsDependencyUnavailable reports a runtime that is not built or installed.
func IsDependencyUnavailable(err error) bool { return llm.IsDependencyUnavailable(err) }
