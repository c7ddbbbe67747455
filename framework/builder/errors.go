package builder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoLoader means a Class requires a module but the Builder has no Loader.
var ErrNoLoader = errors.New("no module loader configured")

// UnresolvedAliasError means the alias has neither a cached value nor a
// registry entry, or a reflection reference was resolved.
type UnresolvedAliasError struct {
	Alias string
}

func (e UnresolvedAliasError) Error() string {
	return fmt.Sprintf("builder: no instruction registered for %q", e.Alias)
}

// MissingDependencyError means a required module path could not be loaded.
type MissingDependencyError struct {
	Path string
	Err  error
}

func (e MissingDependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("builder: missing dependency %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("builder: missing dependency %s", e.Path)
}

func (e MissingDependencyError) Unwrap() error { return e.Err }

// UnknownKindError means an instruction matches no construction rule.
type UnknownKindError struct {
	Reason string
}

func (e UnknownKindError) Error() string {
	return "builder: unknown instruction kind: " + e.Reason
}

// CycleDetectedError means an alias was re-entered while it was being resolved.
type CycleDetectedError struct {
	Path []string
}

func (e CycleDetectedError) Error() string {
	if len(e.Path) == 0 {
		return "builder: alias cycle detected"
	}
	return "builder: alias cycle detected: " + strings.Join(e.Path, " -> ")
}

// UnknownTypeError means a Class names a type that was never registered.
type UnknownTypeError struct {
	Name string
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("builder: type %q is not registered", e.Name)
}

// UnknownCallableError means a Callback names a function that was never registered.
type UnknownCallableError struct {
	Name string
}

func (e UnknownCallableError) Error() string {
	return fmt.Sprintf("builder: function %q is not registered", e.Name)
}

// UnknownMemberError means a property or method could not be applied.
type UnknownMemberError struct {
	Type   string
	Member string
	Kind   string // "property" or "method"
}

func (e UnknownMemberError) Error() string {
	return fmt.Sprintf("builder: %s has no %s %q", e.Type, e.Kind, e.Member)
}

// ArgumentError means a resolved argument does not fit the parameter.
type ArgumentError struct {
	Target string
	Index  int
	Want   string
	Got    string
}

func (e ArgumentError) Error() string {
	return fmt.Sprintf("builder: %s argument %d: want %s, got %s", e.Target, e.Index, e.Want, e.Got)
}

// CoercionError means a primitive payload could not be converted.
type CoercionError struct {
	Kind  Kind
	Value any
	Err   error
}

func (e CoercionError) Error() string {
	return fmt.Sprintf("builder: cannot coerce %#v to %s: %v", e.Value, e.Kind, e.Err)
}

func (e CoercionError) Unwrap() error { return e.Err }

// TypeMismatchError means Resolve[T] could not assert the resolved value to T.
type TypeMismatchError struct {
	Alias    string
	Expected string
	Actual   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("builder: %q resolved to %s, expected %s", e.Alias, e.Actual, e.Expected)
}
