package builder

import "context"

// Registrar receives the types and functions a loaded module provides.
// *Builder implements it.
type Registrar interface {
	RegisterType(name string, t *Type)
	RegisterFunc(name string, fn any)
}

// Loader loads the module a Class instruction requires before it is
// constructed. A path that does not exist must yield a MissingDependencyError.
//
// The Builder calls Load at most once per path.
type Loader interface {
	Load(ctx context.Context, path string, r Registrar) error
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string, r Registrar) error

func (f LoaderFunc) Load(ctx context.Context, path string, r Registrar) error {
	return f(ctx, path, r)
}
