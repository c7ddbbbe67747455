// Package loader interprets Go source modules named by Class.Require and
// registers the constructors and functions they export with a builder.
//
// A module is a single file in package main that defines either or both of:
//
//	func Types() map[string]any     // type name → constructor
//	func Functions() map[string]any // function name → func
//
// Constructors follow the rules of builder.TypeOf.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/km-arc/go-builder/framework/builder"
)

const (
	typesFuncName     = "Types"
	functionsFuncName = "Functions"
)

// Loader evaluates modules with the yaegi interpreter. Each file is
// interpreted once; its exports are replayed into every Registrar that asks
// for it.
type Loader struct {
	root string
	log  *zap.Logger

	mu      sync.Mutex
	modules map[string]*module
}

type module struct {
	types map[string]any
	funcs map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithRoot resolves relative module paths against dir.
func WithRoot(dir string) Option {
	return func(l *Loader) { l.root = dir }
}

// WithLogger sets the logger used to trace module loads.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// New creates a Loader. Relative paths resolve against the working directory
// unless WithRoot is given.
func New(opts ...Option) *Loader {
	l := &Loader{
		log:     zap.NewNop(),
		modules: make(map[string]*module),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements builder.Loader.
func (l *Loader) Load(ctx context.Context, path string, r builder.Registrar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := l.resolve(path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.modules[abs]
	if !ok {
		if m, err = l.interpret(path, abs); err != nil {
			return err
		}
		l.modules[abs] = m
	}

	for _, name := range sortedKeys(m.types) {
		r.RegisterType(name, builder.TypeOf(m.types[name]))
	}
	for _, name := range sortedKeys(m.funcs) {
		r.RegisterFunc(name, m.funcs[name])
	}
	l.log.Debug("module registered",
		zap.String("path", abs),
		zap.Int("types", len(m.types)),
		zap.Int("functions", len(m.funcs)),
		zap.Bool("cached", ok),
	)
	return nil
}

func (l *Loader) resolve(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", builder.MissingDependencyError{Path: path, Err: errors.New("empty module path")}
	}
	if !filepath.IsAbs(trimmed) && l.root != "" {
		trimmed = filepath.Join(l.root, trimmed)
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("loader: %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", builder.MissingDependencyError{Path: path, Err: err}
		}
		return "", fmt.Errorf("loader: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("loader: %s is a directory", path)
	}
	return abs, nil
}

func (l *Loader) interpret(path, abs string) (*module, error) {
	code, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("loader: %s is empty", path)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	if _, err := i.EvalPath(abs); err != nil {
		return nil, fmt.Errorf("loader: interpret %s: %w", path, err)
	}

	m := &module{}
	found := false
	for _, name := range []string{typesFuncName, functionsFuncName} {
		fn, err := i.Eval(name)
		if err != nil {
			// Each export is optional on its own.
			continue
		}
		exports, err := invokeExports(name, fn)
		if err != nil {
			return nil, fmt.Errorf("loader: %s: %w", path, err)
		}
		found = true
		if name == typesFuncName {
			m.types = exports
		} else {
			m.funcs = exports
		}
	}
	if !found {
		return nil, fmt.Errorf("loader: %s must define %s() or %s() map[string]any", path, typesFuncName, functionsFuncName)
	}
	l.log.Info("module interpreted", zap.String("path", abs))
	return m, nil
}

func invokeExports(name string, value reflect.Value) (map[string]any, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	if value.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must take no arguments", name)
	}
	results := value.Call(nil)
	if len(results) != 1 {
		return nil, fmt.Errorf("%s must return map[string]any", name)
	}
	exports, ok := results[0].Interface().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s returned %s, want map[string]any", name, results[0].Type())
	}
	for key, fn := range exports {
		if reflect.ValueOf(fn).Kind() != reflect.Func {
			return nil, fmt.Errorf("%s()[%q] is %T, not a function", name, key, fn)
		}
	}
	return exports, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
