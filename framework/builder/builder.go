package builder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SelfAlias is the alias under which every Builder injects itself.
const SelfAlias = "builder"

// ── Config ────────────────────────────────────────────────────────────────────

// Config holds the lifecycle defaults. Class and Object instructions
// override them with their own New / Clone fields.
type Config struct {
	// New constructs a fresh value on every resolution and never caches.
	New bool
	// Clone returns a copy of the cached value instead of the shared instance.
	Clone bool
}

// DefaultConfig returns New=false, Clone=false: a cached value is shared
// unless the instruction or MergeConfig asks for copies.
func DefaultConfig() Config {
	return Config{New: false, Clone: false}
}

func (c Config) options() map[string]any {
	return map[string]any{"new": c.New, "clone": c.Clone}
}

// Option configures a Builder.
type Option func(*Builder)

// WithConfig sets the lifecycle defaults.
func WithConfig(cfg Config) Option {
	return func(b *Builder) { b.config = cfg }
}

// WithLogger sets the logger used for resolution traces.
func WithLogger(log *zap.Logger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// WithLoader sets the module loader used by Class.Require.
func WithLoader(l Loader) Option {
	return func(b *Builder) { b.loader = l }
}

// ── Builder ───────────────────────────────────────────────────────────────────

// Builder owns an instruction registry, a value cache and the type and
// function tables Class and Callback instructions refer to.
//
// It is safe for concurrent use.
type Builder struct {
	mu sync.RWMutex

	// alias → instruction
	registry Instructions

	// alias → realized value
	cache map[string]any

	// type name → construction recipe
	types map[string]*Type

	// function name → callable
	funcs map[string]any

	// module path → loaded
	loaded map[string]bool

	config Config
	loader Loader
	log    *zap.Logger

	builds singleflight.Group
	loads  singleflight.Group

	// alias → alias → count: what each alias under construction is
	// currently resolving, across goroutines.
	waitMu sync.Mutex
	waits  map[string]map[string]int
}

// New creates an empty Builder that resolves itself as "builder".
func New(opts ...Option) *Builder {
	b := &Builder{
		registry: make(Instructions),
		cache:    make(map[string]any),
		types:    make(map[string]*Type),
		funcs:    make(map[string]any),
		loaded:   make(map[string]bool),
		waits:    make(map[string]map[string]int),
		config:   DefaultConfig(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.Set(SelfAlias, b)
	return b
}

// ── Registration ──────────────────────────────────────────────────────────────

// Merge adds instructions to the registry. Later entries for the same alias
// overwrite earlier ones. It returns a copy of the resulting registry.
//
//	b.Merge(builder.Instructions{
//	    "logger": builder.Class{Name: "FileLogger", Construct: []builder.Instruction{
//	        builder.String{Value: "/tmp/log"},
//	    }},
//	})
func (b *Builder) Merge(in Instructions) Instructions {
	b.mu.Lock()
	defer b.mu.Unlock()
	maps.Copy(b.registry, in)
	return maps.Clone(b.registry)
}

// Instructions returns a copy of the registry.
func (b *Builder) Instructions() Instructions {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.registry)
}

// MergeConfig updates the lifecycle defaults from "new" / "clone" options
// and returns the effective options.
func (b *Builder) MergeConfig(opts map[string]any) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.config
	for key, raw := range opts {
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return b.config.options(), fmt.Errorf("builder: config %q: %w", key, err)
		}
		switch key {
		case "new":
			next.New = v
		case "clone":
			next.Clone = v
		default:
			return b.config.options(), fmt.Errorf("builder: unknown config option %q", key)
		}
	}
	b.config = next
	return b.config.options(), nil
}

// Config returns the current lifecycle defaults.
func (b *Builder) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// Set places a pre-built value in the cache under alias.
//
//	b.Set("db", pool)
func (b *Builder) Set(alias string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache[alias] = value
}

// RegisterType binds a construction recipe to the name Class instructions use.
func (b *Builder) RegisterType(name string, t *Type) {
	if t == nil || t.New == nil {
		panic(fmt.Sprintf("builder: type %q has no constructor", name))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t.name = name
	b.types[name] = t
}

// RegisterFunc binds a function to the name Callback instructions use.
func (b *Builder) RegisterFunc(name string, fn any) {
	if reflect.ValueOf(fn).Kind() != reflect.Func {
		panic(fmt.Sprintf("builder: %q is not a function (%T)", name, fn))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.funcs[name] = fn
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Has reports whether the registry holds an instruction for alias.
func (b *Builder) Has(alias string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.registry[alias]
	return ok
}

// Resolved returns the cached value for alias without building anything.
func (b *Builder) Resolved(alias string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.cache[alias]
	return v, ok
}

// Aliases returns every registered or cached alias, sorted.
func (b *Builder) Aliases() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.registry)+len(b.cache))
	for k := range b.registry {
		out = append(out, k)
	}
	for k := range b.cache {
		if _, already := b.registry[k]; !already {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Get resolves alias. Class and Object instructions are cached under the
// alias according to the lifecycle policy. An alias with no instruction
// returns the value given to Set, if any.
func (b *Builder) Get(ctx context.Context, alias string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, err := pushResolveStack(ctx, alias)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	in, ok := b.registry[alias]
	cached, hasCached := b.cache[alias]
	b.mu.RUnlock()

	if !ok {
		if hasCached {
			return cached, nil
		}
		return nil, UnresolvedAliasError{Alias: alias}
	}
	release, err := b.await(resolveStack(ctx))
	if err != nil {
		return nil, err
	}
	defer release()

	b.log.Debug("resolve alias", zap.String("alias", alias), zap.Stringer("kind", kindOf(in)))
	return b.dispatch(ctx, alias, in)
}

// MustGet is like Get but panics on error. Intended for bootstrap code.
func (b *Builder) MustGet(ctx context.Context, alias string) any {
	v, err := b.Get(ctx, alias)
	if err != nil {
		panic(err)
	}
	return v
}

// Make resolves an instruction that is not bound to an alias. Nothing it
// builds at the top level is cached.
func (b *Builder) Make(ctx context.Context, in Instruction) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return b.dispatch(ctx, "", in)
}

// MakeAll resolves instructions in order and returns the values positionally.
func (b *Builder) MakeAll(ctx context.Context, ins []Instruction) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make([]any, 0, len(ins))
	for i, in := range ins {
		v, err := b.dispatch(ctx, "", in)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *Builder) dispatch(ctx context.Context, alias string, in Instruction) (any, error) {
	switch in := in.(type) {
	case Class:
		return b.makeClass(ctx, alias, in)
	case Reflection:
		return nil, UnresolvedAliasError{Alias: in.Name}
	case Object:
		return b.makeObject(ctx, alias, in)
	case Alias:
		return b.Get(ctx, in.Name)
	case Callback:
		return b.makeCallback(ctx, in)
	case Array:
		return makeArray(in)
	case String:
		return coerce(KindString, in.Value, func(v any) (any, error) { return cast.ToStringE(v) })
	case Integer:
		return coerce(KindInteger, in.Value, toInt)
	case Float:
		return coerce(KindFloat, in.Value, func(v any) (any, error) { return cast.ToFloat64E(v) })
	case Bool:
		return coerce(KindBool, in.Value, func(v any) (any, error) { return cast.ToBoolE(v) })
	case Nested:
		return b.dispatch(ctx, alias, in.Instruction)
	case Data:
		return in.Value, nil
	case nil:
		return nil, UnknownKindError{Reason: "nil instruction"}
	default:
		return nil, UnknownKindError{Reason: fmt.Sprintf("%T", in)}
	}
}

// cached applies the lifecycle policy around build. Without an alias or
// with New in effect, build runs every time and nothing is stored.
func (b *Builder) cached(ctx context.Context, alias string, newOpt, cloneOpt *bool, build func(context.Context) (any, error)) (any, error) {
	cfg := b.Config()
	fresh := flag(newOpt, cfg.New)
	copied := flag(cloneOpt, cfg.Clone)

	if alias == "" || fresh {
		return build(ctx)
	}

	if v, ok := b.Resolved(alias); ok {
		b.log.Debug("cache hit", zap.String("alias", alias), zap.Bool("clone", copied))
		return share(v, copied), nil
	}

	v, err, _ := b.builds.Do(alias, func() (any, error) {
		if v, ok := b.Resolved(alias); ok {
			return v, nil
		}
		v, err := build(ctx)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.cache[alias]; ok {
			// The slot was filled meanwhile; it stays, the callers get what was built.
			b.log.Debug("cache slot taken", zap.String("alias", alias))
			return v, nil
		}
		b.cache[alias] = v
		b.log.Debug("cache store", zap.String("alias", alias), zap.String("type", fmt.Sprintf("%T", v)))
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return share(v, copied), nil
}

// require loads a module path through the Loader, once per path.
func (b *Builder) require(ctx context.Context, path string) error {
	b.mu.RLock()
	done := b.loaded[path]
	b.mu.RUnlock()
	if done {
		return nil
	}
	if b.loader == nil {
		return MissingDependencyError{Path: path, Err: ErrNoLoader}
	}

	_, err, _ := b.loads.Do(path, func() (any, error) {
		b.mu.RLock()
		done := b.loaded[path]
		b.mu.RUnlock()
		if done {
			return nil, nil
		}
		b.log.Debug("load module", zap.String("path", path))
		if err := b.loader.Load(ctx, path, b); err != nil {
			var missing MissingDependencyError
			if errors.As(err, &missing) {
				return nil, err
			}
			return nil, fmt.Errorf("load module %s: %w", path, err)
		}
		b.mu.Lock()
		b.loaded[path] = true
		b.mu.Unlock()
		return nil, nil
	})
	return err
}

func (b *Builder) lookupType(name string) (*Type, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.types[name]
	return t, ok
}

func (b *Builder) lookupFunc(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn, ok := b.funcs[name]
	return fn, ok
}

func flag(override *bool, fallback bool) bool {
	if override != nil {
		return *override
	}
	return fallback
}

func share(v any, copied bool) any {
	if copied {
		return clone(v)
	}
	return v
}

func kindOf(in Instruction) Kind {
	if in == nil {
		return KindData
	}
	return in.Kind()
}

// ── Cycle detection ───────────────────────────────────────────────────────────

type resolveStackContextKey struct{}

func resolveStack(ctx context.Context) []string {
	stack, _ := ctx.Value(resolveStackContextKey{}).([]string)
	return stack
}

func pushResolveStack(ctx context.Context, alias string) (context.Context, error) {
	stack := resolveStack(ctx)
	for i := range stack {
		if stack[i] == alias {
			cycle := append([]string(nil), stack[i:]...)
			cycle = append(cycle, alias)
			return nil, CycleDetectedError{Path: cycle}
		}
	}
	next := make([]string, 0, len(stack)+1)
	next = append(next, stack...)
	next = append(next, alias)
	return context.WithValue(ctx, resolveStackContextKey{}, next), nil
}

// await records that the alias below the top of stack is waiting on the
// top one. A build only sees its own goroutine's stack, so before the wait
// is recorded the waits of every other build are followed from the top
// alias: reaching an alias of this stack means two builds would wait on each
// other forever, and that is reported as a cycle instead.
func (b *Builder) await(stack []string) (release func(), err error) {
	n := len(stack)
	if n < 2 {
		return func() {}, nil
	}
	from, to := stack[n-2], stack[n-1]

	b.waitMu.Lock()
	defer b.waitMu.Unlock()
	if cycle := b.waitCycle(stack); cycle != nil {
		return nil, CycleDetectedError{Path: cycle}
	}
	if b.waits[from] == nil {
		b.waits[from] = make(map[string]int)
	}
	b.waits[from][to]++

	return func() {
		b.waitMu.Lock()
		defer b.waitMu.Unlock()
		if b.waits[from][to]--; b.waits[from][to] <= 0 {
			delete(b.waits[from], to)
		}
		if len(b.waits[from]) == 0 {
			delete(b.waits, from)
		}
	}, nil
}

// waitCycle follows recorded waits from the top of stack and returns the
// closed path if one leads back into stack. Caller holds waitMu.
func (b *Builder) waitCycle(stack []string) []string {
	top := len(stack) - 1
	index := make(map[string]int, top)
	for i, alias := range stack[:top] {
		index[alias] = i
	}

	seen := map[string]bool{}
	var walk func(alias string, path []string) []string
	walk = func(alias string, path []string) []string {
		if i, ok := index[alias]; ok {
			return append(slices.Clone(stack[i:]), path...)
		}
		if seen[alias] {
			return nil
		}
		seen[alias] = true
		for _, next := range slices.Sorted(maps.Keys(b.waits[alias])) {
			if cycle := walk(next, append(path, next)); cycle != nil {
				return cycle
			}
		}
		return nil
	}
	return walk(stack[top], nil)
}

// reenter drops alias from the top of the resolve stack so a callback that
// rebinds its own alias can resolve it again.
func reenter(ctx context.Context, alias string) context.Context {
	stack := resolveStack(ctx)
	if n := len(stack); n > 0 && stack[n-1] == alias {
		return context.WithValue(ctx, resolveStackContextKey{}, stack[:n-1:n-1])
	}
	return ctx
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve calls Get and asserts the result to T.
//
//	logger, err := builder.Resolve[*logging.FileLogger](ctx, b, "logger")
func Resolve[T any](ctx context.Context, b *Builder, alias string) (T, error) {
	var zero T
	v, err := b.Get(ctx, alias)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, TypeMismatchError{
			Alias:    alias,
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Actual:   fmt.Sprintf("%T", v),
		}
	}
	return typed, nil
}
