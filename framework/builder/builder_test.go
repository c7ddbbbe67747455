package builder_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-builder/framework/builder"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type fileLogger struct {
	Path   string
	Prefix string
	Level  string
	calls  []string
}

func newFileLogger(path string) *fileLogger {
	return &fileLogger{Path: path}
}

func (l *fileLogger) Named(prefix string) {
	l.Prefix = prefix
	l.calls = append(l.calls, "Named")
}

func (l *fileLogger) WithLevel(level string) {
	l.Level = level
	l.calls = append(l.calls, "WithLevel")
}

type service struct {
	Logger  *fileLogger
	Name    string
	Retries int
}

func newService(l *fileLogger, name string, retries int) *service {
	return &service{Logger: l, Name: name, Retries: retries}
}

func loggerInstruction(path string) builder.Class {
	return builder.Class{
		Name:      "FileLogger",
		Construct: []builder.Instruction{builder.String{Value: path}},
	}
}

func newBuilder(t *testing.T, opts ...builder.Option) *builder.Builder {
	t.Helper()
	b := builder.New(opts...)
	b.RegisterType("FileLogger", builder.TypeOf(newFileLogger))
	b.RegisterType("Service", builder.TypeOf(newService))
	return b
}

// ── Example from the package docs ─────────────────────────────────────────────

func TestLoggerAlias_DefaultConfigReusesInstance(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t)
	b.Merge(builder.Instructions{"logger": loggerInstruction("/tmp/log")})

	first, err := b.Get(ctx, "logger")
	require.NoError(t, err)
	second, err := b.Get(ctx, "logger")
	require.NoError(t, err)

	assert.True(t, b.Has("logger"))
	assert.Same(t, first, second)
	assert.Equal(t, "/tmp/log", first.(*fileLogger).Path)

	_, err = b.Get(ctx, "missing")
	var unresolved builder.UnresolvedAliasError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "missing", unresolved.Alias)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func TestGet_SharedInstanceWhenCloneDisabled(t *testing.T) {
	b := newBuilder(t, builder.WithConfig(builder.Config{New: false, Clone: false}))
	b.Merge(builder.Instructions{"logger": loggerInstruction("/var/log/app")})

	a, err := b.Get(context.Background(), "logger")
	require.NoError(t, err)
	c, err := b.Get(context.Background(), "logger")
	require.NoError(t, err)

	assert.True(t, a == c, "clone=false should hand out the cached instance")
	cached, ok := b.Resolved("logger")
	require.True(t, ok)
	assert.True(t, cached == a)
}

func TestGet_CloneIsolation(t *testing.T) {
	b := newBuilder(t, builder.WithConfig(builder.Config{Clone: true}))
	b.Merge(builder.Instructions{"logger": loggerInstruction("/var/log/app")})

	a, err := builder.Resolve[*fileLogger](context.Background(), b, "logger")
	require.NoError(t, err)
	c, err := builder.Resolve[*fileLogger](context.Background(), b, "logger")
	require.NoError(t, err)

	require.NotSame(t, a, c)
	assert.Equal(t, *a, *c, "copies start from equal state")

	a.Path = "/changed"
	assert.Equal(t, "/var/log/app", c.Path)

	cached, _ := b.Resolved("logger")
	assert.Equal(t, "/var/log/app", cached.(*fileLogger).Path, "cached instance must not be affected")
}

func TestGet_InstructionOverridesConfig(t *testing.T) {
	b := newBuilder(t, builder.WithConfig(builder.Config{Clone: true}))
	in := loggerInstruction("/x")
	in.Clone = builder.Ptr(false)
	b.Merge(builder.Instructions{"logger": in})

	a := b.MustGet(context.Background(), "logger")
	c := b.MustGet(context.Background(), "logger")
	assert.True(t, a == c)

	copied := loggerInstruction("/y")
	copied.Clone = builder.Ptr(true)
	b = newBuilder(t)
	b.Merge(builder.Instructions{"logger": copied})
	a = b.MustGet(context.Background(), "logger")
	c = b.MustGet(context.Background(), "logger")
	assert.NotSame(t, a, c, "an instruction-level clone applies under the shared default")
}

func TestGet_NewBuildsEveryTimeAndNeverCaches(t *testing.T) {
	var builds int32
	b := builder.New()
	b.RegisterType("Counter", builder.TypeOf(func() *service {
		atomic.AddInt32(&builds, 1)
		return &service{}
	}))
	b.Merge(builder.Instructions{"counter": builder.Class{Name: "Counter", New: builder.Ptr(true)}})

	seen := map[*service]bool{}
	for i := 0; i < 3; i++ {
		v, err := builder.Resolve[*service](context.Background(), b, "counter")
		require.NoError(t, err)
		seen[v] = true
	}

	assert.Len(t, seen, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&builds))
	_, ok := b.Resolved("counter")
	assert.False(t, ok, "new=true must not populate the cache")
}

func TestGet_ConfigNewAppliesToAllClasses(t *testing.T) {
	b := newBuilder(t)
	_, err := b.MergeConfig(map[string]any{"new": true})
	require.NoError(t, err)
	b.Merge(builder.Instructions{"logger": loggerInstruction("/x")})

	_, err = b.Get(context.Background(), "logger")
	require.NoError(t, err)
	_, ok := b.Resolved("logger")
	assert.False(t, ok)
}

func TestGet_ConcurrentFirstResolutionBuildsOnce(t *testing.T) {
	var builds int32
	b := builder.New(builder.WithConfig(builder.Config{Clone: false}))
	b.RegisterType("Slow", builder.TypeOf(func() *service {
		atomic.AddInt32(&builds, 1)
		time.Sleep(20 * time.Millisecond)
		return &service{Name: "slow"}
	}))
	b.Merge(builder.Instructions{"slow": builder.Class{Name: "Slow"}})

	const n = 32
	results := make([]any, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := b.Get(context.Background(), "slow")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for i := 1; i < n; i++ {
		assert.True(t, results[0] == results[i], "all callers should share one instance")
	}
}

// ── Dispatch ──────────────────────────────────────────────────────────────────

func TestDispatch_ClassWinsOverAlias(t *testing.T) {
	b := newBuilder(t)
	b.Set("other", "should not be used")

	in, err := builder.Decode(map[string]any{
		"alias":     "other",
		"class":     "FileLogger",
		"construct": []any{map[string]any{"string": "/from/class"}},
	})
	require.NoError(t, err)
	require.Equal(t, builder.KindClass, in.Kind())

	v, err := b.Make(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "/from/class", v.(*fileLogger).Path)
}

func TestMake_RecursiveConstructionInDeclaredOrder(t *testing.T) {
	b := newBuilder(t)
	b.Merge(builder.Instructions{
		"logger": loggerInstruction("/var/log/billing"),
		"service": builder.Class{
			Name: "Service",
			Construct: []builder.Instruction{
				builder.Alias{Name: "logger"},
				builder.String{Value: "billing"},
				builder.Integer{Value: "3"},
			},
		},
	})

	svc, err := builder.Resolve[*service](context.Background(), b, "service")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/billing", svc.Logger.Path)
	assert.Equal(t, "billing", svc.Name)
	assert.Equal(t, 3, svc.Retries)

	_, ok := b.Resolved("logger")
	assert.True(t, ok, "nested alias should have been resolved and cached")
}

func TestMake_PropertiesThenMethodsInOrder(t *testing.T) {
	b := newBuilder(t)
	v, err := b.Make(context.Background(), builder.Class{
		Name:      "FileLogger",
		Construct: []builder.Instruction{builder.String{Value: "/x"}},
		Properties: []builder.Assignment{
			{Name: "prefix", Value: builder.String{Value: "from-property"}},
		},
		Methods: []builder.Call{
			{Name: "withLevel", Arguments: []builder.Instruction{builder.String{Value: "debug"}}},
			{Name: "Named", Arguments: []builder.Instruction{builder.String{Value: "from-method"}}},
		},
	})
	require.NoError(t, err)

	l := v.(*fileLogger)
	assert.Equal(t, "from-method", l.Prefix, "methods run after properties")
	assert.Equal(t, "debug", l.Level)
	assert.Equal(t, []string{"WithLevel", "Named"}, l.calls)
}

func TestMake_UnknownMember(t *testing.T) {
	b := newBuilder(t)
	_, err := b.Make(context.Background(), builder.Class{
		Name:      "FileLogger",
		Construct: []builder.Instruction{builder.String{Value: "/x"}},
		Methods:   []builder.Call{{Name: "rotate"}},
	})
	var member builder.UnknownMemberError
	require.ErrorAs(t, err, &member)
	assert.Equal(t, "rotate", member.Member)
	assert.Equal(t, "method", member.Kind)
}

func TestMake_UnknownType(t *testing.T) {
	b := builder.New()
	_, err := b.Make(context.Background(), builder.Class{Name: "Nope"})
	var unknown builder.UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Nope", unknown.Name)
}

func TestMake_Primitives(t *testing.T) {
	b := builder.New()
	ctx := context.Background()

	tests := []struct {
		name string
		in   builder.Instruction
		want any
	}{
		{"string from int", builder.String{Value: 12}, "12"},
		{"integer from string", builder.Integer{Value: "42"}, 42},
		{"integer from zero-padded string", builder.Integer{Value: "010"}, 10},
		{"integer from padded eight", builder.Integer{Value: "08"}, 8},
		{"integer from negative string", builder.Integer{Value: " -7 "}, -7},
		{"float from string", builder.Float{Value: "1.5"}, 1.5},
		{"bool from string", builder.Bool{Value: "true"}, true},
		{"array from typed slice", builder.Array{Value: []string{"a", "b"}}, []any{"a", "b"}},
		{"array from scalar", builder.Array{Value: "solo"}, []any{"solo"}},
		{"array from nil", builder.Array{}, []any{}},
		{"array keeps maps", builder.Array{Value: map[string]any{"k": 1}}, map[string]any{"k": 1}},
		{"data passes through", builder.Data{Value: []int{1, 2}}, []int{1, 2}},
		{"nested unwraps", builder.Nested{Instruction: builder.String{Value: "inner"}}, "inner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Make(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMake_CoercionError(t *testing.T) {
	for _, raw := range []string{"forty", "0x10", "1e3"} {
		_, err := builder.New().Make(context.Background(), builder.Integer{Value: raw})
		var coerce builder.CoercionError
		require.ErrorAs(t, err, &coerce, raw)
		assert.Equal(t, builder.KindInteger, coerce.Kind)
		assert.Equal(t, raw, coerce.Value)
	}
}

func TestGet_NestedInstructionCachedUnderAlias(t *testing.T) {
	b := builder.New()
	b.Merge(builder.Instructions{
		"settings": builder.Nested{Instruction: builder.Object{Fields: map[string]any{"debug": true}}},
	})
	ctx := context.Background()

	first := b.MustGet(ctx, "settings").(map[string]any)
	first["debug"] = false
	second := b.MustGet(ctx, "settings").(map[string]any)
	assert.Equal(t, false, second["debug"], "the nested object is the shared cached value")
	_, ok := b.Resolved("settings")
	assert.True(t, ok)
}

func TestMake_ReflectionAlwaysFails(t *testing.T) {
	_, err := builder.New().Make(context.Background(), builder.Reflection{Name: "Thing"})
	var unresolved builder.UnresolvedAliasError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "Thing", unresolved.Alias)
}

func TestMake_NilInstruction(t *testing.T) {
	_, err := builder.New().Make(context.Background(), nil)
	var unknown builder.UnknownKindError
	require.ErrorAs(t, err, &unknown)
}

// ── Object ────────────────────────────────────────────────────────────────────

func TestObject_CachedAndClonedPerPolicy(t *testing.T) {
	b := builder.New()
	b.Merge(builder.Instructions{
		"settings": builder.Object{Fields: map[string]any{"debug": true}, Clone: builder.Ptr(true)},
		"shared":   builder.Object{Fields: map[string]any{"debug": true}},
	})
	ctx := context.Background()

	a := b.MustGet(ctx, "settings").(map[string]any)
	c := b.MustGet(ctx, "settings").(map[string]any)
	assert.Equal(t, a, c)
	a["debug"] = false
	assert.Equal(t, true, c["debug"])

	s1 := b.MustGet(ctx, "shared").(map[string]any)
	s2 := b.MustGet(ctx, "shared").(map[string]any)
	s1["debug"] = false
	assert.Equal(t, false, s2["debug"], "clone=false should share the map")
}

func TestObject_CloneCopiesNestedData(t *testing.T) {
	fields := map[string]any{
		"db":    map[string]any{"host": "primary"},
		"ports": []any{80, 443},
	}
	b := builder.New(builder.WithConfig(builder.Config{Clone: true}))
	b.Merge(builder.Instructions{"settings": builder.Object{Fields: fields}})
	ctx := context.Background()

	first := b.MustGet(ctx, "settings").(map[string]any)
	first["db"].(map[string]any)["host"] = "replica"
	first["ports"].([]any)[0] = 8080

	second := b.MustGet(ctx, "settings").(map[string]any)
	assert.Equal(t, map[string]any{"host": "primary"}, second["db"])
	assert.Equal(t, []any{80, 443}, second["ports"])
	assert.Equal(t, "primary", fields["db"].(map[string]any)["host"], "the instruction itself is untouched")
}

// ── Callback ──────────────────────────────────────────────────────────────────

type ctxKey struct{}

func TestCallback_FuncNamedAndContext(t *testing.T) {
	b := builder.New()
	b.RegisterFunc("join", func(ctx context.Context, a, c string) string {
		return ctx.Value(ctxKey{}).(string) + a + c
	})
	ctx := context.WithValue(context.Background(), ctxKey{}, ">")

	v, err := b.Make(ctx, builder.Callback{
		Name:      "join",
		Arguments: []builder.Instruction{builder.String{Value: "a"}, builder.String{Value: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ">ab", v)

	v, err = b.Make(ctx, builder.Callback{Func: func() (int, error) { return 7, nil }})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = b.Make(ctx, builder.Callback{Name: "missing"})
	var unknown builder.UnknownCallableError
	require.ErrorAs(t, err, &unknown)
}

func TestCallback_NeverCached(t *testing.T) {
	var calls int
	b := builder.New()
	b.Merge(builder.Instructions{"tick": builder.Callback{Func: func() int { calls++; return calls }}})

	assert.Equal(t, 1, b.MustGet(context.Background(), "tick"))
	assert.Equal(t, 2, b.MustGet(context.Background(), "tick"))
	_, ok := b.Resolved("tick")
	assert.False(t, ok)
}

func TestCallback_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	b := builder.New()
	_, err := b.Make(context.Background(), builder.Callback{Func: func() (any, error) { return nil, boom }})
	assert.ErrorIs(t, err, boom)
}

// ── Alias / Set / cycles ──────────────────────────────────────────────────────

func TestAlias_ChainsToTargetLifecycle(t *testing.T) {
	b := newBuilder(t, builder.WithConfig(builder.Config{Clone: false}))
	b.Merge(builder.Instructions{
		"logger": loggerInstruction("/x"),
		"log":    builder.Alias{Name: "logger"},
	})

	a := b.MustGet(context.Background(), "log")
	c := b.MustGet(context.Background(), "logger")
	assert.True(t, a == c)
	_, ok := b.Resolved("log")
	assert.False(t, ok, "the alias itself is not a cache slot")
}

func TestSet_InjectedValueAndSelf(t *testing.T) {
	b := builder.New()
	b.Set("clock", "fixed")

	assert.Equal(t, "fixed", b.MustGet(context.Background(), "clock"))
	assert.False(t, b.Has("clock"), "Has reports registry entries only")
	assert.True(t, b.MustGet(context.Background(), builder.SelfAlias) == b)
	assert.Contains(t, b.Aliases(), "clock")
}

func TestSet_PrebuiltValueServesClassAlias(t *testing.T) {
	b := newBuilder(t, builder.WithConfig(builder.Config{Clone: false}))
	b.Merge(builder.Instructions{"logger": loggerInstruction("/built")})
	injected := newFileLogger("/injected")
	b.Set("logger", injected)

	assert.True(t, b.MustGet(context.Background(), "logger") == injected)
}

func TestGet_CycleDetected(t *testing.T) {
	b := newBuilder(t)
	b.Merge(builder.Instructions{
		"a": builder.Alias{Name: "b"},
		"b": builder.Alias{Name: "a"},
		"self": builder.Class{
			Name:      "Service",
			Construct: []builder.Instruction{builder.Alias{Name: "self"}, builder.String{}, builder.Integer{Value: 0}},
		},
	})

	_, err := b.Get(context.Background(), "a")
	var cycle builder.CycleDetectedError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)

	_, err = b.Get(context.Background(), "self")
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"self", "self"}, cycle.Path)
}

func TestGet_CycleAcrossConcurrentCallers(t *testing.T) {
	type pair struct{ peer any }
	b := builder.New()
	b.RegisterType("Pair", builder.TypeOf(func(peer any) *pair { return &pair{peer: peer} }))

	// Both builds are running before either asks for the other.
	var entered sync.WaitGroup
	entered.Add(2)
	peer := func(alias string) builder.Instruction {
		var once sync.Once
		return builder.Callback{Func: func(ctx context.Context) (any, error) {
			once.Do(func() {
				entered.Done()
				entered.Wait()
			})
			return b.Get(ctx, alias)
		}}
	}
	b.Merge(builder.Instructions{
		"a": builder.Class{Name: "Pair", Construct: []builder.Instruction{peer("b")}},
		"b": builder.Class{Name: "Pair", Construct: []builder.Instruction{peer("a")}},
	})

	errs := make(chan error, 2)
	for _, alias := range []string{"a", "b"} {
		go func() {
			_, err := b.Get(context.Background(), alias)
			errs <- err
		}()
	}

	for range 2 {
		select {
		case err := <-errs:
			var cycle builder.CycleDetectedError
			require.ErrorAs(t, err, &cycle)
			require.Len(t, cycle.Path, 3)
			assert.Equal(t, cycle.Path[0], cycle.Path[2])
		case <-time.After(2 * time.Second):
			t.Fatal("concurrent Get on a <-> b did not return")
		}
	}
	_, ok := b.Resolved("a")
	assert.False(t, ok)
	_, ok = b.Resolved("b")
	assert.False(t, ok)
}

func TestResolve_TypeMismatch(t *testing.T) {
	b := builder.New()
	b.Set("n", 1)
	_, err := builder.Resolve[string](context.Background(), b, "n")
	var mismatch builder.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "string", mismatch.Expected)
	assert.Equal(t, "int", mismatch.Actual)
}

// ── Modules ───────────────────────────────────────────────────────────────────

func TestRequire_LoadsOncePerPath(t *testing.T) {
	var loads int32
	loader := builder.LoaderFunc(func(_ context.Context, path string, r builder.Registrar) error {
		atomic.AddInt32(&loads, 1)
		r.RegisterType("Plugin", builder.TypeOf(func() string { return "plugin from " + path }))
		return nil
	})
	b := builder.New(builder.WithLoader(loader))
	in := builder.Class{Name: "Plugin", Require: "plugins/plugin.go"}

	for i := 0; i < 3; i++ {
		v, err := b.Make(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "plugin from plugins/plugin.go", v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestRequire_MissingDependency(t *testing.T) {
	loader := builder.LoaderFunc(func(_ context.Context, path string, _ builder.Registrar) error {
		return builder.MissingDependencyError{Path: path}
	})
	b := builder.New(builder.WithLoader(loader))
	b.Merge(builder.Instructions{"plugin": builder.Class{Name: "Plugin", Require: "nope.go"}})

	_, err := b.Get(context.Background(), "plugin")
	var missing builder.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nope.go", missing.Path)
}

func TestRequire_NoLoader(t *testing.T) {
	_, err := builder.New().Make(context.Background(), builder.Class{Name: "X", Require: "x.go"})
	assert.ErrorIs(t, err, builder.ErrNoLoader)
}

// ── Config ────────────────────────────────────────────────────────────────────

func TestMergeConfig(t *testing.T) {
	b := builder.New()

	got, err := b.MergeConfig(map[string]any{"new": "true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"new": true, "clone": false}, got)

	_, err = b.MergeConfig(map[string]any{"cache": true})
	require.Error(t, err)
	assert.Equal(t, builder.Config{New: true, Clone: false}, b.Config(), "a failed merge changes nothing")
}

func TestMerge_LaterEntriesOverwrite(t *testing.T) {
	b := builder.New()
	b.Merge(builder.Instructions{"name": builder.String{Value: "first"}, "keep": builder.Bool{Value: true}})
	all := b.Merge(builder.Instructions{"name": builder.String{Value: "second"}})

	assert.Len(t, all, 2)
	assert.Equal(t, "second", b.MustGet(context.Background(), "name"))
}

// ── Logging ───────────────────────────────────────────────────────────────────

func TestLogging_TracesCacheStoreAndHit(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := newBuilder(t, builder.WithLogger(zap.New(core)))
	b.Merge(builder.Instructions{"logger": loggerInstruction("/x")})

	b.MustGet(context.Background(), "logger")
	b.MustGet(context.Background(), "logger")

	assert.Equal(t, 1, logs.FilterMessage("cache store").Len())
	assert.Equal(t, 1, logs.FilterMessage("cache hit").Len())
	assert.Equal(t, 2, logs.FilterMessage("resolve alias").FilterField(zap.String("alias", "logger")).Len())
}
