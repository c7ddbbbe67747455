package builder

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

func (b *Builder) makeClass(ctx context.Context, alias string, in Class) (any, error) {
	return b.cached(ctx, alias, in.New, in.Clone, func(ctx context.Context) (any, error) {
		obj, err := b.construct(ctx, in)
		if err != nil {
			if alias != "" {
				return nil, fmt.Errorf("build %s: %w", alias, err)
			}
			return nil, err
		}
		return obj, nil
	})
}

// construct loads the required module, instantiates the type, then applies
// properties and methods in declaration order.
func (b *Builder) construct(ctx context.Context, in Class) (any, error) {
	if in.Require != "" {
		if err := b.require(ctx, in.Require); err != nil {
			return nil, err
		}
	}

	t, ok := b.lookupType(in.Name)
	if !ok {
		return nil, UnknownTypeError{Name: in.Name}
	}

	args, err := b.MakeAll(ctx, in.Construct)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", in.Name, err)
	}
	obj, err := t.New(args)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", in.Name, err)
	}
	b.log.Debug("constructed", zap.String("type", in.Name), zap.Int("args", len(args)))

	for _, p := range in.Properties {
		v, err := b.dispatch(ctx, "", p.Value)
		if err != nil {
			return nil, fmt.Errorf("property %s.%s: %w", in.Name, p.Name, err)
		}
		if err := t.setProperty(obj, p.Name, v); err != nil {
			return nil, fmt.Errorf("property %s.%s: %w", in.Name, p.Name, err)
		}
	}

	for _, m := range in.Methods {
		margs, err := b.MakeAll(ctx, m.Arguments)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", in.Name, m.Name, err)
		}
		if err := t.callMethod(obj, m.Name, margs); err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", in.Name, m.Name, err)
		}
	}
	return obj, nil
}

func (b *Builder) makeObject(ctx context.Context, alias string, in Object) (any, error) {
	return b.cached(ctx, alias, in.New, in.Clone, func(context.Context) (any, error) {
		if in.Fields == nil {
			return make(map[string]any), nil
		}
		return copyData(in.Fields), nil
	})
}

func (b *Builder) makeCallback(ctx context.Context, in Callback) (any, error) {
	fn := in.Func
	target := in.Name
	if fn == nil {
		var ok bool
		if fn, ok = b.lookupFunc(in.Name); !ok {
			return nil, UnknownCallableError{Name: in.Name}
		}
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("builder: callback %q is %T, not a function", target, fn)
	}
	if target == "" {
		target = rv.Type().String()
	}

	args, err := b.MakeAll(ctx, in.Arguments)
	if err != nil {
		return nil, fmt.Errorf("callback %s: %w", target, err)
	}
	// Functions taking a context first receive the resolution context.
	if ft := rv.Type(); ft.NumIn() > 0 && ft.In(0) == contextType {
		args = append([]any{ctx}, args...)
	}
	return invoke(target, rv, args)
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

func makeArray(in Array) (any, error) {
	if in.Value == nil {
		return []any{}, nil
	}
	if m, ok := in.Value.(map[string]any); ok {
		return copyData(m), nil
	}
	rv := reflect.ValueOf(in.Value)
	switch rv.Kind() {
	case reflect.Map:
		return coerce(KindArray, in.Value, func(v any) (any, error) { return cast.ToStringMapE(v) })
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	// A scalar becomes a one-element list.
	return []any{in.Value}, nil
}

// toInt reads strings in base 10: "010" is 10, "0x10" is an error.
func toInt(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return cast.ToIntE(v)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 0)
	if err != nil {
		return nil, err
	}
	return int(n), nil
}

func coerce(kind Kind, value any, conv func(any) (any, error)) (any, error) {
	v, err := conv(value)
	if err != nil {
		return nil, CoercionError{Kind: kind, Value: value, Err: err}
	}
	return v, nil
}
