package builder

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// ── Type ──────────────────────────────────────────────────────────────────────

// Type is the construction recipe a Class instruction refers to by name.
//
// New builds the instance from the resolved construct arguments. Properties
// and Methods are explicit setter / caller tables used after construction.
type Type struct {
	New        func(args []any) (any, error)
	Properties map[string]func(obj, value any) error
	Methods    map[string]func(obj any, args []any) error

	name       string
	reflective bool
}

// PropertySetter lets an instance accept property assignments by name.
type PropertySetter interface {
	SetProperty(name string, value any) error
}

// MethodCaller lets an instance accept method calls by name.
type MethodCaller interface {
	CallMethod(name string, args []any) error
}

// TypeOf adapts a Go constructor function into a Type.
//
// The constructor may take any parameters (variadic included) and must
// return (T) or (T, error). Properties and methods not listed in the tables
// fall back to exported fields and exported methods of the instance.
//
//	b.RegisterType("FileLogger", builder.TypeOf(logging.NewFileLogger))
func TypeOf(constructor any) *Type {
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("builder: TypeOf expects a function, got %T", constructor))
	}
	name := fn.Type().String()
	return &Type{
		New: func(args []any) (any, error) {
			return invoke(name, fn, args)
		},
		reflective: true,
	}
}

// Property adds an explicit property setter and returns t for chaining.
func (t *Type) Property(name string, set func(obj, value any) error) *Type {
	if t.Properties == nil {
		t.Properties = make(map[string]func(obj, value any) error)
	}
	t.Properties[name] = set
	return t
}

// Method adds an explicit method caller and returns t for chaining.
func (t *Type) Method(name string, call func(obj any, args []any) error) *Type {
	if t.Methods == nil {
		t.Methods = make(map[string]func(obj any, args []any) error)
	}
	t.Methods[name] = call
	return t
}

func (t *Type) setProperty(obj any, name string, value any) error {
	if set, ok := t.Properties[name]; ok {
		return set(obj, value)
	}
	if ps, ok := obj.(PropertySetter); ok {
		return ps.SetProperty(name, value)
	}
	if t.reflective {
		if ok, err := setField(obj, name, value); ok {
			return err
		}
	}
	return UnknownMemberError{Type: t.name, Member: name, Kind: "property"}
}

func (t *Type) callMethod(obj any, name string, args []any) error {
	if call, ok := t.Methods[name]; ok {
		return call(obj, args)
	}
	if mc, ok := obj.(MethodCaller); ok {
		return mc.CallMethod(name, args)
	}
	if t.reflective {
		if m := reflect.ValueOf(obj).MethodByName(exported(name)); m.IsValid() {
			_, err := invoke(t.name+"."+name, m, args)
			return err
		}
	}
	return UnknownMemberError{Type: t.name, Member: name, Kind: "method"}
}

// ── Reflect helpers ───────────────────────────────────────────────────────────

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invoke calls fn with args converted to its parameter types. Results of
// shape (), (T), (error), (T, error) are supported.
func invoke(target string, fn reflect.Value, args []any) (any, error) {
	ft := fn.Type()
	in, err := convertArgs(target, ft, args)
	if err != nil {
		return nil, err
	}
	out := fn.Call(in)

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if ft.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("builder: %s must return (T) or (T, error)", target)
		}
		if err := asError(out[1]); err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		return nil, fmt.Errorf("builder: %s returns %d values", target, len(out))
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func convertArgs(target string, ft reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("builder: %s takes at least %d arguments, got %d", target, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("builder: %s takes %d arguments, got %d", target, fixed, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = ft.In(i)
		} else {
			pt = ft.In(fixed).Elem()
		}
		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, ArgumentError{Target: target, Index: i, Want: pt.String(), Got: fmt.Sprintf("%T", arg)}
		}
		in[i] = v
	}
	return in, nil
}

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		out := v.Convert(t)
		if !out.CanFloat() && !sameNumber(v, out) {
			return reflect.Value{}, fmt.Errorf("%v does not fit in %s", arg, t)
		}
		return out, nil
	}
	if v.Kind() == reflect.Slice && t.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := convertArg(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}

// sameNumber reports whether a conversion of v to out kept its value.
func sameNumber(v, out reflect.Value) bool {
	return out.Convert(v.Type()).Equal(v) && negative(v) == negative(out)
}

func negative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// setField assigns an exported struct field. ok is false when obj has no
// such field.
func setField(obj any, name string, value any) (ok bool, err error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return false, nil
	}
	f := v.Elem().FieldByName(exported(name))
	if !f.IsValid() || !f.CanSet() {
		return false, nil
	}
	val, err := convertArg(value, f.Type())
	if err != nil {
		return true, ArgumentError{Target: "property " + name, Want: f.Type().String(), Got: fmt.Sprintf("%T", value)}
	}
	f.Set(val)
	return true, nil
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
