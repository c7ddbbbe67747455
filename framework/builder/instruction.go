package builder

// ── Kinds ─────────────────────────────────────────────────────────────────────

// Kind identifies which construction rule handles an Instruction.
type Kind int

const (
	KindClass Kind = iota
	KindReflection
	KindObject
	KindAlias
	KindCallback
	KindArray
	KindString
	KindInteger
	KindFloat
	KindBool
	KindInstruction
	KindData
)

var kindNames = [...]string{
	KindClass:       "class",
	KindReflection:  "reflection",
	KindObject:      "object",
	KindAlias:       "alias",
	KindCallback:    "callback",
	KindArray:       "array",
	KindString:      "string",
	KindInteger:     "integer",
	KindFloat:       "float",
	KindBool:        "bool",
	KindInstruction: "instruction",
	KindData:        "data",
}

// String returns the map-form key of the kind ("class", "alias", ...).
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// priority is the order in which kind keys are sniffed in map-form
// instructions. The first key present wins.
var priority = []Kind{
	KindClass,
	KindReflection,
	KindObject,
	KindAlias,
	KindCallback,
	KindArray,
	KindString,
	KindInteger,
	KindFloat,
	KindBool,
	KindInstruction,
}

// ── Instruction ───────────────────────────────────────────────────────────────

// Instruction describes how to produce one value.
//
// It is a closed set: Class, Reflection, Object, Alias, Callback, Array,
// String, Integer, Float, Bool, Nested and Data.
type Instruction interface {
	Kind() Kind
	instruction()
}

// Instructions maps aliases to their instructions.
type Instructions map[string]Instruction

// Assignment sets one property after construction.
type Assignment struct {
	Name  string
	Value Instruction
}

// Call invokes one method after construction.
type Call struct {
	Name      string
	Arguments []Instruction
}

// Class builds an instance of a registered Type.
//
//	builder.Class{
//	    Name:      "FileLogger",
//	    Construct: []builder.Instruction{builder.String{Value: "/tmp/log"}},
//	}
type Class struct {
	Name       string
	Require    string
	Construct  []Instruction
	Properties []Assignment
	Methods    []Call

	// New and Clone override Config when non-nil.
	New   *bool
	Clone *bool
}

// Reflection is a reference to a name with no construction rule. Resolving
// it always fails.
type Reflection struct {
	Name string
}

// Object builds a literal structured value (map[string]any).
type Object struct {
	Fields map[string]any
	New    *bool
	Clone  *bool
}

// Alias resolves another registry entry.
type Alias struct {
	Name string
}

// Callback invokes Func, or the function registered as Name, with the
// resolved Arguments.
type Callback struct {
	Func      any
	Name      string
	Arguments []Instruction
}

// Array coerces Value to []any (or keeps a map as is).
type Array struct{ Value any }

// String coerces Value to string.
type String struct{ Value any }

// Integer coerces Value to int.
type Integer struct{ Value any }

// Float coerces Value to float64.
type Float struct{ Value any }

// Bool coerces Value to bool.
type Bool struct{ Value any }

// Nested unwraps one level of indirection.
type Nested struct {
	Instruction Instruction
}

// Data is returned verbatim.
type Data struct {
	Value any
}

func (Class) Kind() Kind      { return KindClass }
func (Reflection) Kind() Kind { return KindReflection }
func (Object) Kind() Kind     { return KindObject }
func (Alias) Kind() Kind      { return KindAlias }
func (Callback) Kind() Kind   { return KindCallback }
func (Array) Kind() Kind      { return KindArray }
func (String) Kind() Kind     { return KindString }
func (Integer) Kind() Kind    { return KindInteger }
func (Float) Kind() Kind      { return KindFloat }
func (Bool) Kind() Kind       { return KindBool }
func (Nested) Kind() Kind     { return KindInstruction }
func (Data) Kind() Kind       { return KindData }

func (Class) instruction()      {}
func (Reflection) instruction() {}
func (Object) instruction()     {}
func (Alias) instruction()      {}
func (Callback) instruction()   {}
func (Array) instruction()      {}
func (String) instruction()     {}
func (Integer) instruction()    {}
func (Float) instruction()      {}
func (Bool) instruction()       {}
func (Nested) instruction()     {}
func (Data) instruction()       {}

// Ptr returns a pointer to v. Handy for the New / Clone overrides.
//
//	builder.Class{Name: "Conn", New: builder.Ptr(true)}
func Ptr[T any](v T) *T { return &v }
