package builder

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// entry is one key/value pair of a mapping whose order matters.
type entry struct {
	key   string
	value any
}

// mapping is the order-preserving form of a decoded YAML mapping.
type mapping []entry

func (m mapping) get(key string) (any, bool) {
	for _, e := range m {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

func (m mapping) keys() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.key
	}
	return out
}

// fromMap orders a Go map by key so decoding stays deterministic.
func fromMap(in map[string]any) mapping {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(mapping, len(keys))
	for i, k := range keys {
		out[i] = entry{key: k, value: in[k]}
	}
	return out
}

// ── Decode ────────────────────────────────────────────────────────────────────

// Decode turns the serializable map form of an instruction into an
// Instruction.
//
// A string is an alias reference. A list is positional: its first element
// names an alias. A mapping picks its kind from the first key present in
// the order class, reflection, object, alias, callback, array, string,
// integer, float, bool, instruction. A mapping with none of them is raw data
// holding its first value; since a Go map has no first value, such a map must
// have exactly one entry. Other scalars are raw data.
//
//	in, err := builder.Decode(map[string]any{
//	    "class":     "FileLogger",
//	    "construct": []any{map[string]any{"string": "/tmp/log"}},
//	})
func Decode(v any) (Instruction, error) {
	switch t := v.(type) {
	case Instruction:
		return t, nil
	case string:
		return Alias{Name: t}, nil
	case []any:
		if len(t) == 0 {
			return nil, UnknownKindError{Reason: "empty list"}
		}
		name, ok := t[0].(string)
		if !ok {
			return nil, UnknownKindError{Reason: fmt.Sprintf("positional alias must be a string, got %T", t[0])}
		}
		return Alias{Name: name}, nil
	case map[string]any:
		return decodeMapping(fromMap(t), false)
	case mapping:
		return decodeMapping(t, true)
	case *yaml.Node:
		pv, err := yamlValue(t)
		if err != nil {
			return nil, err
		}
		return Decode(pv)
	default:
		return Data{Value: v}, nil
	}
}

func decodeMapping(m mapping, ordered bool) (Instruction, error) {
	for _, k := range priority {
		if v, ok := m.get(k.String()); ok {
			in, err := decodeKind(k, m, v)
			if err != nil {
				return nil, fmt.Errorf("%s instruction: %w", k, err)
			}
			return in, nil
		}
	}
	switch {
	case len(m) == 0:
		return nil, UnknownKindError{Reason: "empty mapping"}
	case !ordered && len(m) > 1:
		return nil, UnknownKindError{Reason: "no kind key among " + strings.Join(m.keys(), ", ")}
	}
	return Data{Value: plain(m[0].value)}, nil
}

func decodeKind(k Kind, m mapping, v any) (Instruction, error) {
	switch k {
	case KindClass:
		return decodeClass(m, v)
	case KindReflection:
		name, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		return Reflection{Name: name}, nil
	case KindObject:
		fields, ok := plain(v).(map[string]any)
		if !ok && v != nil {
			return nil, fmt.Errorf("object payload must be a mapping, got %T", v)
		}
		newOpt, cloneOpt, err := lifecycle(m)
		if err != nil {
			return nil, err
		}
		return Object{Fields: fields, New: newOpt, Clone: cloneOpt}, nil
	case KindAlias:
		name, err := cast.ToStringE(v)
		if err != nil {
			return nil, err
		}
		return Alias{Name: name}, nil
	case KindCallback:
		args, err := decodeList(m, "argument")
		if err != nil {
			return nil, err
		}
		if name, ok := v.(string); ok {
			return Callback{Name: name, Arguments: args}, nil
		}
		return Callback{Func: v, Arguments: args}, nil
	case KindArray:
		return Array{Value: plain(v)}, nil
	case KindString:
		return String{Value: plain(v)}, nil
	case KindInteger:
		return Integer{Value: plain(v)}, nil
	case KindFloat:
		return Float{Value: plain(v)}, nil
	case KindBool:
		return Bool{Value: plain(v)}, nil
	case KindInstruction:
		inner, err := Decode(v)
		if err != nil {
			return nil, err
		}
		return Nested{Instruction: inner}, nil
	}
	return nil, UnknownKindError{Reason: k.String()}
}

func decodeClass(m mapping, v any) (Instruction, error) {
	name, err := cast.ToStringE(v)
	if err != nil || name == "" {
		return nil, fmt.Errorf("class name must be a non-empty string, got %#v", v)
	}
	c := Class{Name: name}

	if raw, ok := m.get("require"); ok && raw != nil {
		if c.Require, err = cast.ToStringE(raw); err != nil {
			return nil, fmt.Errorf("require: %w", err)
		}
	}
	if c.Construct, err = decodeList(m, "construct"); err != nil {
		return nil, err
	}

	props, err := entries(m, "property")
	if err != nil {
		return nil, err
	}
	for _, p := range props {
		in, err := Decode(p.value)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.key, err)
		}
		c.Properties = append(c.Properties, Assignment{Name: p.key, Value: in})
	}

	methods, err := entries(m, "method")
	if err != nil {
		return nil, err
	}
	for _, me := range methods {
		args, err := decodeInstructions(me.value)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", me.key, err)
		}
		c.Methods = append(c.Methods, Call{Name: me.key, Arguments: args})
	}

	if c.New, c.Clone, err = lifecycle(m); err != nil {
		return nil, err
	}
	return c, nil
}

func lifecycle(m mapping) (newOpt, cloneOpt *bool, err error) {
	for _, key := range []string{"new", "clone"} {
		raw, ok := m.get(key)
		if !ok || raw == nil {
			continue
		}
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}
		if key == "new" {
			newOpt = &v
		} else {
			cloneOpt = &v
		}
	}
	return newOpt, cloneOpt, nil
}

func decodeList(m mapping, key string) ([]Instruction, error) {
	raw, _ := m.get(key)
	ins, err := decodeInstructions(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return ins, nil
}

func decodeInstructions(raw any) ([]Instruction, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case []Instruction:
		return t, nil
	case []any:
		out := make([]Instruction, 0, len(t))
		for i, item := range t {
			in, err := Decode(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, in)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list, got %T", raw)
}

func entries(m mapping, key string) (mapping, error) {
	raw, _ := m.get(key)
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case mapping:
		return t, nil
	case map[string]any:
		return fromMap(t), nil
	}
	return nil, fmt.Errorf("%s: expected a mapping, got %T", key, raw)
}

// plain strips ordering from decoded YAML so payloads are ordinary Go values.
func plain(v any) any {
	switch t := v.(type) {
	case mapping:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.key] = plain(e.value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

// ── YAML manifests ────────────────────────────────────────────────────────────

// DecodeYAML decodes a manifest: a mapping from alias to instruction.
//
//	logger:
//	  class: FileLogger
//	  construct:
//	    - string: /tmp/log
//	  method:
//	    Named: [{string: app}]
func DecodeYAML(data []byte) (Instructions, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Instructions{}, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("builder: decode manifest: %w", err)
	}
	root, err := yamlValue(&doc)
	if err != nil {
		return nil, fmt.Errorf("builder: decode manifest: %w", err)
	}
	m, ok := root.(mapping)
	if !ok {
		return nil, fmt.Errorf("builder: manifest must be a mapping of alias to instruction, got %T", root)
	}

	out := make(Instructions, len(m))
	for _, e := range m {
		in, err := Decode(e.value)
		if err != nil {
			return nil, fmt.Errorf("builder: alias %q: %w", e.key, err)
		}
		out[e.key] = in
	}
	return out, nil
}

// LoadFile reads and decodes one YAML manifest.
func LoadFile(path string) (Instructions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("builder: read manifest %s: %w", path, err)
	}
	ins, err := DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ins, nil
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		out := make(mapping, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: mapping key: %w", n.Content[i].Line, err)
			}
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, entry{key: key, value: v})
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}
