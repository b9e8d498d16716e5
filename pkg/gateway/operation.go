package gateway

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// ParamType is the semantic type a parameter must carry.
type ParamType int

const (
	// TypeString is a plain string.
	TypeString ParamType = iota
	// TypeStringMap is an object whose values are all strings, such as a
	// column name to column type mapping.
	TypeStringMap
	// TypeValueList is an ordered array of scalar bind values.
	TypeValueList
)

func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeStringMap:
		return "object of strings"
	case TypeValueList:
		return "array"
	default:
		return fmt.Sprintf("ParamType(%d)", int(t))
	}
}

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	// Default applies to optional string parameters left out of the call.
	Default string
}

// Operation is one callable tool: a fixed parameter schema and the SQL it
// runs once the arguments are known to be well formed.
type Operation struct {
	Name        string
	Description string
	Params      []Param
	ReadOnly    bool
	Destructive bool

	// check validates argument values beyond their shape and may normalize
	// them in place. It must not touch the store.
	check func(g *Gateway, in Args) []FieldError
	run   func(g *Gateway, ctx context.Context, in Args) (Result, error)
}

// Args holds arguments that passed the shape check, normalized to string,
// map[string]string or []any.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) StringMap(name string) map[string]string {
	m, _ := a[name].(map[string]string)
	return m
}

func (a Args) Values(name string) []any {
	v, _ := a[name].([]any)
	return v
}

// bind checks raw against the declared params. Every problem is reported, not
// just the first one.
func (op Operation) bind(raw map[string]any) (Args, []FieldError) {
	var problems []FieldError
	in := make(Args, len(op.Params))
	known := make(map[string]bool, len(op.Params))

	for _, p := range op.Params {
		known[p.Name] = true

		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				problems = append(problems, FieldError{Field: p.Name, Problem: "required"})
			} else if p.Default != "" {
				in[p.Name] = p.Default
			}
			continue
		}

		nv, errs := coerce(p, v)
		if len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		if p.Required && isEmpty(nv) {
			problems = append(problems, FieldError{Field: p.Name, Problem: "must not be empty"})
			continue
		}
		if !p.Required && isEmpty(nv) && p.Default != "" {
			nv = p.Default
		}
		in[p.Name] = nv
	}

	var unexpected []string
	for k := range raw {
		if !known[k] {
			unexpected = append(unexpected, k)
		}
	}
	sort.Strings(unexpected)
	for _, k := range unexpected {
		problems = append(problems, FieldError{Field: k, Problem: "unexpected field"})
	}

	return in, problems
}

func coerce(p Param, v any) (any, []FieldError) {
	mismatch := func() []FieldError {
		return []FieldError{{
			Field:   p.Name,
			Problem: fmt.Sprintf("expected %s, got %s", p.Type, jsonType(v)),
		}}
	}

	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		return s, nil

	case TypeStringMap:
		switch m := v.(type) {
		case map[string]string:
			return m, nil
		case map[string]any:
			var problems []FieldError
			out := make(map[string]string, len(m))
			for k, mv := range m {
				s, ok := mv.(string)
				if !ok {
					problems = append(problems, FieldError{
						Field:   p.Name + "." + k,
						Problem: fmt.Sprintf("expected string, got %s", jsonType(mv)),
					})
					continue
				}
				out[k] = s
			}
			sort.Slice(problems, func(i, j int) bool { return problems[i].Field < problems[j].Field })
			return out, problems
		default:
			return nil, mismatch()
		}

	case TypeValueList:
		list, ok := v.([]any)
		if !ok {
			return nil, mismatch()
		}
		var problems []FieldError
		out := make([]any, len(list))
		for i, item := range list {
			bv, err := bindValue(item)
			if err != nil {
				problems = append(problems, FieldError{
					Field:   fmt.Sprintf("%s[%d]", p.Name, i),
					Problem: err.Error(),
				})
				continue
			}
			out[i] = bv
		}
		return out, problems
	}

	return nil, []FieldError{{Field: p.Name, Problem: fmt.Sprintf("unsupported parameter type %s", p.Type)}}
}

// bindValue converts a decoded argument into a value the driver binds.
// Integral JSON numbers become int64 so they round-trip as integers.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, int64, []byte:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return bindValue(float64(x))
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), nil
		}
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported bind value of type %s", jsonType(v))
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	case map[string]any, map[string]string:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case map[string]string:
		return len(x) == 0
	}
	return false
}
