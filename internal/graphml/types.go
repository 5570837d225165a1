package graphml

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/ohler55/ojg/sen"
)

// Kind is the scalar type of an attribute key.
type Kind int

const (
	KindBoolean Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
)

// ErrUnsupportedType is returned when a key declares an attr.type or attr.list
// outside the GraphML scalar set.
var ErrUnsupportedType = errors.New("unsupported attribute type")

// kindOps is the per-kind operation table. parse handles key and data text;
// convert handles one element of a decoded list literal.
type kindOps struct {
	name    string
	zero    any
	parse   func(text string) (any, error)
	convert func(elem any) (any, bool)
}

var kinds = [...]kindOps{
	KindBoolean: {
		name: "boolean",
		zero: false,
		parse: func(text string) (any, error) {
			return strings.EqualFold(strings.TrimSpace(text), "true"), nil
		},
		convert: func(elem any) (any, bool) {
			b, ok := elem.(bool)
			return b, ok
		},
	},
	KindInt: {
		name: "int",
		zero: int32(0),
		parse: func(text string) (any, error) {
			n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
			return int32(n), err
		},
		convert: func(elem any) (any, bool) {
			n, ok := integral(elem)
			if !ok || n < math.MinInt32 || n > math.MaxInt32 {
				return nil, false
			}
			return int32(n), true
		},
	},
	KindLong: {
		name: "long",
		zero: int64(0),
		parse: func(text string) (any, error) {
			return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		},
		convert: func(elem any) (any, bool) {
			return integral(elem)
		},
	},
	KindFloat: {
		name: "float",
		zero: float32(0),
		parse: func(text string) (any, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(text), 32)
			return float32(f), err
		},
		convert: func(elem any) (any, bool) {
			f, ok := floating(elem)
			return float32(f), ok
		},
	},
	KindDouble: {
		name: "double",
		zero: float64(0),
		parse: func(text string) (any, error) {
			return strconv.ParseFloat(strings.TrimSpace(text), 64)
		},
		convert: func(elem any) (any, bool) {
			return floating(elem)
		},
	},
	KindString: {
		name: "string",
		zero: "",
		parse: func(text string) (any, error) {
			return text, nil
		},
		convert: func(elem any) (any, bool) {
			s, ok := elem.(string)
			return s, ok
		},
	},
}

func integral(elem any) (int64, bool) {
	switch n := elem.(type) {
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func floating(elem any) (float64, bool) {
	switch n := elem.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kinds) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}

// ParseKind maps attr.type / attr.list text to a Kind. Empty text is string.
func ParseKind(text string) (Kind, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return KindString, nil
	}
	for k := range kinds {
		if kinds[k].name == t {
			return Kind(k), nil
		}
	}
	return KindString, fmt.Errorf("%w: %q", ErrUnsupportedType, text)
}

// ParseScalar converts text to the Go value for kind: bool, int32, int64,
// float32, float64 or string. Blank text yields the kind's zero value.
func ParseScalar(kind Kind, text string) (any, error) {
	ops := kinds[kind]
	if kind != KindString && strings.TrimSpace(text) == "" {
		return ops.zero, nil
	}
	v, err := ops.parse(text)
	if err != nil {
		return nil, &MalformedValueError{Kind: kind, Text: text, Err: err}
	}
	return v, nil
}

// ParseList decodes a JSON-like array literal and converts every element
// through kind. Elements are never defaulted: a null or mistyped element fails.
func ParseList(kind Kind, text string) ([]any, error) {
	decoded, err := sen.Parse([]byte(text))
	if err != nil {
		return nil, &MalformedValueError{Kind: kind, List: true, Text: text, Err: err}
	}
	elems, ok := decoded.([]any)
	if !ok {
		return nil, &MalformedValueError{Kind: kind, List: true, Text: text, Err: errors.New("not an array literal")}
	}
	out := make([]any, len(elems))
	for i, e := range elems {
		v, ok := kinds[kind].convert(e)
		if !ok {
			return nil, &MalformedValueError{
				Kind: kind, List: true, Text: text,
				Err: fmt.Errorf("element %d (%v) is not a %s", i, e, kind),
			}
		}
		out[i] = v
	}
	return out, nil
}

// FormatScalar renders v the way ParseScalar reads it back.
func FormatScalar(kind Kind, v any) string {
	switch kind {
	case KindFloat:
		if f, ok := v.(float32); ok {
			return strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
	case KindDouble:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fmt.Sprint(v)
}

// FormatList renders a list value as an array literal ParseList accepts.
func FormatList(values []any) string {
	return oj.JSON(values)
}
