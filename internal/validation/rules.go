package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// checker validates value at path, records every violation in errs and
// returns the narrowed value when nothing was recorded.
type checker func(path string, value any, errs *violations) (any, bool)

// bound is a single numeric predicate with its description.
type bound struct {
	ok   func(float64) bool
	desc string
}

func atLeast(limit float64) bound {
	return bound{
		ok:   func(f float64) bool { return f >= limit },
		desc: "must be greater than or equal to " + formatNumber(limit),
	}
}

func atMost(limit float64) bound {
	return bound{
		ok:   func(f float64) bool { return f <= limit },
		desc: "must be less than or equal to " + formatNumber(limit),
	}
}

func greaterThan(limit float64) bound {
	return bound{
		ok:   func(f float64) bool { return f > limit },
		desc: "must be greater than " + formatNumber(limit),
	}
}

// lengthBound constrains the number of array items.
type lengthBound struct {
	ok   func(n int) bool
	desc string
}

func minItems(n int) lengthBound {
	return lengthBound{
		ok:   func(l int) bool { return l >= n },
		desc: fmt.Sprintf("must contain at least %d item(s)", n),
	}
}

func maxItems(n int) lengthBound {
	return lengthBound{
		ok:   func(l int) bool { return l <= n },
		desc: fmt.Sprintf("must contain at most %d item(s)", n),
	}
}

func stringValue() checker {
	return func(path string, value any, errs *violations) (any, bool) {
		s, ok := value.(string)
		if !ok {
			errs.add(path, expected("string", value))
			return nil, false
		}
		return s, true
	}
}

func booleanValue() checker {
	return func(path string, value any, errs *violations) (any, bool) {
		b, ok := value.(bool)
		if !ok {
			errs.add(path, expected("boolean", value))
			return nil, false
		}
		return b, true
	}
}

func number(bounds ...bound) checker {
	return func(path string, value any, errs *violations) (any, bool) {
		f, ok := asNumber(value)
		if !ok {
			errs.add(path, expected("number", value))
			return nil, false
		}
		if !checkBounds(path, f, bounds, errs) {
			return nil, false
		}
		return f, true
	}
}

func integer(bounds ...bound) checker {
	return func(path string, value any, errs *violations) (any, bool) {
		i, kind := asInteger(value)
		switch kind {
		case notNumber:
			errs.add(path, expected("integer", value))
			return nil, false
		case fractional:
			errs.add(path, "expected integer, received float")
			return nil, false
		case tooSmall:
			errs.add(path, "must be greater than or equal to "+strconv.FormatInt(math.MinInt, 10))
			return nil, false
		case tooLarge:
			errs.add(path, "must be less than or equal to "+strconv.FormatInt(math.MaxInt, 10))
			return nil, false
		}
		if !checkBounds(path, float64(i), bounds, errs) {
			return nil, false
		}
		return int(i), true
	}
}

func oneOf[T ~string](allowed []T) checker {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}

	return func(path string, value any, errs *violations) (any, bool) {
		s, ok := value.(string)
		if !ok {
			errs.add(path, expected("string", value))
			return nil, false
		}
		for _, name := range names {
			if s == name {
				return s, true
			}
		}
		errs.add(path, fmt.Sprintf("invalid enum value, expected one of %s; received %q",
			strings.Join(names, " | "), s))
		return nil, false
	}
}

func arrayOf(elem checker, lengths ...lengthBound) checker {
	return func(path string, value any, errs *violations) (any, bool) {
		items, ok := value.([]any)
		if !ok {
			errs.add(path, expected("array", value))
			return nil, false
		}

		before := len(*errs)
		for _, l := range lengths {
			if !l.ok(len(items)) {
				errs.add(path, l.desc)
			}
		}

		out := make([]any, 0, len(items))
		for i, item := range items {
			if v, valid := elem(fmt.Sprintf("%s[%d]", path, i), item, errs); valid {
				out = append(out, v)
			}
		}

		if len(*errs) > before {
			return nil, false
		}
		return out, true
	}
}

// field declares one key of an object contract.
type field struct {
	key      string
	required bool
	check    checker
}

// objectSchema evaluates every declared field and, when strict, rejects
// undeclared keys. build turns the narrowed values into the typed result.
type objectSchema struct {
	fields []field
	strict bool
	build  func(values map[string]any) any
}

func object(s *objectSchema) checker {
	return s.check
}

func (s *objectSchema) check(path string, value any, errs *violations) (any, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		errs.add(path, expected("object", value))
		return nil, false
	}

	before := len(*errs)
	values := make(map[string]any, len(s.fields))
	declared := make(map[string]struct{}, len(s.fields))

	for _, f := range s.fields {
		declared[f.key] = struct{}{}

		raw, present := obj[f.key]
		if !present {
			if f.required {
				errs.add(joinPath(path, f.key), "required")
			}
			continue
		}

		if v, valid := f.check(joinPath(path, f.key), raw, errs); valid {
			values[f.key] = v
		}
	}

	if s.strict {
		unknown := make([]string, 0)
		for key := range obj {
			if _, known := declared[key]; !known {
				unknown = append(unknown, key)
			}
		}
		sort.Strings(unknown)
		for _, key := range unknown {
			errs.add(joinPath(path, key), "unrecognized key")
		}
	}

	if len(*errs) > before {
		return nil, false
	}
	return s.build(values), true
}

func checkBounds(path string, f float64, bounds []bound, errs *violations) bool {
	valid := true
	for _, b := range bounds {
		if !b.ok(f) {
			errs.add(path, b.desc)
			valid = false
		}
	}
	return valid
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func expected(want string, got any) string {
	return fmt.Sprintf("expected %s, received %s", want, typeName(got))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := asNumber(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return float64(i), true
		}
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// integerKind classifies a value offered as an integer.
type integerKind int

const (
	integral integerKind = iota
	notNumber
	fractional
	tooSmall
	tooLarge
)

// asInteger converts v to an int64 that also fits in int. json.Number is
// parsed exactly; floats only when they hold a whole value in range.
func asInteger(v any) (int64, integerKind) {
	switch n := v.(type) {
	case int:
		return int64(n), integral
	case int8:
		return int64(n), integral
	case int16:
		return int64(n), integral
	case int32:
		return int64(n), integral
	case int64:
		return fitInt(n)
	case uint:
		return fromUint(uint64(n))
	case uint8:
		return int64(n), integral
	case uint16:
		return int64(n), integral
	case uint32:
		return fromUint(uint64(n))
	case uint64:
		return fromUint(n)
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fitInt(i)
		}
		f, err := n.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, notNumber
		}
		return fromFloat(f)
	}
	return 0, notNumber
}

func fitInt(i int64) (int64, integerKind) {
	if i > math.MaxInt {
		return 0, tooLarge
	}
	if i < math.MinInt {
		return 0, tooSmall
	}
	return i, integral
}

func fromUint(u uint64) (int64, integerKind) {
	if u > math.MaxInt64 {
		return 0, tooLarge
	}
	return fitInt(int64(u))
}

// fromFloat accepts whole values in [-2^63, 2^63).
func fromFloat(f float64) (int64, integerKind) {
	switch {
	case math.IsNaN(f):
		return 0, notNumber
	case math.IsInf(f, 1):
		return 0, tooLarge
	case math.IsInf(f, -1):
		return 0, tooSmall
	case f != math.Trunc(f):
		return 0, fractional
	case f >= 1<<63:
		return 0, tooLarge
	case f < -(1 << 63):
		return 0, tooSmall
	}
	return fitInt(int64(f))
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
