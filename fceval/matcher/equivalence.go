package matcher

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/fceval/fceval/callparse"
	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
)

// numericTolerance is the absolute tolerance for numeric comparisons.
const numericTolerance = 1e-10

// valueMatches reports whether the parsed value is equivalent to one acceptable answer.
func valueMatches(v callparse.Value, expected any) bool {
	if nativeEqual(v, expected) {
		return true
	}

	if s, ok := v.Str(); ok {
		if es, ok := expected.(string); ok && stripQuoteLayer(s) == stripQuoteLayer(es) {
			return true
		}
	}

	ef, ok := toFloat(expected)
	if !ok {
		return false
	}
	if s, isStr := v.Str(); isStr {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return err == nil && math.Abs(f-ef) < numericTolerance
	}
	if f, isNum := v.Float(); isNum {
		return math.Abs(f-ef) < numericTolerance
	}
	return false
}

// nativeEqual compares numbers by value across integer and float, and otherwise
// requires the same variant. Booleans never equal numbers.
func nativeEqual(v callparse.Value, expected any) bool {
	switch e := expected.(type) {
	case string:
		s, ok := v.Str()
		return ok && s == e
	case bool:
		b, ok := v.Bool()
		return ok && b == e
	}
	ef, ok := toFloat(expected)
	if !ok {
		return false
	}
	if i, isInt := v.Int(); isInt {
		if ei, integral := toInt(expected); integral {
			return i == ei
		}
	}
	f, isNum := v.Float()
	return isNum && f == ef
}

func stripQuoteLayer(s string) string {
	if s != "" && isQuote(s[0]) {
		s = s[1:]
	}
	if s != "" && isQuote(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}

func isQuote(c byte) bool { return c == '"' || c == '\'' }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// typeMatches checks the value's variant against the declared type of spec, with
// integer and float merged into one numeric class.
func typeMatches(v callparse.Value, spec catalog.ParameterSpec) bool {
	t, _ := spec.ElementType()
	switch t {
	case catalog.TypeInteger, catalog.TypeFloat:
		return v.IsNumeric()
	case catalog.TypeString, catalog.TypeAny:
		// any is graded as a string slot
		return v.Kind() == callparse.KindString
	case catalog.TypeBoolean:
		return v.Kind() == callparse.KindBoolean
	case catalog.TypeArray, catalog.TypeTuple, catalog.TypeObject:
		// parsed values are never containers
		return false
	default:
		return false
	}
}

// formatValues renders an acceptable-value set for diagnostics.
func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []any:
		return formatValues(x)
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return "?"
}

func formatNames(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = strconv.Quote(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
