package callparse

import (
	"errors"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Value is a coerced argument literal. The grammar has no nested literal syntax,
// so a Value is always a scalar; bracketed lists survive as their source text.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bln  bool
}

func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func IntegerValue(i int64) Value { return Value{kind: KindInteger, num: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, flt: f} }
func BooleanValue(b bool) Value { return Value{kind: KindBoolean, bln: b} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNumeric() bool { return v.kind == KindInteger || v.kind == KindFloat }
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }
func (v Value) Bool() (bool, bool) { return v.bln, v.kind == KindBoolean }
func (v Value) Int() (int64, bool) { return v.num, v.kind == KindInteger }

// Float returns the numeric value widened to float64.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.num), true
	case KindFloat:
		return v.flt, true
	default:
		return 0, false
	}
}

// Interface returns the Go value (string, int64, float64 or bool).
func (v Value) Interface() any {
	switch v.kind {
	case KindInteger:
		return v.num
	case KindFloat:
		return v.flt
	case KindBoolean:
		return v.bln
	default:
		return v.str
	}
}

// String renders the value the way it appears in diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.bln)
	default:
		return v.str
	}
}

// CoerceLiteral converts a raw argument value: booleans first, then floats for text
// containing a dot, then integers. Underscores between digits are accepted as
// separators and integers beyond int64 become floats. Anything else stays a string,
// quotes included.
func CoerceLiteral(raw string) Value {
	s := strings.TrimSpace(raw)

	switch {
	case strings.EqualFold(s, "true"):
		return BooleanValue(true)
	case strings.EqualFold(s, "false"):
		return BooleanValue(false)
	}

	num, ok := stripDigitSeparators(s)
	if !ok {
		return StringValue(s)
	}

	if strings.Contains(num, ".") {
		if f, err := strconv.ParseFloat(num, 64); err == nil {
			return FloatValue(f)
		}
		return StringValue(s)
	}

	i, err := strconv.ParseInt(num, 10, 64)
	switch {
	case err == nil:
		return IntegerValue(i)
	case errors.Is(err, strconv.ErrRange):
		if f, ferr := strconv.ParseFloat(num, 64); ferr == nil {
			return FloatValue(f)
		}
	}
	return StringValue(s)
}

// stripDigitSeparators drops underscores that sit between two digits. Any other
// underscore makes the text non-numeric.
func stripDigitSeparators(s string) (string, bool) {
	if !strings.Contains(s, "_") {
		return s, true
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			b.WriteByte(s[i])
			continue
		}
		if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
			return "", false
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
