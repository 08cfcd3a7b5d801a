package callparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceLiteral(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
		want any
	}{
		{"true", KindBoolean, true},
		{"FALSE", KindBoolean, false},
		{" True ", KindBoolean, true},
		{"42", KindInteger, int64(42)},
		{"-7", KindInteger, int64(-7)},
		{"3.5", KindFloat, 3.5},
		{".5", KindFloat, 0.5},
		{"1.5e3", KindFloat, 1500.0},
		{"1e5", KindString, "1e5"},
		{"1.2.3", KindString, "1.2.3"},
		{`"Paris"`, KindString, `"Paris"`},
		{"'5'", KindString, "'5'"},
		{"[1,2,3]", KindString, "[1,2,3]"},
		{"New York", KindString, "New York"},
		{"99999999999999999999", KindFloat, 1e20},
		{"-12345678901234567890", KindFloat, -12345678901234567890.0},
		{"1_000", KindInteger, int64(1000)},
		{"1_000.5", KindFloat, 1000.5},
		{"1__000", KindString, "1__000"},
		{"_1", KindString, "_1"},
		{"new_york", KindString, "new_york"},
		{"", KindString, ""},
	}

	for _, tt := range tests {
		v := CoerceLiteral(tt.raw)
		assert.Equal(t, tt.kind, v.Kind(), tt.raw)
		assert.Equal(t, tt.want, v.Interface(), tt.raw)
	}
}

func TestValue_Accessors(t *testing.T) {
	i := IntegerValue(5)
	f, ok := i.Float()
	assert.True(t, ok)
	assert.Equal(t, 5.0, f)
	assert.True(t, i.IsNumeric())
	assert.Equal(t, "5", i.String())

	_, ok = StringValue("5").Float()
	assert.False(t, ok)
	assert.False(t, BooleanValue(true).IsNumeric())

	assert.Equal(t, "2.5", FloatValue(2.5).String())
	assert.Equal(t, "false", BooleanValue(false).String())
	assert.Equal(t, "integer", KindInteger.String())
	assert.Equal(t, "string", KindString.String())
}
