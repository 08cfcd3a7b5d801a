package callparse

import "strings"

// Arguments is an ordered mapping from parameter name to value.
type Arguments struct {
	keys   []string
	values map[string]Value
}

// NewArguments builds Arguments in the order given.
func NewArguments(args ...Arg) Arguments {
	var a Arguments
	for _, arg := range args {
		a.set(arg.Name, arg.Value)
	}
	return a
}

// Arg is one name/value pair, used when building Arguments by hand.
type Arg struct {
	Name  string
	Value Value
}

// set keeps the first position of a repeated key and the last value.
func (a *Arguments) set(name string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[name]; !ok {
		a.keys = append(a.keys, name)
	}
	a.values[name] = v
}

// Get returns the value bound to name.
func (a Arguments) Get(name string) (Value, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Has reports whether name was supplied.
func (a Arguments) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Len returns the number of arguments.
func (a Arguments) Len() int { return len(a.keys) }

// Names returns the argument names in textual order.
func (a Arguments) Names() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Each visits the arguments in textual order until fn returns false.
func (a Arguments) Each(fn func(name string, v Value) bool) {
	for _, k := range a.keys {
		if !fn(k, a.values[k]) {
			return
		}
	}
}

// Call is one parsed function invocation.
type Call struct {
	Name      string
	Arguments Arguments
}

// String renders the call back into the bracket grammar form.
func (c Call) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('(')
	i := 0
	c.Arguments.Each(func(name string, v Value) bool {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(v.String())
		i++
		return true
	})
	b.WriteByte(')')
	return b.String()
}

// Output is the parser's result. A single recovered call is a bare record rather
// than a one-element sequence; Single exposes that shape to the matcher.
type Output struct {
	Calls []Call
}

// Single returns the bare record when exactly one call was recovered.
func (o Output) Single() (Call, bool) {
	if len(o.Calls) != 1 {
		return Call{}, false
	}
	return o.Calls[0], true
}

// Len returns the number of recovered calls.
func (o Output) Len() int { return len(o.Calls) }
