package matcher

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParamAnswers maps parameter names to their acceptable values, in declaration order.
type ParamAnswers struct {
	keys   []string
	values map[string][]any
}

// Lookup returns the acceptable values for param.
func (p ParamAnswers) Lookup(param string) ([]any, bool) {
	v, ok := p.values[param]
	return v, ok
}

// Keys lists the answered parameters in declaration order.
func (p ParamAnswers) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

func (p *ParamAnswers) set(param string, values []any) {
	if p.values == nil {
		p.values = make(map[string][]any)
	}
	if _, ok := p.values[param]; !ok {
		p.keys = append(p.keys, param)
	}
	p.values[param] = values
}

// Slot is one parameter and its acceptable values, used to build entries by hand.
type Slot struct {
	Param  string
	Values []any
}

// AnswerEntry is one acceptable ground-truth call: function name to parameter answers.
// Entries normally hold a single function; the first one names the expected call.
type AnswerEntry struct {
	funcs  []string
	params map[string]ParamAnswers
}

// NewAnswerEntry builds an entry for one function.
func NewAnswerEntry(function string, slots ...Slot) AnswerEntry {
	var pa ParamAnswers
	for _, s := range slots {
		pa.set(s.Param, s.Values)
	}
	e := AnswerEntry{}
	e.add(function, pa)
	return e
}

func (e *AnswerEntry) add(function string, pa ParamAnswers) {
	if e.params == nil {
		e.params = make(map[string]ParamAnswers)
	}
	if _, ok := e.params[function]; !ok {
		e.funcs = append(e.funcs, function)
	}
	e.params[function] = pa
}

// Function returns the name of the expected call.
func (e AnswerEntry) Function() (string, bool) {
	if len(e.funcs) == 0 {
		return "", false
	}
	return e.funcs[0], true
}

// Params returns the parameter answers for function.
func (e AnswerEntry) Params(function string) (ParamAnswers, bool) {
	pa, ok := e.params[function]
	return pa, ok
}

// UnmarshalJSON decodes {"func": {"param": [v1, v2] | v}} keeping key order. A bare
// value in a parameter slot is wrapped into a one-element set.
func (e *AnswerEntry) UnmarshalJSON(data []byte) error {
	*e = AnswerEntry{}
	return decodeObject(data, func(function string, raw json.RawMessage) error {
		var pa ParamAnswers
		err := decodeObject(raw, func(param string, slot json.RawMessage) error {
			values, err := decodeSlot(slot)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", param, err)
			}
			pa.set(param, values)
			return nil
		})
		if err != nil {
			return fmt.Errorf("function %s: %w", function, err)
		}
		e.add(function, pa)
		return nil
	})
}

// MarshalJSON encodes the entry with every slot as an array.
func (e AnswerEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fn := range e.funcs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, fn)
		pa := e.params[fn]
		buf.WriteByte('{')
		for j, k := range pa.keys {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeKey(&buf, k)
			vals, err := json.Marshal(pa.values[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vals)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AnswerSet is the ordered ground truth for one item, one entry per expected call.
type AnswerSet []AnswerEntry

// UnmarshalJSON accepts a single entry object or an array of entries.
func (s *AnswerSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var e AnswerEntry
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return err
		}
		*s = AnswerSet{e}
		return nil
	}

	var entries []AnswerEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return fmt.Errorf("ground truth must be an object or an array of objects: %w", err)
	}
	*s = entries
	return nil
}

func decodeSlot(raw json.RawMessage) ([]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var values []any
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return nil, err
		}
		return values, nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func writeKey(buf *bytes.Buffer, key string) {
	b, _ := json.Marshal(key)
	buf.Write(b)
	buf.WriteByte(':')
}
