// Package catalog models the function signatures offered to the model for a test item.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemsSpec describes the element type of a container parameter.
type ItemsSpec struct {
	Type    Type
	RawType string
}

// ParameterSpec is one declared parameter of a function.
type ParameterSpec struct {
	Name        string
	Type        Type
	RawType     string
	Items       *ItemsSpec
	Description string
}

// ElementType returns the type used for the declared-type check: the items type for
// containers that declare one, the parameter's own type otherwise.
func (p ParameterSpec) ElementType() (Type, string) {
	if p.Type.IsContainer() && p.Items != nil {
		return p.Items.Type, p.Items.RawType
	}
	return p.Type, p.RawType
}

type parameterJSON struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Items       *struct {
		Type string `json:"type"`
	} `json:"items,omitempty"`
}

// Parameters is an ordered set of parameter specs keyed by name.
type Parameters struct {
	specs []ParameterSpec
	index map[string]int
}

// NewParameters builds Parameters from specs in declaration order.
func NewParameters(specs ...ParameterSpec) Parameters {
	p := Parameters{index: make(map[string]int, len(specs))}
	for _, s := range specs {
		p.add(s)
	}
	return p
}

func (p *Parameters) add(s ParameterSpec) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[s.Name]; ok {
		p.specs[i] = s
		return
	}
	p.index[s.Name] = len(p.specs)
	p.specs = append(p.specs, s)
}

// Lookup returns the spec for name.
func (p Parameters) Lookup(name string) (ParameterSpec, bool) {
	i, ok := p.index[name]
	if !ok {
		return ParameterSpec{}, false
	}
	return p.specs[i], true
}

// Len returns the number of declared parameters.
func (p Parameters) Len() int { return len(p.specs) }

// All returns the specs in declaration order.
func (p Parameters) All() []ParameterSpec {
	out := make([]ParameterSpec, len(p.specs))
	copy(out, p.specs)
	return out
}

// UnmarshalJSON decodes a JSON object of parameter specs keeping key order.
func (p *Parameters) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read properties: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be an object")
	}

	*p = Parameters{index: make(map[string]int)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read property name: %w", err)
		}
		name, _ := keyTok.(string)

		var raw parameterJSON
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("property %s: %w", name, err)
		}

		spec := ParameterSpec{
			Name:        name,
			Type:        ParseType(raw.Type),
			RawType:     raw.Type,
			Description: raw.Description,
		}
		if raw.Items != nil {
			spec.Items = &ItemsSpec{Type: ParseType(raw.Items.Type), RawType: raw.Items.Type}
		}
		p.add(spec)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to close properties: %w", err)
	}
	return nil
}

// MarshalJSON encodes the specs as an object in declaration order.
func (p Parameters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range p.specs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		raw := parameterJSON{Type: s.RawType, Description: s.Description}
		if s.Items != nil {
			raw.Items = &struct {
				Type string `json:"type"`
			}{Type: s.Items.RawType}
		}
		val, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FunctionSignature is one catalog entry.
type FunctionSignature struct {
	Name        string
	Description string
	ParamsType  string
	Parameters  Parameters
	Required    []string
}

type signatureJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  struct {
		Type       string     `json:"type"`
		Properties Parameters `json:"properties"`
		Required   []string   `json:"required"`
	} `json:"parameters"`
}

// UnmarshalJSON decodes the sample-file function format.
func (f *FunctionSignature) UnmarshalJSON(data []byte) error {
	var raw signatureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FunctionSignature{
		Name:        raw.Name,
		Description: raw.Description,
		ParamsType:  raw.Parameters.Type,
		Parameters:  raw.Parameters.Properties,
		Required:    raw.Parameters.Required,
	}
	return nil
}

// MarshalJSON encodes the signature back into the sample-file format.
func (f FunctionSignature) MarshalJSON() ([]byte, error) {
	var raw signatureJSON
	raw.Name = f.Name
	raw.Description = f.Description
	raw.Parameters.Type = f.ParamsType
	raw.Parameters.Properties = f.Parameters
	raw.Parameters.Required = f.Required
	return json.Marshal(raw)
}

// Catalog is the ordered list of signatures available for one test item.
type Catalog []FunctionSignature

// Find returns the first signature named name.
func (c Catalog) Find(name string) (FunctionSignature, bool) {
	for _, f := range c {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionSignature{}, false
}

// First returns the leading signature, which the simple and parallel regimes test against.
func (c Catalog) First() (FunctionSignature, bool) {
	if len(c) == 0 {
		return FunctionSignature{}, false
	}
	return c[0], true
}

// Names lists the signature names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, f := range c {
		names[i] = f.Name
	}
	return names
}
