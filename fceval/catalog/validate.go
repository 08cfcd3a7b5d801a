package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidSignature is wrapped by every validation failure.
var ErrInvalidSignature = errors.New("invalid function description")

// AvailableTypes is the declared-type vocabulary accepted by the validator.
var AvailableTypes = []string{
	"boolean", "array", "string", "integer", "float", "tuple", "any", "dict", "number", "object",
}

// reservedWords cannot be parameter names: the call grammar uses keyword-argument syntax.
var reservedWords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true,
	"def": true, "del": true, "elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true, "yield": true,
}

const signatureSchemaTemplate = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "description", "parameters"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "parameters": {
      "type": "object",
      "required": ["type", "required", "properties"],
      "additionalProperties": false,
      "properties": {
        "type": {"type": "string"},
        "required": {"type": "array", "items": {"type": "string"}},
        "properties": {
          "type": "object",
          "propertyNames": {"pattern": "^[A-Za-z_][A-Za-z0-9_]*$"},
          "additionalProperties": {
            "type": "object",
            "required": ["type"],
            "properties": {
              "type": {"enum": [%s]},
              "description": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

// Validator checks raw function descriptions before they reach the matcher.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the function description schema.
func NewValidator() (*Validator, error) {
	quoted := make([]string, len(AvailableTypes))
	for i, t := range AvailableTypes {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	src := fmt.Sprintf(signatureSchemaTemplate, strings.Join(quoted, ", "))

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to compile signature schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks one raw function description.
func (v *Validator) Validate(raw json.RawMessage) error {
	if !json.Valid(raw) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidSignature)
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidSignature, strings.Join(msgs, "; "))
	}

	var sig FunctionSignature
	if err := json.Unmarshal(raw, &sig); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return v.checkSemantics(sig)
}

// ValidateCatalog validates every entry of a raw catalog array.
func (v *Validator) ValidateCatalog(raw []json.RawMessage) error {
	for i, entry := range raw {
		if err := v.Validate(entry); err != nil {
			return fmt.Errorf("function %d: %w", i+1, err)
		}
	}
	return nil
}

// checkSemantics covers the rules a JSON schema cannot express.
func (v *Validator) checkSemantics(sig FunctionSignature) error {
	for _, p := range sig.Parameters.All() {
		if reservedWords[p.Name] {
			return fmt.Errorf("%w: property %s is a reserved keyword", ErrInvalidSignature, p.Name)
		}
	}
	for _, name := range sig.Required {
		if _, ok := sig.Parameters.Lookup(name); !ok {
			return fmt.Errorf("%w: required parameter '%s' not found in properties", ErrInvalidSignature, name)
		}
	}
	return nil
}
