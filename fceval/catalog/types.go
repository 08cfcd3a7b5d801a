package catalog

// Type is the closed vocabulary of declared parameter types.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeString
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeArray
	TypeTuple
	TypeObject // declared as "object" or "dict"
	TypeAny
)

// ParseType maps a declared type string onto the vocabulary.
// Strings outside the vocabulary map to TypeUnknown.
func ParseType(s string) Type {
	switch s {
	case "string":
		return TypeString
	case "integer", "int":
		return TypeInteger
	case "float", "number":
		return TypeFloat
	case "boolean":
		return TypeBoolean
	case "array":
		return TypeArray
	case "tuple":
		return TypeTuple
	case "object", "dict":
		return TypeObject
	case "any":
		return TypeAny
	default:
		return TypeUnknown
	}
}

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeTuple:
		return "tuple"
	case TypeObject:
		return "object"
	case TypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether t belongs to the merged integer/float class.
func (t Type) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// IsContainer reports whether values of t hold elements described by items.type.
func (t Type) IsContainer() bool {
	return t == TypeArray || t == TypeTuple || t == TypeObject
}
