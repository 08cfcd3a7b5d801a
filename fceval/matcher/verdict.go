package matcher

import "fmt"

// Kind names the check that produced a verdict.
type Kind string

const (
	KindSimple          Kind = "simple"
	KindParallel        Kind = "parallel"
	KindMultiple        Kind = "multiple"
	KindConversionError Kind = "conversion_error"
	KindUnknownCategory Kind = "unknown_category"
)

// Reason is a machine-readable failure cause.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonNameMismatch          Reason = "name_mismatch"
	ReasonFunctionNotInAnswers  Reason = "function_not_in_answers"
	ReasonMissingRequired       Reason = "missing_required"
	ReasonUnexpectedArgument    Reason = "unexpected_argument"
	ReasonParameterNotInAnswers Reason = "parameter_not_in_answers"
	ReasonValueMismatch         Reason = "value_mismatch"
	ReasonTypeMismatch          Reason = "type_mismatch"
	ReasonCardinality           Reason = "cardinality"
	ReasonCallUnmatched         Reason = "call_unmatched"
	ReasonAnswersUnmatched      Reason = "answers_unmatched"
	ReasonFunctionNotFound      Reason = "function_not_found"
	ReasonConversion            Reason = "conversion"
	ReasonUnknownCategory       Reason = "unknown_category"
)

// Verdict is the terminal outcome of one match.
type Verdict struct {
	Valid  bool   `json:"is_valid"`
	Error  string `json:"error,omitempty"`
	Kind   Kind   `json:"kind"`
	Reason Reason `json:"reason,omitempty"`
}

func pass(kind Kind) Verdict {
	return Verdict{Valid: true, Kind: kind}
}

func fail(kind Kind, reason Reason, format string, args ...any) Verdict {
	return Verdict{Kind: kind, Reason: reason, Error: fmt.Sprintf(format, args...)}
}
