package matcher

import (
	"github.com/ZanzyTHEbar/fceval/fceval/callparse"
	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
)

// checkCall is the per-call primitive shared by every regime. The order of the checks
// is fixed; the first failure is reported.
func checkCall(sig catalog.FunctionSignature, call callparse.Call, answer AnswerEntry, kind Kind) Verdict {
	if sig.Name != call.Name {
		return fail(kind, ReasonNameMismatch,
			"Function name mismatch: expected %s, got %s", sig.Name, call.Name)
	}

	expected, ok := answer.Params(sig.Name)
	if !ok {
		return fail(kind, ReasonFunctionNotInAnswers,
			"Function %s not found in possible answers", sig.Name)
	}

	for _, param := range sig.Required {
		if !call.Arguments.Has(param) {
			return fail(kind, ReasonMissingRequired, "Missing required parameter: %s", param)
		}
	}

	verdict := pass(kind)
	call.Arguments.Each(func(param string, value callparse.Value) bool {
		spec, declared := sig.Parameters.Lookup(param)
		if !declared {
			verdict = fail(kind, ReasonUnexpectedArgument, "Unexpected argument: %s", param)
			return false
		}

		acceptable, answered := expected.Lookup(param)
		if !answered {
			verdict = fail(kind, ReasonParameterNotInAnswers,
				"Parameter %s not found in possible answers. Available keys: %s",
				param, formatNames(expected.Keys()))
			return false
		}

		if !anyValueMatches(value, acceptable) {
			verdict = fail(kind, ReasonValueMismatch,
				"Value mismatch for %s: expected one of %s, got %s (type: %s)",
				param, formatValues(acceptable), value, value.Kind())
			return false
		}

		if !typeMatches(value, spec) {
			if t, _ := spec.ElementType(); t.IsNumeric() {
				verdict = fail(kind, ReasonTypeMismatch,
					"Type mismatch for %s: expected numeric type, got %s", param, value.Kind())
			} else {
				verdict = fail(kind, ReasonTypeMismatch,
					"Type mismatch for %s: expected %s, got %s", param, spec.RawType, value.Kind())
			}
			return false
		}
		return true
	})
	return verdict
}

func anyValueMatches(v callparse.Value, acceptable []any) bool {
	for _, e := range acceptable {
		if valueMatches(v, e) {
			return true
		}
	}
	return false
}
