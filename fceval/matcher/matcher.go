// Package matcher decides whether parsed calls are equivalent to a ground-truth answer
// set under one of the call-shape regimes. Matching is pure: it holds no state and
// performs no I/O, so a Checker may be shared freely across goroutines.
package matcher

import (
	"strings"

	"github.com/ZanzyTHEbar/fceval/fceval/callparse"
	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
)

// Regime is the call shape a test category expects.
type Regime string

const (
	RegimeSimple   Regime = "simple"
	RegimeParallel Regime = "parallel"
	RegimeMultiple Regime = "multiple"
)

// ParseRegime maps a test category to its regime by substring, checking simple, then
// parallel, then multiple. An unrecognised category is returned verbatim and Match
// reports it as unknown.
func ParseRegime(category string) Regime {
	switch {
	case strings.Contains(category, string(RegimeSimple)):
		return RegimeSimple
	case strings.Contains(category, string(RegimeParallel)):
		return RegimeParallel
	case strings.Contains(category, string(RegimeMultiple)):
		return RegimeMultiple
	default:
		return Regime(category)
	}
}

// Known reports whether r is one of the three regimes.
func (r Regime) Known() bool {
	return r == RegimeSimple || r == RegimeParallel || r == RegimeMultiple
}

// Checker matches with a configurable pairing strategy. The zero value uses first-fit.
type Checker struct {
	Strategy Strategy
}

var defaultChecker Checker

// Match checks parsed output with the first-fit strategy.
func Match(cat catalog.Catalog, regime Regime, parsed callparse.Output, parseErr error, answers AnswerSet) Verdict {
	return defaultChecker.Match(cat, regime, parsed, parseErr, answers)
}

// Match checks parsed output against answers. A non-nil parseErr yields a
// conversion_error verdict, even for an unknown regime.
func (c Checker) Match(cat catalog.Catalog, regime Regime, parsed callparse.Output, parseErr error, answers AnswerSet) Verdict {
	if parseErr != nil {
		return fail(KindConversionError, ReasonConversion, "%s", parseErr.Error())
	}
	if !regime.Known() {
		return fail(KindUnknownCategory, ReasonUnknownCategory, "Unknown test category: %s", regime)
	}
	for i, call := range parsed.Calls {
		if call.Name == "" {
			return fail(KindConversionError, ReasonConversion, "Missing function name in call %d", i+1)
		}
	}

	switch regime {
	case RegimeSimple:
		return c.checkSimple(cat, parsed, answers)
	case RegimeParallel:
		return c.checkParallel(cat, parsed.Calls, answers)
	default:
		return c.checkMultiple(cat, parsed.Calls, answers)
	}
}

// checkSimple requires a bare record and exactly one answer entry.
func (c Checker) checkSimple(cat catalog.Catalog, parsed callparse.Output, answers AnswerSet) Verdict {
	call, ok := parsed.Single()
	if !ok {
		return fail(KindSimple, ReasonCardinality,
			"Expected a single function call, got %d", parsed.Len())
	}
	if len(answers) != 1 {
		return fail(KindSimple, ReasonCardinality,
			"Number of function calls (1) does not match number of possible answers (%d)", len(answers))
	}
	sig, ok := cat.First()
	if !ok {
		return fail(KindSimple, ReasonFunctionNotFound, "Function description is empty")
	}
	return checkCall(sig, call, answers[0], KindSimple)
}
