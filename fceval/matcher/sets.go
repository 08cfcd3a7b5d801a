package matcher

import (
	"github.com/ZanzyTHEbar/fceval/fceval/callparse"
	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
)

// Strategy selects how parsed calls are paired with answer entries.
type Strategy int

const (
	// StrategyFirstFit pairs each call, in input order, with the first unconsumed
	// answer it satisfies and never revisits a choice. It can reject a valid
	// assignment when one answer accepts a superset of another's values.
	StrategyFirstFit Strategy = iota
	// StrategyMaximum finds a maximum bipartite matching with augmenting paths.
	StrategyMaximum
)

func (s Strategy) String() string {
	if s == StrategyMaximum {
		return "maximum"
	}
	return "first_fit"
}

// ParseStrategy maps a configuration string to a Strategy. Unknown values select first-fit.
func ParseStrategy(s string) Strategy {
	if s == "maximum" {
		return StrategyMaximum
	}
	return StrategyFirstFit
}

// pairFunc reports whether call i satisfies answer j.
type pairFunc func(i, j int) bool

// assign pairs n calls with n answers. It returns the answer index chosen for each
// call (-1 when unmatched) and, for first-fit, stops at the first unmatched call.
func (s Strategy) assign(n int, pair pairFunc) []int {
	if s == StrategyMaximum {
		return maximumAssign(n, pair)
	}
	return firstFitAssign(n, pair)
}

func firstFitAssign(n int, pair pairFunc) []int {
	callTo := make([]int, n)
	for i := range callTo {
		callTo[i] = -1
	}
	consumed := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if consumed[j] {
				continue
			}
			if pair(i, j) {
				consumed[j] = true
				callTo[i] = j
				break
			}
		}
		if callTo[i] < 0 {
			break
		}
	}
	return callTo
}

func maximumAssign(n int, pair pairFunc) []int {
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if pair(i, j) {
				adj[i] = append(adj[i], j)
			}
		}
	}

	callTo := make([]int, n)
	answerTo := make([]int, n)
	for i := range callTo {
		callTo[i] = -1
		answerTo[i] = -1
	}

	var augment func(i int, seen []bool) bool
	augment = func(i int, seen []bool) bool {
		for _, j := range adj[i] {
			if seen[j] {
				continue
			}
			seen[j] = true
			if answerTo[j] < 0 || augment(answerTo[j], seen) {
				answerTo[j] = i
				callTo[i] = j
				return true
			}
		}
		return false
	}

	for i := 0; i < n; i++ {
		augment(i, make([]bool, n))
	}
	return callTo
}

func allAssigned(callTo []int) bool {
	seen := make([]bool, len(callTo))
	for _, j := range callTo {
		if j < 0 {
			return false
		}
		seen[j] = true
	}
	for _, ok := range seen {
		if !ok {
			return false
		}
	}
	return true
}

func firstUnassigned(callTo []int) int {
	for i, j := range callTo {
		if j < 0 {
			return i
		}
	}
	return -1
}

// checkParallel matches N calls to the same function against N answer entries.
func (c Checker) checkParallel(cat catalog.Catalog, calls []callparse.Call, answers AnswerSet) Verdict {
	if len(calls) != len(answers) {
		return fail(KindParallel, ReasonCardinality,
			"Number of function calls (%d) does not match number of possible answers (%d)",
			len(calls), len(answers))
	}
	if len(calls) == 0 {
		return pass(KindParallel)
	}

	sig, ok := cat.First()
	if !ok {
		return fail(KindParallel, ReasonFunctionNotFound, "Function description is empty")
	}

	callTo := c.Strategy.assign(len(calls), func(i, j int) bool {
		return checkCall(sig, calls[i], answers[j], KindParallel).Valid
	})

	if i := firstUnassigned(callTo); i >= 0 {
		return fail(KindParallel, ReasonCallUnmatched, "Function %d was not matched", i+1)
	}
	if !allAssigned(callTo) {
		return fail(KindParallel, ReasonAnswersUnmatched, "Not all possible answers were matched")
	}
	return pass(KindParallel)
}

// checkMultiple matches calls to different functions, resolving each answer entry's
// signature from the catalog by name.
func (c Checker) checkMultiple(cat catalog.Catalog, calls []callparse.Call, answers AnswerSet) Verdict {
	if len(calls) != len(answers) {
		return fail(KindMultiple, ReasonCardinality,
			"Number of function calls (%d) does not match the number of possible answers (%d)",
			len(calls), len(answers))
	}

	for _, call := range calls {
		if _, ok := cat.Find(call.Name); !ok {
			return functionNotFound(cat, call.Name)
		}
	}

	sigs := make([]catalog.FunctionSignature, len(answers))
	resolved := make([]bool, len(answers))
	var missing *Verdict

	resolve := func(j int) bool {
		if resolved[j] {
			return true
		}
		name, _ := answers[j].Function()
		sig, ok := cat.Find(name)
		if !ok {
			v := functionNotFound(cat, name)
			missing = &v
			return false
		}
		sigs[j], resolved[j] = sig, true
		return true
	}

	if c.Strategy == StrategyMaximum {
		for j := range answers {
			if !resolve(j) {
				return *missing
			}
		}
	}

	callTo := c.Strategy.assign(len(calls), func(i, j int) bool {
		if missing != nil || !resolve(j) {
			return false
		}
		return checkCall(sigs[j], calls[i], answers[j], KindMultiple).Valid
	})
	if missing != nil {
		return *missing
	}

	if i := firstUnassigned(callTo); i >= 0 {
		name := calls[i].Name
		if name == "" {
			name = "unknown"
		}
		return fail(KindMultiple, ReasonCallUnmatched, "Function call %s was not matched", name)
	}
	if !allAssigned(callTo) {
		return fail(KindMultiple, ReasonAnswersUnmatched, "Not all possible answers were matched")
	}
	return pass(KindMultiple)
}

func functionNotFound(cat catalog.Catalog, name string) Verdict {
	return fail(KindMultiple, ReasonFunctionNotFound,
		"Function '%s' not found in function description. Available functions: %s",
		name, formatNames(cat.Names()))
}
