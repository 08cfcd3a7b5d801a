package harness

import (
	"encoding/json"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring"
	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

// TokenUsage aggregates token accounting over the items of a category. Per-item
// totals are prompt plus completion tokens.
type TokenUsage struct {
	TotalInputTokens     int     `json:"total_input_tokens"`
	TotalOutputTokens    int     `json:"total_output_tokens"`
	TotalTokens          int     `json:"total_tokens"`
	AverageTokensPerCall float64 `json:"average_tokens_per_call"`
	StdTokenUsage        float64 `json:"std_token_usage"`
	MeanTokenUsage       float64 `json:"mean_token_usage"`
	Percentile95         float64 `json:"percentile_95_token_usage"`
}

// Summary is the scored outcome of one category.
type Summary struct {
	Category   string         `json:"category"`
	Accuracy   float64        `json:"accuracy"`
	TotalCount int            `json:"total_count"`
	ErrorCount int            `json:"error_count"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Reasons    map[string]int `json:"reasons,omitempty"`

	failed *roaring.Bitmap
}

// Failed returns the positions (in dataset order) of the items that did not pass.
func (s Summary) Failed() []uint32 {
	if s.failed == nil {
		return nil
	}
	return s.failed.ToArray()
}

// MarshalJSON adds the failed item positions to the encoded summary.
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	return json.Marshal(struct {
		alias
		FailedIndexes []uint32 `json:"failed_indexes"`
	}{alias(s), s.Failed()})
}

// Summarize scores the results of one category. results must be in dataset order.
func Summarize(category string, results []ItemResult) Summary {
	s := Summary{
		Category: category,
		Reasons:  make(map[string]int),
		failed:   roaring.New(),
	}

	totals := make([]float64, 0, len(results))
	correct := 0
	for i, r := range results {
		s.TokenUsage.TotalInputTokens += r.Usage.PromptTokens
		s.TokenUsage.TotalOutputTokens += r.Usage.CompletionTokens
		total := r.Usage.PromptTokens + r.Usage.CompletionTokens
		s.TokenUsage.TotalTokens += total
		totals = append(totals, float64(total))

		if r.Verdict.Valid {
			correct++
			continue
		}
		s.failed.Add(uint32(i))
		reason := string(r.Verdict.Reason)
		if reason == "" {
			reason = string(r.Verdict.Kind)
		}
		s.Reasons[reason]++
	}

	s.TotalCount = len(results)
	s.ErrorCount = int(s.failed.GetCardinality())
	if s.TotalCount > 0 {
		s.Accuracy = float64(correct) / float64(s.TotalCount)
		s.TokenUsage.AverageTokensPerCall = float64(s.TokenUsage.TotalTokens) / float64(s.TotalCount)
		s.TokenUsage.MeanTokenUsage = stat.Mean(totals, nil)
		s.TokenUsage.Percentile95 = percentile(totals, 0.95)
	}
	if s.TotalCount > 1 {
		s.TokenUsage.StdTokenUsage = stat.StdDev(totals, nil)
	}
	return s
}

// percentile estimates the p-quantile by linear interpolation between the closest
// ranks, h = (n-1)p. gonum's LinInterp uses h = np and gives different values on
// small samples.
func percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Score is the mean accuracy across category summaries.
func Score(summaries []Summary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	acc := make([]float64, len(summaries))
	for i, s := range summaries {
		acc[i] = s.Accuracy
	}
	return stat.Mean(acc, nil)
}

// ReasonCounts tallies failure reasons across summaries.
func ReasonCounts(summaries []Summary) map[matcher.Reason]int {
	out := make(map[matcher.Reason]int)
	for _, s := range summaries {
		for r, n := range s.Reasons {
			out[matcher.Reason(r)] += n
		}
	}
	return out
}
