// Package harness drives an evaluation run: it prompts the provider for every
// item, grades the completion and scores each category.
package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/fceval/fceval/callparse"
	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
	"github.com/ZanzyTHEbar/fceval/fceval/dataset"
	ports "github.com/ZanzyTHEbar/fceval/fceval/harness/ports"
	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

// Verdict values for items that never reached the matcher.
const (
	KindProviderError   matcher.Kind   = "provider_error"
	ReasonProviderError matcher.Reason = "provider_error"
)

// ItemResult is the graded outcome of one item.
type ItemResult struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Verdict  matcher.Verdict `json:"verdict"`
	Raw      string          `json:"raw,omitempty"` // sanitized completion text
	Usage    ports.Usage     `json:"usage"`
	Latency  time.Duration   `json:"latency"`
	Cached   bool            `json:"cached,omitempty"`
	Err      error           `json:"-"` // provider failure, if any
}

// CategoryResult holds the per-item results and summary of one category.
type CategoryResult struct {
	Category string       `json:"category"`
	Items    []ItemResult `json:"items"`
	Summary  Summary      `json:"summary"`
}

// Report is the outcome of a full run.
type Report struct {
	RunID      string           `json:"run_id"`
	Model      string           `json:"model"`
	Strategy   string           `json:"strategy"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Categories []CategoryResult `json:"categories"`
	FCScore    float64          `json:"fc_score"`
}

// Summaries returns the category summaries in run order.
func (r *Report) Summaries() []Summary {
	out := make([]Summary, len(r.Categories))
	for i, c := range r.Categories {
		out[i] = c.Summary
	}
	return out
}

// RunnerConfig carries the non-adapter settings of a Runner.
type RunnerConfig struct {
	SamplesDir  string
	AnswersDir  string
	Concurrency int
	Checker     matcher.Checker
	Validator   *catalog.Validator // nil skips catalog validation
	Options     ports.Options
	Logger      zerolog.Logger
}

// Runner evaluates categories against a provider.
type Runner struct {
	provider ports.Provider
	builder  *PromptBuilder
	guard    *OutputGuard
	store    ports.ResultStore
	cache    ports.Cache
	limiter  ports.RateLimiter
	tracer   ports.Tracer
	parser   *callparse.Parser
	cfg      RunnerConfig
	logger   zerolog.Logger
}

// NewRunner creates a runner with dependencies.
func NewRunner(
	provider ports.Provider,
	builder *PromptBuilder,
	guard *OutputGuard,
	store ports.ResultStore,
	cache ports.Cache,
	limiter ports.RateLimiter,
	tracer ports.Tracer,
	cfg RunnerConfig,
) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		provider: provider,
		builder:  builder,
		guard:    guard,
		store:    store,
		cache:    cache,
		limiter:  limiter,
		tracer:   tracer,
		parser:   callparse.NewParser(callparse.WithLogger(cfg.Logger)),
		cfg:      cfg,
		logger:   cfg.Logger,
	}
}

// Run evaluates every category in order and scores the run. Item failures are
// recorded in the report; only dataset errors and cancellation abort it.
func (r *Runner) Run(ctx context.Context, categories []string) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Model:     r.cfg.Options.Model,
		Strategy:  r.cfg.Checker.Strategy.String(),
		StartedAt: time.Now(),
	}

	if err := r.store.SaveRun(ctx, ports.Run{
		ID:         report.RunID,
		Model:      report.Model,
		Strategy:   report.Strategy,
		Categories: categories,
		StartedAt:  report.StartedAt,
	}); err != nil {
		// Log but don't fail
		r.logger.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to save run")
	}

	for _, category := range categories {
		res, err := r.RunCategory(ctx, report.RunID, category)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		report.Categories = append(report.Categories, *res)
		r.logger.Info().
			Str("category", category).
			Float64("accuracy", res.Summary.Accuracy).
			Int("total", res.Summary.TotalCount).
			Int("errors", res.Summary.ErrorCount).
			Msg("Category evaluated")
	}

	report.FCScore = Score(report.Summaries())
	report.FinishedAt = time.Now()

	summary, err := json.Marshal(struct {
		Summaries []Summary `json:"summaries"`
		FCScore   float64   `json:"fc_score"`
	}{report.Summaries(), report.FCScore})
	if err == nil {
		err = r.store.FinishRun(ctx, report.RunID, report.FinishedAt, summary)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to finish run")
	}

	return report, nil
}

// RunCategory loads one category and evaluates its items concurrently.
func (r *Runner) RunCategory(ctx context.Context, runID, category string) (*CategoryResult, error) {
	ctx, finish := r.tracer.StartSpan(ctx, "run_category", map[string]any{
		"run_id":   runID,
		"category": category,
	})

	res, err := r.runCategory(ctx, runID, category)
	finish(err)
	return res, err
}

func (r *Runner) runCategory(ctx context.Context, runID, category string) (*CategoryResult, error) {
	ds, err := dataset.Load(ctx, r.cfg.SamplesDir, r.cfg.AnswersDir, category)
	if err != nil {
		return nil, err
	}
	if len(ds.Unmatched) > 0 {
		r.logger.Warn().Str("category", category).Strs("ids", ds.Unmatched).Msg("Answers without a sample")
	}

	if r.cfg.Validator != nil {
		for _, item := range ds.Items {
			if err := r.cfg.Validator.ValidateCatalog(item.RawFunctions); err != nil {
				return nil, fmt.Errorf("item %s: %w", item.ID, err)
			}
		}
	}

	results := make([]ItemResult, len(ds.Items))
	p := pool.New().WithMaxGoroutines(r.cfg.Concurrency).WithContext(ctx)
	for i, item := range ds.Items {
		p.Go(func(ctx context.Context) error {
			res, err := r.EvaluateItem(ctx, category, item)
			if err != nil {
				return err
			}
			results[i] = res
			r.persist(ctx, runID, res)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	return &CategoryResult{
		Category: category,
		Items:    results,
		Summary:  Summarize(category, results),
	}, nil
}

// EvaluateItem prompts the provider for one item and grades the completion. The
// returned error is non-nil only when ctx is done; provider failures are recorded
// in the result.
func (r *Runner) EvaluateItem(ctx context.Context, category string, item dataset.Item) (ItemResult, error) {
	ctx, finish := r.tracer.StartSpan(ctx, "evaluate_item", map[string]any{
		"category": category,
		"item_id":  item.ID,
	})

	res := ItemResult{ID: item.ID, Category: category}

	in, err := r.builder.ForItem(category, item)
	if err != nil {
		res.Verdict = conversionVerdict(err.Error())
		finish(nil)
		return res, nil
	}

	start := time.Now()
	completion, cached, err := r.complete(ctx, in)
	res.Latency = time.Since(start)
	res.Cached = cached
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			finish(ctxErr)
			return res, ctxErr
		}
		r.logger.Warn().Err(err).Str("item_id", item.ID).Msg("Provider call failed")
		res.Err = err
		res.Verdict = matcher.Verdict{
			Kind:   KindProviderError,
			Reason: ReasonProviderError,
			Error:  err.Error(),
		}
		finish(err)
		return res, nil
	}
	if completion.Usage != nil {
		res.Usage = *completion.Usage
	}

	res.Raw = r.guard.SanitizeOutput(completion.Text)
	res.Verdict = r.Grade(category, item, completion.Text)

	r.tracer.Event(ctx, "verdict", map[string]any{
		"valid":  res.Verdict.Valid,
		"reason": string(res.Verdict.Reason),
		"cached": cached,
	})
	finish(nil)
	return res, nil
}

// Grade parses a completion and matches it against the item's answers.
func (r *Runner) Grade(category string, item dataset.Item, text string) matcher.Verdict {
	return Grade(r.parser, r.guard, r.cfg.Checker, category, item, text)
}

// Grade parses text and matches it against item. It is the offline half of an
// item evaluation.
func Grade(parser *callparse.Parser, guard *OutputGuard, checker matcher.Checker, category string, item dataset.Item, text string) matcher.Verdict {
	if strings.TrimSpace(text) == "" {
		return conversionVerdict("No content found in response")
	}
	if guard != nil {
		if err := guard.ValidateOutputSize(text); err != nil {
			return conversionVerdict(err.Error())
		}
	}

	parsed, parseErr := parser.Parse(text)
	return checker.Match(item.Functions, matcher.ParseRegime(category), parsed, parseErr, item.Answers)
}

func conversionVerdict(msg string) matcher.Verdict {
	return matcher.Verdict{
		Kind:   matcher.KindConversionError,
		Reason: matcher.ReasonConversion,
		Error:  msg,
	}
}

// complete returns a cached completion for in when there is one, otherwise calls
// the provider under the rate limiter and caches the answer.
func (r *Runner) complete(ctx context.Context, in ports.PromptInput) (ports.Completion, bool, error) {
	key := r.cacheKey(in)
	if data, ok := r.cache.Get(ctx, key); ok {
		var c ports.Completion
		if err := json.Unmarshal(data, &c); err == nil {
			r.tracer.Event(ctx, "cache_hit", map[string]any{"key": key})
			return c, true, nil
		}
		_ = r.cache.Delete(ctx, key)
	}

	release, err := r.limiter.Acquire(ctx, r.cfg.Options.Model)
	if err != nil {
		return ports.Completion{}, false, fmt.Errorf("rate limit: %w", err)
	}
	defer release()

	ctx, spanFinish := r.tracer.StartSpan(ctx, "provider_call", map[string]any{
		"model": r.cfg.Options.Model,
	})
	completion, err := r.provider.Complete(ctx, in, r.cfg.Options)
	spanFinish(err)
	if err != nil {
		return ports.Completion{}, false, err
	}

	if data, err := json.Marshal(completion); err == nil {
		_ = r.cache.Set(ctx, key, data)
	}
	return completion, false, nil
}

// cacheKey derives a stable name-based UUID from the model and prompt contents.
func (r *Runner) cacheKey(in ports.PromptInput) string {
	var sb strings.Builder
	sb.WriteString(r.cfg.Options.Model)
	sb.WriteByte(0)
	sb.WriteString(in.System)
	for _, m := range in.Messages {
		sb.WriteByte(0)
		sb.WriteString(m.Role)
		sb.WriteByte(':')
		sb.WriteString(m.Content)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sb.String())).String()
}

func (r *Runner) persist(ctx context.Context, runID string, res ItemResult) {
	err := r.store.SaveResult(ctx, ports.ResultRecord{
		RunID:     runID,
		Category:  res.Category,
		ItemID:    res.ID,
		Valid:     res.Verdict.Valid,
		Kind:      string(res.Verdict.Kind),
		Reason:    string(res.Verdict.Reason),
		Error:     res.Verdict.Error,
		Raw:       res.Raw,
		Usage:     res.Usage,
		Latency:   res.Latency,
		CreatedAt: time.Now(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn().Err(err).Str("item_id", res.ID).Msg("Failed to save result")
	}
}
