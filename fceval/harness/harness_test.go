package harness

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/fceval/fceval/callparse"
	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
	"github.com/ZanzyTHEbar/fceval/fceval/config"
	"github.com/ZanzyTHEbar/fceval/fceval/dataset"
	"github.com/ZanzyTHEbar/fceval/fceval/harness/adapters"
	ports "github.com/ZanzyTHEbar/fceval/fceval/harness/ports"
	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

// mockProvider implements Provider for testing.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	args := m.Called(ctx, in, opts)
	return args.Get(0).(ports.Completion), args.Error(1)
}

func asking(question string) any {
	return mock.MatchedBy(func(in ports.PromptInput) bool {
		return len(in.Messages) == 1 && in.Messages[0].Content == question
	})
}

func completion(text string, prompt, output int) ports.Completion {
	return ports.Completion{
		Text:  text,
		Usage: &ports.Usage{PromptTokens: prompt, CompletionTokens: output, TotalTokens: prompt + output},
	}
}

// memoryStore implements ResultStore for testing.
type memoryStore struct {
	mu       sync.Mutex
	runs     map[string]ports.Run
	finished map[string][]byte
	results  []ports.ResultRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: map[string]ports.Run{}, finished: map[string][]byte{}}
}

func (s *memoryStore) SaveRun(_ context.Context, run ports.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *memoryStore) FinishRun(_ context.Context, runID string, _ time.Time, summary []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[runID] = summary
	return nil
}

func (s *memoryStore) SaveResult(_ context.Context, rec ports.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, rec)
	return nil
}

func (s *memoryStore) ListResults(_ context.Context, runID string) ([]ports.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.ResultRecord
	for _, r := range s.results {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

const weatherFunction = `{"name": "get_weather", "description": "Forecast for a city",
  "parameters": {"type": "dict", "properties": {
    "city": {"type": "string", "description": "City name"},
    "days": {"type": "integer", "description": "Days ahead"}},
  "required": ["city"]}}`

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"simple_FC.json": `[
		  {"id": "simple_0", "question": [[{"role": "user", "content": "Weather in Paris?"}]], "function": [` + weatherFunction + `]},
		  {"id": "simple_1", "question": [[{"role": "user", "content": "Weather in Rome?"}]], "function": [` + weatherFunction + `]}
		]`,
		"simple_FC_answers.json": `[
		  {"id": "simple_0", "ground_truth": {"get_weather": {"city": ["Paris"], "days": ["", 1]}}},
		  {"id": "simple_1", "ground_truth": {"get_weather": {"city": ["Rome"], "days": [""]}}}
		]`,
		"parallel_FC.json": `[
		  {"id": "parallel_0", "question": [[{"role": "user", "content": "Weather in Oslo and Bern?"}]], "function": [` + weatherFunction + `]}
		]`,
		"parallel_FC_answers.json": `[
		  {"id": "parallel_0", "ground_truth": [
		    {"get_weather": {"city": ["Oslo"], "days": [""]}},
		    {"get_weather": {"city": ["Bern"], "days": [""]}}]}
		]`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newTestRunner(t *testing.T, provider ports.Provider, store ports.ResultStore, cache ports.Cache) *Runner {
	t.Helper()
	dir := writeDataset(t)
	validator, err := catalog.NewValidator()
	require.NoError(t, err)
	if cache == nil {
		cache = &noOpCache{}
	}
	return NewRunner(
		provider,
		NewPromptBuilder(),
		NewOutputGuard(1000),
		store,
		cache,
		&noOpRateLimiter{},
		adapters.NewZerologTracer(zerolog.Nop()),
		RunnerConfig{
			SamplesDir:  dir,
			AnswersDir:  dir,
			Concurrency: 2,
			Validator:   validator,
			Options:     ports.Options{Model: "test-model"},
			Logger:      zerolog.Nop(),
		},
	)
}

func TestPromptBuilder_ForItem(t *testing.T) {
	items, err := dataset.ParseSamples([]byte(`[{"id": "simple_0",
	  "question": [[{"role": "user", "content": "  Weather in Paris?\r\n"}]], "function": [` + weatherFunction + `]}]`))
	require.NoError(t, err)

	in, err := NewPromptBuilder().ForItem("simple", items[0])
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(in.System, "You are an expert in composing functions."))
	assert.True(t, strings.HasSuffix(in.System, "    - days (integer): Days ahead"), "trailing newline is trimmed")
	require.Len(t, in.Messages, 1)
	assert.Equal(t, "user", in.Messages[0].Role)
	assert.Equal(t, "Weather in Paris?", in.Messages[0].Content)
	assert.Equal(t, "simple_0", in.Meta["item_id"])

	require.Len(t, in.Tools, 1)
	assert.Equal(t, "get_weather", in.Tools[0].Name)
	assert.JSONEq(t, `{"type": "dict", "properties": {
	  "city": {"type": "string", "description": "City name"},
	  "days": {"type": "integer", "description": "Days ahead"}},
	  "required": ["city"]}`, string(in.Tools[0].JSONSchema))
}

func TestPromptBuilder_ForItemWithoutQuestion(t *testing.T) {
	_, err := NewPromptBuilder().ForItem("simple", dataset.Item{ID: "x"})
	assert.ErrorIs(t, err, dataset.ErrNoPrompt)
}

func TestDescribeFunctions(t *testing.T) {
	var cat catalog.Catalog
	require.NoError(t, json.Unmarshal([]byte(`[`+weatherFunction+`,
	  {"name": "ping", "description": "No arguments", "parameters": {"type": "dict", "properties": {}, "required": []}}]`), &cat))

	want := "\n\nAvailable functions:\n" +
		"- get_weather: Forecast for a city\n" +
		"  Parameters:\n" +
		"    - city (string): City name\n" +
		"    - days (integer): Days ahead\n" +
		"- ping: No arguments\n"
	assert.Equal(t, want, DescribeFunctions(cat))
	assert.Empty(t, DescribeFunctions(nil))
}

func TestOutputGuard(t *testing.T) {
	g := NewOutputGuard(10)
	assert.NoError(t, g.ValidateOutputSize("[f(a=1)]"))
	err := g.ValidateOutputSize("[f(a=1, b=2)]")
	assert.ErrorIs(t, err, ErrOutputTooLarge)

	assert.NoError(t, NewOutputGuard(0).ValidateOutputSize(strings.Repeat("x", 1<<16)))

	out := g.SanitizeOutput("[login(user='a', password='hunter2')] api_key=abc sk-abcdefghijklmnopqrstu")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "abc ")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstu")
	assert.Contains(t, out, "[REDACTED]")
}

func TestGrade(t *testing.T) {
	dir := writeDataset(t)
	ds, err := dataset.Load(context.Background(), dir, dir, "simple")
	require.NoError(t, err)
	item := ds.Items[0]
	parser := callparse.NewParser()

	v := Grade(parser, nil, matcher.Checker{}, "simple", item, "[get_weather(city='Paris')]")
	assert.True(t, v.Valid, v.Error)

	v = Grade(parser, nil, matcher.Checker{}, "simple", item, "   ")
	assert.Equal(t, matcher.KindConversionError, v.Kind)
	assert.Equal(t, "No content found in response", v.Error)

	v = Grade(parser, NewOutputGuard(5), matcher.Checker{}, "simple", item, "[get_weather(city='Paris')]")
	assert.Equal(t, matcher.ReasonConversion, v.Reason)
	assert.Contains(t, v.Error, "exceeds maximum 5")

	v = Grade(parser, nil, matcher.Checker{}, "simple", item, "get_weather(city='Paris')")
	assert.Equal(t, matcher.KindConversionError, v.Kind)
}

func TestSummarize(t *testing.T) {
	results := []ItemResult{
		{Verdict: matcher.Verdict{Valid: true}, Usage: ports.Usage{PromptTokens: 8, CompletionTokens: 2}},
		{Verdict: matcher.Verdict{Reason: matcher.ReasonValueMismatch}, Usage: ports.Usage{PromptTokens: 15, CompletionTokens: 5}},
		{Verdict: matcher.Verdict{Valid: true}, Usage: ports.Usage{PromptTokens: 25, CompletionTokens: 5}},
		{Verdict: matcher.Verdict{Kind: KindProviderError, Reason: ReasonProviderError}, Usage: ports.Usage{PromptTokens: 30, CompletionTokens: 10}},
	}

	s := Summarize("simple", results)
	assert.Equal(t, "simple", s.Category)
	assert.Equal(t, 4, s.TotalCount)
	assert.Equal(t, 2, s.ErrorCount)
	assert.InDelta(t, 0.5, s.Accuracy, 1e-12)
	assert.Equal(t, []uint32{1, 3}, s.Failed())
	assert.Equal(t, map[string]int{"value_mismatch": 1, "provider_error": 1}, s.Reasons)

	tu := s.TokenUsage
	assert.Equal(t, 78, tu.TotalInputTokens)
	assert.Equal(t, 22, tu.TotalOutputTokens)
	assert.Equal(t, 100, tu.TotalTokens)
	assert.InDelta(t, 25.0, tu.AverageTokensPerCall, 1e-9)
	assert.InDelta(t, 25.0, tu.MeanTokenUsage, 1e-9)
	// totals 10, 20, 30, 40
	assert.InDelta(t, 12.909944487358056, tu.StdTokenUsage, 1e-9)
	assert.InDelta(t, 38.5, tu.Percentile95, 1e-9)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"failed_indexes":[1,3]`)
	assert.Contains(t, string(data), `"percentile_95_token_usage":38.5`)
}

func TestSummarize_EdgeCases(t *testing.T) {
	empty := Summarize("simple", nil)
	assert.Zero(t, empty.Accuracy)
	assert.Zero(t, empty.TokenUsage.Percentile95)
	assert.Empty(t, empty.Failed())

	one := Summarize("simple", []ItemResult{{Verdict: matcher.Verdict{Valid: true}, Usage: ports.Usage{PromptTokens: 7}}})
	assert.Equal(t, 1.0, one.Accuracy)
	assert.Zero(t, one.TokenUsage.StdTokenUsage)
	assert.InDelta(t, 7.0, one.TokenUsage.Percentile95, 1e-12)
}

func TestPercentile(t *testing.T) {
	assert.InDelta(t, 4.8, percentile([]float64{5, 1, 4, 2, 3}, 0.95), 1e-12)
	assert.InDelta(t, 3.0, percentile([]float64{1, 2, 3, 4, 5}, 0.5), 1e-12)
	assert.InDelta(t, 5.0, percentile([]float64{1, 2, 3, 4, 5}, 1), 1e-12)
}

func TestScore(t *testing.T) {
	assert.Zero(t, Score(nil))
	assert.InDelta(t, 0.5, Score([]Summary{{Accuracy: 1}, {Accuracy: 0.5}, {Accuracy: 0}}), 1e-12)

	counts := ReasonCounts([]Summary{
		{Reasons: map[string]int{"value_mismatch": 2}},
		{Reasons: map[string]int{"value_mismatch": 1, "cardinality": 1}},
	})
	assert.Equal(t, 3, counts[matcher.ReasonValueMismatch])
	assert.Equal(t, 1, counts[matcher.ReasonCardinality])
}

func TestRunner_Run(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Complete", mock.Anything, asking("Weather in Paris?"), mock.Anything).
		Return(completion("[get_weather(city='Paris', days=1)]", 100, 10), nil).Once()
	provider.On("Complete", mock.Anything, asking("Weather in Rome?"), mock.Anything).
		Return(completion("[get_weather(city='Milan')]", 100, 6), nil).Once()
	provider.On("Complete", mock.Anything, asking("Weather in Oslo and Bern?"), mock.Anything).
		Return(completion("[get_weather(city='Bern'), get_weather(city='Oslo')]", 120, 14), nil).Once()

	store := newMemoryStore()
	runner := newTestRunner(t, provider, store, nil)

	report, err := runner.Run(context.Background(), []string{"simple", "parallel"})
	require.NoError(t, err)
	provider.AssertExpectations(t)

	require.Len(t, report.Categories, 2)
	simple := report.Categories[0]
	assert.Equal(t, "simple", simple.Category)
	require.Len(t, simple.Items, 2)
	assert.Equal(t, "simple_0", simple.Items[0].ID)
	assert.True(t, simple.Items[0].Verdict.Valid, simple.Items[0].Verdict.Error)
	assert.Equal(t, matcher.ReasonValueMismatch, simple.Items[1].Verdict.Reason)
	assert.InDelta(t, 0.5, simple.Summary.Accuracy, 1e-12)

	parallel := report.Categories[1]
	assert.True(t, parallel.Items[0].Verdict.Valid, parallel.Items[0].Verdict.Error)
	assert.InDelta(t, 0.75, report.FCScore, 1e-12)
	assert.Equal(t, "test-model", report.Model)
	assert.Equal(t, "first_fit", report.Strategy)

	recs, err := store.ListResults(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Contains(t, store.runs, report.RunID)
	assert.Contains(t, string(store.finished[report.RunID]), `"fc_score":0.75`)
}

func TestRunner_ProviderErrorIsRecorded(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Complete", mock.Anything, asking("Weather in Paris?"), mock.Anything).
		Return(ports.Completion{}, errors.New("upstream unavailable"))
	provider.On("Complete", mock.Anything, asking("Weather in Rome?"), mock.Anything).
		Return(completion("", 50, 0), nil)

	runner := newTestRunner(t, provider, &noOpStore{}, nil)
	res, err := runner.RunCategory(context.Background(), "run", "simple")
	require.NoError(t, err)

	failed := res.Items[0]
	assert.Error(t, failed.Err)
	assert.Equal(t, KindProviderError, failed.Verdict.Kind)
	assert.Equal(t, ReasonProviderError, failed.Verdict.Reason)
	assert.Contains(t, failed.Verdict.Error, "upstream unavailable")

	empty := res.Items[1]
	assert.NoError(t, empty.Err)
	assert.Equal(t, "No content found in response", empty.Verdict.Error)
	assert.Equal(t, 2, res.Summary.ErrorCount)
}

func TestRunner_CachesCompletions(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Complete", mock.Anything, asking("Weather in Paris?"), mock.Anything).
		Return(completion("[get_weather(city='Paris')]", 10, 2), nil).Once()
	provider.On("Complete", mock.Anything, asking("Weather in Rome?"), mock.Anything).
		Return(completion("[get_weather(city='Rome')]", 10, 2), nil).Once()

	runner := newTestRunner(t, provider, &noOpStore{}, adapters.NewLRUCache(16, time.Minute))

	first, err := runner.RunCategory(context.Background(), "run-1", "simple")
	require.NoError(t, err)
	second, err := runner.RunCategory(context.Background(), "run-2", "simple")
	require.NoError(t, err)

	provider.AssertNumberOfCalls(t, "Complete", 2)
	for i := range second.Items {
		assert.False(t, first.Items[i].Cached)
		assert.True(t, second.Items[i].Cached)
		assert.Equal(t, first.Items[i].Verdict, second.Items[i].Verdict)
		assert.Equal(t, first.Items[i].Usage, second.Items[i].Usage)
	}
}

func TestRunner_CacheKeyIsStable(t *testing.T) {
	runner := newTestRunner(t, new(mockProvider), &noOpStore{}, nil)
	in := ports.PromptInput{System: "s", Messages: []ports.PromptMessage{{Role: "user", Content: "q"}}}

	assert.Equal(t, runner.cacheKey(in), runner.cacheKey(in))
	other := in
	other.Messages = []ports.PromptMessage{{Role: "user", Content: "q2"}}
	assert.NotEqual(t, runner.cacheKey(in), runner.cacheKey(other))
}

func TestRunner_Cancelled(t *testing.T) {
	provider := new(mockProvider)
	provider.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(ports.Completion{}, context.Canceled)

	runner := newTestRunner(t, provider, &noOpStore{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.RunCategory(ctx, "run", "simple")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_MissingCategory(t *testing.T) {
	runner := newTestRunner(t, new(mockProvider), &noOpStore{}, nil)
	_, err := runner.Run(context.Background(), []string{"multiple"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunner_RejectsInvalidCatalog(t *testing.T) {
	runner := newTestRunner(t, new(mockProvider), &noOpStore{}, nil)
	bad := `[{"id": "simple_0", "question": [[{"role": "user", "content": "q"}]],
	  "function": [{"name": "f", "description": "d", "parameters": {"type": "dict",
	    "properties": {"a": {"type": "str"}}, "required": []}}]}]`
	require.NoError(t, os.WriteFile(dataset.SamplesPath(runner.cfg.SamplesDir, "simple"), []byte(bad), 0o644))

	_, err := runner.RunCategory(context.Background(), "run", "simple")
	assert.ErrorIs(t, err, catalog.ErrInvalidSignature)
}

func TestFactory_Wiring(t *testing.T) {
	cfg := &config.Config{
		Eval: config.EvalConfig{
			SamplesDir:      "samples",
			AnswersDir:      "answers",
			Concurrency:     3,
			Strategy:        "maximum",
			ValidateCatalog: true,
		},
		Provider: config.ProviderConfig{Model: "m", TopP: 0.95},
		Harness: config.HarnessConfig{
			CacheEnabled:        true,
			CacheCapacity:       10,
			CacheTTLSeconds:     60,
			RateLimitEnabled:    true,
			RateLimitCapacity:   2,
			RateLimitRefillRate: time.Second,
			MaxOutputSize:       100,
			EnableTracing:       true,
		},
		Store: config.StoreConfig{Enabled: true},
	}

	factory := NewFactory(cfg, nil, zerolog.Nop())

	assert.IsType(t, &adapters.LRUCache{}, factory.createCache())
	assert.IsType(t, &adapters.TokenBucket{}, factory.createRateLimiter())
	assert.IsType(t, &adapters.ZerologTracer{}, factory.createTracer())
	assert.IsType(t, &noOpStore{}, factory.createStore(), "no database means no persistence")
	assert.Equal(t, matcher.StrategyMaximum, factory.CreateChecker().Strategy)

	runner, err := factory.CreateRunner(nil)
	require.NoError(t, err)
	assert.IsType(t, &adapters.OpenAIProvider{}, runner.provider)
	assert.NotNil(t, runner.cfg.Validator)
	assert.Equal(t, 3, runner.cfg.Concurrency)
	assert.Equal(t, "m", runner.cfg.Options.Model)

	cfg.Harness.CacheEnabled = false
	cfg.Harness.RateLimitEnabled = false
	cfg.Harness.EnableTracing = false
	assert.IsType(t, &noOpCache{}, factory.createCache())
	assert.IsType(t, &noOpRateLimiter{}, factory.createRateLimiter())
	assert.IsType(t, &noOpTracer{}, factory.createTracer())
}

// BenchmarkPromptBuilder_ForItem benchmarks prompt construction.
func BenchmarkPromptBuilder_ForItem(b *testing.B) {
	items, err := dataset.ParseSamples([]byte(`[{"id": "simple_0",
	  "question": [[{"role": "user", "content": "Weather in Paris?"}]], "function": [` + weatherFunction + `]}]`))
	if err != nil {
		b.Fatal(err)
	}
	builder := NewPromptBuilder()

	for b.Loop() {
		_, _ = builder.ForItem("simple", items[0])
	}
}
