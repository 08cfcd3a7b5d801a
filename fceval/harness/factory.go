package harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/fceval/fceval/catalog"
	"github.com/ZanzyTHEbar/fceval/fceval/config"
	"github.com/ZanzyTHEbar/fceval/fceval/harness/adapters"
	ports "github.com/ZanzyTHEbar/fceval/fceval/harness/ports"
	"github.com/ZanzyTHEbar/fceval/fceval/matcher"
)

// Factory creates and wires harness components from configuration.
type Factory struct {
	cfg    *config.Config
	db     *sql.DB // Optional, for the result store
	logger zerolog.Logger
}

// NewFactory creates a new harness factory.
func NewFactory(cfg *config.Config, db *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// CreateRunner creates a fully wired Runner. A nil provider selects the
// OpenAI-compatible provider described by the config.
func (f *Factory) CreateRunner(provider ports.Provider) (*Runner, error) {
	if provider == nil {
		provider = adapters.NewOpenAIProvider(f.cfg.Provider, f.logger)
	}

	var validator *catalog.Validator
	if f.cfg.Eval.ValidateCatalog {
		v, err := catalog.NewValidator()
		if err != nil {
			return nil, fmt.Errorf("failed to create catalog validator: %w", err)
		}
		validator = v
	}

	return NewRunner(
		provider,
		NewPromptBuilder(),
		f.CreateGuard(),
		f.createStore(),
		f.createCache(),
		f.createRateLimiter(),
		f.createTracer(),
		RunnerConfig{
			SamplesDir:  f.cfg.Eval.SamplesDir,
			AnswersDir:  f.cfg.Eval.AnswersDir,
			Concurrency: f.cfg.Eval.Concurrency,
			Checker:     f.CreateChecker(),
			Validator:   validator,
			Options: ports.Options{
				Model:        f.cfg.Provider.Model,
				MaxNewTokens: f.cfg.Provider.MaxTokens,
				Temperature:  f.cfg.Provider.Temperature,
				TopP:         f.cfg.Provider.TopP,
			},
			Logger: f.logger,
		},
	), nil
}

// CreateChecker builds the matcher configured by eval.strategy.
func (f *Factory) CreateChecker() matcher.Checker {
	return matcher.Checker{Strategy: matcher.ParseStrategy(f.cfg.Eval.Strategy)}
}

// CreateGuard creates the output guard from config.
func (f *Factory) CreateGuard() *OutputGuard {
	return NewOutputGuard(f.cfg.Harness.MaxOutputSize)
}

// createCache creates a cache adapter from config.
func (f *Factory) createCache() ports.Cache {
	if !f.cfg.Harness.CacheEnabled {
		return &noOpCache{}
	}

	ttl := time.Duration(f.cfg.Harness.CacheTTLSeconds) * time.Second
	return adapters.NewLRUCache(f.cfg.Harness.CacheCapacity, ttl)
}

// createRateLimiter creates a rate limiter adapter from config.
func (f *Factory) createRateLimiter() ports.RateLimiter {
	if !f.cfg.Harness.RateLimitEnabled {
		return &noOpRateLimiter{}
	}

	return adapters.NewTokenBucket(f.cfg.Harness.RateLimitCapacity, f.cfg.Harness.RateLimitRefillRate)
}

// createTracer creates a tracer adapter from config.
func (f *Factory) createTracer() ports.Tracer {
	if !f.cfg.Harness.EnableTracing {
		return &noOpTracer{}
	}

	return adapters.NewZerologTracer(f.logger)
}

// createStore creates a result store adapter when persistence is enabled.
func (f *Factory) createStore() ports.ResultStore {
	if f.db == nil || !f.cfg.Store.Enabled {
		return &noOpStore{}
	}

	return adapters.NewLibSQLResultStore(f.db)
}

// noOpCache implements Cache interface with no-op behavior for testing/disabled cache.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool)      { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte) error { return nil }
func (c *noOpCache) Delete(ctx context.Context, key string) error            { return nil }

// noOpRateLimiter implements RateLimiter interface with no-op behavior.
type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	return func() {}, nil
}

// noOpTracer implements Tracer interface with no-op behavior.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// noOpStore implements ResultStore interface with no-op behavior.
type noOpStore struct{}

func (s *noOpStore) SaveRun(ctx context.Context, run ports.Run) error { return nil }

func (s *noOpStore) FinishRun(ctx context.Context, runID string, finishedAt time.Time, summary []byte) error {
	return nil
}

func (s *noOpStore) SaveResult(ctx context.Context, rec ports.ResultRecord) error { return nil }

func (s *noOpStore) ListResults(ctx context.Context, runID string) ([]ports.ResultRecord, error) {
	return nil, nil
}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache       = (*noOpCache)(nil)
	_ ports.RateLimiter = (*noOpRateLimiter)(nil)
	_ ports.Tracer      = (*noOpTracer)(nil)
	_ ports.ResultStore = (*noOpStore)(nil)
)
