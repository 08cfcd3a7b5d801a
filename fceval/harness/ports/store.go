package harnessports

import (
	"context"
	"time"
)

// Run describes one evaluation run.
type Run struct {
	ID         string
	Model      string
	Strategy   string
	Categories []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ResultRecord is the persisted outcome of one item.
type ResultRecord struct {
	RunID     string
	Category  string
	ItemID    string
	Valid     bool
	Kind      string
	Reason    string
	Error     string
	Raw       string // completion text as received
	Usage     Usage
	Latency   time.Duration
	CreatedAt time.Time
}

// ResultStore persists runs and per-item results.
type ResultStore interface {
	SaveRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, summary []byte) error
	SaveResult(ctx context.Context, rec ResultRecord) error
	ListResults(ctx context.Context, runID string) ([]ResultRecord, error)
}
