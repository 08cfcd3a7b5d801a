package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/fceval/fceval/harness/ports"
)

// LibSQLResultStore implements ResultStore on a migrated libsql database.
type LibSQLResultStore struct {
	db *sql.DB
}

// NewLibSQLResultStore creates a result store. The schema must already be migrated.
func NewLibSQLResultStore(db *sql.DB) *LibSQLResultStore {
	return &LibSQLResultStore{
		db: db,
	}
}

// SaveRun records the start of a run.
func (s *LibSQLResultStore) SaveRun(ctx context.Context, run ports.Run) error {
	categories, err := json.Marshal(run.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO eval_runs (id, model, strategy, categories, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query, run.ID, run.Model, run.Strategy, string(categories), formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its completion time and summary document.
func (s *LibSQLResultStore) FinishRun(ctx context.Context, runID string, finishedAt time.Time, summary []byte) error {
	query := `UPDATE eval_runs SET finished_at = ?, summary_json = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, formatTime(finishedAt), string(summary), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// SaveResult saves one item outcome, replacing an earlier result for the same item.
func (s *LibSQLResultStore) SaveResult(ctx context.Context, rec ports.ResultRecord) error {
	query := `
		INSERT OR REPLACE INTO eval_results (
			run_id, category, item_id, is_valid, kind, reason, error, raw_output,
			prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	valid := 0
	if rec.Valid {
		valid = 1
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.RunID, rec.Category, rec.ItemID, valid, rec.Kind, rec.Reason, rec.Error, rec.Raw,
		rec.Usage.PromptTokens, rec.Usage.CompletionTokens, rec.Usage.TotalTokens,
		rec.Latency.Milliseconds(), formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save result for %s/%s: %w", rec.Category, rec.ItemID, err)
	}
	return nil
}

// ListResults returns the results of a run ordered by category and insertion.
func (s *LibSQLResultStore) ListResults(ctx context.Context, runID string) ([]ports.ResultRecord, error) {
	query := `
		SELECT category, item_id, is_valid, kind, reason, error, raw_output,
		       prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at
		FROM eval_results
		WHERE run_id = ?
		ORDER BY category, rowid
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var records []ports.ResultRecord
	for rows.Next() {
		var (
			rec       ports.ResultRecord
			valid     int
			latencyMs int64
			createdAt string
		)
		if err := rows.Scan(
			&rec.Category, &rec.ItemID, &valid, &rec.Kind, &rec.Reason, &rec.Error, &rec.Raw,
			&rec.Usage.PromptTokens, &rec.Usage.CompletionTokens, &rec.Usage.TotalTokens,
			&latencyMs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		rec.RunID = runID
		rec.Valid = valid != 0
		rec.Latency = time.Duration(latencyMs) * time.Millisecond
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return records, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Ensure LibSQLResultStore implements the ResultStore interface.
var _ ports.ResultStore = (*LibSQLResultStore)(nil)
