package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run is one persisted benchmark run: the configuration echo plus the
// aggregate statistics.
type Run struct {
	ID       string    `json:"id"`
	RunDate  time.Time `json:"run_date"`
	Backend  string    `json:"backend"`
	Endpoint string    `json:"endpoint"`
	Model    string    `json:"model,omitempty"`

	NumClients       int  `json:"num_clients"`
	NumRequests      int  `json:"num_requests"`
	Warmup           int  `json:"warmup"`
	Stream           bool `json:"stream"`
	MeanPromptLength int  `json:"mean_prompt_length"`
	MeanMaxNewTokens int  `json:"mean_max_new_tokens"`

	DurationSec    float64 `json:"duration_sec"`
	RequestsPerSec float64 `json:"requests_per_sec"`
	TotalTokens    int     `json:"total_tokens"`
	TokensPerSec   float64 `json:"tokens_per_sec"`
	LatencyMeanMS  float64 `json:"latency_mean_ms"`
	LatencyP50MS   float64 `json:"latency_p50_ms"`
	LatencyP90MS   float64 `json:"latency_p90_ms"`
	LatencyP99MS   float64 `json:"latency_p99_ms"`
	TTFTMeanMS     float64 `json:"ttft_mean_ms"`
	TTFTP50MS      float64 `json:"ttft_p50_ms"`
	TTFTP90MS      float64 `json:"ttft_p90_ms"`
	TTFTP99MS      float64 `json:"ttft_p99_ms"`
	ITLMeanMS      float64 `json:"itl_mean_ms"`
	ITLP50MS       float64 `json:"itl_p50_ms"`
	ITLP90MS       float64 `json:"itl_p90_ms"`
	ITLP99MS       float64 `json:"itl_p99_ms"`

	LatencySamples []float64 `json:"latency_samples,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RunStore handles benchmark run persistence
type RunStore struct {
	db *DB
}

// NewRunStore creates a new run store
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Create inserts a new run
func (s *RunStore) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.RunDate.IsZero() {
		run.RunDate = time.Now()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	samplesJSON, err := json.Marshal(run.LatencySamples)
	if err != nil {
		return fmt.Errorf("failed to marshal latency_samples: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, run_date, backend, endpoint, model,
			num_clients, num_requests, warmup, stream,
			mean_prompt_length, mean_max_new_tokens,
			duration_sec, requests_per_sec, total_tokens, tokens_per_sec,
			latency_mean_ms, latency_p50_ms, latency_p90_ms, latency_p99_ms,
			ttft_mean_ms, ttft_p50_ms, ttft_p90_ms, ttft_p99_ms,
			itl_mean_ms, itl_p50_ms, itl_p90_ms, itl_p99_ms,
			latency_samples, created_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?
		)
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.RunDate, run.Backend, run.Endpoint, run.Model,
		run.NumClients, run.NumRequests, run.Warmup, run.Stream,
		run.MeanPromptLength, run.MeanMaxNewTokens,
		run.DurationSec, run.RequestsPerSec, run.TotalTokens, run.TokensPerSec,
		run.LatencyMeanMS, run.LatencyP50MS, run.LatencyP90MS, run.LatencyP99MS,
		run.TTFTMeanMS, run.TTFTP50MS, run.TTFTP90MS, run.TTFTP99MS,
		run.ITLMeanMS, run.ITLP50MS, run.ITLP90MS, run.ITLP99MS,
		string(samplesJSON), run.CreatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

const runColumns = `
	id, run_date, backend, endpoint, model,
	num_clients, num_requests, warmup, stream,
	mean_prompt_length, mean_max_new_tokens,
	duration_sec, requests_per_sec, total_tokens, tokens_per_sec,
	latency_mean_ms, latency_p50_ms, latency_p90_ms, latency_p99_ms,
	ttft_mean_ms, ttft_p50_ms, ttft_p90_ms, ttft_p99_ms,
	itl_mean_ms, itl_p50_ms, itl_p90_ms, itl_p99_ms,
	latency_samples, created_at
`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	run := &Run{}
	var samplesJSON string

	err := row.Scan(
		&run.ID, &run.RunDate, &run.Backend, &run.Endpoint, &run.Model,
		&run.NumClients, &run.NumRequests, &run.Warmup, &run.Stream,
		&run.MeanPromptLength, &run.MeanMaxNewTokens,
		&run.DurationSec, &run.RequestsPerSec, &run.TotalTokens, &run.TokensPerSec,
		&run.LatencyMeanMS, &run.LatencyP50MS, &run.LatencyP90MS, &run.LatencyP99MS,
		&run.TTFTMeanMS, &run.TTFTP50MS, &run.TTFTP90MS, &run.TTFTP99MS,
		&run.ITLMeanMS, &run.ITLP50MS, &run.ITLP90MS, &run.ITLP99MS,
		&samplesJSON, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(samplesJSON), &run.LatencySamples); err != nil {
		run.LatencySamples = nil
	}

	return run, nil
}

// Get retrieves a run by ID
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// RunFilter defines criteria for filtering runs
type RunFilter struct {
	Backend   string
	Model     string
	MinDate   time.Time
	MaxDate   time.Time
	Limit     int
	OrderBy   string // "throughput", "latency", "date"
	OrderDesc bool
}

// List returns runs matching the filter
func (s *RunStore) List(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`

	var args []interface{}

	if filter.Backend != "" {
		query += " AND backend = ?"
		args = append(args, filter.Backend)
	}

	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, filter.Model)
	}

	if !filter.MinDate.IsZero() {
		query += " AND run_date >= ?"
		args = append(args, filter.MinDate)
	}

	if !filter.MaxDate.IsZero() {
		query += " AND run_date < ?"
		args = append(args, filter.MaxDate)
	}

	orderColumn := "run_date"
	switch filter.OrderBy {
	case "throughput":
		orderColumn = "tokens_per_sec"
	case "latency":
		orderColumn = "latency_p50_ms"
	case "date":
		orderColumn = "run_date"
	}

	if filter.OrderDesc {
		query += fmt.Sprintf(" ORDER BY %s DESC", orderColumn)
	} else {
		query += fmt.Sprintf(" ORDER BY %s ASC", orderColumn)
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Delete removes a run by ID
func (s *RunStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
