package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/llm-loadgen/llm-loadgen/internal/backend"
	"github.com/llm-loadgen/llm-loadgen/internal/metrics"
	"github.com/llm-loadgen/llm-loadgen/internal/tokenizer"
	"github.com/llm-loadgen/llm-loadgen/internal/workload"
)

// Config sizes one benchmark run.
type Config struct {
	NumClients  int
	NumRequests int
	// Warmup is the number of discarded requests per worker before the
	// timing window opens.
	Warmup int
	// RequestsPerSec caps aggregate request issuance across all workers.
	// 0 = unlimited.
	RequestsPerSec float64
	// CollectTimeout bounds the result collection loop. 0 preserves the
	// reference behavior: a crashed worker stalls collection forever.
	CollectTimeout time.Duration
	Workload       workload.Params
	Seed           int64
	Corpus         string
}

// RunResult is the outcome of one benchmark run: the collected responses
// and the timing window that contains exactly their issuance.
type RunResult struct {
	Details []*backend.ResponseDetails
	Start   time.Time
	End     time.Time
}

// Window returns the measured benchmark duration.
func (r *RunResult) Window() time.Duration {
	return r.End.Sub(r.Start)
}

// Coordinator orchestrates one run: it spawns the workers, pre-fills the
// request queue, crosses the two-phase barrier, and collects exactly
// NumRequests results.
type Coordinator struct {
	cfg    Config
	caller backend.Caller
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
}

// Option configures the coordinator
type Option func(*Coordinator)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a coordinator for one benchmark run.
func NewCoordinator(cfg Config, caller backend.Caller, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		caller: caller,
		tok:    tokenizer.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the benchmark and returns exactly cfg.NumRequests results.
//
// The ordering is deliberate: workers are spawned first because their
// per-worker setup must happen on their own goroutines, and the queue is
// filled afterwards in the coordinator so the generator's seeded sampling
// stays single-threaded and reproducible. The first barrier keeps workers
// from consuming until the fill completes; the second marks the end of
// warmup and the start of the timing window.
func (c *Coordinator) Run(ctx context.Context) (*RunResult, error) {
	if c.cfg.NumClients <= 0 {
		return nil, fmt.Errorf("num_clients must be > 0")
	}
	if c.cfg.NumRequests <= 0 {
		return nil, fmt.Errorf("num_requests must be > 0")
	}

	total := c.cfg.NumRequests + c.cfg.Warmup*c.cfg.NumClients
	requests := NewRequestQueue(total)
	results := NewResultQueue(c.cfg.NumRequests)
	barrier := NewBarrier(c.cfg.NumClients + 1)

	var limiter *rate.Limiter
	if c.cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSec), 1)
	}

	// 1. Spawn workers.
	workers := make([]*Worker, c.cfg.NumClients)
	for i := range workers {
		w := NewWorker(i+1, c.caller, requests, results, barrier,
			c.cfg.Warmup, c.cfg.NumClients, limiter, c.logger)
		workers[i] = w
		go func() {
			if err := w.Run(ctx); err != nil {
				c.logger.Error("worker terminated",
					slog.Int("worker_id", w.id),
					slog.String("error", err.Error()))
			}
		}()
	}

	// 2-3. Post-spawn setup and queue pre-fill.
	gen := workload.NewGenerator(c.cfg.Corpus, c.tok, c.cfg.Seed)
	for _, q := range gen.Queries(c.cfg.Workload, total) {
		requests.Push(Request{Prompt: q.Prompt, MaxNewTokens: q.MaxNewTokens})
	}
	metrics.SetQueueDepth(requests.Len())
	c.logger.Info("request queue filled",
		slog.Int("total", total),
		slog.Int("num_requests", c.cfg.NumRequests),
		slog.Int("warmup_per_client", c.cfg.Warmup),
		slog.Int("num_clients", c.cfg.NumClients))

	// 4. Release workers to consume.
	barrier.Wait()

	// 5. Wait for every worker to finish warmup.
	barrier.Wait()

	// 6-8. Timing window around result collection.
	start := time.Now()
	details, err := c.collect(ctx, results)
	end := time.Now()
	if err != nil {
		return nil, err
	}

	c.logger.Info("benchmark complete",
		slog.Int("results", len(details)),
		slog.Duration("window", end.Sub(start)))

	return &RunResult{Details: details, Start: start, End: end}, nil
}

// collect drains the result queue until NumRequests results have arrived.
// With a zero CollectTimeout a missing result blocks forever; a crashed
// worker therefore hangs the run unless a timeout is configured.
func (c *Coordinator) collect(ctx context.Context, results *ResultQueue) ([]*backend.ResponseDetails, error) {
	if c.cfg.CollectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CollectTimeout)
		defer cancel()
	}

	details := make([]*backend.ResponseDetails, 0, c.cfg.NumRequests)
	for len(details) < c.cfg.NumRequests {
		res, err := results.Pop(ctx)
		if err != nil {
			return nil, fmt.Errorf("collected %d of %d results: %w",
				len(details), c.cfg.NumRequests, err)
		}
		if c.caller.EchoesPrompt() {
			c.trimEchoedPrompt(res)
		} else {
			res.Tokens = c.tok.Tokenize(res.Output)
		}
		details = append(details, res)
	}
	return details, nil
}

// trimEchoedPrompt strips the echoed prompt tokens from the front of the
// output.
func (c *Coordinator) trimEchoedPrompt(res *backend.ResponseDetails) {
	tokens := c.tok.Tokenize(res.Output)
	skip := c.tok.Count(res.Prompt)
	if skip > len(tokens) {
		skip = len(tokens)
	}
	res.Tokens = tokens[skip:]
	res.Output = c.tok.Join(res.Tokens)
}
