package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/llm-loadgen/llm-loadgen/internal/backend"
	"github.com/llm-loadgen/llm-loadgen/internal/logging"
	"github.com/llm-loadgen/llm-loadgen/internal/metrics"
)

// State is a worker's position in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateAwaitingStartBarrier
	StateWarmup
	StateAwaitingWarmupBarrier
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingStartBarrier:
		return "awaiting_start_barrier"
	case StateWarmup:
		return "warmup"
	case StateAwaitingWarmupBarrier:
		return "awaiting_warmup_barrier"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// popTimeout bounds a single queue pull while draining. A timed-out
	// pull means another worker raced us to the last item.
	popTimeout = time.Second
	// warmupPopTimeout bounds warmup pulls. The queue holds every warmup
	// item before workers start, so a timeout here is unexpected.
	warmupPopTimeout = time.Second
	// jitterUnit scales the pre-drain desynchronization delay.
	jitterUnit = 10 * time.Millisecond
)

// Worker pulls requests from the shared queue, calls the backend, and
// pushes results. All cross-worker coordination happens through the two
// queues and the barrier.
type Worker struct {
	id         int
	caller     backend.Caller
	requests   *RequestQueue
	results    *ResultQueue
	barrier    *Barrier
	warmup     int
	numClients int
	limiter    *rate.Limiter // nil = unlimited
	logger     *slog.Logger

	state atomic.Int32
}

// NewWorker wires a worker to the shared queues and barrier.
func NewWorker(id int, caller backend.Caller, requests *RequestQueue, results *ResultQueue,
	barrier *Barrier, warmup, numClients int, limiter *rate.Limiter, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:         id,
		caller:     caller,
		requests:   requests,
		results:    results,
		barrier:    barrier,
		warmup:     warmup,
		numClients: numClients,
		limiter:    limiter,
		logger:     logger.With(slog.Int("worker_id", id)),
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run drives the worker through its lifecycle. A backend call error
// terminates the worker immediately with no retry and no partial result;
// the error is returned for the coordinator's logs. Queue timeouts while
// draining are the normal end-of-work signal, not errors.
func (w *Worker) Run(ctx context.Context) error {
	metrics.WorkerStarted()
	defer metrics.WorkerStopped()

	// Per-worker setup must happen after spawn: each worker owns its RNG
	// so jitter draws are independent of coordinator-side sampling.
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w.id)))

	ctx = logging.WithWorkerID(ctx, w.id)

	w.setState(StateAwaitingStartBarrier)
	w.barrier.Wait()

	w.setState(StateWarmup)
	if err := w.runWarmup(ctx); err != nil {
		w.setState(StateFailed)
		metrics.RecordWorkerFailure(w.caller.Name())
		return err
	}

	w.setState(StateAwaitingWarmupBarrier)
	w.barrier.Wait()

	w.setState(StateDraining)
	if err := w.drain(ctx, rng); err != nil {
		w.setState(StateFailed)
		metrics.RecordWorkerFailure(w.caller.Name())
		return err
	}

	w.setState(StateDone)
	w.logger.Debug("worker finished")
	return nil
}

// runWarmup consumes exactly w.warmup requests and discards the responses.
// An empty-queue timeout ends warmup early; it is logged but not fatal.
func (w *Worker) runWarmup(ctx context.Context) error {
	for i := 0; i < w.warmup; i++ {
		w.logger.Debug("warmup pull", slog.Int("queue_depth", w.requests.Len()))
		req, ok := w.requests.Pop(warmupPopTimeout)
		if !ok {
			w.logger.Warn("request queue empty during warmup, ending warmup early",
				slog.Int("completed", i), slog.Int("expected", w.warmup))
			return nil
		}
		start := time.Now()
		res, err := w.caller.Call(ctx, req.Prompt, req.MaxNewTokens)
		if err != nil {
			metrics.RecordCall(w.caller.Name(), "warmup", time.Since(start), nil, err)
			return fmt.Errorf("warmup call: %w", err)
		}
		// Warmup results never reach the result queue.
		metrics.RecordCall(w.caller.Name(), "warmup", res.Latency(), res.TokenGenTime, nil)
	}
	return nil
}

// drain pulls requests until the queue is observed empty. The initial
// jitter desynchronizes the workers' queue polls after the barrier releases
// them all at once.
func (w *Worker) drain(ctx context.Context, rng *rand.Rand) error {
	jitter := time.Duration(rng.Float64() * float64(w.numClients) * float64(jitterUnit))
	time.Sleep(jitter)

	for !w.requests.Empty() {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		w.logger.Debug("queue pull", slog.Int("queue_depth", w.requests.Len()))
		req, ok := w.requests.Pop(popTimeout)
		if !ok {
			// Another worker won the race for the last item.
			break
		}
		metrics.SetQueueDepth(w.requests.Len())

		start := time.Now()
		res, err := w.caller.Call(ctx, req.Prompt, req.MaxNewTokens)
		if err != nil {
			metrics.RecordCall(w.caller.Name(), "benchmark", time.Since(start), nil, err)
			return fmt.Errorf("backend call: %w", err)
		}
		res.WorkerID = w.id
		metrics.RecordCall(w.caller.Name(), "benchmark", res.Latency(), res.TokenGenTime, nil)
		w.results.Push(res)
	}

	w.logger.Debug("request queue empty")
	return nil
}
