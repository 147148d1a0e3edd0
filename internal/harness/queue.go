package harness

import (
	"context"
	"time"

	"github.com/llm-loadgen/llm-loadgen/internal/backend"
)

// Request is one pending generation request. Immutable once enqueued;
// consumed by exactly one worker.
type Request struct {
	Prompt       string
	MaxNewTokens int
}

// RequestQueue is a bounded producer/consumer queue of pending requests.
// The coordinator fills it once up front; workers drain it. Queue-empty is
// the workers' termination signal, so there is no close-based shutdown.
type RequestQueue struct {
	ch chan Request
}

// NewRequestQueue creates a queue with the given capacity. Capacity must
// cover the full pre-fill: num_requests + warmup*num_clients.
func NewRequestQueue(capacity int) *RequestQueue {
	return &RequestQueue{ch: make(chan Request, capacity)}
}

// Push enqueues a request. Panics if the queue is full, which indicates a
// mis-sized pre-fill rather than a runtime condition.
func (q *RequestQueue) Push(req Request) {
	select {
	case q.ch <- req:
	default:
		panic("request queue over capacity")
	}
}

// Pop removes one request, waiting up to timeout. ok is false on timeout,
// which callers treat as no-more-work.
func (q *RequestQueue) Pop(timeout time.Duration) (req Request, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case req = <-q.ch:
		return req, true
	case <-timer.C:
		return Request{}, false
	}
}

// Len returns the current queue depth.
func (q *RequestQueue) Len() int {
	return len(q.ch)
}

// Empty reports whether the queue has no pending requests. Racy by design:
// a concurrent worker may take the last item between the probe and the next
// Pop, which the Pop timeout then absorbs.
func (q *RequestQueue) Empty() bool {
	return len(q.ch) == 0
}

// ResultQueue carries completed responses from workers to the coordinator.
type ResultQueue struct {
	ch chan *backend.ResponseDetails
}

// NewResultQueue creates a result queue sized for the expected total.
func NewResultQueue(capacity int) *ResultQueue {
	return &ResultQueue{ch: make(chan *backend.ResponseDetails, capacity)}
}

// Push hands a completed response to the coordinator.
func (q *ResultQueue) Push(res *backend.ResponseDetails) {
	q.ch <- res
}

// Pop blocks until a result arrives or ctx is done.
func (q *ResultQueue) Pop(ctx context.Context) (*backend.ResponseDetails, error) {
	select {
	case res := <-q.ch:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
