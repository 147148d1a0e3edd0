package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-loadgen/llm-loadgen/internal/backend"
)

func TestRequestQueue_PushPop(t *testing.T) {
	q := NewRequestQueue(2)
	q.Push(Request{Prompt: "one", MaxNewTokens: 16})
	q.Push(Request{Prompt: "two", MaxNewTokens: 32})
	assert.Equal(t, 2, q.Len())
	assert.False(t, q.Empty())

	req, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "one", req.Prompt)

	req, ok = q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "two", req.Prompt)
	assert.True(t, q.Empty())
}

func TestRequestQueue_PopTimeout(t *testing.T) {
	q := NewRequestQueue(1)

	start := time.Now()
	_, ok := q.Pop(50 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRequestQueue_PushOverCapacityPanics(t *testing.T) {
	q := NewRequestQueue(1)
	q.Push(Request{Prompt: "fits"})
	require.Panics(t, func() {
		q.Push(Request{Prompt: "overflow"})
	})
}

func TestResultQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewResultQueue(1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(&backend.ResponseDetails{Output: "hello"})
	}()

	res, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Output)
}

func TestResultQueue_PopHonorsContext(t *testing.T) {
	q := NewResultQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
