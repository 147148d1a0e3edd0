package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-loadgen/llm-loadgen/internal/workload"
)

func testWorkload() workload.Params {
	return workload.Params{
		MeanPromptLength: 8,
		PromptLengthVar:  0.3,
		MaxPromptLength:  32,
		MeanMaxNewTokens: 16,
		MaxNewTokensVar:  0.3,
	}
}

func TestCoordinator_CollectsExactlyNumRequests(t *testing.T) {
	caller := &fakeCaller{}
	coord := NewCoordinator(Config{
		NumClients:  2,
		NumRequests: 4,
		Warmup:      1,
		Workload:    testWorkload(),
		Seed:        42,
	}, caller)

	result, err := coord.Run(context.Background())
	require.NoError(t, err)

	// 4 measured + 1 warmup per client.
	assert.Equal(t, 6, caller.callCount())
	assert.Equal(t, 4, len(result.Details))
	assert.False(t, result.End.Before(result.Start))
}

func TestCoordinator_TrimsEchoedPrompt(t *testing.T) {
	caller := &fakeCaller{echo: true, output: "alpha beta gamma"}
	coord := NewCoordinator(Config{
		NumClients:  1,
		NumRequests: 2,
		Workload:    testWorkload(),
		Seed:        42,
	}, caller)

	result, err := coord.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Details, 2)

	for _, d := range result.Details {
		assert.Equal(t, "alpha beta gamma", d.Output)
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, d.Tokens)
	}
}

func TestCoordinator_TokenizesNonEchoingOutput(t *testing.T) {
	caller := &fakeCaller{output: "one two"}
	coord := NewCoordinator(Config{
		NumClients:  1,
		NumRequests: 1,
		Workload:    testWorkload(),
		Seed:        42,
	}, caller)

	result, err := coord.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.Equal(t, []string{"one", "two"}, result.Details[0].Tokens)
}

func TestCoordinator_WorkerCrashStallsCollection(t *testing.T) {
	// Every call fails, so no results ever arrive. With a collect timeout
	// set, the run reports the shortfall instead of hanging forever.
	caller := &fakeCaller{failAfter: 1}
	coord := NewCoordinator(Config{
		NumClients:     1,
		NumRequests:    2,
		CollectTimeout: 200 * time.Millisecond,
		Workload:       testWorkload(),
		Seed:           42,
	}, caller)

	_, err := coord.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collected 0 of 2 results")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinator_SurvivingWorkerCannotCoverCrashedOne(t *testing.T) {
	// One of two workers dies on its first call; the survivor drains the
	// rest. The collected total falls one short, so the run stalls until
	// the collect timeout fires.
	caller := &fakeCaller{failExactly: 1}
	coord := NewCoordinator(Config{
		NumClients:     2,
		NumRequests:    4,
		CollectTimeout: 2 * time.Second,
		Workload:       testWorkload(),
		Seed:           42,
	}, caller)

	_, err := coord.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collected 3 of 4 results")
}

func TestCoordinator_ValidatesConfig(t *testing.T) {
	caller := &fakeCaller{}

	_, err := NewCoordinator(Config{NumClients: 0, NumRequests: 1}, caller).Run(context.Background())
	assert.Error(t, err)

	_, err = NewCoordinator(Config{NumClients: 1, NumRequests: 0}, caller).Run(context.Background())
	assert.Error(t, err)
}

func TestCoordinator_SameSeedSamePrompts(t *testing.T) {
	run := func() []string {
		caller := &fakeCaller{}
		coord := NewCoordinator(Config{
			NumClients:  1,
			NumRequests: 3,
			Workload:    testWorkload(),
			Seed:        7,
		}, caller)
		_, err := coord.Run(context.Background())
		require.NoError(t, err)
		caller.mu.Lock()
		defer caller.mu.Unlock()
		return append([]string(nil), caller.prompts...)
	}

	assert.Equal(t, run(), run())
}
