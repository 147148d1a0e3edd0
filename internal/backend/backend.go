package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Backend names accepted by New.
const (
	NameVLLM    = "vllm"
	NameFastGen = "fastgen"
	NameAML     = "aml"
)

// userAgent is sent on every outbound request.
const userAgent = "Benchmark Client"

// ResponseDetails is the record produced by one backend call.
type ResponseDetails struct {
	Prompt string `json:"prompt"`
	// Output is the generated text as returned by the backend. Some
	// backends echo the prompt at the front; the collector trims it there.
	Output string `json:"output"`
	// Tokens is the tokenized output, populated by the collector.
	Tokens    []string  `json:"tokens,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	// ModelTime is the backend-reported generation time in seconds,
	// 0 when the backend does not report one.
	ModelTime float64 `json:"model_time"`
	// TokenGenTime holds inter-chunk latencies in seconds. The first entry
	// is measured from request start. Empty for non-streaming calls.
	TokenGenTime []float64 `json:"token_gen_time,omitempty"`
	WorkerID     int       `json:"worker_id"`
}

// Latency returns the end-to-end request latency.
func (r *ResponseDetails) Latency() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Caller performs one generation request against a backend.
type Caller interface {
	// Name returns the backend name.
	Name() string
	// Call issues one request and returns the structured response.
	// Transport and protocol errors are returned as-is; there are no
	// retries at this layer.
	Call(ctx context.Context, prompt string, maxNewTokens int) (*ResponseDetails, error)
	// EchoesPrompt reports whether the backend includes the prompt at the
	// start of its output.
	EchoesPrompt() bool
}

// Options configures a backend caller.
type Options struct {
	Endpoint    string
	APIKey      string // bearer token, aml only
	Temperature float64
	TopP        float64
	IgnoreEOS   bool
	Stream      bool
	Timeout     time.Duration // 0 = no client-side timeout
}

// New returns the Caller for the named backend.
func New(name string, opts Options) (Caller, error) {
	client := &http.Client{Timeout: opts.Timeout}
	switch name {
	case NameVLLM:
		return &vllmCaller{opts: opts, client: client}, nil
	case NameFastGen:
		return &fastgenCaller{opts: opts, client: client}, nil
	case NameAML:
		return &amlCaller{opts: opts, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
