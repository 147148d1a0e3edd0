package summary

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/llm-loadgen/llm-loadgen/internal/backend"
)

// Percentiles holds the usual latency aggregates in milliseconds.
type Percentiles struct {
	Mean   float64 `json:"mean_ms"`
	P50    float64 `json:"p50_ms"`
	P90    float64 `json:"p90_ms"`
	P99    float64 `json:"p99_ms"`
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	StdDev float64 `json:"stddev_ms"`
}

// Stats is the aggregate outcome of one benchmark run.
type Stats struct {
	NumResults     int     `json:"num_results"`
	DurationSec    float64 `json:"duration_sec"`
	RequestsPerSec float64 `json:"requests_per_sec"`
	TotalTokens    int     `json:"total_tokens"`
	TokensPerSec   float64 `json:"tokens_per_sec"`

	Latency    Percentiles `json:"latency"`
	TTFT       Percentiles `json:"ttft"`        // first streamed chunk
	InterToken Percentiles `json:"inter_token"` // deltas after the first chunk

	// LatencySamples are the raw end-to-end latencies in ms, kept for
	// persistence and offline analysis.
	LatencySamples []float64 `json:"latency_samples,omitempty"`
}

// Compute aggregates the collected responses over the measured window.
func Compute(details []*backend.ResponseDetails, window time.Duration) *Stats {
	s := &Stats{
		NumResults:  len(details),
		DurationSec: window.Seconds(),
	}

	var latencies, ttfts, interToken []float64
	for _, d := range details {
		latencies = append(latencies, float64(d.Latency().Milliseconds()))
		s.TotalTokens += len(d.Tokens)
		for i, t := range d.TokenGenTime {
			if i == 0 {
				ttfts = append(ttfts, t*1000)
			} else {
				interToken = append(interToken, t*1000)
			}
		}
	}

	if s.DurationSec > 0 {
		s.RequestsPerSec = float64(s.NumResults) / s.DurationSec
		s.TokensPerSec = float64(s.TotalTokens) / s.DurationSec
	}

	s.Latency = computePercentiles(latencies)
	s.TTFT = computePercentiles(ttfts)
	s.InterToken = computePercentiles(interToken)
	s.LatencySamples = latencies

	return s
}

// Print writes a human-readable summary table.
func (s *Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "\nResults:\n")
	fmt.Fprintf(w, "  Requests:        %d in %.2f s (%.2f req/s)\n", s.NumResults, s.DurationSec, s.RequestsPerSec)
	fmt.Fprintf(w, "  Tokens:          %d (%.2f tok/s)\n", s.TotalTokens, s.TokensPerSec)
	fmt.Fprintf(w, "  Latency:         mean %.2f ms, p50 %.2f, p90 %.2f, p99 %.2f\n",
		s.Latency.Mean, s.Latency.P50, s.Latency.P90, s.Latency.P99)
	if s.TTFT.Mean > 0 {
		fmt.Fprintf(w, "  TTFT:            mean %.2f ms, p50 %.2f, p90 %.2f, p99 %.2f\n",
			s.TTFT.Mean, s.TTFT.P50, s.TTFT.P90, s.TTFT.P99)
	}
	if s.InterToken.Mean > 0 {
		fmt.Fprintf(w, "  Inter-token:     mean %.2f ms, p50 %.2f, p90 %.2f, p99 %.2f\n",
			s.InterToken.Mean, s.InterToken.P50, s.InterToken.P90, s.InterToken.P99)
	}
}

func computePercentiles(samples []float64) Percentiles {
	if len(samples) == 0 {
		return Percentiles{}
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	return Percentiles{
		Mean:   mean(sorted),
		P50:    percentile(sorted, 50),
		P90:    percentile(sorted, 90),
		P99:    percentile(sorted, 99),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		StdDev: stddev(sorted),
	}
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		diff := v - m
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}
