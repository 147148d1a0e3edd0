package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/llm-loadgen/llm-loadgen/internal/backend"
	"github.com/llm-loadgen/llm-loadgen/internal/config"
	"github.com/llm-loadgen/llm-loadgen/internal/harness"
	"github.com/llm-loadgen/llm-loadgen/internal/storage"
	"github.com/llm-loadgen/llm-loadgen/internal/summary"
	"github.com/llm-loadgen/llm-loadgen/internal/workload"
)

var (
	runBackend        string
	runEndpoint       string
	runModel          string
	runNumClients     string
	runNumRequests    int
	runWarmup         int
	runStream         bool
	runRequestsPerSec float64
	runCorpusFile     string
	runSave           bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark against an inference server",
	Long: `Run a synchronized multi-client benchmark.

Each client drains a shared request queue of synthetic prompts. Warmup
requests are issued and discarded before the timing window opens, so
the measured interval covers steady-state traffic only.

--num-clients accepts a comma-separated list (e.g. 1,2,4,8) to sweep
client counts in a single invocation.`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runBackend, "backend", "", "Backend type (vllm, fastgen, aml)")
	runCmd.Flags().StringVar(&runEndpoint, "endpoint", "", "Inference server URL")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model name (recorded with results)")
	runCmd.Flags().StringVarP(&runNumClients, "num-clients", "c", "", "Concurrent clients, comma-separated for a sweep")
	runCmd.Flags().IntVarP(&runNumRequests, "num-requests", "n", 0, "Measured requests per run")
	runCmd.Flags().IntVar(&runWarmup, "warmup", -1, "Discarded warmup requests per client")
	runCmd.Flags().BoolVar(&runStream, "stream", true, "Stream responses")
	runCmd.Flags().Float64Var(&runRequestsPerSec, "requests-per-sec", 0, "Aggregate request rate cap (0 = unlimited)")
	runCmd.Flags().StringVar(&runCorpusFile, "corpus-file", "", "Text file to slice prompts from (default: bundled corpus)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Persist the run summary to the results database")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	clientCounts, err := parseClientCounts(runNumClients, cfg.Bench.NumClients)
	if err != nil {
		return err
	}

	var corpus string
	if runCorpusFile != "" {
		data, err := os.ReadFile(runCorpusFile)
		if err != nil {
			return fmt.Errorf("failed to read corpus file: %w", err)
		}
		corpus = string(data)
	}

	caller, err := backend.New(cfg.Target.Backend, backend.Options{
		Endpoint:    cfg.Target.Endpoint,
		APIKey:      cfg.Target.APIKey,
		Temperature: cfg.Sampling.Temperature,
		TopP:        cfg.Sampling.TopP,
		IgnoreEOS:   cfg.Sampling.IgnoreEOS,
		Stream:      cfg.Bench.Stream,
		Timeout:     cfg.Bench.RequestTimeout,
	})
	if err != nil {
		return err
	}

	var store *storage.RunStore
	if runSave {
		db, err := storage.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open results database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		store = storage.NewRunStore(db)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, numClients := range clientCounts {
		logger.Info("starting benchmark",
			slog.String("backend", cfg.Target.Backend),
			slog.String("endpoint", cfg.Target.Endpoint),
			slog.Int("num_clients", numClients),
			slog.Int("num_requests", cfg.Bench.NumRequests))

		coord := harness.NewCoordinator(harness.Config{
			NumClients:     numClients,
			NumRequests:    cfg.Bench.NumRequests,
			Warmup:         cfg.Bench.Warmup,
			RequestsPerSec: cfg.Bench.RequestsPerSec,
			CollectTimeout: cfg.Bench.CollectTimeout,
			Workload:       workloadParams(cfg),
			Seed:           cfg.Workload.Seed,
			Corpus:         corpus,
		}, caller, harness.WithLogger(logger))

		result, err := coord.Run(ctx)
		if err != nil {
			return fmt.Errorf("benchmark with %d clients: %w", numClients, err)
		}

		stats := summary.Compute(result.Details, result.Window())
		if outputFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				return err
			}
		} else {
			fmt.Printf("\n=== %d clients ===\n", numClients)
			stats.Print(os.Stdout)
		}

		if store != nil {
			run := runRecord(cfg, numClients, stats)
			if err := store.Create(ctx, run); err != nil {
				return fmt.Errorf("failed to save run: %w", err)
			}
			logger.Info("run saved", slog.String("run_id", run.ID))
		}
	}

	return nil
}

// applyRunFlags layers explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) {
	if runBackend != "" {
		cfg.Target.Backend = runBackend
	}
	if runEndpoint != "" {
		cfg.Target.Endpoint = runEndpoint
	}
	if runModel != "" {
		cfg.Target.Model = runModel
	}
	if runNumRequests > 0 {
		cfg.Bench.NumRequests = runNumRequests
	}
	if runWarmup >= 0 {
		cfg.Bench.Warmup = runWarmup
	}
	if cmd.Flags().Changed("stream") {
		cfg.Bench.Stream = runStream
	}
	if cmd.Flags().Changed("requests-per-sec") {
		cfg.Bench.RequestsPerSec = runRequestsPerSec
	}
}

// parseClientCounts expands a comma-separated --num-clients value into the
// list of client counts to sweep.
func parseClientCounts(flag string, fallback int) ([]int, error) {
	if flag == "" {
		return []int{fallback}, nil
	}
	parts := strings.Split(flag, ",")
	counts := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid --num-clients value %q", part)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func workloadParams(cfg *config.Config) workload.Params {
	return workload.Params{
		MeanPromptLength: cfg.Workload.MeanPromptLength,
		PromptLengthVar:  cfg.Workload.PromptLengthVar,
		MaxPromptLength:  cfg.Workload.MaxPromptLength,
		MeanMaxNewTokens: cfg.Workload.MeanMaxNewTokens,
		MaxNewTokensVar:  cfg.Workload.MaxNewTokensVar,
	}
}

// runRecord flattens a run's configuration and statistics into a storage row.
func runRecord(cfg *config.Config, numClients int, stats *summary.Stats) *storage.Run {
	return &storage.Run{
		Backend:          cfg.Target.Backend,
		Endpoint:         cfg.Target.Endpoint,
		Model:            cfg.Target.Model,
		NumClients:       numClients,
		NumRequests:      cfg.Bench.NumRequests,
		Warmup:           cfg.Bench.Warmup,
		Stream:           cfg.Bench.Stream,
		MeanPromptLength: cfg.Workload.MeanPromptLength,
		MeanMaxNewTokens: cfg.Workload.MeanMaxNewTokens,
		DurationSec:      stats.DurationSec,
		RequestsPerSec:   stats.RequestsPerSec,
		TotalTokens:      stats.TotalTokens,
		TokensPerSec:     stats.TokensPerSec,
		LatencyMeanMS:    stats.Latency.Mean,
		LatencyP50MS:     stats.Latency.P50,
		LatencyP90MS:     stats.Latency.P90,
		LatencyP99MS:     stats.Latency.P99,
		TTFTMeanMS:       stats.TTFT.Mean,
		TTFTP50MS:        stats.TTFT.P50,
		TTFTP90MS:        stats.TTFT.P90,
		TTFTP99MS:        stats.TTFT.P99,
		ITLMeanMS:        stats.InterToken.Mean,
		ITLP50MS:         stats.InterToken.P50,
		ITLP90MS:         stats.InterToken.P90,
		ITLP99MS:         stats.InterToken.P99,
		LatencySamples:   stats.LatencySamples,
	}
}
