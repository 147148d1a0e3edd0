package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/llm-loadgen/llm-loadgen/internal/config"
	"github.com/llm-loadgen/llm-loadgen/internal/logging"
)

var (
	cfgFile      string
	outputFormat string

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "loadgen",
	Short: "Load generator for text-generation inference servers",
	Long: `loadgen drives concurrent load against a text-generation inference
server and reports latency and throughput statistics.

It supports:
- vLLM, FastGen, and Azure ML endpoints
- Streaming responses with per-token timing
- Synchronized multi-client runs with warmup
- Persisting run summaries and serving them over HTTP`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger = logging.Setup(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
}
