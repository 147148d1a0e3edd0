package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/llm-loadgen/llm-loadgen/internal/storage"
)

var (
	resultsBackend string
	resultsModel   string
	resultsLimit   int
	resultsSort    string
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored benchmark runs",
	Long:  `Display run summaries from the local results database.`,
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)

	resultsCmd.Flags().StringVar(&resultsBackend, "backend", "", "Filter by backend (vllm, fastgen, aml)")
	resultsCmd.Flags().StringVar(&resultsModel, "model", "", "Filter by model name")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 20, "Maximum runs to list")
	resultsCmd.Flags().StringVar(&resultsSort, "sort", "date", "Sort order (date, throughput, latency)")
}

func runResults(cmd *cobra.Command, args []string) error {
	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	store := storage.NewRunStore(db)
	runs, err := store.List(cmd.Context(), storage.RunFilter{
		Backend:   resultsBackend,
		Model:     resultsModel,
		Limit:     resultsLimit,
		OrderBy:   resultsSort,
		OrderDesc: true,
	})
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tBACKEND\tCLIENTS\tREQUESTS\tTOK/S\tLAT P50\tLAT P99\tTTFT P50")
	fmt.Fprintln(w, "--\t----\t-------\t-------\t--------\t-----\t-------\t-------\t--------")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.1f\t%.1fms\t%.1fms\t%.1fms\n",
			run.ID[:8],
			run.RunDate.Format("2006-01-02 15:04"),
			run.Backend,
			run.NumClients,
			run.NumRequests,
			run.TokensPerSec,
			run.LatencyP50MS,
			run.LatencyP99MS,
			run.TTFTP50MS,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d runs\n", len(runs))
	return nil
}
