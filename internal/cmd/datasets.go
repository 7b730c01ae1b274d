package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/civicmaps/internal/dataset"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Load and validate the datasets",
	Long: `Load every dataset, validate its features and print a report of loaded
and skipped features. Exits with an error if a file cannot be read or parsed.`,
	RunE: runDatasets,
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.Flags().Bool("json", false, "Print the reports as JSON")
}

func runDatasets(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	cat, err := dataset.Load(datasetPaths(), logger)
	if err != nil {
		return fmt.Errorf("failed to load datasets: %w", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cat.Reports)
	}
	return printReports(cmd.OutOrStdout(), cat.Reports)
}

func printReports(w io.Writer, reports []dataset.LoadReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tTOTAL\tLOADED\tSKIPPED\tSOURCE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.Dataset, r.Total, r.Loaded, r.Skipped, r.Source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range reports {
		for _, reason := range r.Reasons {
			fmt.Fprintf(w, "%s: %s\n", r.Dataset, reason)
		}
	}
	return nil
}
