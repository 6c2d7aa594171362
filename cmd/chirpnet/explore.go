package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobbeRDG/chirpnet-project/pkg/explore"
	"github.com/RobbeRDG/chirpnet-project/pkg/ui"
)

var exploreCombined bool

// exploreCmd represents the explore command
var exploreCmd = &cobra.Command{
	Use:   "explore <dir>",
	Short: "Summarize downloaded recording collections",
	Long: `Summarize the recording metadata of downloaded batches.

By default <dir> is treated as a single batch folder. With --combined,
<dir> is treated as a base directory and every batch folder under it is
aggregated together.`,
	Example: `  # Stats for one batch
  chirpnet explore data/redlist_y2020_qA_mp5

  # Stats across all batches
  chirpnet explore data --combined`,
	Args: cobra.ExactArgs(1),
	Run:  runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)

	exploreCmd.Flags().BoolVar(&exploreCombined, "combined", false, "aggregate every batch folder under the directory")
}

func runExplore(cmd *cobra.Command, args []string) {
	dir := args[0]

	var (
		metas []explore.RecordingMeta
		err   error
	)
	if exploreCombined {
		metas, err = explore.CombinedMetadata(dir)
	} else {
		metas, err = explore.CollectionMetadata(dir)
	}
	if err != nil {
		ui.PrintError("Failed to read recording metadata", err.Error())
		os.Exit(1)
	}

	if len(metas) == 0 {
		ui.PrintWarning("No recording metadata found under " + dir)
		return
	}

	clean, withBackground := explore.SplitByClean(metas)

	ui.PrintHeader("Collection overview")
	ui.PrintInfo("Recordings", fmt.Sprintf("%d", len(metas)))
	ui.PrintInfo("Clean", fmt.Sprintf("%d", len(clean)))
	ui.PrintInfo("With background species", fmt.Sprintf("%d", len(withBackground)))

	durations, err := explore.Durations(metas)
	if err != nil {
		ui.PrintError("Failed to compute duration statistics", err.Error())
		os.Exit(1)
	}

	if durations.Count > 0 {
		fmt.Println()
		ui.PrintHeader("Recording durations")
		ui.PrintInfo("Total", formatSeconds(durations.Total))
		ui.PrintInfo("Mean", formatSeconds(durations.Mean))
		ui.PrintInfo("Median", formatSeconds(durations.Median))
		ui.PrintInfo("25th percentile", formatSeconds(durations.P25))
		ui.PrintInfo("75th percentile", formatSeconds(durations.P75))
		ui.PrintInfo("90th percentile", formatSeconds(durations.P90))
	}

	fmt.Println()
	ui.PrintHeader("Per species")
	for _, summary := range explore.Summarize(metas) {
		fmt.Printf("  %-40s %4d recordings  %4d clean  %s\n",
			summary.Species, summary.Recordings, summary.Clean,
			formatSeconds(summary.TotalSeconds))
	}
}

// formatSeconds renders a second count as a rounded duration
func formatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Second).String()
}
