package main

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobbeRDG/chirpnet-project/pkg/auth"
	"github.com/RobbeRDG/chirpnet-project/pkg/batch"
	"github.com/RobbeRDG/chirpnet-project/pkg/config"
	"github.com/RobbeRDG/chirpnet-project/pkg/download"
	errs "github.com/RobbeRDG/chirpnet-project/pkg/errors"
	"github.com/RobbeRDG/chirpnet-project/pkg/logger"
	"github.com/RobbeRDG/chirpnet-project/pkg/ratelimit"
	"github.com/RobbeRDG/chirpnet-project/pkg/ui"
	"github.com/RobbeRDG/chirpnet-project/pkg/xenocanto"
)

var (
	downloadYear       int
	downloadQuality    string
	downloadMaxPages   int
	downloadOutput     string
	downloadRateLimit  int
	downloadMaxRetries int
	downloadAPIKey     string
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <species-list.csv>",
	Short: "Download recordings for every species in a list",
	Long: `Download xeno-canto recordings for every species in a CSV species list.

The list must have a "Common Name" column. Recordings are filtered by
recording year and quality rating, and at most --max-pages API pages are
fetched per species.

Output lands under <output>/<list>_y<year>_q<quality>_mp<pages>/. Running
the same command again resumes from the checkpoint inside that folder.`,
	Example: `  # Download A-quality 2020 recordings for a red list
  chirpnet download redlist.csv --year 2020 --quality A

  # Resume the same batch after an interruption
  chirpnet download redlist.csv --year 2020 --quality A`,
	Args: cobra.ExactArgs(1),
	Run:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().IntVarP(&downloadYear, "year", "y", 0, "recording year to filter on (required)")
	downloadCmd.Flags().StringVarP(&downloadQuality, "quality", "q", "", "recording quality rating: A, B or C (required)")
	downloadCmd.Flags().IntVar(&downloadMaxPages, "max-pages", 0, "maximum API pages to fetch per species")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "base directory for batch folders")
	downloadCmd.Flags().IntVar(&downloadRateLimit, "requests-per-minute", 0, "API request rate limit")
	downloadCmd.Flags().IntVar(&downloadMaxRetries, "max-retries", -1, "maximum retry attempts for failed requests")
	downloadCmd.Flags().StringVar(&downloadAPIKey, "api-key", "", "xeno-canto API key")

	downloadCmd.MarkFlagRequired("year")
	downloadCmd.MarkFlagRequired("quality")
}

func runDownload(cmd *cobra.Command, args []string) {
	speciesListPath := args[0]

	flags := globalFlags()
	if downloadOutput != "" {
		flags["output"] = downloadOutput
	}
	if downloadMaxPages > 0 {
		flags["max-pages"] = downloadMaxPages
	}
	if downloadRateLimit > 0 {
		flags["requests-per-minute"] = downloadRateLimit
	}
	if downloadMaxRetries >= 0 {
		flags["max-retries"] = downloadMaxRetries
	}
	if downloadAPIKey != "" {
		flags["api-key"] = downloadAPIKey
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Fall back to the stored key when neither flag, env nor config set one
	if cfg.XenoCanto.APIKey == "" {
		if key, err := auth.NewManager().Retrieve(); err == nil {
			cfg.XenoCanto.APIKey = key
		}
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	params := batch.Params{
		SpeciesListPath: speciesListPath,
		Year:            downloadYear,
		Quality:         downloadQuality,
		MaxPages:        cfg.Download.MaxPages,
		OutputBase:      cfg.Download.BaseDirectory,
	}

	ui.PrintBanner()
	ui.PrintInfo("Species list", speciesListPath)
	ui.PrintInfo("Batch", params.Identity())
	ui.PrintInfo("Output", cfg.Download.BaseDirectory)

	client := xenocanto.NewClient(&cfg.XenoCanto, &cfg.Retry, log)
	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	manager := download.NewManager(client, limiter, log)
	runner := batch.NewRunner(client, manager, log)

	if err := runner.Run(params); err != nil {
		log.WithError(err).Error("batch download failed")
		ui.PrintError("Batch download failed", err.Error())
		os.Exit(exitCode(err))
	}

	ui.PrintSuccess("Batch download complete")
}

// exitCode distinguishes bad invocations from runtime failures
func exitCode(err error) int {
	var e *errs.Error
	if errors.As(err, &e) && e.Kind == errs.KindInvalidParameter {
		return 2
	}
	return 1
}
