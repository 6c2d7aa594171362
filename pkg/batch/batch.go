// Package batch sequences the resumable per-species download of
// xeno-canto recording data. One species is processed fully (fetch,
// persist, checkpoint) before the next begins, and the checkpoint file
// makes an interrupted run resumable without re-downloading completed
// species.
package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RobbeRDG/chirpnet-project/pkg/checkpoint"
	"github.com/RobbeRDG/chirpnet-project/pkg/errors"
	"github.com/RobbeRDG/chirpnet-project/pkg/logger"
	"github.com/RobbeRDG/chirpnet-project/pkg/specieslist"
	"github.com/RobbeRDG/chirpnet-project/pkg/xenocanto"
)

// MetadataDirName is the per-batch folder holding the species-list copy
// and the checkpoint file.
const MetadataDirName = "metadata"

// CheckpointFileName is the checkpoint file inside the metadata folder
const CheckpointFileName = "already_downloaded.csv"

// Fetcher queries the recordings API for one species
type Fetcher interface {
	FetchSpecies(query xenocanto.Query, maxPages int) (*xenocanto.QueryResult, error)
}

// Persister writes a query result's recordings and metadata under a batch
// output directory
type Persister interface {
	PersistQueryResult(result *xenocanto.QueryResult, batchDir string) error
}

// Params describes one batch download request
type Params struct {
	// SpeciesListPath points at the CSV species list driving the batch
	SpeciesListPath string
	// Year restricts recordings to one recording year; passed through verbatim
	Year int
	// Quality must be one of "A", "B" or "C"
	Quality string
	// MaxPages bounds the number of API pages fetched per species
	MaxPages int
	// OutputBase is the directory under which the batch folder is created
	OutputBase string
}

// Validate checks the parameters before any network or filesystem activity
func (p Params) Validate() error {
	switch p.Quality {
	case "A", "B", "C":
	default:
		return errors.Newf(errors.KindInvalidParameter,
			"quality must be one of 'A', 'B' or 'C', got %q", p.Quality)
	}
	if p.SpeciesListPath == "" {
		return errors.New(errors.KindInvalidParameter, "species list path is required")
	}
	if p.MaxPages <= 0 {
		return errors.Newf(errors.KindInvalidParameter,
			"max pages must be positive, got %d", p.MaxPages)
	}
	if p.OutputBase == "" {
		return errors.New(errors.KindInvalidParameter, "output base directory is required")
	}
	return nil
}

// Identity derives the batch's stable identifier from its parameters.
// Two runs with identical parameters share the identity and therefore the
// same output folder and checkpoint.
func (p Params) Identity() string {
	return fmt.Sprintf("%s_y%d_q%s_mp%d",
		specieslist.BaseName(p.SpeciesListPath), p.Year, p.Quality, p.MaxPages)
}

// Layout holds the resolved on-disk locations of one batch
type Layout struct {
	Identity    string
	Dir         string
	MetadataDir string
	Checkpoint  *checkpoint.Store
}

// Runner executes batch downloads against a fetch and a persist capability
type Runner struct {
	fetcher   Fetcher
	persister Persister
	logger    logger.Logger
}

// NewRunner creates a batch runner
func NewRunner(fetcher Fetcher, persister Persister, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Runner{
		fetcher:   fetcher,
		persister: persister,
		logger:    log,
	}
}

// Run downloads the recording data for every species in the list that is
// not yet checkpointed. Fetch and persist failures are fatal to the run;
// re-invoking with the same parameters resumes from the checkpoint.
func (r *Runner) Run(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	species, err := specieslist.Load(params.SpeciesListPath)
	if err != nil {
		return err
	}

	layout, err := r.setupLayout(params)
	if err != nil {
		return err
	}

	if _, err := layout.Checkpoint.Load(); err != nil {
		return err
	}

	pending := make([]string, 0, len(species))
	for _, name := range species {
		if !layout.Checkpoint.Contains(name) {
			pending = append(pending, name)
		}
	}

	r.logger.InfoWithFields("starting batch download", map[string]interface{}{
		"batch":     layout.Identity,
		"species":   len(species),
		"completed": len(species) - len(pending),
		"pending":   len(pending),
	})

	for i, name := range pending {
		r.logger.InfoWithFields("downloading species recordings", map[string]interface{}{
			"batch":   layout.Identity,
			"species": name,
			"index":   i + 1,
			"of":      len(pending),
		})

		query := xenocanto.Query{
			SpeciesName: name,
			Year:        params.Year,
			Quality:     params.Quality,
		}

		result, err := r.fetcher.FetchSpecies(query, params.MaxPages)
		if err != nil {
			return errors.Wrap(errors.KindFetch, err,
				"failed to fetch recordings for species "+name)
		}

		r.logger.InfoWithFields("query returned recordings", map[string]interface{}{
			"species":    name,
			"recordings": result.Len(),
		})

		if err := r.persister.PersistQueryResult(result, layout.Dir); err != nil {
			return errors.Wrap(errors.KindPersist, err,
				"failed to persist recordings for species "+name)
		}

		// The checkpoint entry is written strictly after a successful
		// persist, and must be durable before the next species starts.
		if err := layout.Checkpoint.Append(name); err != nil {
			return fmt.Errorf("failed to checkpoint species %s: %w", name, err)
		}

		r.logger.InfoWithFields("species completed", map[string]interface{}{
			"batch":   layout.Identity,
			"species": name,
		})
	}

	r.logger.InfoWithFields("batch download complete", map[string]interface{}{
		"batch":   layout.Identity,
		"species": len(species),
	})

	return nil
}

// setupLayout resolves the batch folder and initializes its metadata on
// first encounter. An existing metadata folder is reused untouched: that
// is what makes a second run resume instead of re-downloading.
func (r *Runner) setupLayout(params Params) (*Layout, error) {
	layout := &Layout{Identity: params.Identity()}
	layout.Dir = filepath.Join(params.OutputBase, layout.Identity)
	layout.MetadataDir = filepath.Join(layout.Dir, MetadataDirName)
	layout.Checkpoint = checkpoint.NewStore(filepath.Join(layout.MetadataDir, CheckpointFileName))

	if err := os.MkdirAll(layout.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}

	if _, err := os.Stat(layout.MetadataDir); err == nil {
		r.logger.DebugWithFields("metadata folder already exists, skipping initialization", map[string]interface{}{
			"batch": layout.Identity,
		})
		return layout, nil
	}

	r.logger.InfoWithFields("initializing batch metadata", map[string]interface{}{
		"batch": layout.Identity,
		"dir":   layout.MetadataDir,
	})

	if err := os.MkdirAll(layout.MetadataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	// Copy the species list into the batch for provenance
	listCopy := filepath.Join(layout.MetadataDir, specieslist.BaseName(params.SpeciesListPath)+".csv")
	if err := copyFile(params.SpeciesListPath, listCopy); err != nil {
		return nil, fmt.Errorf("failed to copy species list: %w", err)
	}

	if err := layout.Checkpoint.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize checkpoint: %w", err)
	}

	return layout, nil
}

// copyFile copies src to dst via a temp file and atomic rename, so a
// crash mid-copy never leaves a truncated file behind.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tempPath := dst + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tempPath)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tempPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, dst); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
