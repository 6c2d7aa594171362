// Package download persists fetched recordings and their metadata into a
// batch's per-species folder layout.
package download

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RobbeRDG/chirpnet-project/pkg/logger"
	"github.com/RobbeRDG/chirpnet-project/pkg/ratelimit"
	"github.com/RobbeRDG/chirpnet-project/pkg/xenocanto"
)

// metadataSuffix is appended to the species directory name to form the
// per-species metadata file, e.g. Eurasian_Wren_recording_metadata.csv.
const metadataSuffix = "_recording_metadata.csv"

// AudioDownloader fetches a recording's audio payload by URL
type AudioDownloader interface {
	Download(fileURL string) ([]byte, error)
}

// Manager writes recordings and metadata for one species under a batch
// output directory, skipping audio files that are already on disk.
type Manager struct {
	downloader AudioDownloader
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewManager creates a new download manager
func NewManager(downloader AudioDownloader, limiter ratelimit.Limiter, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		downloader: downloader,
		limiter:    limiter,
		logger:     log,
	}
}

// SpeciesDirName returns the directory name used for a species
// ("Eurasian Wren" -> "Eurasian_Wren").
func SpeciesDirName(speciesName string) string {
	return strings.ReplaceAll(strings.TrimSpace(speciesName), " ", "_")
}

// MetadataFileName returns the metadata file name for a species directory
func MetadataFileName(speciesDir string) string {
	return speciesDir + metadataSuffix
}

// PersistQueryResult writes all recordings of a query result plus their
// metadata CSV under batchDir. Already-present audio files are skipped, so
// a re-run after a crash only downloads what is missing.
func (m *Manager) PersistQueryResult(result *xenocanto.QueryResult, batchDir string) error {
	speciesDir := SpeciesDirName(result.Query.SpeciesName)
	outputDir := filepath.Join(batchDir, speciesDir)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create species directory: %w", err)
	}

	existing, err := m.scanExistingFiles(outputDir)
	if err != nil {
		return fmt.Errorf("failed to scan species directory: %w", err)
	}

	for i := range result.Recordings {
		rec := &result.Recordings[i]
		filename := recordingFileName(rec)

		if existing[filename] {
			m.logger.DebugWithFields("skipping recording already on disk", map[string]interface{}{
				"species": result.Query.SpeciesName,
				"file":    filename,
			})
			continue
		}

		m.limiter.Wait()

		data, err := m.downloader.Download(rec.File)
		if err != nil {
			return fmt.Errorf("failed to download recording %s: %w", rec.ID, err)
		}

		if err := m.saveFile(bytes.NewReader(data), filepath.Join(outputDir, filename)); err != nil {
			return fmt.Errorf("failed to save recording %s: %w", rec.ID, err)
		}

		m.logger.DebugWithFields("recording saved", map[string]interface{}{
			"species": result.Query.SpeciesName,
			"file":    filename,
			"bytes":   len(data),
		})
	}

	if err := m.writeMetadata(result, filepath.Join(outputDir, MetadataFileName(speciesDir))); err != nil {
		return fmt.Errorf("failed to write recording metadata: %w", err)
	}

	m.logger.InfoWithFields("species recordings persisted", map[string]interface{}{
		"species":    result.Query.SpeciesName,
		"recordings": result.Len(),
		"dir":        outputDir,
	})

	return nil
}

// recordingFileName picks the on-disk name for a recording's audio file
func recordingFileName(rec *xenocanto.Recording) string {
	name := strings.TrimSpace(rec.FileName)
	if name == "" {
		name = "XC" + rec.ID + ".mp3"
	}
	// Flatten any path separators a remote file name might carry
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	return name
}

// scanExistingFiles lists the audio files already present in a species dir
func (m *Manager) scanExistingFiles(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".csv") || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		existing[entry.Name()] = true
	}
	return existing, nil
}

// saveFile writes data to path via a temp file and atomic rename
func (m *Manager) saveFile(r io.Reader, path string) error {
	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write file data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// metadataHeader lists the columns of the per-species metadata CSV
var metadataHeader = []string{
	"ID",
	"English Name",
	"Scientific Name",
	"Recordist",
	"Country",
	"Location",
	"Quality",
	"Length",
	"Date",
	"Time",
	"Sound Type",
	"File Name",
	"Background Species",
	"License",
	"URL",
}

// writeMetadata writes the per-species recording metadata CSV
func (m *Manager) writeMetadata(result *xenocanto.QueryResult, path string) error {
	records := make([][]string, 0, result.Len()+1)
	records = append(records, metadataHeader)
	for i := range result.Recordings {
		rec := &result.Recordings[i]
		records = append(records, []string{
			rec.ID,
			rec.EnglishName,
			rec.ScientificName(),
			rec.Recordist,
			rec.Country,
			rec.Location,
			rec.Quality,
			rec.Length,
			rec.Date,
			rec.Time,
			rec.SoundType,
			recordingFileName(rec),
			strings.Join(rec.Also, ";"),
			rec.License,
			rec.URL,
		})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return err
	}

	return m.saveFile(&buf, path)
}
