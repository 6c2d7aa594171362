// Package explore aggregates the per-species recording metadata written
// by batch downloads into simple tabular statistics: recording counts,
// duration summaries and the split between clean recordings and
// recordings with background species.
package explore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/RobbeRDG/chirpnet-project/pkg/xenocanto"
)

// metadataSuffix matches the per-species metadata files of a batch folder
const metadataSuffix = "_recording_metadata.csv"

// RecordingMeta is one row of a per-species recording metadata file
type RecordingMeta struct {
	ID                string
	EnglishName       string
	ScientificName    string
	Quality           string
	Length            string
	BackgroundSpecies []string
}

// IsClean reports whether the recording has no background species
func (m *RecordingMeta) IsClean() bool {
	for _, also := range m.BackgroundSpecies {
		if strings.TrimSpace(also) != "" {
			return false
		}
	}
	return true
}

// Seconds returns the recording length in seconds
func (m *RecordingMeta) Seconds() (float64, error) {
	d, err := xenocanto.ParseLength(m.Length)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

// CollectionMetadata reads the full recording metadata of one collection
// (one batch folder). Each species directory contributes its
// *recording_metadata.csv; the batch's own metadata directory and empty
// species directories are skipped.
func CollectionMetadata(collectionDir string) ([]RecordingMeta, error) {
	entries, err := os.ReadDir(collectionDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection directory: %w", err)
	}

	var all []RecordingMeta
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "metadata" {
			continue
		}

		speciesDir := filepath.Join(collectionDir, entry.Name())
		matches, err := filepath.Glob(filepath.Join(speciesDir, "*"+metadataSuffix))
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			continue
		}

		metas, err := readMetadataFile(matches[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", matches[0], err)
		}
		all = append(all, metas...)
	}

	return all, nil
}

// CombinedMetadata reads the recording metadata of every collection under
// baseDir and concatenates it.
func CombinedMetadata(baseDir string) ([]RecordingMeta, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read collections base directory: %w", err)
	}

	var all []RecordingMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metas, err := CollectionMetadata(filepath.Join(baseDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, metas...)
	}

	return all, nil
}

// readMetadataFile parses one *recording_metadata.csv by header name
func readMetadataFile(path string) ([]RecordingMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	metas := make([]RecordingMeta, 0, len(records)-1)
	for _, record := range records[1:] {
		meta := RecordingMeta{
			ID:             field(record, "ID"),
			EnglishName:    field(record, "English Name"),
			ScientificName: field(record, "Scientific Name"),
			Quality:        field(record, "Quality"),
			Length:         field(record, "Length"),
		}
		if also := field(record, "Background Species"); also != "" {
			meta.BackgroundSpecies = strings.Split(also, ";")
		}
		metas = append(metas, meta)
	}

	return metas, nil
}

// SplitByClean partitions recordings into those without and with
// background species.
func SplitByClean(metas []RecordingMeta) (clean, withBackground []RecordingMeta) {
	for i := range metas {
		if metas[i].IsClean() {
			clean = append(clean, metas[i])
		} else {
			withBackground = append(withBackground, metas[i])
		}
	}
	return clean, withBackground
}

// DurationStats summarizes recording durations in seconds
type DurationStats struct {
	Count  int
	Total  float64
	Mean   float64
	Median float64
	P25    float64
	P75    float64
	P90    float64
}

// Durations computes duration statistics over a set of recordings.
// Rows with malformed lengths are skipped.
func Durations(metas []RecordingMeta) (DurationStats, error) {
	var seconds []float64
	for i := range metas {
		s, err := metas[i].Seconds()
		if err != nil {
			continue
		}
		seconds = append(seconds, s)
	}

	if len(seconds) == 0 {
		return DurationStats{}, nil
	}

	result := DurationStats{Count: len(seconds)}

	var err error
	if result.Total, err = stats.Sum(seconds); err != nil {
		return DurationStats{}, err
	}
	if result.Mean, err = stats.Mean(seconds); err != nil {
		return DurationStats{}, err
	}
	if result.Median, err = stats.Median(seconds); err != nil {
		return DurationStats{}, err
	}
	if result.P25, err = stats.Percentile(seconds, 25); err != nil {
		return DurationStats{}, err
	}
	if result.P75, err = stats.Percentile(seconds, 75); err != nil {
		return DurationStats{}, err
	}
	if result.P90, err = stats.Percentile(seconds, 90); err != nil {
		return DurationStats{}, err
	}

	return result, nil
}

// SpeciesSummary aggregates the recordings of one species
type SpeciesSummary struct {
	Species        string
	Recordings     int
	Clean          int
	WithBackground int
	TotalSeconds   float64
}

// Summarize groups recordings by English name and counts them, split by
// clean vs. background. The result is sorted by species name.
func Summarize(metas []RecordingMeta) []SpeciesSummary {
	byName := make(map[string]*SpeciesSummary)
	for i := range metas {
		meta := &metas[i]
		summary, ok := byName[meta.EnglishName]
		if !ok {
			summary = &SpeciesSummary{Species: meta.EnglishName}
			byName[meta.EnglishName] = summary
		}

		summary.Recordings++
		if meta.IsClean() {
			summary.Clean++
		} else {
			summary.WithBackground++
		}
		if s, err := meta.Seconds(); err == nil {
			summary.TotalSeconds += s
		}
	}

	summaries := make([]SpeciesSummary, 0, len(byName))
	for _, summary := range byName {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Species < summaries[j].Species
	})

	return summaries
}
