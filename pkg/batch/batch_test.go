package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobbeRDG/chirpnet-project/pkg/checkpoint"
	"github.com/RobbeRDG/chirpnet-project/pkg/errors"
	"github.com/RobbeRDG/chirpnet-project/pkg/logger"
	"github.com/RobbeRDG/chirpnet-project/pkg/xenocanto"
)

// mockFetcher records fetched species and can fail on demand
type mockFetcher struct {
	fetched []string
	failOn  string
}

func (f *mockFetcher) FetchSpecies(query xenocanto.Query, maxPages int) (*xenocanto.QueryResult, error) {
	if query.SpeciesName == f.failOn {
		return nil, errors.New(errors.KindServerError, "boom")
	}
	f.fetched = append(f.fetched, query.SpeciesName)
	return &xenocanto.QueryResult{Query: query, PagesRead: 1}, nil
}

// mockPersister records persisted species and can fail on demand
type mockPersister struct {
	persisted []string
	failOn    string
}

func (p *mockPersister) PersistQueryResult(result *xenocanto.QueryResult, batchDir string) error {
	if result.Query.SpeciesName == p.failOn {
		return fmt.Errorf("disk full")
	}
	p.persisted = append(p.persisted, result.Query.SpeciesName)
	return nil
}

// writeSpeciesList writes a species list CSV and returns its path
func writeSpeciesList(t *testing.T, dir, name string, species []string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := csv.NewWriter(file)
	records := [][]string{{"Scientific Name", "Common Name"}}
	for _, s := range species {
		records = append(records, []string{"Genus species", s})
	}
	require.NoError(t, w.WriteAll(records))
	return path
}

func checkpointEntries(t *testing.T, batchDir string) []string {
	t.Helper()

	store := checkpoint.NewStore(filepath.Join(batchDir, MetadataDirName, CheckpointFileName))
	entries, err := store.Load()
	require.NoError(t, err)
	return entries
}

func TestParamsValidate(t *testing.T) {
	valid := Params{
		SpeciesListPath: "redlist.csv",
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      "data",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"bad quality", func(p *Params) { p.Quality = "D" }},
		{"lowercase quality", func(p *Params) { p.Quality = "a" }},
		{"empty quality", func(p *Params) { p.Quality = "" }},
		{"missing list", func(p *Params) { p.SpeciesListPath = "" }},
		{"zero max pages", func(p *Params) { p.MaxPages = 0 }},
		{"missing output", func(p *Params) { p.OutputBase = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, errors.KindInvalidParameter, e.Kind)
		})
	}
}

func TestParamsIdentity(t *testing.T) {
	p := Params{
		SpeciesListPath: "lists/redlist.csv",
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
	}
	assert.Equal(t, "redlist_y2020_qA_mp5", p.Identity())

	// Same parameters always map to the same identity
	assert.Equal(t, p.Identity(), p.Identity())

	// Any parameter change gives a different identity
	q := p
	q.Quality = "B"
	assert.NotEqual(t, p.Identity(), q.Identity())
}

func TestRunDownloadsAllSpeciesInOrder(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin", "Wren", "Owl"})

	fetcher := &mockFetcher{}
	persister := &mockPersister{}
	runner := NewRunner(fetcher, persister, logger.NewTestLogger())

	params := Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}
	require.NoError(t, runner.Run(params))

	assert.Equal(t, []string{"Robin", "Wren", "Owl"}, fetcher.fetched)
	assert.Equal(t, []string{"Robin", "Wren", "Owl"}, persister.persisted)

	batchDir := filepath.Join(dir, "out", "redlist_y2020_qA_mp5")
	assert.Equal(t, []string{"Robin", "Wren", "Owl"}, checkpointEntries(t, batchDir))

	// The species list copy lands in the metadata folder
	_, err := os.Stat(filepath.Join(batchDir, MetadataDirName, "redlist.csv"))
	assert.NoError(t, err)
}

func TestSetupCopiesSpeciesListIntact(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin", "Wren"})

	runner := NewRunner(&mockFetcher{}, &mockPersister{}, logger.NewTestLogger())
	require.NoError(t, runner.Run(Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}))

	metadataDir := filepath.Join(dir, "out", "redlist_y2020_qA_mp5", MetadataDirName)

	// The copy is byte-identical to the source list
	original, err := os.ReadFile(listPath)
	require.NoError(t, err)
	copied, err := os.ReadFile(filepath.Join(metadataDir, "redlist.csv"))
	require.NoError(t, err)
	assert.Equal(t, original, copied)

	// The atomic copy leaves no temp file behind
	entries, err := os.ReadDir(metadataDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"),
			"unexpected temp file %s in metadata dir", entry.Name())
	}
}

func TestRunInvalidQualityBeforeAnyIO(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin"})

	fetcher := &mockFetcher{}
	persister := &mockPersister{}
	runner := NewRunner(fetcher, persister, logger.NewTestLogger())

	outputBase := filepath.Join(dir, "out")
	err := runner.Run(Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "D",
		MaxPages:        5,
		OutputBase:      outputBase,
	})
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindInvalidParameter, e.Kind)

	assert.Empty(t, fetcher.fetched)
	_, statErr := os.Stat(outputBase)
	assert.True(t, os.IsNotExist(statErr), "no output should be created for invalid parameters")
}

func TestRunMissingSpeciesListCreatesNothing(t *testing.T) {
	dir := t.TempDir()

	runner := NewRunner(&mockFetcher{}, &mockPersister{}, logger.NewTestLogger())

	outputBase := filepath.Join(dir, "out")
	err := runner.Run(Params{
		SpeciesListPath: filepath.Join(dir, "missing.csv"),
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      outputBase,
	})
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindSourceUnavailable, e.Kind)

	_, statErr := os.Stat(outputBase)
	assert.True(t, os.IsNotExist(statErr), "no batch folder should exist without a readable list")
}

func TestRunResumeSkipsCheckpointedSpecies(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin", "Wren", "Owl"})

	params := Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}

	// First run fails on the last species
	fetcher := &mockFetcher{failOn: "Owl"}
	persister := &mockPersister{}
	runner := NewRunner(fetcher, persister, logger.NewTestLogger())
	require.Error(t, runner.Run(params))
	assert.Equal(t, []string{"Robin", "Wren"}, persister.persisted)

	// Second run resumes: only the unfinished species is processed
	fetcher2 := &mockFetcher{}
	persister2 := &mockPersister{}
	runner2 := NewRunner(fetcher2, persister2, logger.NewTestLogger())
	require.NoError(t, runner2.Run(params))

	assert.Equal(t, []string{"Owl"}, fetcher2.fetched)
	assert.Equal(t, []string{"Owl"}, persister2.persisted)

	batchDir := filepath.Join(dir, "out", "redlist_y2020_qA_mp5")
	assert.Equal(t, []string{"Robin", "Wren", "Owl"}, checkpointEntries(t, batchDir))
}

func TestRunCompletedBatchIsNoOp(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin", "Wren"})

	params := Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}

	runner := NewRunner(&mockFetcher{}, &mockPersister{}, logger.NewTestLogger())
	require.NoError(t, runner.Run(params))

	fetcher := &mockFetcher{}
	persister := &mockPersister{}
	runner2 := NewRunner(fetcher, persister, logger.NewTestLogger())
	require.NoError(t, runner2.Run(params))

	assert.Empty(t, fetcher.fetched, "completed species must not be fetched again")
	assert.Empty(t, persister.persisted)
}

func TestRunPersistFailureLeavesSpeciesUncheckpointed(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin", "Wren", "Owl"})

	params := Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}

	fetcher := &mockFetcher{}
	persister := &mockPersister{failOn: "Wren"}
	runner := NewRunner(fetcher, persister, logger.NewTestLogger())

	err := runner.Run(params)
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindPersist, e.Kind)

	// Owl was never reached; Wren failed and must not be checkpointed
	assert.Equal(t, []string{"Robin", "Wren"}, fetcher.fetched)
	batchDir := filepath.Join(dir, "out", "redlist_y2020_qA_mp5")
	assert.Equal(t, []string{"Robin"}, checkpointEntries(t, batchDir))
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin", "Wren", "Owl"})

	fetcher := &mockFetcher{failOn: "Wren"}
	persister := &mockPersister{}
	runner := NewRunner(fetcher, persister, logger.NewTestLogger())

	err := runner.Run(Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	})
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindFetch, e.Kind)

	// The run stops at the failure; later species are never attempted
	assert.Equal(t, []string{"Robin"}, persister.persisted)
}

func TestRunRedoesSpeciesLostBeforeCheckpoint(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin", "Wren", "Owl"})

	params := Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}

	runner := NewRunner(&mockFetcher{}, &mockPersister{}, logger.NewTestLogger())
	require.NoError(t, runner.Run(params))

	// Simulate a crash between persist and checkpoint append for Owl by
	// rewriting the checkpoint without it. The species was persisted but
	// never recorded as complete, so it must be redone.
	batchDir := filepath.Join(dir, "out", "redlist_y2020_qA_mp5")
	checkpointPath := filepath.Join(batchDir, MetadataDirName, CheckpointFileName)
	require.NoError(t, os.WriteFile(checkpointPath, []byte("Species\nRobin\nWren\n"), 0644))

	fetcher := &mockFetcher{}
	persister := &mockPersister{}
	runner2 := NewRunner(fetcher, persister, logger.NewTestLogger())
	require.NoError(t, runner2.Run(params))

	assert.Equal(t, []string{"Owl"}, fetcher.fetched)
	assert.Equal(t, []string{"Owl"}, persister.persisted)
	assert.Equal(t, []string{"Robin", "Wren", "Owl"}, checkpointEntries(t, batchDir))
}

func TestRunCorruptCheckpointSurfaces(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin"})

	params := Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}

	runner := NewRunner(&mockFetcher{}, &mockPersister{}, logger.NewTestLogger())
	require.NoError(t, runner.Run(params))

	// Corrupt the checkpoint between runs
	batchDir := filepath.Join(dir, "out", "redlist_y2020_qA_mp5")
	checkpointPath := filepath.Join(batchDir, MetadataDirName, CheckpointFileName)
	require.NoError(t, os.WriteFile(checkpointPath, []byte("not,a,checkpoint\n\"torn"), 0644))

	fetcher := &mockFetcher{}
	runner2 := NewRunner(fetcher, &mockPersister{}, logger.NewTestLogger())
	err := runner2.Run(params)
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindCheckpointCorrupt, e.Kind)
	assert.Empty(t, fetcher.fetched, "a corrupt checkpoint must stop the run before any fetch")
}

func TestRunMissingCheckpointInExistingBatchSurfaces(t *testing.T) {
	dir := t.TempDir()
	listPath := writeSpeciesList(t, dir, "redlist.csv", []string{"Robin"})

	params := Params{
		SpeciesListPath: listPath,
		Year:            2020,
		Quality:         "A",
		MaxPages:        5,
		OutputBase:      filepath.Join(dir, "out"),
	}

	runner := NewRunner(&mockFetcher{}, &mockPersister{}, logger.NewTestLogger())
	require.NoError(t, runner.Run(params))

	// Delete the checkpoint but keep the metadata folder. The batch must
	// not silently start over.
	batchDir := filepath.Join(dir, "out", "redlist_y2020_qA_mp5")
	require.NoError(t, os.Remove(filepath.Join(batchDir, MetadataDirName, CheckpointFileName)))

	err := runner.Run(params)
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindCheckpointCorrupt, e.Kind)
}
