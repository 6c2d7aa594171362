package download

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobbeRDG/chirpnet-project/pkg/logger"
	"github.com/RobbeRDG/chirpnet-project/pkg/xenocanto"
)

// mockDownloader serves fixed payloads by URL
type mockDownloader struct {
	payloads map[string][]byte
	calls    []string
	failOn   string
}

func (d *mockDownloader) Download(fileURL string) ([]byte, error) {
	if fileURL == d.failOn {
		return nil, fmt.Errorf("download failed")
	}
	d.calls = append(d.calls, fileURL)
	if data, ok := d.payloads[fileURL]; ok {
		return data, nil
	}
	return []byte("audio"), nil
}

// nopLimiter never blocks
type nopLimiter struct{}

func (nopLimiter) Allow() bool { return true }
func (nopLimiter) Wait()       {}
func (nopLimiter) Reset()      {}

func testResult(species string, recordings ...xenocanto.Recording) *xenocanto.QueryResult {
	return &xenocanto.QueryResult{
		Query:      xenocanto.Query{SpeciesName: species, Year: 2020, Quality: "A"},
		Recordings: recordings,
	}
}

func TestSpeciesDirName(t *testing.T) {
	assert.Equal(t, "Eurasian_Wren", SpeciesDirName("Eurasian Wren"))
	assert.Equal(t, "Great_Spotted_Woodpecker", SpeciesDirName(" Great Spotted Woodpecker "))
	assert.Equal(t, "Owl", SpeciesDirName("Owl"))
}

func TestPersistQueryResult(t *testing.T) {
	dir := t.TempDir()
	downloader := &mockDownloader{payloads: map[string][]byte{
		"https://host/a.mp3": []byte("first"),
		"https://host/b.mp3": []byte("second"),
	}}
	manager := NewManager(downloader, nopLimiter{}, logger.NewTestLogger())

	result := testResult("Eurasian Wren",
		xenocanto.Recording{
			ID:          "1001",
			EnglishName: "Eurasian Wren",
			Genus:       "Troglodytes",
			Species:     "troglodytes",
			File:        "https://host/a.mp3",
			FileName:    "XC1001-wren.mp3",
			Quality:     "A",
			Length:      "0:42",
		},
		xenocanto.Recording{
			ID:          "1002",
			EnglishName: "Eurasian Wren",
			Genus:       "Troglodytes",
			Species:     "troglodytes",
			File:        "https://host/b.mp3",
			FileName:    "XC1002-wren.mp3",
			Quality:     "A",
			Length:      "1:05",
			Also:        []string{"Parus major"},
		},
	)

	require.NoError(t, manager.PersistQueryResult(result, dir))

	speciesDir := filepath.Join(dir, "Eurasian_Wren")
	data, err := os.ReadFile(filepath.Join(speciesDir, "XC1001-wren.mp3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	data, err = os.ReadFile(filepath.Join(speciesDir, "XC1002-wren.mp3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	// Metadata CSV holds one row per recording
	file, err := os.Open(filepath.Join(speciesDir, "Eurasian_Wren_recording_metadata.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "ID", records[0][0])
	assert.Equal(t, "1001", records[1][0])
	assert.Equal(t, "Troglodytes troglodytes", records[1][2])
	assert.Equal(t, "Parus major", records[2][12])
}

func TestPersistSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()

	speciesDir := filepath.Join(dir, "Eurasian_Wren")
	require.NoError(t, os.MkdirAll(speciesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(speciesDir, "XC1001-wren.mp3"), []byte("old"), 0644))

	downloader := &mockDownloader{}
	manager := NewManager(downloader, nopLimiter{}, logger.NewTestLogger())

	result := testResult("Eurasian Wren",
		xenocanto.Recording{ID: "1001", File: "https://host/a.mp3", FileName: "XC1001-wren.mp3"},
		xenocanto.Recording{ID: "1002", File: "https://host/b.mp3", FileName: "XC1002-wren.mp3"},
	)
	require.NoError(t, manager.PersistQueryResult(result, dir))

	// Only the missing file was downloaded
	assert.Equal(t, []string{"https://host/b.mp3"}, downloader.calls)

	// The existing file is untouched
	data, err := os.ReadFile(filepath.Join(speciesDir, "XC1001-wren.mp3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)
}

func TestPersistDownloadFailureStopsRun(t *testing.T) {
	dir := t.TempDir()

	downloader := &mockDownloader{failOn: "https://host/b.mp3"}
	manager := NewManager(downloader, nopLimiter{}, logger.NewTestLogger())

	result := testResult("Eurasian Wren",
		xenocanto.Recording{ID: "1001", File: "https://host/a.mp3", FileName: "XC1001.mp3"},
		xenocanto.Recording{ID: "1002", File: "https://host/b.mp3", FileName: "XC1002.mp3"},
		xenocanto.Recording{ID: "1003", File: "https://host/c.mp3", FileName: "XC1003.mp3"},
	)
	err := manager.PersistQueryResult(result, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1002")

	// The failure stops the species; no metadata is written
	_, statErr := os.Stat(filepath.Join(dir, "Eurasian_Wren", "Eurasian_Wren_recording_metadata.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPersistEmptyResultWritesMetadataOnly(t *testing.T) {
	dir := t.TempDir()

	manager := NewManager(&mockDownloader{}, nopLimiter{}, logger.NewTestLogger())
	require.NoError(t, manager.PersistQueryResult(testResult("Eurasian Wren"), dir))

	file, err := os.Open(filepath.Join(dir, "Eurasian_Wren", "Eurasian_Wren_recording_metadata.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "expected header only")
}

func TestRecordingFileNameFallback(t *testing.T) {
	rec := &xenocanto.Recording{ID: "1001"}
	assert.Equal(t, "XC1001.mp3", recordingFileName(rec))

	rec = &xenocanto.Recording{ID: "1002", FileName: "dir/evil.mp3"}
	assert.Equal(t, "dir_evil.mp3", recordingFileName(rec))
}
