package checkpoint

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/RobbeRDG/chirpnet-project/pkg/errors"
	"github.com/RobbeRDG/chirpnet-project/pkg/logger"
)

// header is the single column of the checkpoint CSV file
const header = "Species"

// Store is a durable, append-only set of species names whose download has
// fully completed for one batch. It is backed by a single-column CSV file
// so that existing batch folders stay readable.
type Store struct {
	path    string
	entries []string
	index   map[string]bool
	logger  logger.Logger
}

// NewStore creates a checkpoint store backed by the CSV file at path.
// The file is not touched until Init or Load is called.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		index:  make(map[string]bool),
		logger: logger.GetLogger(),
	}
}

// Path returns the location of the checkpoint file
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the checkpoint file is already present on disk
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Init creates an empty checkpoint file if none exists yet. An existing
// file is left untouched; re-initializing would silently forget completed
// species and trigger a full re-download.
func (s *Store) Init() error {
	if s.Exists() {
		return nil
	}
	return s.write(nil)
}

// Load reads the checkpoint file into memory and returns the completed
// species names in file order. An unreadable or malformed file surfaces
// as a checkpoint_corrupt error and is never silently reset.
func (s *Store) Load() ([]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(errors.KindCheckpointCorrupt, err,
			fmt.Sprintf("failed to open checkpoint file %s", s.path))
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.KindCheckpointCorrupt, err,
			fmt.Sprintf("failed to parse checkpoint file %s", s.path))
	}

	if len(records) == 0 || len(records[0]) != 1 || records[0][0] != header {
		return nil, errors.Newf(errors.KindCheckpointCorrupt,
			"checkpoint file %s has unexpected header", s.path)
	}

	s.entries = s.entries[:0]
	s.index = make(map[string]bool, len(records)-1)
	for _, record := range records[1:] {
		name := strings.TrimSpace(record[0])
		if name == "" || s.index[name] {
			continue
		}
		s.entries = append(s.entries, name)
		s.index[name] = true
	}

	s.logger.DebugWithFields("checkpoint loaded", map[string]interface{}{
		"path":      s.path,
		"completed": len(s.entries),
	})

	return append([]string(nil), s.entries...), nil
}

// Contains reports whether a species is already recorded as completed.
// Load must have been called first.
func (s *Store) Contains(species string) bool {
	return s.index[species]
}

// Entries returns the completed species names in completion order
func (s *Store) Entries() []string {
	return append([]string(nil), s.entries...)
}

// Append durably records one completed species. The entry set only grows;
// appending an already-present name is a no-op. The write is atomic
// (temp file, fsync, rename) so a crash never leaves a torn checkpoint.
func (s *Store) Append(species string) error {
	if s.index[species] {
		return nil
	}

	entries := append(append([]string(nil), s.entries...), species)
	if err := s.write(entries); err != nil {
		return err
	}

	s.entries = entries
	s.index[species] = true

	s.logger.DebugWithFields("checkpoint updated", map[string]interface{}{
		"path":    s.path,
		"species": species,
	})

	return nil
}

// write replaces the checkpoint file contents atomically
func (s *Store) write(entries []string) error {
	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	w := csv.NewWriter(file)
	records := make([][]string, 0, len(entries)+1)
	records = append(records, []string{header})
	for _, entry := range entries {
		records = append(records, []string{entry})
	}
	if err := w.WriteAll(records); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint records: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}
