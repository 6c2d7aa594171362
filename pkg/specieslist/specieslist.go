// Package specieslist loads the species lists that drive a batch download.
// A list is a CSV export of a conservation-status catalogue with a
// "Common Name" column holding the species names.
package specieslist

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/RobbeRDG/chirpnet-project/pkg/errors"
)

// CommonNameColumn is the column holding the species common names
const CommonNameColumn = "Common Name"

// Load reads the species list at path and returns the ordered common
// names. Any failure to produce a non-empty list is a source_unavailable
// error: the batch must not start without its input.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindSourceUnavailable, err,
			"failed to open species list "+path)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.KindSourceUnavailable, err,
			"failed to parse species list "+path)
	}
	if len(records) == 0 {
		return nil, errors.New(errors.KindSourceUnavailable,
			"species list "+path+" is empty")
	}

	nameCol := -1
	for i, col := range records[0] {
		if strings.TrimSpace(col) == CommonNameColumn {
			nameCol = i
			break
		}
	}
	if nameCol == -1 {
		return nil, errors.Newf(errors.KindSourceUnavailable,
			"species list %s has no %q column", path, CommonNameColumn)
	}

	var names []string
	for _, record := range records[1:] {
		if nameCol >= len(record) {
			continue
		}
		name := strings.TrimSpace(record[nameCol])
		if name != "" {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return nil, errors.New(errors.KindSourceUnavailable,
			"species list "+path+" contains no species names")
	}

	return names, nil
}

// BaseName returns the list name used in batch identities: the file's
// base name with the extension stripped ("lists/redlist.csv" -> "redlist").
func BaseName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
