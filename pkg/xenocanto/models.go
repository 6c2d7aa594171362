package xenocanto

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Recording is a single xeno-canto recording entry
type Recording struct {
	ID          string   `json:"id"`
	Genus       string   `json:"gen"`
	Species     string   `json:"sp"`
	Subspecies  string   `json:"ssp"`
	EnglishName string   `json:"en"`
	Recordist   string   `json:"rec"`
	Country     string   `json:"cnt"`
	Location    string   `json:"loc"`
	Latitude    string   `json:"lat"`
	Longitude   string   `json:"lng"`
	Altitude    string   `json:"alt"`
	SoundType   string   `json:"type"`
	URL         string   `json:"url"`
	File        string   `json:"file"`
	FileName    string   `json:"file-name"`
	License     string   `json:"lic"`
	Quality     string   `json:"q"`
	Length      string   `json:"length"`
	Time        string   `json:"time"`
	Date        string   `json:"date"`
	Uploaded    string   `json:"uploaded"`
	Also        []string `json:"also"`
	Remarks     string   `json:"rmk"`
}

// ScientificName returns the full scientific name of the recorded species
func (r *Recording) ScientificName() string {
	name := r.Genus + " " + r.Species
	if r.Subspecies != "" {
		name += " " + r.Subspecies
	}
	return name
}

// IsClean reports whether the recording has no background species
func (r *Recording) IsClean() bool {
	for _, also := range r.Also {
		if strings.TrimSpace(also) != "" {
			return false
		}
	}
	return true
}

// Duration parses the recording length into a duration
func (r *Recording) Duration() (time.Duration, error) {
	return ParseLength(r.Length)
}

// ParseLength parses a recording length ("m:ss" or "h:mm:ss") into a
// duration. Returns an error for empty or malformed length strings.
func ParseLength(length string) (time.Duration, error) {
	parts := strings.Split(length, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed recording length %q", length)
	}

	var total int
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed recording length %q", length)
		}
		total = total*60 + n
	}

	return time.Duration(total) * time.Second, nil
}

// ResponsePage is one page of the recordings API response
type ResponsePage struct {
	NumRecordings string      `json:"numRecordings"`
	NumSpecies    string      `json:"numSpecies"`
	Page          int         `json:"page"`
	NumPages      int         `json:"numPages"`
	Recordings    []Recording `json:"recordings"`
	Error         string      `json:"error"`
	Message       string      `json:"message"`
}

// QueryResult aggregates all recordings fetched for one query across pages
type QueryResult struct {
	Query      Query
	Recordings []Recording
	PagesRead  int
}

// Len returns the number of recordings in the result
func (qr *QueryResult) Len() int {
	return len(qr.Recordings)
}
