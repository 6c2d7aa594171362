package xenocanto

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the recordings endpoint of the xeno-canto API
	DefaultBaseURL = "https://xeno-canto.org/api/2/recordings"
)

// Query describes one recordings search against the xeno-canto API
type Query struct {
	SpeciesName string
	Year        int
	Quality     string
}

// String renders the query in the xeno-canto search syntax,
// e.g. `Eurasian Wren year:2020 q:A`.
func (q Query) String() string {
	parts := []string{strings.TrimSpace(q.SpeciesName)}
	if q.Year != 0 {
		parts = append(parts, fmt.Sprintf("year:%d", q.Year))
	}
	if q.Quality != "" {
		parts = append(parts, fmt.Sprintf("q:%s", q.Quality))
	}
	return strings.Join(parts, " ")
}

// PageURL constructs the request URL for one page of query results
func PageURL(baseURL string, q Query, page int, apiKey string) string {
	params := url.Values{}
	params.Set("query", q.String())
	if page > 1 {
		params.Set("page", fmt.Sprintf("%d", page))
	}
	if apiKey != "" {
		params.Set("key", apiKey)
	}

	return fmt.Sprintf("%s?%s", baseURL, params.Encode())
}
