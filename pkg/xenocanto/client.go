package xenocanto

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/RobbeRDG/chirpnet-project/pkg/config"
	"github.com/RobbeRDG/chirpnet-project/pkg/errors"
	"github.com/RobbeRDG/chirpnet-project/pkg/logger"
	"github.com/RobbeRDG/chirpnet-project/pkg/retry"
)

// Client is an HTTP client for the xeno-canto recordings API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	apiKey     string
	retrier    *retry.Retrier
	logger     logger.Logger
}

// NewClient creates a new xeno-canto API client
func NewClient(cfg *config.XenoCantoConfig, retryCfg *config.RetryConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	retrier := retry.NewRetrier(&retry.Config{
		MaxAttempts: retryCfg.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    retryCfg.BaseDelay,
			MaxDelay:     retryCfg.MaxDelay,
			Multiplier:   retryCfg.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Logger:  log,
	})

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "chirpnet/1.0",
		},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		retrier: retrier,
		logger:  log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{
			Kind:    errors.KindNetwork,
			Message: "network error: " + err.Error(),
			Err:     err,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// get performs a GET request and returns the response body for 200 responses,
// mapping other status codes to classified errors.
func (c *Client) get(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.KindUnknown, err, "failed to build request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &errors.Error{
			Kind:    errors.KindFromStatusCode(resp.StatusCode),
			Message: "unexpected status from " + url,
			Code:    resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.KindNetwork, err, "failed to read response body")
	}

	return body, nil
}

// GetJSON performs a GET request with retries and decodes the JSON response
func (c *Client) GetJSON(url string, target interface{}) error {
	return c.retrier.Do(func() error {
		body, err := c.get(url)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, target); err != nil {
			return errors.Wrap(errors.KindParsing, err, "failed to decode JSON response")
		}
		return nil
	})
}

// Download fetches a recording's audio payload with retries
func (c *Client) Download(fileURL string) ([]byte, error) {
	var data []byte
	err := c.retrier.Do(func() error {
		body, err := c.get(fileURL)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	return data, err
}

// FetchSpecies queries the recordings API for one species, following
// pagination up to maxPages, and returns the accumulated result.
func (c *Client) FetchSpecies(query Query, maxPages int) (*QueryResult, error) {
	result := &QueryResult{Query: query}

	c.logger.InfoWithFields("sending recordings query", map[string]interface{}{
		"species": query.SpeciesName,
		"query":   query.String(),
	})

	numPages := 1
	for page := 1; page <= numPages && page <= maxPages; page++ {
		var resp ResponsePage
		if err := c.GetJSON(PageURL(c.baseURL, query, page, c.apiKey), &resp); err != nil {
			return nil, err
		}

		if resp.Error != "" {
			return nil, errors.Newf(errors.KindUnknown, "xeno-canto API error %q: %s", resp.Error, resp.Message)
		}

		if resp.NumPages > 0 {
			numPages = resp.NumPages
		}
		result.Recordings = append(result.Recordings, resp.Recordings...)
		result.PagesRead++

		c.logger.DebugWithFields("recordings page fetched", map[string]interface{}{
			"species":    query.SpeciesName,
			"page":       page,
			"num_pages":  numPages,
			"recordings": len(resp.Recordings),
		})
	}

	c.logger.InfoWithFields("recordings query complete", map[string]interface{}{
		"species":    query.SpeciesName,
		"recordings": result.Len(),
		"pages_read": result.PagesRead,
	})

	return result, nil
}
