package table

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source identifies one sheet view inside a published spreadsheet. GID is
// the sub-sheet id ("0" for Feuille 1, the matrice view id otherwise).
type Source struct {
	SheetID string
	GID     string
}

// Fetcher retrieves a parsed table snapshot for a source. The matching engine
// treats it as a black box; implementations may add caching or fixtures.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) (*Table, error)
}

// FetchError signals that the upstream spreadsheet transport failed. The
// engine never retries it; the HTTP layer maps it to 502.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const defaultBaseURL = "https://docs.google.com/spreadsheets/d"

// GvizFetcher fetches sheet snapshots through the Google Visualization
// table-query endpoint.
type GvizFetcher struct {
	client   *http.Client
	baseURL  string
	attempts int
}

// NewGvizFetcher returns a fetcher with a 30s timeout and 3 attempts per
// fetch, linear backoff between attempts.
func NewGvizFetcher() *GvizFetcher {
	return &GvizFetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  defaultBaseURL,
		attempts: 3,
	}
}

// URL returns the table-query URL for a source. Also used by the health
// checker for availability probes.
func (f *GvizFetcher) URL(src Source) string {
	u := fmt.Sprintf("%s/%s/gviz/tq?tqx=out:json", f.baseURL, src.SheetID)
	if src.GID != "" {
		u += "&gid=" + src.GID
	}
	return u
}

// Fetch downloads and parses one sheet snapshot.
func (f *GvizFetcher) Fetch(ctx context.Context, src Source) (*Table, error) {
	url := f.URL(src)

	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		t, err := ParseGviz(body)
		if err != nil {
			// Unparseable content counts as an upstream failure.
			lastErr = &FetchError{URL: url, Err: err}
			continue
		}
		return t, nil
	}
	return nil, lastErr
}

func (f *GvizFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}
