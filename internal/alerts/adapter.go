package alerts

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/alertdeck/alertdeck/internal/database"
)

// maxBodySize caps how much of an upstream response is read (4 MiB)
const maxBodySize = 4 << 20

// SourceAdapter defines the contract for source-specific alert polling.
// Fetch must be side-effect free: health bookkeeping belongs to the
// orchestrator, never to adapters.
type SourceAdapter interface {
	// SourceType returns the source type this adapter handles
	SourceType() database.SourceTypeName

	// Fetch polls the configured upstream and returns normalized alerts.
	// Failures are reported as *FetchError.
	Fetch(ctx context.Context, src database.SourceConfig) ([]Alert, error)
}

// ReadBody drains an upstream response body up to maxBodySize
func ReadBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodySize))
}

// LooksLikeHTML reports whether a response body is HTML-shaped. Upstreams
// behind login pages or misconfigured reverse proxies return HTML where the
// API would return JSON; adapters reject those explicitly instead of failing
// at parse time.
func LooksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	// JSON and Prometheus text expositions never open with '<'
	return trimmed[0] == '<'
}

// DoRequest executes an HTTP request and applies the shared failure
// taxonomy: transport errors are Unreachable, non-2xx is Rejected, and
// HTML-shaped bodies are Malformed. On success the body is returned.
func DoRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, Unreachable(err)
	}
	defer resp.Body.Close()

	body, err := ReadBody(resp.Body)
	if err != nil {
		return nil, Unreachable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, Rejected(resp.StatusCode)
	}

	if LooksLikeHTML(body) {
		return nil, Malformed("got HTML instead of an API response, check URL and credentials", nil)
	}

	return body, nil
}

// NewJSONRequest builds a GET request with a JSON accept header
func NewJSONRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
