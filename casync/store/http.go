package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RequestError carries information on a failed HTTP request, in the
// teacher's style (filen/client/client.go's RequestError): a description,
// the method and URL involved, and the underlying cause.
type RequestError struct {
	Message         string
	Method          string
	URL             string
	UnderlyingError error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Method)
	b.WriteRune(' ')
	b.WriteString(e.URL)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.UnderlyingError != nil {
		fmt.Fprintf(&b, " (%s)", e.UnderlyingError)
	}
	return b.String()
}

func (e *RequestError) Unwrap() error { return e.UnderlyingError }

// HTTPFetcher fetches chunk bytes by GET request against a single base
// URL, collapsed from the teacher's multi-endpoint FilenURL (which
// randomly selects among ingest/egest/gateway hosts) since a casync store
// has exactly one location.
type HTTPFetcher struct {
	BaseURL    string
	httpClient *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher against baseURL, with the
// teacher's 10-second request timeout.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch issues a context-scoped GET for BaseURL + "/" + path and returns
// the raw response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	url := f.BaseURL + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RequestError{Message: "cannot build request", Method: http.MethodGet, URL: url, UnderlyingError: err}
	}

	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Message: "cannot send request", Method: http.MethodGet, URL: url, UnderlyingError: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return nil, &RequestError{Message: fmt.Sprintf("unexpected status %s", res.Status), Method: http.MethodGet, URL: url}
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &RequestError{Message: "cannot read response body", Method: http.MethodGet, URL: url, UnderlyingError: err}
	}
	return data, nil
}
