package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ordersetl/internal/datasource"
)

// StatusError reports a final non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Source is a datasource.Source backed by an HTTP URL.
type Source struct {
	client *Client
	url    string
}

// NewSource returns a Source for url. A nil client uses NewClient(Config{}).
func NewSource(client *Client, url string) *Source {
	if client == nil {
		client = NewClient(Config{})
	}
	return &Source{client: client, url: url}
}

// Name returns the URL.
func (s *Source) Name() string { return s.url }

// Open fetches the URL and returns the response body. 404 and 410 yield an
// error matching datasource.ErrMissing; other non-2xx statuses yield a
// *StatusError.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp.Body, nil
	}
	_ = resp.Body.Close()

	se := &StatusError{URL: s.url, Code: resp.StatusCode}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%w: %w", datasource.ErrMissing, se)
	}
	return nil, se
}

// IsURL reports whether s names an http or https resource.
func IsURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
