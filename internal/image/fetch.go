package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxSourceBytes caps how much of an upstream image is read.
const MaxSourceBytes = 20 << 20

// ErrTooLarge is returned when an upstream image exceeds MaxSourceBytes.
var ErrTooLarge = errors.New("image exceeds size limit")

// StatusError is a non-200 answer from the image host.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image host answered HTTP %d", e.Code)
}

// Fetch downloads rawURL. authorize, if set, adds credentials to the request.
func Fetch(ctx context.Context, client *http.Client, rawURL string, authorize func(*http.Request)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building image request: %w", err)
	}
	if authorize != nil {
		authorize(req)
	}

	resp, err := client.Do(req) //nolint:gosec // URL comes from the configured media server
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if resp.ContentLength > MaxSourceBytes {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes+1))
	switch {
	case err != nil:
		return nil, fmt.Errorf("reading image body: %w", err)
	case len(data) > MaxSourceBytes:
		return nil, ErrTooLarge
	}
	return data, nil
}
