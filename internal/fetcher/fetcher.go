// Package fetcher downloads the traffic dataset over HTTP and assembles the
// JSON pages into a model.Table.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// singleAttempter is implemented by fetchers that retry internally and can
// hand out a copy that does not.
type singleAttempter interface {
	SingleAttempt() Fetcher
}
