package poller

import (
	"context"
	"time"

	"property-insight-be/pkg/dedup"
	"property-insight-be/pkg/engine"
	"property-insight-be/pkg/store"
)

// HTTPFetcher reads snapshots over the session endpoint. Concurrent fetches
// for the same session share one request.
type HTTPFetcher struct {
	client  engine.Client
	flights *dedup.Group[*store.Session]
}

func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return NewFetcher(engine.NewHTTPClient(baseURL, timeout), timeout)
}

func NewFetcher(client engine.Client, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:  client,
		flights: dedup.New[*store.Session](timeout),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, sessionID string) (*store.Session, error) {
	s, _, err := f.flights.Do(ctx, sessionID, func(ctx context.Context) (*store.Session, error) {
		return f.client.FetchSession(ctx, sessionID)
	})
	return s, err
}
