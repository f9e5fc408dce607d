package providers

import (
	"context"
	"errors"
	"time"
)

// ErrNoData covers every tolerated provider failure: empty payloads,
// exhausted rate-limit retries, forbidden endpoints, transport errors.
// Callers treat it as "no quote for this symbol", never as fatal.
var ErrNoData = errors.New("provider: no data")

// Options carries the call-policy settings shared by every client.
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Cooldown     time.Duration
}

// SearchResult is one hit from an equity symbol search.
type SearchResult struct {
	Symbol      string
	Description string
	Type        string
}

// CoinResult is one hit from a crypto search.
type CoinResult struct {
	ID     string
	Symbol string
	Name   string
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
