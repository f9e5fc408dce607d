package providers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// policy applies the call rules every client shares: linear backoff on
// 429, a cooldown window on 403, and "no data" for everything else. The
// cooldown is scoped to an endpoint key, not the whole client.
type policy struct {
	maxRetries int
	backoff    time.Duration
	cooldown   time.Duration
	log        *logrus.Logger

	mu        sync.Mutex
	forbidden map[string]time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func newPolicy(opts Options, log *logrus.Logger) *policy {
	return &policy{
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		cooldown:   opts.Cooldown,
		log:        log,
		forbidden:  map[string]time.Time{},
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func (p *policy) blocked(endpoint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	until, ok := p.forbidden[endpoint]
	if !ok {
		return false
	}
	if p.now().After(until) {
		delete(p.forbidden, endpoint)
		return false
	}
	return true
}

func (p *policy) forbid(endpoint string) {
	p.mu.Lock()
	p.forbidden[endpoint] = p.now().Add(p.cooldown)
	p.mu.Unlock()
}

// do runs one provider call under the shared rules and returns the raw
// body on success.
func (p *policy) do(ctx context.Context, endpoint string, call func() (*resty.Response, error)) ([]byte, error) {
	if p.blocked(endpoint) {
		return nil, ErrNoData
	}
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, time.Duration(attempt)*p.backoff); err != nil {
				return nil, ErrNoData
			}
		}
		resp, err := call()
		if err != nil {
			p.log.Warnf("%s: request failed: %v", endpoint, err)
			return nil, ErrNoData
		}
		switch {
		case resp.StatusCode() == http.StatusTooManyRequests:
			continue
		case resp.StatusCode() == http.StatusForbidden:
			p.forbid(endpoint)
			p.log.Warnf("%s: forbidden, cooling down for %s", endpoint, p.cooldown)
			return nil, ErrNoData
		case resp.IsSuccess():
			return resp.Body(), nil
		default:
			p.log.Warnf("%s: unexpected status %d", endpoint, resp.StatusCode())
			return nil, ErrNoData
		}
	}
	p.log.Warnf("%s: rate limited, retries exhausted", endpoint)
	return nil, ErrNoData
}
