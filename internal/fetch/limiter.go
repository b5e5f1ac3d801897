package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per site. Jobs whose URLs differ only in host
// case, scheme default port or trailing dot share one limiter.
type HostLimiter struct {
	mu    sync.Mutex
	sites map[string]*rate.Limiter
	every rate.Limit
	burst int
}

func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		sites: make(map[string]*rate.Limiter),
		every: rate.Limit(perSecond),
		burst: burst,
	}
}

// Wait blocks until a request to rawURL's site is allowed or ctx is done.
// Unparseable URLs share one fallback limiter.
func (hl *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	return hl.site(siteKey(rawURL)).Wait(ctx)
}

// Sites reports how many distinct sites have been seen.
func (hl *HostLimiter) Sites() int {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return len(hl.sites)
}

func (hl *HostLimiter) site(key string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	lim, ok := hl.sites[key]
	if !ok {
		lim = rate.NewLimiter(hl.every, hl.burst)
		hl.sites[key] = lim
	}
	return lim
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

func siteKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return "_"
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	port := u.Port()
	if port == "" || port == defaultPorts[strings.ToLower(u.Scheme)] {
		return host
	}
	return host + ":" + port
}
