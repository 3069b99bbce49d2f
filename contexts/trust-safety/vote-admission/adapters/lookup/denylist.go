package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/ports"

	"github.com/coocood/freecache"
)

// HTTPDenylist asks an external reputation service whether an email
// domain belongs to a disposable-address provider. Lookup failures are
// returned to the caller; the guard treats them as fail-open.
type HTTPDenylist struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPDenylist(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPDenylist {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPDenylist{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type denylistResponse struct {
	Disposable bool `json:"disposable"`
}

func (d *HTTPDenylist) IsDisposable(ctx context.Context, domain string) (bool, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false, nil
	}
	endpoint := d.baseURL + "/v1/domains/" + url.PathEscape(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build denylist request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("query denylist: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("denylist responded with status %d", resp.StatusCode)
	}

	var payload denylistResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("decode denylist response: %w", err)
	}
	return payload.Disposable, nil
}

const (
	denylistCacheHit  = byte(1)
	denylistCacheMiss = byte(0)
)

// CachedDenylist memoizes domain verdicts in-process. Only successful
// lookups are cached so a transient outage never pins a stale answer.
type CachedDenylist struct {
	next   ports.DomainDenylist
	cache  *freecache.Cache
	ttlSec int
	logger *slog.Logger
}

func NewCachedDenylist(next ports.DomainDenylist, sizeMB int, ttl time.Duration, logger *slog.Logger) *CachedDenylist {
	if logger == nil {
		logger = slog.Default()
	}
	if sizeMB <= 0 {
		sizeMB = 8
	}
	ttlSec := int(ttl.Seconds())
	if ttlSec <= 0 {
		ttlSec = 3600
	}
	return &CachedDenylist{
		next:   next,
		cache:  freecache.NewCache(sizeMB * 1024 * 1024),
		ttlSec: ttlSec,
		logger: logger,
	}
}

func (c *CachedDenylist) IsDisposable(ctx context.Context, domain string) (bool, error) {
	key := []byte(strings.ToLower(strings.TrimSpace(domain)))
	if len(key) > 0 {
		if cached, err := c.cache.Get(key); err == nil && len(cached) == 1 {
			return cached[0] == denylistCacheHit, nil
		}
	}

	disposable, err := c.next.IsDisposable(ctx, domain)
	if err != nil {
		return false, err
	}

	verdict := denylistCacheMiss
	if disposable {
		verdict = denylistCacheHit
	}
	if len(key) > 0 {
		if err := c.cache.Set(key, []byte{verdict}, c.ttlSec); err != nil {
			c.logger.Warn("denylist cache write skipped",
				"event", "admission_denylist_cache_write_failed",
				"module", "trust-safety/vote-admission",
				"layer", "adapter",
				"error", err.Error(),
			)
		}
	}
	return disposable, nil
}

var _ ports.DomainDenylist = (*HTTPDenylist)(nil)
var _ ports.DomainDenylist = (*CachedDenylist)(nil)
