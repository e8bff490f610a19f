package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultRobotsCacheTTL = 24 * time.Hour
	maxRobotsBodyBytes    = 512 * 1024
)

// RobotsChecker answers robots.txt questions for problem URLs, caching the
// parsed rules per host. Hosts whose robots.txt is missing, unparsable or
// unreachable are treated as allow-all.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	cacheTTL   time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	hosts map[string]robotsEntry
}

type robotsEntry struct {
	group     *robotstxt.Group // nil means allow-all
	fetchedAt time.Time
}

// NewRobotsChecker creates a RobotsChecker. A zero cacheTTL uses 24h.
func NewRobotsChecker(httpClient *http.Client, userAgent string, cacheTTL time.Duration) *RobotsChecker {
	if cacheTTL <= 0 {
		cacheTTL = defaultRobotsCacheTTL
	}

	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cacheTTL:   cacheTTL,
		now:        time.Now,
		hosts:      make(map[string]robotsEntry),
	}
}

// Allowed reports whether rawURL may be fetched by our user agent.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	entry := r.entry(ctx, parsed.Scheme, host)
	if entry.group == nil {
		return true, nil
	}

	return entry.group.Test(parsed.EscapedPath()), nil
}

// CrawlDelay returns the Crawl-delay rawURL's host asks of our user agent, or
// zero when the host has not been checked yet or sets none.
func (r *RobotsChecker) CrawlDelay(rawURL string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.hosts[strings.ToLower(parsed.Host)]
	if !ok || entry.group == nil {
		return 0
	}
	return entry.group.CrawlDelay
}

func (r *RobotsChecker) entry(ctx context.Context, scheme, host string) robotsEntry {
	r.mu.RLock()
	entry, ok := r.hosts[host]
	r.mu.RUnlock()

	if ok && r.now().Sub(entry.fetchedAt) <= r.cacheTTL {
		return entry
	}

	entry = robotsEntry{fetchedAt: r.now()}
	if data := r.fetch(ctx, scheme, host); data != nil {
		entry.group = data.FindGroup(r.userAgent)
	}

	r.mu.Lock()
	r.hosts[host] = entry
	r.mu.Unlock()

	return entry
}

// fetch returns the parsed robots.txt, or nil when the host should be treated as allow-all.
func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	if scheme == "" {
		scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host+"/robots.txt", http.NoBody)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return data
}
