package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	// robotsTTL bounds how long a host's rules are reused within one process
	robotsTTL = 6 * time.Hour
	// unreachableTTL is how long a host whose robots.txt failed stays allow-all
	unreachableTTL = 10 * time.Minute
	// maxRobotsBytes caps the robots.txt body read
	maxRobotsBytes = 512 << 10
)

// RobotsChecker answers robots.txt questions for feed and scrape hosts.
// API hosts are not checked; callers decide which requests go through it.
type RobotsChecker struct {
	rules     *gocache.Cache
	client    *http.Client
	userAgent string
}

// NewRobotsChecker creates a checker that identifies itself with the product token of userAgent
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	return &RobotsChecker{
		rules:     gocache.New(robotsTTL, time.Hour),
		client:    &http.Client{Timeout: timeout},
		userAgent: NormalizeUserAgent(userAgent),
	}
}

// CanFetch reports whether rawURL may be fetched and the crawl delay to honor.
// A host whose robots.txt cannot be retrieved is treated as allowing everything.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return false, 0, fmt.Errorf("parse URL: no host in %q", rawURL)
	}

	data := r.rulesFor(ctx, u)
	if data == nil {
		return true, 0, nil
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	var delay time.Duration
	if group := data.FindGroup(r.userAgent); group != nil {
		delay = group.CrawlDelay
	}
	return data.TestAgent(target, r.userAgent), delay, nil
}

// rulesFor returns the parsed robots.txt of u's origin, or nil when it was unreachable
func (r *RobotsChecker) rulesFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	if cached, ok := r.rules.Get(origin); ok {
		data, _ := cached.(*robotstxt.RobotsData)
		return data
	}

	data, err := r.download(ctx, origin+"/robots.txt")
	if err != nil {
		r.rules.Set(origin, (*robotstxt.RobotsData)(nil), unreachableTTL)
		return nil
	}
	r.rules.Set(origin, data, gocache.DefaultExpiration)
	return data
}

func (r *RobotsChecker) download(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	// 4xx means allow-all and 5xx disallow-all, per the robotstxt package
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// NormalizeUserAgent reduces a user agent string to its product token
func NormalizeUserAgent(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ua
	}
	token, _, _ := strings.Cut(fields[0], "/")
	return token
}
