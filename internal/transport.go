package internal

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 LinkGrab/1.0"

// Client is the shared HTTP client for page fetches and downloads.
type Client struct {
	httpClient   *http.Client
	limiters     map[string]*rate.Limiter
	limitersMu   sync.Mutex
	rateLimit    int
	maxBodyBytes int64
}

// NewClient builds a client. rateLimit is requests/second per host, 0 = unlimited.
func NewClient(timeout time.Duration, rateLimit int, maxBodyMB int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		limiters:     make(map[string]*rate.Limiter),
		rateLimit:    rateLimit,
		maxBodyBytes: int64(maxBodyMB) * 1024 * 1024,
	}
}

func (c *Client) limiter(host string) *rate.Limiter {
	if c.rateLimit <= 0 {
		return nil
	}
	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.rateLimit), 1)
		c.limiters[host] = l
	}
	return l
}

// Open issues a GET and returns the response for streaming. Non-2xx is an error.
func (c *Client) Open(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	if l := c.limiter(req.URL.Host); l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter cancelled: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}
	return resp, nil
}

// Fetch reads the whole (capped) body. The final URL after redirects is returned too.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := c.Open(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Request.URL.String(), nil
}
