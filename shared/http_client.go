package shared

import (
	"net/http"
	"time"
)

const feedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewFeedHTTPClient returns the pooled client used to fetch external data feeds
func NewFeedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// BrowserLikeHeaders are sent with every feed request
func BrowserLikeHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      feedUserAgent,
		"Accept":          "text/html,application/xhtml+xml",
		"Accept-Language": "en-IN,en;q=0.9",
		"Cache-Control":   "no-cache",
	}
}
