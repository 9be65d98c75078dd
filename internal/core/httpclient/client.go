// Package httpclient provides the outbound HTTP capability shared by the
// classifier, the strategy adapters and the download proxy.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/publicsuffix"
)

const (
	// UserAgent is the desktop browser identity used for page fetches
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MobileUserAgent is used where the mobile site exposes more (share links)
	MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

	maxBodySize = 20 * 1024 * 1024
)

// Options configures a Client
type Options struct {
	Timeout time.Duration

	// Retries applies to GET requests only
	Retries int

	// TLSFingerprint "chrome" dials with a Chrome ClientHello
	TLSFingerprint string
}

// Client sends requests over one shared transport. Cookie jars are per call:
// cookies set upstream survive the redirects of that call and nothing else,
// so one resolution never replays another's session. Credentials travel
// explicitly through Request.Cookies.
type Client struct {
	transport http.RoundTripper
	timeout   time.Duration
	retries   int
}

// New creates a client with browser-grade TLS settings
func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	var transport http.RoundTripper
	switch strings.ToLower(opts.TLSFingerprint) {
	case "chrome":
		transport = newChromeTransport()
	case "", "go", "none":
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		}
	default:
		return nil, fmt.Errorf("unknown tls fingerprint %q", opts.TLSFingerprint)
	}

	return &Client{transport: transport, timeout: opts.Timeout, retries: max(opts.Retries, 0)}, nil
}

// NewJar returns an empty public-suffix aware cookie jar
func NewJar() http.CookieJar {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Streaming returns a client without an overall deadline, for bodies that
// are copied through rather than read whole. Cancel through the request
// context instead. Each call gets its own empty jar.
func (c *Client) Streaming() *http.Client {
	return &http.Client{Transport: c.transport, Jar: NewJar()}
}

func (c *Client) plain() *http.Client {
	return &http.Client{Timeout: c.timeout, Transport: c.transport, Jar: NewJar()}
}

// Do sends req. GET and HEAD requests are retried on connection errors and
// 5xx/429 responses; everything else is sent exactly once.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return c.plain().Do(req)
	}
	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, fmt.Errorf("wrap request: %w", err)
	}

	retry := retryablehttp.NewClient()
	retry.HTTPClient = c.plain()
	retry.RetryMax = c.retries
	retry.RetryWaitMin = 300 * time.Millisecond
	retry.RetryWaitMax = 2 * time.Second
	retry.Logger = leveledLogger{entry: logging.For("httpclient")}
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retry.Do(rreq)
}

// Request describes one call made through Fetch
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Cookies map[string]string

	// Form is sent url-encoded for POST requests
	Form url.Values

	// Timeout overrides the client timeout for this call
	Timeout time.Duration
}

// Response is a fully read response
type Response struct {
	StatusCode int
	FinalURL   string
	Header     http.Header
	Body       []byte
}

// Fetch performs req with browser default headers and reads the body
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}

	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	ApplyBrowserHeaders(hreq.Header)
	if req.Form != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	for name, value := range req.Cookies {
		hreq.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// GetOK fetches rawURL and fails on a non-2xx status
func (c *Client) GetOK(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	resp, err := c.Fetch(ctx, Request{URL: rawURL, Headers: headers})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}
	return resp, nil
}

// ApplyBrowserHeaders sets the default desktop browser header set
func ApplyBrowserHeaders(h http.Header) {
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
}
