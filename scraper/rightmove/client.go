package rightmove

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/http2"
)

const (
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"
	acceptEncoding = "gzip, deflate, br"
	maxRedirects   = 10
)

// ErrUnexpectedStatus is wrapped by StatusError.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// StatusError reports a non-2xx answer from a JSON endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Response is a fully read, decompressed HTTP response.
type Response struct {
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher retrieves listing pages.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// ClientOptions configures the shared portal client.
type ClientOptions struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
}

// Client is the one outbound session shared by every request of a run. Its
// headers, timeout and transport are fixed at construction; concurrent use
// only reads them.
type Client struct {
	baseURL string
	headers http.Header
	http    *http.Client
}

// NewClient builds a Client with browser-like headers, redirect following
// and HTTP/2 enabled.
func NewClient(opts ClientOptions) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if _, err := http2.ConfigureTransports(transport); err != nil {
		return nil, fmt.Errorf("rightmove: enable http2: %w", err)
	}

	headers := make(http.Header)
	headers.Set("User-Agent", opts.UserAgent)
	headers.Set("Accept", acceptHTML)
	headers.Set("Accept-Encoding", acceptEncoding)
	if opts.AcceptLanguage != "" {
		headers.Set("Accept-Language", opts.AcceptLanguage)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		headers: headers,
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}, nil
}

// BaseURL returns the portal origin requests are built against.
func (c *Client) BaseURL() string { return c.baseURL }

// Get fetches url and returns the decoded body whatever the status code.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rightmove: build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rightmove: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("rightmove: read %s: %w", url, err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	return c.Get(ctx, url)
}

// getJSON fetches url and decodes a 2xx JSON body into v.
func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("rightmove: decode %s: %w", url, err)
	}
	return nil
}

// readBody undoes the content coding. Setting Accept-Encoding by hand turns
// off the transport's own gzip handling, so every coding we advertise is
// handled here.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
	return io.ReadAll(r)
}
