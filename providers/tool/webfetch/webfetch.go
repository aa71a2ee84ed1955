package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/sync/errgroup"

	"github.com/leofalp/agentflow/internal/utils"
)

const (
	// DefaultTimeout is the default per-page timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent when no other is configured.
	DefaultUserAgent = "agentflow-research/1.0"
	// MaxBodySize is the maximum response body size (10MB).
	MaxBodySize = 10 * 1024 * 1024
	// MaxRedirects bounds how many redirects are followed.
	MaxRedirects = 10
	// DefaultMaxParallel bounds concurrent fetches in FetchAll.
	DefaultMaxParallel = 4
)

// ErrEmptyURL is returned for blank URLs.
var ErrEmptyURL = errors.New("URL cannot be empty")

// Page is a fetched document.
type Page struct {
	// URL is the final URL after redirects.
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// Fetcher downloads pages. The zero value is not usable; call New.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxChars    int
	maxParallel int
}

// New returns a Fetcher with a client tuned for slow or unresponsive servers.
func New() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				ForceAttemptHTTP2:     true,
			},
			CheckRedirect: checkRedirect,
		},
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxParallel: DefaultMaxParallel,
	}
}

// WithHTTPClient replaces the HTTP client. Redirect limits still apply.
func (f *Fetcher) WithHTTPClient(client *http.Client) *Fetcher {
	clone := *client
	clone.CheckRedirect = checkRedirect
	f.client = &clone
	return f
}

// WithTimeout sets the per-page timeout.
func (f *Fetcher) WithTimeout(timeout time.Duration) *Fetcher {
	if timeout > 0 {
		f.timeout = timeout
	}
	return f
}

// WithUserAgent sets the User-Agent header.
func (f *Fetcher) WithUserAgent(userAgent string) *Fetcher {
	if userAgent != "" {
		f.userAgent = userAgent
	}
	return f
}

// WithMaxChars truncates converted Markdown to maxChars bytes, noting the
// original length. Zero keeps the whole page.
func (f *Fetcher) WithMaxChars(maxChars int) *Fetcher {
	f.maxChars = maxChars
	return f
}

func checkRedirect(_ *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return fmt.Errorf("too many redirects (>%d)", MaxRedirects)
	}
	return nil
}

// NormalizeURL trims rawURL and adds an https scheme when it has none.
func NormalizeURL(rawURL string) (string, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return "", ErrEmptyURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url, nil
}

// Fetch retrieves rawURL and converts its HTML to Markdown. It fails on a
// non-200 status, an oversized body, or when the timeout or ctx expires,
// including while the body is still being read.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return Page{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("User-Agent", f.userAgent)

	response, err := f.client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, fmt.Errorf("request timeout or canceled: %w", err)
		}
		return Page{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return Page{}, &utils.StatusError{StatusCode: response.StatusCode, Body: response.Status}
	}

	type readResult struct {
		data []byte
		err  error
	}
	reads := make(chan readResult, 1)
	go func() {
		data, err := io.ReadAll(io.LimitReader(response.Body, MaxBodySize+1))
		reads <- readResult{data: data, err: err}
	}()

	var body []byte
	select {
	case <-ctx.Done():
		return Page{}, fmt.Errorf("timeout while reading response body: %w", ctx.Err())
	case result := <-reads:
		if result.err != nil {
			return Page{}, fmt.Errorf("failed to read response body: %w", result.err)
		}
		body = result.data
	}
	if len(body) > MaxBodySize {
		return Page{}, fmt.Errorf("response body exceeds maximum size of %d bytes", MaxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return Page{}, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	if f.maxChars > 0 {
		markdown = utils.TruncateString(markdown, f.maxChars)
	}

	return Page{URL: response.Request.URL.String(), Markdown: markdown}, nil
}

// Result pairs a requested URL with its page or error.
type Result struct {
	Source string `json:"source"`
	Page   Page   `json:"page"`
	Err    error  `json:"-"`
}

// FetchAll fetches every URL concurrently, bounded by the fetcher's
// parallelism. Results keep the order of urls; individual failures are
// reported per result and never abort the others.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.maxParallel)
	for index, source := range urls {
		group.Go(func() error {
			page, err := f.Fetch(groupCtx, source)
			results[index] = Result{Source: source, Page: page, Err: err}
			return nil
		})
	}
	_ = group.Wait()
	return results
}
