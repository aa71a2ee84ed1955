// Package duckduckgo queries the DuckDuckGo Instant Answer API. It needs no
// API key; results are abstracts, direct answers and related topics rather
// than a full web index, which is enough to seed research with sources.
package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/leofalp/agentflow/internal/utils"
)

const (
	// DefaultBaseURL is the public Instant Answer endpoint.
	DefaultBaseURL = "https://api.duckduckgo.com/"
	// DefaultUserAgent is sent when no other is configured.
	DefaultUserAgent = "agentflow-research/1.0"
	// DefaultTimeout bounds one query.
	DefaultTimeout = 15 * time.Second

	maxRelated = 10
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("search query cannot be empty")

// Topic is a related topic with its link.
type Topic struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Answer is the useful part of an Instant Answer response.
type Answer struct {
	Query          string  `json:"query"`
	Heading        string  `json:"heading,omitempty"`
	Abstract       string  `json:"abstract,omitempty"`
	AbstractSource string  `json:"abstractSource,omitempty"`
	AbstractURL    string  `json:"abstractUrl,omitempty"`
	Answer         string  `json:"answer,omitempty"`
	Definition     string  `json:"definition,omitempty"`
	DefinitionURL  string  `json:"definitionUrl,omitempty"`
	Related        []Topic `json:"related"`
}

// Empty reports whether the response carried nothing usable.
func (a Answer) Empty() bool {
	return a.Abstract == "" && a.Answer == "" && a.Definition == "" && len(a.Related) == 0
}

// Summary renders the answer as plain text for a prompt.
func (a Answer) Summary() string {
	var parts []string
	if a.Abstract != "" {
		parts = append(parts, "Abstract: "+a.Abstract)
		if a.AbstractURL != "" {
			parts = append(parts, "Source: "+a.AbstractURL)
		}
	}
	if a.Answer != "" {
		parts = append(parts, "Answer: "+a.Answer)
	}
	if a.Definition != "" {
		parts = append(parts, "Definition: "+a.Definition)
	}
	if len(a.Related) > 0 {
		topics := make([]string, 0, 5)
		for _, topic := range a.Related {
			if len(topics) == 5 {
				break
			}
			topics = append(topics, topic.Text)
		}
		parts = append(parts, "Related topics: "+strings.Join(topics, "; "))
	}
	if len(parts) == 0 {
		return "No results found for this query."
	}
	return strings.Join(parts, "\n\n")
}

// URLs returns up to limit distinct links, the abstract source first.
func (a Answer) URLs(limit int) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(link string) {
		if link == "" || seen[link] || len(urls) >= limit {
			return
		}
		seen[link] = true
		urls = append(urls, link)
	}
	add(a.AbstractURL)
	add(a.DefinitionURL)
	for _, topic := range a.Related {
		add(topic.URL)
	}
	return urls
}

// Client sends Instant Answer queries. The zero value is not usable; call New.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// New returns a Client for the public endpoint.
func New() *Client {
	return &Client{
		client:    &http.Client{Timeout: DefaultTimeout},
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
	}
}

// WithBaseURL points the client at another endpoint.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.client = client
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(userAgent string) *Client {
	if userAgent != "" {
		c.userAgent = userAgent
	}
	return c
}

// Search runs query and returns the flattened answer.
func (c *Client) Search(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Answer{}, fmt.Errorf("create search request: %w", err)
	}
	request.Header.Set("User-Agent", c.userAgent)

	response, err := c.client.Do(request)
	if err != nil {
		return Answer{}, fmt.Errorf("search %q: %w", query, err)
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return Answer{}, fmt.Errorf("read search response: %w", err)
	}
	// The API answers 202 for queries it served from a redirect.
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusAccepted {
		return Answer{}, &utils.StatusError{StatusCode: response.StatusCode, Body: string(body)}
	}

	var decoded apiResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return Answer{}, fmt.Errorf("decode search response: %w", err)
	}
	return decoded.answer(query), nil
}

type apiResponse struct {
	Heading        string         `json:"Heading"`
	AbstractText   string         `json:"AbstractText"`
	AbstractSource string         `json:"AbstractSource"`
	AbstractURL    string         `json:"AbstractURL"`
	Answer         any            `json:"Answer"`
	Definition     string         `json:"Definition"`
	DefinitionURL  string         `json:"DefinitionURL"`
	RelatedTopics  []relatedTopic `json:"RelatedTopics"`
	Results        []relatedTopic `json:"Results"`
}

// relatedTopic is either a topic or a named group holding more topics.
type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Topics   []relatedTopic `json:"Topics"`
}

func (r apiResponse) answer(query string) Answer {
	answer := Answer{
		Query:          query,
		Heading:        r.Heading,
		Abstract:       r.AbstractText,
		AbstractSource: r.AbstractSource,
		AbstractURL:    absoluteURL(r.AbstractURL),
		Definition:     r.Definition,
		DefinitionURL:  absoluteURL(r.DefinitionURL),
		Related:        []Topic{},
	}
	// Answer is a string for text answers and an object for calculators.
	if text, ok := r.Answer.(string); ok {
		answer.Answer = text
	}

	var collect func(topics []relatedTopic)
	collect = func(topics []relatedTopic) {
		for _, topic := range topics {
			if len(answer.Related) >= maxRelated {
				return
			}
			if len(topic.Topics) > 0 {
				collect(topic.Topics)
				continue
			}
			if topic.Text != "" {
				answer.Related = append(answer.Related, Topic{Text: topic.Text, URL: absoluteURL(topic.FirstURL)})
			}
		}
	}
	collect(r.Results)
	collect(r.RelatedTopics)
	return answer
}

// absoluteURL resolves the site-relative links the API sometimes returns.
func absoluteURL(link string) string {
	if strings.HasPrefix(link, "/") {
		return "https://duckduckgo.com" + link
	}
	return link
}
