// Package limitless reads tournaments and decklists from Limitless TCG.
package limitless

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/rosematcha/ciphermaniac-sub006/internal/decks"
	"github.com/rosematcha/ciphermaniac-sub006/internal/source"
)

const (
	defaultBaseURL   = "https://limitlesstcg.com"
	defaultAPIURL    = "https://play.limitlesstcg.com/api"
	defaultRateLimit = 500 * time.Millisecond
	defaultTimeout   = 30 * time.Second
	defaultPageSize  = 50
	userAgent        = "ciphermaniac/1.0"
)

// Config configures a Client. Zero values fall back to the defaults above.
type Config struct {
	BaseURL   string
	APIURL    string
	APIKey    string
	Game      string
	Format    string
	RateLimit time.Duration
	RetryMax  int
	Timeout   time.Duration
	PageSize  int
}

// Client talks to the Limitless tournaments API and decklist pages.
type Client struct {
	cfg         Config
	httpClient  *retryablehttp.Client
	rateLimiter *rate.Limiter
}

var _ source.Source = (*Client)(nil)

// NewClient creates a rate-limited client with transport retries.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RateLimit
	retryClient.HTTPClient.Timeout = cfg.Timeout

	return &Client{
		cfg:         cfg,
		httpClient:  retryClient,
		rateLimiter: rate.NewLimiter(rate.Every(cfg.RateLimit), 1),
	}
}

// ListTournaments pages through the tournaments API, newest first, and stops
// at the first page that reaches past since. Records without an id or a
// readable date are skipped and returned as failures.
func (c *Client) ListTournaments(ctx context.Context, since time.Time) ([]source.Tournament, []source.Failure, error) {
	var (
		out     []source.Tournament
		skipped []source.Failure
	)
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.cfg.PageSize))
		q.Set("page", strconv.Itoa(page))
		if c.cfg.Game != "" {
			q.Set("game", c.cfg.Game)
		}
		if c.cfg.Format != "" {
			q.Set("format", c.cfg.Format)
		}

		body, err := c.doRequest(ctx, c.cfg.APIURL+"/tournaments?"+q.Encode())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list tournaments page %d: %w", page, err)
		}
		if !gjson.ValidBytes(body) {
			return nil, nil, fmt.Errorf("invalid tournaments response on page %d", page)
		}

		items := gjson.ParseBytes(body).Array()
		reachedCutoff := false
		for _, item := range items {
			t, err := parseTournament(item)
			if err != nil {
				skipped = append(skipped, source.Failure{Tournament: t, Err: err.Error()})
				continue
			}
			if t.Date.Before(since) {
				reachedCutoff = true
				continue
			}
			out = append(out, t)
		}

		if reachedCutoff || len(items) < c.cfg.PageSize {
			return out, skipped, nil
		}
	}
}

func parseTournament(item gjson.Result) (source.Tournament, error) {
	t := source.Tournament{
		ID:      item.Get("id").String(),
		Name:    item.Get("name").String(),
		Format:  item.Get("format").String(),
		Players: int(item.Get("players").Int()),
	}
	if t.ID == "" {
		return t, fmt.Errorf("tournament without id: %s", item.Raw)
	}
	date, err := parseDate(item.Get("date").String())
	if err != nil {
		return t, fmt.Errorf("tournament %s: %w", t.ID, err)
	}
	t.Date = date
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FetchDecks downloads and parses the decklists page of a tournament.
func (c *Client) FetchDecks(ctx context.Context, t source.Tournament) ([]decks.RawDeck, error) {
	pageURL := fmt.Sprintf("%s/tournaments/%s/decklists", c.cfg.BaseURL, url.PathEscape(t.ID))

	body, err := c.doRequest(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch decklists for %s: %w", t.ID, err)
	}

	raws, err := ParseDecklists(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse decklists for %s: %w", t.ID, err)
	}
	for i := range raws {
		raws[i].TournamentID = t.ID
	}
	return raws, nil
}

// doRequest waits for the rate limiter and returns the response body of a
// successful GET.
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Access-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
