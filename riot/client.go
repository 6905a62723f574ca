package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"valorant-stats/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the regional routing host for account and match-v5 endpoints
	DefaultBaseURL = "https://americas.api.riotgames.com"

	// DefaultRequestInterval keeps a development key comfortably under its quota
	DefaultRequestInterval = 1200 * time.Millisecond

	defaultRetryAfter = 10 * time.Second
	defaultTimeout    = 30 * time.Second
	maxResponseBytes  = 32 << 20
)

// Client is a rate-limited Riot API client. A single Client is meant to be shared
// by every caller in the process so that all of them draw from one quota.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Logger
	maxRetries int
	timeline   bool
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom base URL (regional host, or a test server)
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLimiter replaces the default token bucket (one request per 1.2s, burst 1)
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger used for rate-limit and retry messages
func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithMaxRetries sets how many times a 429 response is retried after Retry-After
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithTimeline controls whether GetMatchDocument also fetches the match timeline
func WithTimeline(enabled bool) Option {
	return func(c *Client) {
		c.timeline = enabled
	}
}

// NewClient creates a new Riot API client
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("riot API key cannot be empty")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:    rate.NewLimiter(rate.Every(DefaultRequestInterval), 1),
		log:        logrus.StandardLogger(),
		maxRetries: 2,
		timeline:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// doRequest makes a rate-limited GET and returns the raw body of a 200 response.
// Every attempt, retries included, takes a token from the shared limiter.
func (c *Client) doRequest(ctx context.Context, endpoint, u string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Riot-Token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
			return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			wait := parseRetryAfter(resp.Header.Get("Retry-After"))
			c.log.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
			}).Warnf("[RIOT] 429 rate limited, waiting %s", wait)
			if err := sleepContext(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, newAPIError(resp.StatusCode, body)
		}
		return body, nil
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint, u string, out interface{}) error {
	body, err := c.doRequest(ctx, endpoint, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.baseURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.getJSON(ctx, "account", u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetMatchIDs fetches the most recent match IDs for a player, newest first
func (c *Client) GetMatchIDs(ctx context.Context, puuid string, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d",
		c.baseURL, url.PathEscape(puuid), count)

	var matchIDs []string
	if err := c.getJSON(ctx, "match_ids", u, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatch fetches the raw match detail document
func (c *Client) GetMatch(ctx context.Context, matchID string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.baseURL, url.PathEscape(matchID))
	return c.getRaw(ctx, "match", u)
}

// GetTimeline fetches the raw match timeline document
func (c *Client) GetTimeline(ctx context.Context, matchID string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", c.baseURL, url.PathEscape(matchID))
	return c.getRaw(ctx, "timeline", u)
}

// GetMatchDocument fetches the match detail and, when enabled, its timeline merged
// under the "timeline" key. Either call failing fails the whole document.
func (c *Client) GetMatchDocument(ctx context.Context, matchID string) (json.RawMessage, error) {
	match, err := c.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !c.timeline {
		return match, nil
	}

	timeline, err := c.GetTimeline(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("timeline for %s: %w", matchID, err)
	}
	return AttachTimeline(match, timeline)
}

func (c *Client) getRaw(ctx context.Context, endpoint, u string) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, endpoint, u)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s response is not valid JSON", endpoint)
	}
	return json.RawMessage(body), nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var sb statusBody
	if err := json.Unmarshal(body, &sb); err == nil && sb.Status.Message != "" {
		apiErr.Message = sb.Status.Message
	}
	return apiErr
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
