package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"
	userAgent      = "scrobbled/0.1 (https://github.com/llehouerou/scrobbled)"
	rateLimitDur   = time.Second // MusicBrainz requires 1 request per second

	// Retry configuration
	maxRetries   = 3
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second

	// minScore is the search score below which a recording is not trusted.
	minScore = 90
)

// ErrNoMatch is returned when no recording matches confidently.
var ErrNoMatch = errors.New("no matching recording")

// Client provides access to the MusicBrainz API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	coverURL    string
	lastRequest time.Time
	mu          sync.Mutex
}

// NewClient creates a new MusicBrainz API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		coverURL:   coverArtBaseURL,
	}
}

// SearchRecording finds the recording best matching artist and track.
// Official album releases are preferred when picking the release.
func (c *Client) SearchRecording(ctx context.Context, artist, track string) (*Recording, error) {
	if err := c.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf(`recording:"%s" AND artist:"%s"`, escapeQuery(track), escapeQuery(artist)))
	params.Set("fmt", "json")
	params.Set("limit", "5")

	reqURL := fmt.Sprintf("%s/recording?%s", c.base(), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API status %d: %s", resp.StatusCode, string(body))
	}

	var result recordingSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return bestRecording(result.Recordings)
}

func (c *Client) base() string {
	if c.baseURL == "" {
		return defaultBaseURL
	}
	return c.baseURL
}

// bestRecording picks the first recording above minScore. Results come
// sorted by score.
func bestRecording(results []recordingResult) (*Recording, error) {
	for i := range results {
		r := &results[i]
		if r.Score < minScore {
			continue
		}
		rec := &Recording{
			ID:       r.ID,
			Title:    r.Title,
			Artist:   extractArtist(r.ArtistCredit),
			LengthMs: r.Length,
			Score:    r.Score,
			Release:  pickRelease(r.Releases),
		}
		return rec, nil
	}
	return nil, ErrNoMatch
}

// pickRelease prefers an official album, then any official release, then
// the first one listed.
func pickRelease(releases []releaseResult) *Release {
	if len(releases) == 0 {
		return nil
	}

	best := -1
	bestRank := 0
	for i := range releases {
		r := &releases[i]
		rank := 1
		if strings.EqualFold(r.Status, "official") {
			rank++
			if r.ReleaseGroup != nil && strings.EqualFold(r.ReleaseGroup.PrimaryType, "album") {
				rank++
			}
		}
		if rank > bestRank {
			best, bestRank = i, rank
		}
	}

	r := &releases[best]
	out := &Release{
		ID:     r.ID,
		Title:  r.Title,
		Artist: extractArtist(r.ArtistCredit),
		Status: r.Status,
	}
	if r.ReleaseGroup != nil {
		out.ReleaseType = r.ReleaseGroup.PrimaryType
	}
	return out
}

// escapeQuery escapes Lucene special characters inside a quoted phrase.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// waitForRateLimit ensures we don't exceed MusicBrainz rate limits.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < rateLimitDur {
		if err := sleep(ctx, rateLimitDur-elapsed); err != nil {
			return err
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// doRequestWithRetry executes an HTTP request with exponential backoff retry.
// Retries on 5xx errors and network errors.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = min(delay*2, maxDelay)
			// Re-apply rate limit after retry delay
			if err := c.waitForRateLimit(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		// Success or client error (4xx) - don't retry
		if resp.StatusCode < 500 {
			return resp, nil
		}

		// Server error (5xx) - retry
		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries+1, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// extractArtist extracts the artist name from artist credits.
func extractArtist(credits []artistCredit) string {
	if len(credits) == 0 {
		return ""
	}

	parts := make([]string, 0, len(credits))
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		parts = append(parts, name+c.JoinPhrase)
	}
	return strings.Join(parts, "")
}
