package musicbrainz

import (
	"context"
	"fmt"
	"net/http"
)

const (
	coverArtBaseURL = "https://coverartarchive.org"
)

// CoverArtURL returns the URL of the 500px front cover of a release.
func (c *Client) CoverArtURL(releaseMBID string) string {
	base := c.coverURL
	if base == "" {
		base = coverArtBaseURL
	}
	return fmt.Sprintf("%s/release/%s/front-500", base, releaseMBID)
}

// HasCoverArt reports whether the Cover Art Archive holds a front cover
// for the release.
func (c *Client) HasCoverArt(ctx context.Context, releaseMBID string) (bool, error) {
	if err := c.waitForRateLimit(ctx); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.CoverArtURL(releaseMBID), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	// 404 means no cover art available - not an error
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
}
