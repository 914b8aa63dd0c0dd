package listenbrainz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
)

const (
	// DefaultAPIURL is the public ListenBrainz API.
	DefaultAPIURL = "https://api.listenbrainz.org"

	submissionClient        = "scrobbled"
	submissionClientVersion = "0.1"
)

// ErrInvalidToken is returned when ListenBrainz rejects a user token.
var ErrInvalidToken = errors.New("invalid user token")

// Client talks to the ListenBrainz API.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// NewClient creates a client for apiURL, or the public API when empty.
func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     strings.TrimRight(apiURL, "/"),
	}
}

// ValidateToken checks a user token and returns the account name.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/1/validate-token", http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var result validateTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !result.Valid {
		return "", fmt.Errorf("%w: %s", ErrInvalidToken, result.Message)
	}
	return result.UserName, nil
}

// SubmitNowPlaying sends a playing_now listen.
func (c *Client) SubmitNowPlaying(ctx context.Context, token string, info song.Info) error {
	return c.submit(ctx, token, submission{
		ListenType: listenTypePlayingNow,
		Payload:    []listen{{TrackMetadata: metadataFrom(info)}},
	})
}

// SubmitListen sends a single listen timestamped with the song start.
func (c *Client) SubmitListen(ctx context.Context, token string, info song.Info) error {
	return c.submit(ctx, token, submission{
		ListenType: listenTypeSingle,
		Payload: []listen{{
			ListenedAt:    info.StartedAt.Unix(),
			TrackMetadata: metadataFrom(info),
		}},
	})
}

func (c *Client) submit(ctx context.Context, token string, body submission) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode listen: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/1/submit-listens", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", service.ErrAuth, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if result.Status != "ok" {
		return fmt.Errorf("submit listen: status %d: %q %s", resp.StatusCode, result.Status, result.Error)
	}
	return nil
}

func metadataFrom(info song.Info) trackMetadata {
	meta := trackMetadata{
		ArtistName:  info.Artist,
		TrackName:   info.Track,
		ReleaseName: info.Album,
		AdditionalInfo: additionalInfo{
			SubmissionClient:        submissionClient,
			SubmissionClientVersion: submissionClientVersion,
			MusicServiceName:        info.ConnectorLabel,
			OriginURL:               info.OriginURL,
			RecordingMBID:           info.RecordingMBID,
		},
	}
	if info.AlbumArtist != "" {
		meta.AdditionalInfo.ReleaseArtistName = info.AlbumArtist
	}
	if d := info.DurationValue(); d > 0 {
		meta.AdditionalInfo.DurationMs = d.Milliseconds()
	}
	return meta
}
