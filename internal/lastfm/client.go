package lastfm

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/shkh/lastfm-go/lastfm"

	"github.com/llehouerou/scrobbled/internal/service"
)

// Last.fm error codes that mean the session can no longer be used.
const (
	errCodeAuthFailed        = 4
	errCodeInvalidSession    = 9
	errCodeUnauthorizedToken = 14
	errCodeLoginRequired     = 17
	errCodeInvalidParameters = 6
)

// ErrTrackNotFound is returned by TrackInfo when Last.fm does not know the
// track.
var ErrTrackNotFound = errors.New("track not found")

// Client wraps the Last.fm API. It is safe for concurrent use.
type Client struct {
	mu         sync.RWMutex
	api        *lastfm.Api
	apiKey     string
	apiSecret  string
	sessionKey string
}

// New creates a new Last.fm client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	return &Client{
		api:       lastfm.New(apiKey, apiSecret),
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// SetSessionKey sets the authenticated session key. An empty key signs
// the client out.
func (c *Client) SetSessionKey(key string) {
	// Calls in flight keep using the previous api value.
	api := lastfm.New(c.apiKey, c.apiSecret)
	if key != "" {
		api.SetSession(key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.api = api
	c.sessionKey = key
}

// SessionKey returns the current session key.
func (c *Client) SessionKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionKey
}

// IsAuthenticated returns true if a session key is set.
func (c *Client) IsAuthenticated() bool {
	return c.SessionKey() != ""
}

func (c *Client) current() (*lastfm.Api, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api, c.sessionKey != ""
}

// GetToken requests an authentication token from Last.fm.
func (c *Client) GetToken() (string, error) {
	api, _ := c.current()
	result, err := api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return result, nil
}

// GetAuthURL returns the URL the user opens to authorize the token. Last.fm
// redirects to callback once the user accepted.
func (c *Client) GetAuthURL(token, callback string) string {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("token", token)
	if callback != "" {
		q.Set("cb", callback)
	}
	return "https://www.last.fm/api/auth/?" + q.Encode()
}

// GetSession exchanges an authorized token for a session key.
func (c *Client) GetSession(token string) (username, sessionKey string, err error) {
	api := lastfm.New(c.apiKey, c.apiSecret)
	if err := api.LoginWithToken(token); err != nil {
		return "", "", fmt.Errorf("get session: %w", err)
	}

	sessionKey = api.GetSessionKey()
	c.mu.Lock()
	c.api = api
	c.sessionKey = sessionKey
	c.mu.Unlock()

	userInfo, err := api.User.GetInfo(nil)
	if err != nil {
		// The session is usable without a username.
		return "unknown", sessionKey, nil //nolint:nilerr // username is optional
	}

	return userInfo.Name, sessionKey, nil
}

// UpdateNowPlaying sends a "now playing" notification to Last.fm.
func (c *Client) UpdateNowPlaying(track ScrobbleTrack) error {
	api, ok := c.current()
	if !ok {
		return service.ErrNotAuthenticated
	}

	if _, err := api.Track.UpdateNowPlaying(trackParams(track)); err != nil {
		return classify("update now playing", err)
	}
	return nil
}

// Scrobble submits a track play to Last.fm.
func (c *Client) Scrobble(track ScrobbleTrack) error {
	api, ok := c.current()
	if !ok {
		return service.ErrNotAuthenticated
	}

	params := trackParams(track)
	params["timestamp"] = track.Timestamp.Unix()

	if _, err := api.Track.Scrobble(params); err != nil {
		return classify("scrobble", err)
	}
	return nil
}

// Love loves or unloves a track.
func (c *Client) Love(artist, track string, loved bool) error {
	api, ok := c.current()
	if !ok {
		return service.ErrNotAuthenticated
	}

	params := lastfm.P{"artist": artist, "track": track}
	if loved {
		if err := api.Track.Love(params); err != nil {
			return classify("love", err)
		}
		return nil
	}
	if err := api.Track.UnLove(params); err != nil {
		return classify("unlove", err)
	}
	return nil
}

// TrackInfo fetches track.getInfo. When username is set the answer
// includes the user's play count and loved status.
func (c *Client) TrackInfo(artist, track, username string) (*TrackDetails, error) {
	api, _ := c.current()

	params := lastfm.P{
		"artist":      artist,
		"track":       track,
		"autocorrect": 1,
	}
	if username != "" {
		params["username"] = username
	}

	result, err := api.Track.GetInfo(params)
	if err != nil {
		var lfErr *lastfm.LastfmError
		if errors.As(err, &lfErr) && lfErr.Code == errCodeInvalidParameters {
			return nil, ErrTrackNotFound
		}
		return nil, classify("get track info", err)
	}

	details := &TrackDetails{
		Album:         result.Album.Title,
		AlbumArtist:   result.Album.Artist,
		URL:           result.Url,
		RecordingMBID: result.Mbid,
		AlbumMBID:     result.Album.Mbid,
		DurationMs:    atoi(result.Duration),
		UserPlayCount: atoi(result.UserPlayCount),
	}
	for _, img := range result.Album.Images {
		// Images are listed from smallest to largest.
		if img.Url != "" {
			details.ImageURL = img.Url
		}
	}
	if username != "" && result.UserLoved != "" {
		loved := result.UserLoved == "1"
		details.Loved = &loved
	}
	return details, nil
}

func trackParams(track ScrobbleTrack) lastfm.P {
	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Track,
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.AlbumArtist != "" && track.AlbumArtist != track.Artist {
		params["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"] = int(track.Duration.Seconds())
	}
	if track.MBRecordingID != "" {
		params["mbid"] = track.MBRecordingID
	}
	return params
}

// classify wraps err, marking errors that invalidate the session.
func classify(op string, err error) error {
	var lfErr *lastfm.LastfmError
	if errors.As(err, &lfErr) && isAuthCode(lfErr.Code) {
		return fmt.Errorf("%s: %w: %w", op, service.ErrAuth, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isAuthCode(code int) bool {
	switch code {
	case errCodeAuthFailed, errCodeInvalidSession, errCodeUnauthorizedToken, errCodeLoginRequired:
		return true
	}
	return false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
