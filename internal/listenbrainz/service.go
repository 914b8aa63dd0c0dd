package listenbrainz

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/state"
)

// ServiceID identifies ListenBrainz in sessions and the retry queue.
const ServiceID = "listenbrainz"

// SessionStore persists the user token.
type SessionStore interface {
	GetSession(serviceID string) (*state.ServiceSession, error)
	SaveSession(serviceID, username, sessionKey string) error
	DeleteSession(serviceID string) error
}

// Service exposes a ListenBrainz account as a scrobbling service. The
// token comes from configuration or, when not configured, from the linked
// session.
type Service struct {
	client      *Client
	store       SessionStore
	configToken string
	logger      *zap.Logger

	// rejected is the last token the API refused. It is never used again
	// by this process.
	mu       sync.Mutex
	rejected string
}

var _ service.Service = (*Service)(nil)

// NewService creates the ListenBrainz service.
func NewService(client *Client, configToken string, store SessionStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:      client,
		store:       store,
		configToken: configToken,
		logger:      logger.Named(ServiceID),
	}
}

// ID implements service.Service.
func (s *Service) ID() string { return ServiceID }

// Label implements service.Service.
func (s *Service) Label() string { return "ListenBrainz" }

func (s *Service) token() string {
	tok := s.storedToken()
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == s.rejected {
		return ""
	}
	return tok
}

func (s *Service) storedToken() string {
	if s.configToken != "" {
		return s.configToken
	}
	if s.store == nil {
		return ""
	}
	sess, err := s.store.GetSession(ServiceID)
	if err != nil {
		s.logger.Warn("load session", zap.Error(err))
		return ""
	}
	if sess == nil {
		return ""
	}
	return sess.SessionKey
}

// IsAuthenticated implements service.Service.
func (s *Service) IsAuthenticated(_ context.Context) bool {
	return s.token() != ""
}

// SendNowPlaying implements service.Service.
func (s *Service) SendNowPlaying(ctx context.Context, info song.Info) (service.Result, error) {
	token := s.token()
	if token == "" {
		return service.ResultErrorAuth, service.ErrNotAuthenticated
	}
	if err := s.client.SubmitNowPlaying(ctx, token, info); err != nil {
		return service.ResultErrorOther, err
	}
	return service.ResultOK, nil
}

// Scrobble implements service.Service.
func (s *Service) Scrobble(ctx context.Context, info song.Info) (service.Result, error) {
	token := s.token()
	if token == "" {
		return service.ResultErrorAuth, service.ErrNotAuthenticated
	}
	if err := s.client.SubmitListen(ctx, token, info); err != nil {
		return service.ResultErrorOther, err
	}
	return service.ResultOK, nil
}

// ToggleLove implements service.Service. ListenBrainz feedback is not
// supported, so the call is declined.
func (s *Service) ToggleLove(context.Context, song.Info, bool) (service.Result, error) {
	return service.ResultIgnore, nil
}

// InvalidateSession implements service.Service. The current token is not
// used again until the daemon restarts or another token is linked.
func (s *Service) InvalidateSession(_ context.Context) error {
	tok := s.storedToken()
	if tok == "" {
		return nil
	}
	s.mu.Lock()
	s.rejected = tok
	s.mu.Unlock()

	if s.configToken != "" {
		s.logger.Warn("configured token was rejected; fix listenbrainz.token and restart")
		return nil
	}
	if s.store == nil {
		return nil
	}
	return s.store.DeleteSession(ServiceID)
}

// Link validates token and stores it as the linked session.
func Link(ctx context.Context, client *Client, store SessionStore, token string) (string, error) {
	username, err := client.ValidateToken(ctx, token)
	if err != nil {
		return "", err
	}
	if err := store.SaveSession(ServiceID, username, token); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return username, nil
}
