package lastfm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/state"
)

// ServiceID identifies Last.fm in sessions and the retry queue.
const ServiceID = "lastfm"

// SessionStore persists service sessions.
type SessionStore interface {
	GetSession(serviceID string) (*state.ServiceSession, error)
	SaveSession(serviceID, username, sessionKey string) error
	DeleteSession(serviceID string) error
}

// Service exposes a Last.fm account as a scrobbling service.
type Service struct {
	client *Client
	store  SessionStore
	logger *zap.Logger

	mu       sync.Mutex
	username string
}

var _ service.Service = (*Service)(nil)

// NewService creates the Last.fm service. The session is read from store
// when first needed, so an account linked by another process is picked up.
func NewService(client *Client, store SessionStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, store: store, logger: logger.Named(ServiceID)}
}

// ID implements service.Service.
func (s *Service) ID() string { return ServiceID }

// Label implements service.Service.
func (s *Service) Label() string { return "Last.fm" }

// Username returns the linked account name, if known.
func (s *Service) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// IsAuthenticated implements service.Service.
func (s *Service) IsAuthenticated(_ context.Context) bool {
	if s.client.IsAuthenticated() {
		return true
	}
	if s.store == nil {
		return false
	}

	sess, err := s.store.GetSession(ServiceID)
	if err != nil {
		s.logger.Warn("load session", zap.Error(err))
		return false
	}
	if sess == nil || sess.SessionKey == "" {
		return false
	}

	s.mu.Lock()
	s.username = sess.Username
	s.mu.Unlock()
	s.client.SetSessionKey(sess.SessionKey)
	return true
}

// SendNowPlaying implements service.Service.
func (s *Service) SendNowPlaying(_ context.Context, info song.Info) (service.Result, error) {
	if err := s.client.UpdateNowPlaying(TrackFromInfo(info)); err != nil {
		return service.ResultErrorOther, err
	}
	return service.ResultOK, nil
}

// Scrobble implements service.Service.
func (s *Service) Scrobble(_ context.Context, info song.Info) (service.Result, error) {
	if err := s.client.Scrobble(TrackFromInfo(info)); err != nil {
		return service.ResultErrorOther, err
	}
	return service.ResultOK, nil
}

// ToggleLove implements service.Service.
func (s *Service) ToggleLove(_ context.Context, info song.Info, loved bool) (service.Result, error) {
	if err := s.client.Love(info.Artist, info.Track, loved); err != nil {
		return service.ResultErrorOther, err
	}
	return service.ResultOK, nil
}

// InvalidateSession implements service.Service. The stored session is
// deleted; the user has to link the account again.
func (s *Service) InvalidateSession(_ context.Context) error {
	s.client.SetSessionKey("")
	s.mu.Lock()
	s.username = ""
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	return s.store.DeleteSession(ServiceID)
}
