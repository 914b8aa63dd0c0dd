// Package api exposes the tracker over HTTP for the page observers and
// local clients.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/contextstore"
	"github.com/llehouerou/scrobbled/internal/controller"
	"github.com/llehouerou/scrobbled/internal/errmsg"
	"github.com/llehouerou/scrobbled/internal/service"
	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/tracker"
)

const (
	requestIDHeader = "X-Request-Id"
	shutdownTimeout = 5 * time.Second
)

// Contexts is the tracker as seen by the API.
type Contexts interface {
	OpenContext(ctx context.Context, contextID, rawURL string) error
	CloseContext(ctx context.Context, contextID string) error
	Snapshot(contextID string, snap song.Snapshot) error
	Skip(contextID string) error
	Love(ctx context.Context, contextID string, loved bool) (service.Results, error)
	Edit(contextID string, edit song.Edit) error
	ResetEdit(contextID string) error
	Retry(contextID string) error
	SetEnabled(contextID string, enabled bool) error
	Entries(ctx context.Context) ([]contextstore.Entry, error)
	Entry(ctx context.Context, contextID string) (contextstore.Entry, error)
}

// Services reports the state of the scrobbling services.
type Services interface {
	Statuses(ctx context.Context) []service.Status
}

type openRequest struct {
	URL string `json:"url" binding:"required"`
}

type loveRequest struct {
	Loved *bool `json:"loved" binding:"required"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// NewRouter builds the HTTP routes.
func NewRouter(contexts Contexts, services Services, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/contexts", func(c *gin.Context) {
		entries, err := contexts.Entries(c.Request.Context())
		if err != nil {
			abort(c, errmsg.OpContextList, err)
			return
		}
		if entries == nil {
			entries = []contextstore.Entry{}
		}
		c.JSON(http.StatusOK, entries)
	})

	r.GET("/contexts/:id", func(c *gin.Context) {
		e, err := contexts.Entry(c.Request.Context(), c.Param("id"))
		if err != nil {
			abort(c, errmsg.OpContextList, err)
			return
		}
		c.JSON(http.StatusOK, e)
	})

	r.PUT("/contexts/:id", func(c *gin.Context) {
		var req openRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		id := c.Param("id")
		if err := contexts.OpenContext(c.Request.Context(), id, req.URL); err != nil {
			abort(c, errmsg.OpContextOpen, err)
			return
		}
		e, err := contexts.Entry(c.Request.Context(), id)
		if err != nil {
			abort(c, errmsg.OpContextOpen, err)
			return
		}
		c.JSON(http.StatusOK, e)
	})

	r.DELETE("/contexts/:id", func(c *gin.Context) {
		if err := contexts.CloseContext(c.Request.Context(), c.Param("id")); err != nil {
			abort(c, errmsg.OpContextClose, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/contexts/:id/snapshot", func(c *gin.Context) {
		var snap song.Snapshot
		if err := c.ShouldBindJSON(&snap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid snapshot"})
			return
		}
		if err := contexts.Snapshot(c.Param("id"), snap); err != nil {
			abort(c, errmsg.OpContextSnapshot, err)
			return
		}
		c.Status(http.StatusAccepted)
	})

	r.POST("/contexts/:id/skip", func(c *gin.Context) {
		respond(c, errmsg.OpSongSkip, contexts.Skip(c.Param("id")))
	})

	r.POST("/contexts/:id/love", func(c *gin.Context) {
		var req loveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		results, err := contexts.Love(c.Request.Context(), c.Param("id"), *req.Loved)
		if err != nil {
			abort(c, errmsg.OpSongLove, err)
			return
		}
		out := make(map[string]string, len(results))
		for id, r := range results {
			out[id] = r.String()
		}
		c.JSON(http.StatusOK, gin.H{
			"outcome": results.Outcome().String(),
			"results": out,
		})
	})

	r.POST("/contexts/:id/edit", func(c *gin.Context) {
		var edit song.Edit
		if err := c.ShouldBindJSON(&edit); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		respond(c, errmsg.OpSongEdit, contexts.Edit(c.Param("id"), edit))
	})

	r.DELETE("/contexts/:id/edit", func(c *gin.Context) {
		respond(c, errmsg.OpSongReset, contexts.ResetEdit(c.Param("id")))
	})

	r.POST("/contexts/:id/retry", func(c *gin.Context) {
		respond(c, errmsg.OpSongRetry, contexts.Retry(c.Param("id")))
	})

	r.POST("/contexts/:id/enabled", func(c *gin.Context) {
		var req enabledRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		respond(c, errmsg.OpSongEnabled, contexts.SetEnabled(c.Param("id"), *req.Enabled))
	})

	r.GET("/services", func(c *gin.Context) {
		c.JSON(http.StatusOK, services.Statuses(c.Request.Context()))
	})

	return r
}

// Server runs the router until its context ends.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Named("api"),
	}
}

// Run serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("address", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}

func respond(c *gin.Context, op errmsg.Op, err error) {
	if err != nil {
		abort(c, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func abort(c *gin.Context, op errmsg.Op, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": errmsg.Format(op, err)})
}

// statusFor maps tracker and controller errors to HTTP statuses. Calls that
// are invalid in the current state are conflicts.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracker.ErrUnknownContext):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrUnsupported),
		errors.Is(err, controller.ErrNoSong),
		errors.Is(err, controller.ErrInvalidSong),
		errors.Is(err, controller.ErrNotRetryable),
		errors.Is(err, song.ErrAlreadyScrobbled):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrClosed),
		errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
