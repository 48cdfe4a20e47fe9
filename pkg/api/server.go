// Package api exposes a Router over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zen-systems/triage/pkg/archive"
	"github.com/zen-systems/triage/pkg/router"
	"github.com/zen-systems/triage/pkg/schema"
)

// RouteRequest is the body of POST /v1/route.
type RouteRequest struct {
	ID      string            `json:"id"`
	Type    string            `json:"type" binding:"required"`
	Text    string            `json:"text"`
	Context map[string]string `json:"context"`
	Options schema.Options    `json:"options"`
}

// OverrideRequest is the body of POST /v1/overrides.
type OverrideRequest struct {
	RequestID         string `json:"request_id" binding:"required"`
	OriginalQuadrant  string `json:"original_quadrant" binding:"required"`
	CorrectedQuadrant string `json:"corrected_quadrant" binding:"required"`
	WasEscalated      bool   `json:"was_escalated"`
}

// ModeRequest is the body of PUT /v1/mode.
type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// BackendStatus describes one configured backend.
type BackendStatus struct {
	ID        string `json:"id"`
	Model     string `json:"model"`
	Tier      string `json:"tier"`
	Available bool   `json:"available"`
}

// Server serves the routing API.
type Server struct {
	router  *router.Router
	log     logrus.FieldLogger
	archive *archive.Store
}

// Option configures a Server.
type Option func(*Server)

// WithArchive persists every accepted override to st.
func WithArchive(st *archive.Store) Option {
	return func(s *Server) { s.archive = st }
}

// NewServer creates a server for r.
func NewServer(r *router.Router, log logrus.FieldLogger, opts ...Option) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{router: r, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns a gin engine with all routes registered.
func (s *Server) Handler() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests())
	s.Register(engine.Group("/v1"))
	engine.GET("/healthz", s.health)
	return engine
}

// Register mounts the API on rg.
func (s *Server) Register(rg *gin.RouterGroup) {
	rg.POST("/route", s.route)
	rg.GET("/stats", s.stats)
	rg.POST("/stats/reset", s.resetStats)
	rg.GET("/overrides", s.overrides)
	rg.POST("/overrides", s.recordOverride)
	rg.GET("/mode", s.mode)
	rg.PUT("/mode", s.setMode)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}

// route handles POST /v1/route.
//
//   - 200: routed response
//   - 400: malformed body
//   - 422: unsupported request type
//   - 503: no backend available in llm_only mode
func (s *Server) route(c *gin.Context) {
	var body RouteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reqType, err := schema.ParseRequestType(body.Type)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	req := schema.NewRequest(reqType, body.Text, schema.WithContext(body.Context))
	if body.ID != "" {
		req.ID = body.ID
	}
	if body.Options.UseEscalation != nil {
		req.Options.UseEscalation = body.Options.UseEscalation
	}
	req.Options.MinConfidenceOverride = body.Options.MinConfidenceOverride
	req.Options.MaxTokens = body.Options.MaxTokens
	req.Options.Temperature = body.Options.Temperature

	resp, err := s.router.Route(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "request_id": req.ID})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrUnsupportedRequestType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, router.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, router.ErrInvalidRequest), errors.Is(err, router.ErrInvalidOverride), errors.Is(err, router.ErrInvalidMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) stats(c *gin.Context) {
	st := s.router.Stats()
	c.JSON(http.StatusOK, gin.H{
		"stats":           st,
		"accuracy":        st.Accuracy(),
		"escalation_rate": st.EscalationRate(),
		"report":          s.router.AccuracyReport(),
		"mode":            s.router.Mode(),
	})
}

func (s *Server) resetStats(c *gin.Context) {
	s.router.ResetStats()
	c.Status(http.StatusNoContent)
}

func (s *Server) overrides(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"overrides": s.router.OverrideHistory()})
}

func (s *Server) recordOverride(c *gin.Context) {
	var body OverrideRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	original, err := schema.ParseQuadrant(body.OriginalQuadrant)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	corrected, err := schema.ParseQuadrant(body.CorrectedQuadrant)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.router.RecordOverride(body.RequestID, original, corrected, body.WasEscalated)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if s.archive != nil {
		if _, err := s.archive.AppendOverride(rec); err != nil {
			s.log.WithError(err).WithField("request_id", body.RequestID).Warn("archive override failed")
		}
	}
	c.JSON(http.StatusCreated, gin.H{"override_count": s.router.Stats().OverrideCount})
}

func (s *Server) mode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mode": s.router.Mode()})
}

func (s *Server) setMode(c *gin.Context) {
	var body ModeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := router.ParseMode(body.Mode)
	if err == nil {
		err = s.router.SetMode(mode)
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

func (s *Server) health(c *gin.Context) {
	backends := s.router.Backends()
	out := make([]BackendStatus, 0, len(backends))
	for _, b := range backends {
		out = append(out, BackendStatus{
			ID:        b.ID(),
			Model:     b.ModelID(),
			Tier:      string(b.Tier()),
			Available: b.Available(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": s.router.Mode(), "backends": out})
}
