package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/guiyumin/vresolve/internal/core/classify"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/proxy"
	"github.com/guiyumin/vresolve/internal/core/version"
	"github.com/guiyumin/vresolve/internal/core/workpool"
	"github.com/sirupsen/logrus"
)

const serviceName = "vresolve"

const (
	extractFailedMessage = "Extraction failed"
	extractFailedDetails = "Unable to extract media information. The content may be private, deleted, or the platform may have changed."
	proxyFailedMessage   = "Proxy error"
	proxyFailedDetails   = "The file host refused or failed to deliver the file."
	missingURLDetails    = "Pass the media link as the url query parameter or in a JSON body."
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// Resolver is what the handlers need from the orchestration engine
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*media.MediaBundle, error)
	ResolveTarget(ctx context.Context, target media.Target) (*media.MediaBundle, error)
	Stats() workpool.Stats
}

// Streamer opens proxied downloads
type Streamer interface {
	Open(ctx context.Context, req proxy.Request) (*proxy.Stream, error)
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Status  media.Status `json:"status"`
	Message string       `json:"message"`
	Details string       `json:"details"`
}

// ExtractRequest is the body for POST /api/extract
type ExtractRequest struct {
	URL string `json:"url" binding:"required"`
}

// Server is the HTTP front of the resolver
type Server struct {
	cfg      config.ServerConfig
	resolver Resolver
	streamer Streamer
	engine   *gin.Engine
	server   *http.Server
	log      *logrus.Entry
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(cfg config.ServerConfig, resolver Resolver, streamer Streamer) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		streamer: streamer,
		log:      logging.For("server"),
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	s.engine.Use(s.corsMiddleware())
	if cfg.APIKey != "" {
		s.engine.Use(s.authMiddleware())
	}

	s.engine.GET("/", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/extract", s.handleExtract)
	api.POST("/extract", s.handleExtract)
	api.GET("/tiktok", s.handleTikTok)
	api.GET("/instagram-profile", s.handleInstagramProfile)
	api.GET("/facebook-profile", s.handleFacebookProfile)
	api.GET("/download", s.handleDownload)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Status:  media.StatusError,
			Message: "not found",
			Details: "no route for " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured port until Stop
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // proxied downloads can run long
		IdleTimeout:  120 * time.Second,
	}

	s.log.WithField("port", s.cfg.Port).Info("starting server")
	if s.cfg.APIKey != "" {
		s.log.Info("API key authentication enabled")
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// health and preflight stay open
		if !strings.HasPrefix(path, "/api/") || path == "/api/health" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.cfg.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Status:  media.StatusError,
				Message: "invalid or missing API key",
				Details: "Send the key in the X-API-Key header.",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		entry := s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed":    time.Since(start).Round(time.Millisecond),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithError(c.Errors.Last())
		}
		entry.Info("request")
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(s.cfg.AllowOrigins) == 0 || slices.Contains(s.cfg.AllowOrigins, "*"):
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.cfg.AllowOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, Content-Length, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": version.Version,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workers": s.resolver.Stats(),
		"version": version.Version,
	})
}

func (s *Server) handleExtract(c *gin.Context) {
	rawURL := c.Query("url")
	if c.Request.Method == http.MethodPost {
		var req ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, "missing url", missingURLDetails)
			return
		}
		rawURL = req.URL
	}
	if strings.TrimSpace(rawURL) == "" {
		s.badRequest(c, "missing url", missingURLDetails)
		return
	}

	bundle, err := s.resolver.Resolve(c.Request.Context(), rawURL)
	s.respond(c, bundle, err)
}

func (s *Server) handleTikTok(c *gin.Context) {
	rawURL := c.Query("url")
	if strings.TrimSpace(rawURL) == "" {
		s.badRequest(c, "missing url", missingURLDetails)
		return
	}
	u, err := classify.Validate(rawURL)
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	if p, ok := classify.PlatformOf(u.Hostname()); !ok || p != media.PlatformTikTok {
		s.badRequest(c, "not a TikTok URL", "Expected a tiktok.com link, got "+u.Hostname()+".")
		return
	}

	bundle, err := s.resolver.Resolve(c.Request.Context(), rawURL)
	s.respond(c, bundle, err)
}

func (s *Server) handleInstagramProfile(c *gin.Context) {
	username := strings.TrimPrefix(strings.TrimSpace(c.Query("username")), "@")
	if !usernameRegex.MatchString(username) {
		s.badRequest(c, "invalid username", "Usernames are 1 to 30 letters, digits, dots or underscores.")
		return
	}

	bundle, err := s.resolver.ResolveTarget(c.Request.Context(), media.Target{
		Platform: media.PlatformInstagram,
		Kind:     media.KindProfile,
		URL:      "https://www.instagram.com/" + username + "/",
		Username: username,
	})
	s.respond(c, bundle, err)
}

func (s *Server) handleFacebookProfile(c *gin.Context) {
	rawURL := c.Query("url")
	if strings.TrimSpace(rawURL) == "" {
		s.badRequest(c, "missing url", missingURLDetails)
		return
	}
	u, err := classify.Validate(rawURL)
	if err != nil {
		s.respond(c, nil, err)
		return
	}
	if p, ok := classify.PlatformOf(u.Hostname()); !ok || p != media.PlatformFacebook {
		s.badRequest(c, "not a Facebook URL", "Expected a facebook.com link, got "+u.Hostname()+".")
		return
	}

	bundle, err := s.resolver.ResolveTarget(c.Request.Context(), media.Target{
		Platform: media.PlatformFacebook,
		Kind:     media.KindProfile,
		URL:      u.String(),
		Original: rawURL,
		Username: classify.DetectKind(media.PlatformFacebook, u).Username,
	})
	s.respond(c, bundle, err)
}

func (s *Server) handleDownload(c *gin.Context) {
	stream, err := s.streamer.Open(c.Request.Context(), proxy.Request{
		URL:      c.Query("url"),
		Filename: c.DefaultQuery("filename", proxy.DefaultFilename),
		Inline:   queryFlag(c, "inline"),
	})
	if err != nil {
		_ = c.Error(err)
		if media.IsClientError(err) {
			s.badRequest(c, "Invalid download request", err.Error())
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Status:  media.StatusError,
			Message: proxyFailedMessage,
			Details: proxyFailedDetails,
		})
		return
	}
	defer stream.Close()

	c.Header("Content-Disposition", stream.Disposition)
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, stream.ContentLength, stream.ContentType, stream.Body, nil)
}

// respond maps resolution errors to status codes. Internal error text stays
// in the logs.
func (s *Server) respond(c *gin.Context, bundle *media.MediaBundle, err error) {
	if err == nil {
		c.JSON(http.StatusOK, bundle)
		return
	}

	_ = c.Error(err)
	if media.IsClientError(err) {
		s.badRequest(c, clientMessage(err), err.Error())
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Status:  media.StatusError,
		Message: extractFailedMessage,
		Details: extractFailedDetails,
	})
}

func (s *Server) badRequest(c *gin.Context, message, details string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Status: media.StatusError, Message: message, Details: details})
}

// queryFlag reads a boolean query parameter. Anything unparsable is false.
func queryFlag(c *gin.Context, key string) bool {
	v := strings.ToLower(strings.TrimSpace(c.Query(key)))
	switch v {
	case "yes", "on":
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func clientMessage(err error) string {
	if errors.Is(err, media.ErrUnsupportedDomain) {
		return "Unsupported platform. Supported: Instagram, Facebook, TikTok, Pinterest"
	}
	return "Invalid URL"
}
