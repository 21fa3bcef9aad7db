// Package server renders the audit wizard and exposes the JSON API.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uxsense/backend/middleware"
	"github.com/uxsense/backend/session"
)

// maxScreenshotSize bounds uploaded screenshots
const maxScreenshotSize = 10 << 20

// StatsSource provides the statistics endpoint and visitor tracking
type StatsSource interface {
	TrackVisitor(ip string)
	Statistics(dev bool) map[string]any
}

// Options configures a Server
type Options struct {
	Manager     *session.Manager
	Stats       StatsSource
	RateLimiter *middleware.RateLimiter
	Logger      *zap.Logger
	Model       string
	DevMode     bool
	// CORSOrigins enables cross-origin access for these origins only
	CORSOrigins []string
}

// Server wires the session manager to HTTP
type Server struct {
	manager     *session.Manager
	stats       StatsSource
	rateLimiter *middleware.RateLimiter
	logger      *zap.Logger
	model       string
	devMode     bool
	engine      *gin.Engine
}

// New builds the server and its routes
func New(opts Options) (*Server, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("server: session manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = middleware.NewRateLimiter(2, 5)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("server: failed to parse templates: %w", err)
	}

	s := &Server{
		manager:     opts.Manager,
		stats:       opts.Stats,
		rateLimiter: opts.RateLimiter,
		logger:      opts.Logger.Named("server"),
		model:       opts.Model,
		devMode:     opts.DevMode,
	}

	r := gin.New()
	r.SetHTMLTemplate(templates)
	r.MaxMultipartMemory = maxScreenshotSize

	r.Use(middleware.RequestLogger(s.logger, opts.Stats))
	r.Use(middleware.ErrorHandler(s.logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID},
			ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	s.routes(r)
	s.engine = r
	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	limited := s.rateLimiter.RateLimit()

	r.GET("/", s.index)
	r.POST("/login", s.login)
	r.POST("/logout", s.logout)
	r.GET("/steps/:step", s.step)
	r.POST("/target", s.target)
	r.POST("/screenshot", s.screenshot)
	r.POST("/retrieve", limited, s.retrieve)
	r.POST("/analyze", limited, s.analyze)
	r.GET("/report/export", s.export)

	api := r.Group("/api")
	{
		api.GET("/health", s.apiHealth)
		api.GET("/session", s.apiSession)
		api.POST("/retrieve", limited, s.apiRetrieve)
		api.POST("/analyze", limited, s.apiAnalyze)
		api.GET("/report", s.apiReport)
		api.GET("/statistics", s.apiStatistics)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}
