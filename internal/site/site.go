// Package site is the HTTP front of the portfolio: server-rendered pages,
// HTMX fragments, the contact endpoints and the admin dashboard.
package site

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/logging"
	"github.com/Zachkp/portfolio/internal/metrics"
	"github.com/Zachkp/portfolio/internal/store"
)

// Deps are the collaborators a Site renders and records through. Store and
// Metrics are optional; without a store, visit tracking and the admin
// dashboard are off.
type Deps struct {
	Content *content.Content
	Relay   contact.Relay
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Site is the configured gin engine plus its background workers.
type Site struct {
	cfg     config.Config
	content *content.Content
	relay   contact.Relay
	store   *store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger

	engine  *gin.Engine
	limiter *clientLimiter
	visits  *visitTracker
	admin   *adminAuth
	started time.Time
}

// New builds the engine and registers every route.
func New(cfg config.Config, d Deps) (*Site, error) {
	if d.Content == nil {
		return nil, errors.New("site: content is required")
	}
	if d.Relay == nil {
		return nil, errors.New("site: relay is required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	s := &Site{
		cfg:     cfg,
		content: d.Content,
		relay:   d.Relay,
		store:   d.Store,
		metrics: d.Metrics,
		logger:  d.Logger,
		limiter: newClientLimiter(cfg.ContactRatePerMinute, cfg.ContactBurst),
		started: time.Now(),
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	if gin.IsDebugging() {
		logging.LogRoutes(s.logger)
	}
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(logging.RequestID(), logging.RequestLogger(s.logger), logging.Recoverer(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}
	if s.store != nil {
		s.visits = newVisitTracker(s.store, s.logger, 256)
		r.Use(s.visits.Middleware())
	}
	s.engine = r

	r.StaticFS("/static", staticFiles())

	r.GET("/", s.handleIndex)
	r.GET("/projects", s.handleProjects)
	r.GET("/contact-form", s.handleContactForm)
	r.POST("/contact", s.rateLimited(), s.handleContact)
	r.POST("/contact/field", s.handleContactField)
	r.POST("/api/contact", s.rateLimited(), s.handleContactAPI)
	r.POST("/theme", s.handleTheme)
	r.GET("/privacy", s.handlePrivacy)
	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	if cfg.Admin.Enabled {
		if s.store == nil {
			s.logger.Warn("Admin dashboard disabled: no database")
		} else {
			s.admin, err = newAdminAuth(cfg.Admin, cfg.IsProd(), s.logger)
			if err != nil {
				return nil, err
			}
			s.setupAdminRoutes(r)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "not-found.html", s.page(c, "Not Found"))
	})

	return s, nil
}

// Handler returns the engine as an http.Handler.
func (s *Site) Handler() http.Handler { return s.engine }

// Close stops the visit tracker after it has written what it queued.
func (s *Site) Close() {
	if s.visits != nil {
		s.visits.Close()
	}
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}
