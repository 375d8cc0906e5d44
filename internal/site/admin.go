package site

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/store"
)

const (
	adminCookie   = "admin_token"
	devAdminPass  = "admin123"
	visitorsLimit = 200
)

// adminAuth is a single-admin login backed by a per-process session token.
type adminAuth struct {
	username string
	password string
	hash     []byte
	token    string
	secure   bool
	limiter  *clientLimiter
}

func newAdminAuth(cfg config.AdminConfig, prod bool, logger *zap.Logger) (*adminAuth, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	a := &adminAuth{
		username: cfg.Username,
		password: cfg.Password,
		token:    token,
		secure:   prod,
		limiter:  newClientLimiter(5, 5),
	}
	if cfg.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("site: admin.password_hash: %w", err)
		}
		a.hash = []byte(cfg.PasswordHash)
	}
	if a.username == "" {
		a.username = "admin"
	}
	if a.hash == nil && a.password == "" {
		if prod {
			return nil, fmt.Errorf("site: admin password is required in prod")
		}
		a.password = devAdminPass
		logger.Warn("WARNING: Using default admin password. Set PORTFOLIO_ADMIN_PASSWORD.")
	}
	logger.Info("Admin access available at: /admin/login")
	return a, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("site: admin token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (a *adminAuth) check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	var passOK bool
	if a.hash != nil {
		passOK = bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	}
	return userOK && passOK
}

func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

type dashboardView struct {
	page
	Stats     *store.Stats
	Sent      int64
	Failed    int64
	Invalid   int64
	Retention string
	Visitors  []store.Visit
	Error     string
}

func (s *Site) adminView(c *gin.Context, title string) dashboardView {
	return dashboardView{page: s.page(c, title), Retention: "12 months"}
}

func (s *Site) setupAdminRoutes(r *gin.Engine) {
	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", s.adminView(c, "Admin Login"))
	})

	r.POST("/admin/login", func(c *gin.Context) {
		who := s.store.HashIP(c.ClientIP())
		if !s.admin.limiter.Allow(who) {
			v := s.adminView(c, "Admin Login")
			v.Error = "Too many attempts. Try again in a minute."
			c.HTML(http.StatusTooManyRequests, "admin-login.html", v)
			return
		}

		if !s.admin.check(c.PostForm("username"), c.PostForm("password")) {
			s.logger.Warn("Failed admin login attempt", zap.String("client", who))
			v := s.adminView(c, "Admin Login")
			v.Error = "Invalid credentials"
			c.HTML(http.StatusUnauthorized, "admin-login.html", v)
			return
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookie, s.admin.token, 3600*24, "/admin", "", s.admin.secure, true)
		s.logger.Info("Admin login successful", zap.String("client", who))
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", s.admin.secure, true)
		s.logger.Info("Admin logout", zap.String("client", s.store.HashIP(c.ClientIP())))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	g := r.Group("/admin")
	g.Use(s.admin.middleware())

	g.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			s.logger.Error("Error loading admin stats", zap.Error(err))
			v := s.adminView(c, "Admin Error")
			v.Error = "Failed to load statistics"
			c.HTML(http.StatusInternalServerError, "admin-error.html", v)
			return
		}
		v := s.adminView(c, "Dashboard")
		v.Stats = stats
		v.Sent = stats.Submissions[store.OutcomeSuccess]
		v.Failed = stats.Submissions[store.OutcomeError]
		v.Invalid = stats.Submissions[store.OutcomeInvalid]
		c.HTML(http.StatusOK, "admin-dashboard.html", v)
	})

	g.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			s.logger.Error("Error loading admin stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	g.GET("/visitors", func(c *gin.Context) {
		visitors, err := s.store.RecentVisitors(c.Request.Context(), visitorsLimit)
		if err != nil {
			s.logger.Error("Error loading visitors", zap.Error(err))
			v := s.adminView(c, "Admin Error")
			v.Error = "Failed to load visitors"
			c.HTML(http.StatusInternalServerError, "admin-error.html", v)
			return
		}
		v := s.adminView(c, "Visitors")
		v.Visitors = visitors
		c.HTML(http.StatusOK, "admin-visitors.html", v)
	})

	g.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			s.logger.Error("Error loading admin stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		s.logger.Info("Admin stats exported", zap.String("client", s.store.HashIP(c.ClientIP())))
		c.JSON(http.StatusOK, stats)
	})

	g.POST("/privacy/cleanup", func(c *gin.Context) {
		n, err := s.store.Cleanup(c.Request.Context(), store.DefaultRetention)
		if err != nil {
			s.logger.Error("Error cleaning up old visitor data", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		s.logger.Info("Privacy cleanup", zap.Int64("rows_deleted", n))
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete", "rows_deleted": n})
	})
}
