package site

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/store"
)

// untrackedPrefixes are paths that never count as a page view.
var untrackedPrefixes = []string{
	"/static/",
	"/admin",
	"/favicon",
	"/privacy",
	"/healthz",
	"/metrics",
	"/api/",
	"/contact",
	"/projects",
	"/theme",
}

type visit struct {
	ip, userAgent, path string
}

// visitTracker writes page views from a single background goroutine so
// requests never wait on SQLite. When the queue is full, views are dropped.
type visitTracker struct {
	store  *store.Store
	logger *zap.Logger
	queue  chan visit

	once sync.Once
	done chan struct{}
}

func newVisitTracker(st *store.Store, logger *zap.Logger, size int) *visitTracker {
	t := &visitTracker{
		store:  st,
		logger: logger,
		queue:  make(chan visit, size),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *visitTracker) run() {
	defer close(t.done)
	for v := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.store.RecordVisit(ctx, v.ip, v.userAgent, v.path); err != nil {
			t.logger.Error("Error recording visitor", zap.Error(err))
		}
		cancel()
	}
}

// Middleware counts GET page views, honouring Do Not Track.
func (t *visitTracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.Request.URL.Path
		if c.Request.Method != "GET" || c.Writer.Status() >= 400 || !tracked(path) {
			return
		}
		if c.GetHeader("DNT") == "1" || c.GetHeader("Sec-GPC") == "1" {
			return
		}

		select {
		case t.queue <- visit{ip: c.ClientIP(), userAgent: c.Request.UserAgent(), path: path}:
		default:
			t.logger.Debug("Visitor queue full, dropping page view")
		}
	}
}

// Close drains the queue and stops the writer.
func (t *visitTracker) Close() {
	t.once.Do(func() { close(t.queue) })
	<-t.done
}

func tracked(path string) bool {
	for _, p := range untrackedPrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return true
}
