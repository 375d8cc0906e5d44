package site

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/content"
)

// page is the data every full page and fragment renders from.
type page struct {
	Title   string
	Theme   string
	Content *content.Content

	Categories []content.Category
	Projects   []content.Project
	Category   string
	Query      string

	Form formView
}

func (s *Site) page(c *gin.Context, title string) page {
	return page{
		Title:      title,
		Theme:      themeOf(c),
		Content:    s.content,
		Categories: s.content.ProjectCategories(),
		Projects:   s.content.Projects,
		Category:   content.CategoryAll,
		Form:       newFormView(contact.NewState()),
	}
}

func (s *Site) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.page(c, s.content.Site.Title))
}

// handleProjects renders the project grid for a category and search term.
func (s *Site) handleProjects(c *gin.Context) {
	p := s.page(c, "")
	p.Category = strings.TrimSpace(c.DefaultQuery("category", content.CategoryAll))
	p.Query = strings.TrimSpace(c.Query("q"))
	p.Projects = s.content.FilterProjects(p.Category, p.Query)
	c.HTML(http.StatusOK, "project_grid", p)
}

func (s *Site) handleContactForm(c *gin.Context) {
	c.HTML(http.StatusOK, "contact_form", s.page(c, "Contact Me"))
}

func (s *Site) handlePrivacy(c *gin.Context) {
	c.HTML(http.StatusOK, "privacy.html", s.page(c, "Privacy Policy"))
}

func (s *Site) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}
