package site

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"

	themeCookie = "theme"
)

// themeOf returns the visitor's theme. Dark unless they chose light.
func themeOf(c *gin.Context) string {
	if v, err := c.Cookie(themeCookie); err == nil && v == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// Toggle flips between the light and dark themes.
func Toggle(theme string) string {
	if theme == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

func (s *Site) handleTheme(c *gin.Context) {
	next := Toggle(themeOf(c))
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(themeCookie, next, 3600*24*365, "/", "", s.cfg.IsProd(), false)

	if isHTMX(c) {
		c.Header("HX-Refresh", "true")
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, backTo(c))
}

// backTo is the same-site page the request came from, or "/".
func backTo(c *gin.Context) string {
	ref, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || ref.Host != c.Request.Host || ref.Path == "" {
		return "/"
	}
	back := ref.Path
	if ref.RawQuery != "" {
		back += "?" + ref.RawQuery
	}
	return back
}
