// Package content is the portfolio's copy and data: hero, about, timeline,
// projects, skills and contact details. The built-in content can be
// replaced by a YAML file at startup.
package content

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Timeline entry kinds.
const (
	KindWork        = "work"
	KindEducation   = "education"
	KindAchievement = "achievement"
)

// CategoryAll matches every project.
const CategoryAll = "all"

type Site struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	OwnerEmail  string `yaml:"owner_email"`
}

type Link struct {
	Name string `yaml:"name"`
	Href string `yaml:"href"`
}

// External reports whether the link leaves the site and should open in a new tab.
func (l Link) External() bool {
	return strings.HasPrefix(l.Href, "http://") || strings.HasPrefix(l.Href, "https://")
}

type Hero struct {
	Greeting  string   `yaml:"greeting"`
	Name      string   `yaml:"name"`
	Roles     []string `yaml:"roles"`
	Tagline   string   `yaml:"tagline"`
	ResumeURL string   `yaml:"resume_url"`
}

type Stat struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

type TimelineEntry struct {
	Type         string   `yaml:"type"`
	Title        string   `yaml:"title"`
	Organization string   `yaml:"organization"`
	Location     string   `yaml:"location"`
	Period       string   `yaml:"period"`
	Description  string   `yaml:"description"`
	Technologies []string `yaml:"technologies"`
}

type About struct {
	Intro      string          `yaml:"intro"`
	Paragraphs []string        `yaml:"paragraphs"`
	Stats      []Stat          `yaml:"stats"`
	Timeline   []TimelineEntry `yaml:"timeline"`
}

type Project struct {
	Title       string   `yaml:"title"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Image       string   `yaml:"image"`
	Tags        []string `yaml:"tags"`
	GitHub      string   `yaml:"github"`
	Live        string   `yaml:"live"`
}

// Matches reports whether term occurs, ignoring case, in the title,
// description or any tag. An empty term matches.
func (p Project) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Description), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

type Category struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Count int    `yaml:"-"`
}

type Skills struct {
	Languages  []string `yaml:"languages"`
	Frameworks []string `yaml:"frameworks"`
	Tools      []string `yaml:"tools"`
}

type Contact struct {
	Heading   string          `yaml:"heading"`
	Blurb     string          `yaml:"blurb"`
	Methods   []ContactMethod `yaml:"methods"`
	Socials   []Link          `yaml:"socials"`
	Available bool            `yaml:"available"`
}

type ContactMethod struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
	Href  string `yaml:"href"`
}

// External reports whether the method's link opens outside the site.
func (m ContactMethod) External() bool {
	return Link{Href: m.Href}.External()
}

// Content is everything the pages render.
type Content struct {
	Site       Site       `yaml:"site"`
	Nav        []Link     `yaml:"nav"`
	Hero       Hero       `yaml:"hero"`
	About      About      `yaml:"about"`
	Projects   []Project  `yaml:"projects"`
	Categories []Category `yaml:"categories"`
	Skills     Skills     `yaml:"skills"`
	Contact    Contact    `yaml:"contact"`
}

// Default returns the built-in content.
func Default() (*Content, error) {
	return Parse(defaultYAML)
}

// Load reads content from path, or returns Default when path is empty.
func Load(path string) (*Content, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and checks YAML content.
func Parse(b []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Content) validate() error {
	if strings.TrimSpace(c.Site.Name) == "" {
		return fmt.Errorf("content: site.name is required")
	}
	for i, e := range c.About.Timeline {
		switch e.Type {
		case KindWork, KindEducation, KindAchievement:
		default:
			return fmt.Errorf("content: timeline[%d] has unknown type %q", i, e.Type)
		}
	}
	known := map[string]bool{}
	for _, cat := range c.Categories {
		if cat.ID == CategoryAll {
			return fmt.Errorf("content: category id %q is reserved", CategoryAll)
		}
		known[cat.ID] = true
	}
	for i, p := range c.Projects {
		if strings.TrimSpace(p.Title) == "" {
			return fmt.Errorf("content: projects[%d] has no title", i)
		}
		if p.Category != "" && !known[p.Category] {
			return fmt.Errorf("content: project %q has unknown category %q", p.Title, p.Category)
		}
	}
	return nil
}

// FilterProjects returns the projects in category (CategoryAll or "" for
// any) whose text matches term.
func (c *Content) FilterProjects(category, term string) []Project {
	var out []Project
	for _, p := range c.Projects {
		if category != "" && category != CategoryAll && p.Category != category {
			continue
		}
		if p.Matches(term) {
			out = append(out, p)
		}
	}
	return out
}

// ProjectCategories returns "all" followed by the configured categories,
// each with its project count.
func (c *Content) ProjectCategories() []Category {
	counts := map[string]int{}
	for _, p := range c.Projects {
		counts[p.Category]++
	}
	out := make([]Category, 0, len(c.Categories)+1)
	out = append(out, Category{ID: CategoryAll, Label: "All Projects", Count: len(c.Projects)})
	for _, cat := range c.Categories {
		cat.Count = counts[cat.ID]
		out = append(out, cat)
	}
	return out
}
