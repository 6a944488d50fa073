package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// Post is one processed content item.
type Post struct {
	SourcePath  string
	Title       string
	Author      string
	Slug        string
	Date        string // as stored in frontmatter
	DisplayDate string // date part only
	Description string
	URL         string
	HTML        string // full page HTML; empty on metadata-only loads
}

// Processor turns markdown sources into posts. It owns the build-scoped
// caches (slug allocations, parsed metadata) and the renderer; construct one
// per build pass so passes never leak state into each other.
type Processor struct {
	cfg          *config.Config
	slugger      *Slugger
	renderer     *Renderer
	pageTemplate string
	metaCache    map[string]*Post
	now          func() time.Time
}

// NewProcessor creates a processor for one build pass.
func NewProcessor(cfg *config.Config) (*Processor, error) {
	tmpl, err := os.ReadFile(cfg.Paths.PageTemplate())
	if err != nil {
		return nil, fmt.Errorf("read page template: %w", err)
	}
	return &Processor{
		cfg:          cfg,
		slugger:      NewSlugger(),
		renderer:     NewRenderer(),
		pageTemplate: string(tmpl),
		metaCache:    make(map[string]*Post),
		now:          time.Now,
	}, nil
}

// Process fully renders a content source. It returns the post with its page
// HTML and the source bytes as they exist on disk after any frontmatter
// write-back, so the caller can fingerprint exactly what it will see next
// run.
func (p *Processor) Process(path string, about bool) (*Post, []byte, error) {
	post, body, normalized, err := p.ensureMeta(path, about)
	if err != nil {
		return nil, nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil, fmt.Errorf("%s: document body is empty", path)
	}

	html, err := p.renderer.Render(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	post.HTML = FillTemplate(p.pageTemplate, map[string]string{
		"title":       post.Title,
		"author":      post.Author,
		"date":        post.Date,
		"description": post.Description,
		"keywords":    p.cfg.Site.Keywords,
		"yearRange":   p.cfg.YearRange(),
		"blog_title":  p.cfg.Site.Title,
		"analytics":   p.cfg.Site.Analytics,
		"highlight":   "", // highlighting is inlined server-side
		"body":        html,
	})
	return post, normalized, nil
}

// BasicInfo loads only the post metadata, without rendering. Used for
// unchanged items whose output is already on disk.
func (p *Processor) BasicInfo(path string, about bool) (*Post, error) {
	if cached, ok := p.metaCache[path]; ok {
		return cached, nil
	}
	post, _, _, err := p.ensureMeta(path, about)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ensureMeta parses frontmatter, fills defaulted fields, and writes the
// normalized document back to the source file when anything was defaulted.
func (p *Processor) ensureMeta(path string, about bool) (*Post, []byte, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	fm, body, _, err := splitFrontmatter(content)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	fields, err := parseFields(fm)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	updated := false
	title, ok := fields["title"].(string)
	if !ok || title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".md")
		fields["title"] = title
		updated = true
	}
	author, ok := fields["author"].(string)
	if !ok || author == "" {
		author = p.cfg.Site.Author
		fields["author"] = author
		updated = true
	}
	slug, ok := fields["slug"].(string)
	if !ok || slug == "" {
		slug = p.slugger.Slugify(title)
		fields["slug"] = slug
		updated = true
	} else {
		p.slugger.Claim(slug)
	}
	date, ok := fields["date"].(string)
	if !ok || date == "" {
		date = p.now().Format("2006-01-02 15:04")
		fields["date"] = date
		updated = true
	}

	description, _ := fields["description"].(string)
	if description == "" {
		description = excerpt(string(body))
	}

	normalized := content
	if updated {
		normalized, err = joinFrontmatter(fields, body)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := os.WriteFile(path, normalized, 0o644); err != nil {
			return nil, nil, nil, fmt.Errorf("write back frontmatter for %s: %w", path, err)
		}
	}

	url := "/post/" + slug
	if about {
		url = "/about"
	}

	post := &Post{
		SourcePath:  path,
		Title:       title,
		Author:      author,
		Slug:        slug,
		Date:        date,
		DisplayDate: displayDate(date),
		Description: description,
		URL:         url,
	}
	p.metaCache[path] = post
	return post, body, normalized, nil
}

func displayDate(date string) string {
	if idx := strings.IndexByte(date, ' '); idx > 0 {
		return date[:idx]
	}
	return date
}

// ParseDate parses the two supported frontmatter date shapes in the given
// location. Unparseable dates yield the zero time.
func ParseDate(date string, loc *time.Location) time.Time {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, date, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FillTemplate substitutes $key$ placeholders. The placeholder contract is
// shared with the site templates the original tooling used.
func FillTemplate(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "$"+key+"$", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
