// Package site generates the aggregate pages: the index listing, the
// journal page, and the doit page. Each generator fills a user-editable
// template using the shared $key$ placeholder contract.
package site

import (
	"fmt"
	"os"
	"strings"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/content"
	"git.home.luguber.info/inful/blogbuilder/internal/doit"
	"git.home.luguber.info/inful/blogbuilder/internal/journal"
)

// Generator renders the aggregate pages for one site.
type Generator struct {
	cfg      *config.Config
	renderer *content.Renderer
}

// NewGenerator creates a page generator sharing the build's renderer.
func NewGenerator(cfg *config.Config, renderer *content.Renderer) *Generator {
	return &Generator{cfg: cfg, renderer: renderer}
}

// IndexPage renders the front page from the post list (expected sorted
// newest first).
func (g *Generator) IndexPage(posts []*content.Post) (string, error) {
	tmpl, err := os.ReadFile(g.cfg.Paths.IndexTemplate())
	if err != nil {
		return "", fmt.Errorf("read index template: %w", err)
	}

	var items strings.Builder
	for _, post := range posts {
		items.WriteString(`<li class="post-item"><a href="` + post.URL + `">` + post.Title + `</a>`)
		items.WriteString(`<span class="post-date">` + post.DisplayDate + `</span></li>` + "\n")
	}

	return g.fill(string(tmpl), map[string]string{
		"body": `<ul class="post-list">` + "\n" + items.String() + `</ul>`,
	}), nil
}

// JournalsPage renders the journal archive. Entry content is markdown.
func (g *Generator) JournalsPage(entries []journal.Entry) (string, error) {
	tmpl, err := os.ReadFile(g.cfg.Paths.JournalsTemplate())
	if err != nil {
		return "", fmt.Errorf("read journals template: %w", err)
	}

	var items strings.Builder
	for _, entry := range entries {
		html, err := g.renderer.Render([]byte(entry.Content))
		if err != nil {
			return "", fmt.Errorf("render journal entry %s: %w", entry.Date, err)
		}
		items.WriteString(`<div class="journal-item"><div class="journal-date">` + entry.Date + `</div>`)
		items.WriteString(`<div class="journal-content">` + html + `</div></div>` + "\n")
	}

	return g.fill(string(tmpl), map[string]string{
		"body": `<div class="journal-items">` + "\n" + items.String() + `</div>`,
	}), nil
}

// DoitPage renders the activity log with its summary block.
func (g *Generator) DoitPage(data doit.Data) (string, error) {
	tmpl, err := os.ReadFile(g.cfg.Paths.DoitTemplate())
	if err != nil {
		return "", fmt.Errorf("read doit template: %w", err)
	}

	summary := doit.Summarize(data.Records)

	var items strings.Builder
	for _, r := range data.Records {
		items.WriteString(`<div class="doit-item"><span class="doit-date">` + doit.MonthDay(r.Date) + `</span>`)
		if r.Sleep != "" {
			items.WriteString(` <span class="doit-sleep">` + doit.FormatClock(r.Sleep) + ` 睡</span>`)
		}
		if r.Wake != "" {
			items.WriteString(` <span class="doit-wake">` + doit.FormatClock(r.Wake) + ` 起</span>`)
		}
		if r.Steps > 0 {
			items.WriteString(` <span class="doit-steps">` + doit.FormatStepsAsWan(r.Steps) + ` 步</span>`)
		}
		if r.Gongtougong > 0 {
			items.WriteString(fmt.Sprintf(` <span class="doit-exercise">拱头功 %d 个</span>`, r.Gongtougong))
		}
		items.WriteString(`</div>` + "\n")
	}

	summaryHTML := fmt.Sprintf(
		`<div class="doit-summary-item"><span class="summary-label">早起（&lt;8点）</span><span class="summary-value">%d 次</span></div>`+
			`<div class="doit-summary-item"><span class="summary-label">拱头功</span><span class="summary-value">%d 个</span></div>`+
			`<div class="doit-summary-item"><span class="summary-label">总步数</span><span class="summary-value">%s 步</span></div>`,
		summary.EarlyWakeCount, summary.TotalGongtougong, doit.FormatStepsAsWan(summary.TotalSteps))

	return g.fill(string(tmpl), map[string]string{
		"summary": summaryHTML,
		"body":    items.String(),
	}), nil
}

// fill applies the site-wide placeholders plus the page-specific ones.
func (g *Generator) fill(tmpl string, vars map[string]string) string {
	merged := map[string]string{
		"blog_title":  g.cfg.Site.Title,
		"description": g.cfg.Site.Description,
		"keywords":    g.cfg.Site.Keywords,
		"yearRange":   g.cfg.YearRange(),
		"author":      g.cfg.Site.Author,
		"analytics":   g.cfg.Site.Analytics,
	}
	for k, v := range vars {
		merged[k] = v
	}
	return content.FillTemplate(tmpl, merged)
}
