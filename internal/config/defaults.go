package config

import (
	"path/filepath"
	"time"
)

func applyDefaults(cfg *Config) {
	p := &cfg.Paths
	if p.Content == "" {
		p.Content = "content"
	}
	if p.About == "" {
		p.About = "about.md"
	}
	if p.JournalScratch == "" {
		p.JournalScratch = "journals.md"
	}
	if p.JournalArchive == "" {
		p.JournalArchive = "journals.json"
	}
	if p.Doit == "" {
		p.Doit = "doit.json"
	}
	if p.Templates == "" {
		p.Templates = "templates"
	}
	if p.Dist == "" {
		p.Dist = "dist"
	}
	if p.HashStore == "" {
		p.HashStore = ".build-hash.json"
	}

	s := &cfg.Serve
	if s.Addr == "" {
		s.Addr = "localhost:3000"
	}
	if s.Debounce == 0 {
		s.Debounce = 300 * time.Millisecond
	}
	if s.MaxDelay == 0 {
		s.MaxDelay = 5 * time.Second
	}

	if cfg.Site.Language == "" {
		cfg.Site.Language = "zh-CN"
	}
	if cfg.Site.Author == "" {
		cfg.Site.Author = cfg.Site.Title
	}
}

// Template path helpers. Templates are data files watched by the dependency
// graph, so every consumer must resolve them the same way.

func (p PathsConfig) PageTemplate() string     { return filepath.Join(p.Templates, "page.html") }
func (p PathsConfig) IndexTemplate() string    { return filepath.Join(p.Templates, "index.html") }
func (p PathsConfig) JournalsTemplate() string { return filepath.Join(p.Templates, "journals.html") }
func (p PathsConfig) DoitTemplate() string     { return filepath.Join(p.Templates, "doit.html") }
func (p PathsConfig) Stylesheet() string       { return filepath.Join(p.Templates, "style.css") }

// Output path helpers.

func (p PathsConfig) DistPost() string     { return filepath.Join(p.Dist, "post") }
func (p PathsConfig) DistStatic() string   { return filepath.Join(p.Dist, "static") }
func (p PathsConfig) DistIndex() string    { return filepath.Join(p.Dist, "index.html") }
func (p PathsConfig) DistAbout() string    { return filepath.Join(p.Dist, "about.html") }
func (p PathsConfig) DistJournals() string { return filepath.Join(p.Dist, "journals.html") }
func (p PathsConfig) DistDoit() string     { return filepath.Join(p.Dist, "doit.html") }
func (p PathsConfig) DistFeed() string     { return filepath.Join(p.Dist, "feed") }
