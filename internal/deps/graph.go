// Package deps declares which source files affect which output categories
// and diffs fingerprint baselines into per-category dirty flags.
package deps

import "git.home.luguber.info/inful/blogbuilder/internal/config"

// Category names an output domain with a declared dependency set.
type Category string

const (
	CategoryGlobal  Category = "global"
	CategoryArticle Category = "article"
	CategoryIndex   Category = "index"
	CategoryJournal Category = "journal"
	CategoryFeed    Category = "feed"
	CategoryDoit    Category = "doit"
)

// Graph is the static dependency declaration: category → watched source
// paths. Global paths implicitly belong to every category. The structure is
// built once from configuration and never mutated.
type Graph struct {
	global     []string
	categories map[Category][]string
	order      []Category
}

// NewGraph builds the dependency table for a site. Watched paths are data
// files only (config, templates, stylesheet, activity log); rendering logic
// is compiled into the binary and needs no tracking.
func NewGraph(cfg *config.Config) *Graph {
	p := cfg.Paths
	return &Graph{
		global: []string{cfg.ConfigPath},
		categories: map[Category][]string{
			CategoryArticle: {p.PageTemplate(), p.Stylesheet()},
			CategoryIndex:   {p.IndexTemplate(), p.Stylesheet()},
			CategoryJournal: {p.JournalsTemplate(), p.Stylesheet()},
			CategoryFeed:    {},
			CategoryDoit:    {p.DoitTemplate(), p.Stylesheet(), p.Doit},
		},
		order: []Category{CategoryArticle, CategoryIndex, CategoryJournal, CategoryFeed, CategoryDoit},
	}
}

// Categories returns the output categories in declaration order.
func (g *Graph) Categories() []Category {
	out := make([]Category, len(g.order))
	copy(out, g.order)
	return out
}

// WatchedPaths returns the dependency set for a category, global paths
// included, in declaration order.
func (g *Graph) WatchedPaths(cat Category) []string {
	own := g.categories[cat]
	out := make([]string, 0, len(g.global)+len(own))
	out = append(out, g.global...)
	out = append(out, own...)
	return out
}

// AllWatchedPaths returns the deduplicated union across all categories.
// This is exactly the set the hash store must fingerprint every run.
func (g *Graph) AllWatchedPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(paths []string) {
		for _, p := range paths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	add(g.global)
	for _, cat := range g.order {
		add(g.categories[cat])
	}
	return out
}

// IsDirty reports whether any changed path belongs to the category's
// dependency set.
func (g *Graph) IsDirty(cat Category, changedPaths []string) bool {
	watched := make(map[string]struct{})
	for _, p := range g.WatchedPaths(cat) {
		watched[p] = struct{}{}
	}
	for _, p := range changedPaths {
		if _, ok := watched[p]; ok {
			return true
		}
	}
	return false
}
