// Package feed serializes the RSS 2.0 subscription feed.
package feed

import (
	"fmt"
	"time"

	"github.com/gorilla/feeds"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/content"
)

// Generate produces the RSS 2.0 document for the given posts (sorted newest
// first by the caller).
func Generate(cfg *config.Config, posts []*content.Post, now time.Time) (string, error) {
	f := &feeds.Feed{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		Link:        &feeds.Link{Href: cfg.Site.BaseURL},
		Author:      &feeds.Author{Name: cfg.Site.Author, Email: cfg.Site.Email},
		Updated:     now,
	}

	loc := cfg.Location()
	for _, post := range posts {
		date := content.ParseDate(post.Date, loc)
		if date.IsZero() {
			date = now
		}
		f.Items = append(f.Items, &feeds.Item{
			Title:       post.Title,
			Id:          cfg.Site.BaseURL + post.URL,
			Link:        &feeds.Link{Href: cfg.Site.BaseURL + post.URL},
			Description: post.Description,
			Author:      &feeds.Author{Name: post.Author, Email: cfg.Site.Email},
			Created:     date,
		})
	}

	rss, err := f.ToRss()
	if err != nil {
		return "", fmt.Errorf("serialize rss feed: %w", err)
	}
	return rss, nil
}
