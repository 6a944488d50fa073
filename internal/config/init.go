package config

import (
	"fmt"
	"os"
)

const starterConfig = `site:
  title: "My Blog"
  author: "me"
  description: "Notes and articles"
  base_url: "https://example.com"
  language: "en"
  start_year: 2024

paths:
  content: content
  about: about.md
  journal_scratch: journals.md
  journal_archive: journals.json
  doit: doit.json
  templates: templates
  dist: dist
  hash_store: .build-hash.json
  history: .build-history.db

serve:
  addr: "localhost:3000"
  debounce: 300ms
  metrics: true
`

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
