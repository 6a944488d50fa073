package content

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugger allocates URL slugs with build-wide collision resolution.
// It is scoped to one build pass; never reuse it across builds.
type Slugger struct {
	used map[string]struct{}
	args pinyin.Args
}

// NewSlugger creates an empty slug allocator.
func NewSlugger() *Slugger {
	return &Slugger{
		used: make(map[string]struct{}),
		args: pinyin.NewArgs(),
	}
}

// Slugify converts a title into a unique URL-friendly slug. Han characters
// are transliterated to pinyin, Latin text is lowercased with diacritics
// stripped, and anything else collapses to dashes. Collisions within the
// build get a numeric suffix.
func (s *Slugger) Slugify(title string) string {
	base := s.romanize(title)
	if base == "" {
		base = "article-" + time.Now().Format("2006-01-02")
	}

	slug := base
	for counter := 1; ; counter++ {
		if _, taken := s.used[slug]; !taken {
			break
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
	s.used[slug] = struct{}{}
	return slug
}

// Claim marks an externally provided slug (from frontmatter) as used so
// generated slugs cannot collide with it.
func (s *Slugger) Claim(slug string) {
	s.used[slug] = struct{}{}
}

func (s *Slugger) romanize(title string) string {
	var parts []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, r := range title {
		if unicode.Is(unicode.Han, r) {
			flush()
			if py := pinyin.LazyPinyin(string(r), s.args); len(py) > 0 {
				parts = append(parts, py[0])
			}
			continue
		}
		current.WriteRune(r)
	}
	flush()

	joined := strings.Join(parts, "-")

	// NFD + mark stripping turns "café" into "cafe".
	stripped, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), joined)
	if err != nil {
		stripped = joined
	}

	var out strings.Builder
	lastDash := true // leading dashes are dropped
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			out.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(out.String(), "-")
}
