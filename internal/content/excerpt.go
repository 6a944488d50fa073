package content

import (
	"regexp"
	"strings"
)

var (
	reHeading    = regexp.MustCompile(`(?m)^#+ .*$`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	reCode       = regexp.MustCompile("`{1,3}[^`]+`{1,3}")
	reWhitespace = regexp.MustCompile(`\s+`)
)

const excerptMaxLength = 120

// excerpt derives a plain-text description from a markdown body: headings
// removed, links reduced to their text, images and code dropped, whitespace
// collapsed, cut at a word boundary.
func excerpt(markdown string) string {
	plain := reHeading.ReplaceAllString(markdown, "")
	plain = reImage.ReplaceAllString(plain, "")
	plain = reLink.ReplaceAllString(plain, "$1")
	plain = reCode.ReplaceAllString(plain, "")
	plain = reWhitespace.ReplaceAllString(plain, " ")
	plain = strings.TrimSpace(plain)

	runes := []rune(plain)
	if len(runes) <= excerptMaxLength {
		return plain
	}

	cut := string(runes[:excerptMaxLength])
	if idx := strings.LastIndex(cut, " "); idx > excerptMaxLength*8/10 {
		cut = cut[:idx]
	}
	return cut + "..."
}
