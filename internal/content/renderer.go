package content

import (
	"bytes"
	"fmt"
	"regexp"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// Renderer converts markdown bodies to HTML. One instance is built per
// build pass and shared across items; it holds no per-document state.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer constructs the markdown renderer: GFM, hard line breaks,
// server-side code highlighting, external links opening in new tabs.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(chromahtml.WithClasses(false)),
			),
		),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(&linkTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(),
		),
	)
	return &Renderer{md: md}
}

// Render converts a markdown body to HTML, including the figure treatment
// for standalone images.
func (r *Renderer) Render(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return wrapImages(buf.String()), nil
}

// linkTransformer makes every link open in a new tab.
type linkTransformer struct{}

func (t *linkTransformer) Transform(doc *gmast.Document, _ text.Reader, _ parser.Context) {
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if _, ok := n.(*gmast.Link); ok {
			n.SetAttributeString("target", []byte("_blank"))
			n.SetAttributeString("rel", []byte("noopener noreferrer"))
		}
		return gmast.WalkContinue, nil
	})
}

var (
	reStandaloneImage = regexp.MustCompile(`<p>(<img[^>]+>)</p>`)
	reImageAlt        = regexp.MustCompile(`alt="([^"]*)"`)
	reImgTag          = regexp.MustCompile(`<img`)
)

// wrapImages turns paragraph-level images into lazy-loading figures, using
// the alt text as caption when present.
func wrapImages(html string) string {
	return reStandaloneImage.ReplaceAllStringFunc(html, func(match string) string {
		img := reStandaloneImage.FindStringSubmatch(match)[1]
		lazy := reImgTag.ReplaceAllString(img, `<img loading="lazy" decoding="async"`)

		if alt := reImageAlt.FindStringSubmatch(img); alt != nil && alt[1] != "" {
			return `<figure class="image-container">` + lazy + `<figcaption>` + alt[1] + `</figcaption></figure>`
		}
		return `<figure class="image-container">` + lazy + `</figure>`
	})
}
