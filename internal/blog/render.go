package blog

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	cardRe   = regexp.MustCompile(`(?s)\+---\+\r?\n(.*?)\r?\n\+---\+`)
	anchorRe = regexp.MustCompile(`(?i)<a\s+([^>]*?href=["'])([^"'>]+)(["'][^>]*?)>`)
	targetRe = regexp.MustCompile(`\s*target=["'][^"'>]*["']`)
)

// classReplacer adds the presentation classes expected by the site theme.
// The mapping is fixed and not configurable.
var classReplacer = strings.NewReplacer(
	"<h2>", `<h2 class="h2 mt-4">`,
	"<h3>", `<h3 class="h3 mt-4">`,
	"<h4>", `<h4 class="h4 mt-4">`,
	"<h5>", `<h5 class="h5 mt-4">`,
	"<pre>", `<pre class="line-numbers">`,
	"<code>", `<code class="language-shell">`,
	"<table>", `<table class="table table-striped">`,
	"<img src", `<img class="img-fluid" src`,
)

// Renderer turns the raw markdown body of a post into display-ready HTML:
// card-block expansion, markdown conversion, class injection, placeholder
// substitution and external-link hardening, in that order.
type Renderer struct {
	postsDir  string
	baseURL   string
	assetsURL string
	md        goldmark.Markdown
}

func NewRenderer(postsDir, baseURL, assetsURL string) *Renderer {
	return &Renderer{
		postsDir:  postsDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		assetsURL: strings.TrimRight(assetsURL, "/"),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAttribute()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Raw returns the markdown body of a post with the front matter stripped.
// A missing source file is ErrNotFound.
func (r *Renderer) Raw(post Post) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.postsDir, post.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	meta := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		// No parseable front matter, treat the whole file as body.
		return string(data), nil
	}
	return string(body), nil
}

// RenderPost loads a post's body and runs the full pipeline. No partial HTML
// is returned on failure.
func (r *Renderer) RenderPost(post Post) (string, error) {
	raw, err := r.Raw(post)
	if err != nil {
		return "", err
	}
	return r.Render(raw)
}

// Render runs the transformation pipeline over a raw markdown body.
func (r *Renderer) Render(raw string) (string, error) {
	if strings.Contains(raw, "+---+") {
		raw = expandCards(raw)
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(raw), &buf); err != nil {
		return "", err
	}

	out := classReplacer.Replace(buf.String())
	out = strings.ReplaceAll(out, "*ASSETS*", r.assetsURL)
	out = strings.ReplaceAll(out, "*BASEURL*", r.baseURL)
	return hardenLinks(out, r.baseURL), nil
}

// expandCards replaces a region bounded by "+---+" sentinel lines with a
// wrapping card container. Un-terminated sentinels leave the content
// unchanged.
func expandCards(markdown string) string {
	return cardRe.ReplaceAllString(markdown,
		`<div class="card"><div class="card-body" markdown="1">$1</div></div>`)
}

// hardenLinks injects target="_blank" into every anchor whose href does not
// point at the site itself or a root-relative path. A pre-existing target
// attribute is replaced, never duplicated.
func hardenLinks(content, baseURL string) string {
	return anchorRe.ReplaceAllStringFunc(content, func(tag string) string {
		m := anchorRe.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		href := m[2]
		if (baseURL != "" && strings.HasPrefix(href, baseURL)) || strings.HasPrefix(href, "/") {
			return tag
		}
		if strings.Contains(tag, " target=") {
			return targetRe.ReplaceAllString(tag, ` target="_blank"`)
		}
		return "<a " + m[1] + m[2] + m[3] + ` target="_blank">`
	})
}
