package blog

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandCards(t *testing.T) {
	in := "before\n+---+\nInside the card.\n+---+\nafter"
	want := "before\n<div class=\"card\"><div class=\"card-body\" markdown=\"1\">Inside the card.</div></div>\nafter"
	if got := expandCards(in); got != want {
		t.Errorf("expandCards:\ngot  %q\nwant %q", got, want)
	}

	// An unterminated sentinel leaves the content alone.
	in = "before\n+---+\nno closer"
	if got := expandCards(in); got != in {
		t.Errorf("unterminated card changed content: %q", got)
	}
}

func TestRenderPipeline(t *testing.T) {
	r := NewRenderer(t.TempDir(), "https://example.com", "https://cdn.example.com/assets")

	out, err := r.Render(`## Section

![pic](*ASSETS*/pic.png)

Read [the docs](https://docs.example.org) or [about](/about).

` + "```\nls -la\n```\n")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`<h2 class="h2 mt-4">Section</h2>`,
		`<img class="img-fluid" src="https://cdn.example.com/assets/pic.png"`,
		`<a href="https://docs.example.org" target="_blank">`,
		`<a href="/about">`,
		`<pre class="line-numbers"><code class="language-shell">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBaseURLPlaceholder(t *testing.T) {
	r := NewRenderer(t.TempDir(), "https://example.com", "https://cdn.example.com")

	out, err := r.Render("See [all posts](*BASEURL*/blog).")
	if err != nil {
		t.Fatal(err)
	}
	// Substituted links point at the site itself and stay untouched by the
	// external-link hardening.
	if !strings.Contains(out, `<a href="https://example.com/blog">`) {
		t.Errorf("output missing substituted internal link:\n%s", out)
	}
}

func TestHardenLinks(t *testing.T) {
	base := "https://example.com"
	for _, tc := range []struct {
		name string
		in   string
		want string
	}{
		{
			name: "external gets target",
			in:   `<a href="https://other.org/page">x</a>`,
			want: `<a href="https://other.org/page" target="_blank">x</a>`,
		},
		{
			name: "existing target replaced",
			in:   `<a href="https://other.org" target="_self">x</a>`,
			want: `<a href="https://other.org" target="_blank">x</a>`,
		},
		{
			name: "own site untouched",
			in:   `<a href="https://example.com/about">x</a>`,
			want: `<a href="https://example.com/about">x</a>`,
		},
		{
			name: "root-relative untouched",
			in:   `<a href="/about">x</a>`,
			want: `<a href="/about">x</a>`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := hardenLinks(tc.in, base); got != tc.want {
				t.Errorf("got  %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestRawStripsFrontMatter(t *testing.T) {
	postsDir := t.TempDir()
	writeFile(t, postsDir, "hello.md", "---\nslug: hello\ntitle: Hello\n---\n\nThe body.\n")

	r := NewRenderer(postsDir, "", "")
	raw, err := r.Raw(Post{Filename: "hello.md"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(raw, "slug:") {
		t.Errorf("front matter not stripped: %q", raw)
	}
	if !strings.Contains(raw, "The body.") {
		t.Errorf("body missing: %q", raw)
	}
}

func TestRawMissingFile(t *testing.T) {
	r := NewRenderer(t.TempDir(), "", "")
	if _, err := r.Raw(Post{Filename: "nope.md"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got err %v, want ErrNotFound", err)
	}
}
