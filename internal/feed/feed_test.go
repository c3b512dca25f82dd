package feed

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/neoground/charm-blog/internal/blog"
	"github.com/neoground/charm-blog/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		SiteBaseURL: "https://example.com",
		Languages:   []string{"en", "de"},
		Feed: config.FeedConfig{
			Titles:       map[string]string{"en": "Example Blog", "de": "Beispiel-Blog"},
			Descriptions: map[string]string{"en": "News and notes", "de": "Neuigkeiten"},
			Generator:    "charm-blog",
			Copyright:    "© Example",
			ImagePath:    "logo.png",
			BlogBaseURL:  "https://example.com/blog",
			Amount:       50,
		},
	}
}

func testPosts() *blog.Store {
	return blog.NewStore(blog.NewSnapshot([]blog.Post{
		{
			Slug:      "hello",
			Title:     "Hello World",
			Date:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Published: true,
			Category:  "dev",
			Excerpt:   "A greeting.",
			Extra: map[string]any{
				"title_de":   "Hallo Welt",
				"excerpt_de": "Ein Gruß.",
			},
		},
		{
			Slug:      "second",
			Title:     "Second Post",
			Date:      time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			Published: true,
			Category:  "dev",
			Excerpt:   "More words.",
		},
	}))
}

func TestGenerateUnknownLanguage(t *testing.T) {
	g := NewGenerator(testConfig(), t.TempDir(), zap.NewNop())
	if _, err := g.Generate(testPosts(), "fr"); !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("got err %v, want ErrUnknownLanguage", err)
	}
	if err := g.WriteAtom(testPosts(), "fr"); !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("atom: got err %v, want ErrUnknownLanguage", err)
	}
}

func TestGenerateLanguageVariants(t *testing.T) {
	g := NewGenerator(testConfig(), t.TempDir(), zap.NewNop())
	g.Now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }

	data, err := g.Generate(testPosts(), "de")
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		"<title>Beispiel-Blog</title>",
		"<title>Hallo Welt</title>",
		"<description>Ein Gruß.</description>",
		// Posts without a variant fall back to the base fields.
		"<title>Second Post</title>",
		"?utm_src=rss",
		`rel="self"`,
		"<url>https://example.com/logo.png</url>",
		"<language>de</language>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q:\n%s", want, out)
		}
	}
}

func TestGenerateAllFansOut(t *testing.T) {
	g := NewGenerator(testConfig(), t.TempDir(), zap.NewNop())

	data, err := g.Generate(testPosts(), "all")
	if err != nil {
		t.Fatal(err)
	}
	// One entry per configured language per post.
	if got := strings.Count(string(data), "<item>"); got != 4 {
		t.Errorf("got %d items in all-feed, want 4", got)
	}
}

func TestGenerateRespectsAmount(t *testing.T) {
	cfg := testConfig()
	cfg.Feed.Amount = 1
	g := NewGenerator(cfg, t.TempDir(), zap.NewNop())

	data, err := g.Generate(testPosts(), "en")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "<item>"); got != 1 {
		t.Errorf("got %d items, want 1", got)
	}
	// The cap keeps the most recent post.
	if !strings.Contains(string(data), "<title>Second Post</title>") {
		t.Error("capped feed dropped the most recent post")
	}
}

func TestWriteFile(t *testing.T) {
	outDir := t.TempDir()
	g := NewGenerator(testConfig(), outDir, zap.NewNop())

	if err := g.WriteFile(testPosts(), "en"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(g.Path("en"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "<?xml") {
		t.Errorf("feed file missing xml header: %q", string(data[:40]))
	}

	// Regeneration replaces the prior file.
	if err := g.WriteFile(testPosts(), "en"); err != nil {
		t.Fatal(err)
	}
}

func TestWriteAll(t *testing.T) {
	outDir := t.TempDir()
	g := NewGenerator(testConfig(), outDir, zap.NewNop())

	if err := g.WriteAll(testPosts()); err != nil {
		t.Fatal(err)
	}
	for _, lang := range []string{"en", "de", "all"} {
		if _, err := os.Stat(g.Path(lang)); err != nil {
			t.Errorf("missing feed for %q: %v", lang, err)
		}
	}
}

func TestWriteAtom(t *testing.T) {
	outDir := t.TempDir()
	g := NewGenerator(testConfig(), outDir, zap.NewNop())

	if err := g.WriteAtom(testPosts(), "en"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(outDir + "/feed_en.atom.xml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<feed") {
		t.Error("atom file missing feed element")
	}
}
