package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `debug: true
dataDir: /srv/blog
siteBaseURL: https://example.com/
languages:
  - en
  - de
feed:
  titles:
    en: Example Blog
  blogBaseURL: https://example.com/blog
  amount: 10
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Debug {
		t.Error("debug not set")
	}
	if cfg.SiteBaseURL != "https://example.com" {
		t.Errorf("siteBaseURL = %q, want trailing slash trimmed", cfg.SiteBaseURL)
	}
	if want := filepath.Join("/srv/blog", "blog", "posts"); cfg.PostsDir != want {
		t.Errorf("postsDir = %q, want %q", cfg.PostsDir, want)
	}
	if want := filepath.Join("/srv/blog", "blog", "thumbnails"); cfg.ThumbsDir != want {
		t.Errorf("thumbsDir = %q, want %q", cfg.ThumbsDir, want)
	}
	if cfg.AssetsBaseURL != "https://example.com/data/blog/assets" {
		t.Errorf("assetsBaseURL = %q", cfg.AssetsBaseURL)
	}
	if cfg.Feed.Amount != 10 {
		t.Errorf("feed.amount = %d, want 10", cfg.Feed.Amount)
	}
	if !cfg.HasLanguage("de") || cfg.HasLanguage("fr") {
		t.Error("HasLanguage mismatch")
	}
}

func TestLoadDefaults(t *testing.T) {
	// An explicitly named file must exist.
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("no error for explicitly named missing file")
	}

	// Without an explicit file the defaults apply.
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxAttempts != 20 {
		t.Errorf("maxAttempts = %d, want 20", cfg.MaxAttempts)
	}
	if cfg.Feed.Amount != 50 {
		t.Errorf("feed.amount = %d, want 50", cfg.Feed.Amount)
	}
	if cfg.Feed.Generator != "charm-blog" {
		t.Errorf("feed.generator = %q", cfg.Feed.Generator)
	}
}

func TestFeedFallbacks(t *testing.T) {
	cfg := &Config{
		Feed: FeedConfig{
			Titles:      map[string]string{"en": "Example Blog"},
			BlogBaseURL: "https://example.com/blog",
		},
	}

	if got := cfg.FeedTitle("en"); got != "Example Blog" {
		t.Errorf("FeedTitle(en) = %q", got)
	}
	if got := cfg.FeedTitle("de"); got != "https://example.com/blog" {
		t.Errorf("FeedTitle(de) = %q, want base url fallback", got)
	}
	if got := cfg.FeedDescription("en"); got != "https://example.com/blog" {
		t.Errorf("FeedDescription(en) = %q, want base url fallback", got)
	}
	if got := cfg.FeedLink("all"); got != "https://example.com/blog" {
		t.Errorf("FeedLink(all) = %q, want base url fallback", got)
	}
}
