package blog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestLoader(t *testing.T) (*Loader, string, string) {
	t.Helper()
	postsDir := t.TempDir()
	thumbsDir := t.TempDir()
	l := NewLoader(postsDir, thumbsDir, "https://example.com/thumbs", false, zap.NewNop())
	l.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return l, postsDir, thumbsDir
}

func TestLoaderLoad(t *testing.T) {
	l, postsDir, _ := newTestLoader(t)

	writeFile(t, postsDir, "hello.md", `---
slug: hello
title: Hello World
published: true
date: 2024-05-01
category: dev
tags:
  - go
  - web
excerpt: A greeting.
title_de: Hallo Welt
---

Body text.
`)
	writeFile(t, postsDir, "draft.md", `---
slug: draft
title: Draft
published: false
date: 2024-05-02
---
`)
	writeFile(t, postsDir, "future.md", `---
slug: future
title: From The Future
published: true
date: 2030-01-01
---
`)
	writeFile(t, postsDir, "no-meta.md", "Just a body, no front matter.\n")
	writeFile(t, postsDir, "no-slug.md", `---
title: Missing Slug
published: true
date: 2024-05-03
---
`)

	posts, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}

	want := Post{
		Slug:      "hello",
		Title:     "Hello World",
		Date:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Published: true,
		Category:  "dev",
		Tags:      []string{"go", "web"},
		Excerpt:   "A greeting.",
		Filename:  "hello.md",
		Extra:     map[string]any{"title_de": "Hallo Welt"},
	}
	if diff := cmp.Diff(want, posts[0]); diff != "" {
		t.Errorf("post mismatch (-want +got):\n%s", diff)
	}
}

func TestLoaderKeepsUnparseableDate(t *testing.T) {
	l, postsDir, _ := newTestLoader(t)

	writeFile(t, postsDir, "odd.md", `---
slug: odd
title: Odd Date
published: true
date: someday soon
---
`)

	posts, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	if !posts[0].Date.IsZero() {
		t.Errorf("got date %v, want zero", posts[0].Date)
	}
}

func TestLoaderDebugKeepsFutureDates(t *testing.T) {
	postsDir := t.TempDir()
	l := NewLoader(postsDir, t.TempDir(), "https://example.com/thumbs", true, zap.NewNop())

	writeFile(t, postsDir, "future.md", `---
slug: future
title: From The Future
published: true
date: 2099-01-01
---
`)

	posts, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1 in debug mode", len(posts))
	}
}

func TestLoaderMissingDir(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "nope"), t.TempDir(), "", false, zap.NewNop())
	posts, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 0 {
		t.Errorf("got %d posts, want 0", len(posts))
	}
}

func TestLoaderResolvesImages(t *testing.T) {
	l, postsDir, thumbsDir := newTestLoader(t)

	writeFile(t, postsDir, "pics.md", `---
slug: pics
title: With Pictures
published: true
date: 2024-06-01
---
`)
	writeFile(t, thumbsDir, "pics.jpg", "jpg")
	writeFile(t, thumbsDir, "pics-hero.jpg", "jpg")

	writeFile(t, postsDir, "custom.md", `---
slug: custom
title: Custom Thumbnail
published: true
date: 2024-06-02
thumbnail_filename: banner.png
---
`)
	writeFile(t, thumbsDir, "banner.png", "png")

	posts, err := l.Load()
	if err != nil {
		t.Fatal(err)
	}
	byslug := map[string]Post{}
	for _, p := range posts {
		byslug[p.Slug] = p
	}

	pics := byslug["pics"]
	if pics.Thumbnail != "https://example.com/thumbs/pics.jpg" {
		t.Errorf("thumbnail = %q", pics.Thumbnail)
	}
	if pics.Hero != "https://example.com/thumbs/pics-hero.jpg" {
		t.Errorf("hero = %q", pics.Hero)
	}

	custom := byslug["custom"]
	if custom.Thumbnail != "https://example.com/thumbs/banner.png" {
		t.Errorf("thumbnail = %q", custom.Thumbnail)
	}
	if custom.Hero != "" {
		t.Errorf("hero = %q, want empty (banner-hero.png does not exist)", custom.Hero)
	}
}
