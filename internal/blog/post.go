package blog

import (
	"time"
)

// Post holds the denormalized metadata of a single article, parsed from the
// front matter of its source file at cache-build time. A Post is immutable
// for the lifetime of one cache generation; rebuilds replace the whole set.
type Post struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Published bool      `json:"published"`
	Language  string    `json:"language,omitempty"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Filename  string    `json:"filename"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Hero      string    `json:"hero,omitempty"`

	// Extra carries front-matter keys without a dedicated field, e.g. the
	// per-language variants (title_de, excerpt_en) used by the feeds.
	Extra map[string]any `json:"extra,omitempty"`
}

// Field resolves a field by its front-matter name for the filter engine.
// Unknown names fall through to Extra; the second return value reports
// whether the field is present at all.
func (p Post) Field(name string) (any, bool) {
	switch name {
	case "slug":
		return p.Slug, true
	case "title":
		return p.Title, true
	case "date":
		return p.Date, true
	case "published":
		return p.Published, true
	case "language":
		return p.Language, true
	case "category":
		return p.Category, true
	case "tags":
		return p.Tags, true
	case "excerpt":
		return p.Excerpt, true
	case "filename":
		return p.Filename, true
	case "thumbnail":
		return p.Thumbnail, true
	case "hero":
		return p.Hero, true
	}
	v, ok := p.Extra[name]
	return v, ok
}

// Variant resolves a language-suffixed field variant ("title" + "_de") from
// Extra, falling back to the base field when the post carries no variant.
func (p Post) Variant(field, suffix string) string {
	if suffix != "" {
		if v, ok := p.Extra[field+suffix].(string); ok && v != "" {
			return v
		}
	}
	if v, ok := p.Field(field); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Snapshot is the unit of caching: the full post set keyed by slug plus the
// tag and category aggregates derived from it.
type Snapshot struct {
	Posts      map[string]Post `json:"posts"`
	Tags       map[string]int  `json:"tags"`
	Categories map[string]int  `json:"categories"`
}

// NewSnapshot builds a snapshot from a post list and derives the aggregates.
func NewSnapshot(posts []Post) Snapshot {
	snap := Snapshot{Posts: make(map[string]Post, len(posts))}
	for _, post := range posts {
		snap.Posts[post.Slug] = post
	}
	snap.Recount()
	return snap
}

// Recount rebuilds Tags and Categories from the current post set. It must be
// called after any change to Posts so the aggregates never drift.
func (s *Snapshot) Recount() {
	tags := make(map[string]int)
	categories := make(map[string]int)
	for _, post := range s.Posts {
		for _, tag := range post.Tags {
			tags[tag]++
		}
		if post.Category != "" {
			categories[post.Category]++
		}
	}
	s.Tags = tags
	s.Categories = categories
}
