package blog

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("post not found")
	ErrInvalidPage = errors.New("page number must be at least 1")
)

// Filter operators.
const (
	OpEquals   = "equals"
	OpContains = "contains"
)

// Observed limits for the aggregate listings.
const (
	DefaultTagLimit      = 30
	DefaultCategoryLimit = 10
)

// NamedCount is one entry of a tag or category aggregate.
type NamedCount struct {
	Name  string
	Count int
}

// Store is a filterable, sortable view over one content snapshot. Filtering
// derives a new Store; the wrapped snapshot is never mutated, so the cached
// original stays reusable by independent requests.
type Store struct {
	snap Snapshot
}

func NewStore(snap Snapshot) *Store {
	return &Store{snap: snap}
}

// Snapshot exposes the wrapped snapshot, e.g. for the feed generator.
func (s *Store) Snapshot() Snapshot {
	return s.snap
}

func (s *Store) Len() int {
	return len(s.snap.Posts)
}

func (s *Store) Has(slug string) bool {
	_, ok := s.snap.Posts[slug]
	return ok
}

func (s *Store) Get(slug string) (Post, bool) {
	post, ok := s.snap.Posts[slug]
	return post, ok
}

// All returns every post, most recent first.
func (s *Store) All() []Post {
	return s.sorted("date", false)
}

// Filter derives a new Store keeping only posts that match. OpEquals keeps
// posts whose field is exactly equal to value; OpContains keeps posts whose
// field is a set containing value. Posts without the field never match.
// Aggregates are recounted on the derived snapshot.
func (s *Store) Filter(field, operator string, value any) *Store {
	filtered := make(map[string]Post, len(s.snap.Posts))
	for slug, post := range s.snap.Posts {
		v, ok := post.Field(field)
		if !ok {
			continue
		}
		switch operator {
		case OpEquals:
			if reflect.DeepEqual(v, value) {
				filtered[slug] = post
			}
		case OpContains:
			if fieldContains(v, value) {
				filtered[slug] = post
			}
		}
	}

	snap := Snapshot{Posts: filtered}
	snap.Recount()
	return &Store{snap: snap}
}

func fieldContains(v, target any) bool {
	switch set := v.(type) {
	case []string:
		s, ok := target.(string)
		if !ok {
			return false
		}
		for _, item := range set {
			if item == s {
				return true
			}
		}
	case []any:
		for _, item := range set {
			if reflect.DeepEqual(item, target) {
				return true
			}
		}
	}
	return false
}

// PageOf returns the posts of one page, sorted by orderBy with the title as
// stable tie-break. orderBy defaults to "date", orderDir to "desc" (the
// direction token is case-insensitive). A page below 1 is an error; a page
// beyond the end returns whatever remains, possibly nothing.
func (s *Store) PageOf(page, perPage int, orderBy, orderDir string) ([]Post, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if orderBy == "" {
		orderBy = "date"
	}
	asc := strings.ToLower(orderDir) == "asc"

	posts := s.sorted(orderBy, asc)
	start := (page - 1) * perPage
	if start >= len(posts) {
		return []Post{}, nil
	}
	end := start + perPage
	if end > len(posts) {
		end = len(posts)
	}
	return posts[start:end], nil
}

// TotalPages reports how many pages the store spans, at least 1.
func (s *Store) TotalPages(perPage int) int {
	total := len(s.snap.Posts)
	if perPage < 1 || total <= perPage {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// TopTags returns the tag aggregate sorted by descending count, ties broken
// by name, capped at limit.
func (s *Store) TopTags(limit int) []NamedCount {
	return topCounts(s.snap.Tags, limit)
}

// TopCategories returns the category aggregate sorted by descending count,
// capped at limit.
func (s *Store) TopCategories(limit int) []NamedCount {
	return topCounts(s.snap.Categories, limit)
}

func topCounts(counts map[string]int, limit int) []NamedCount {
	result := make([]NamedCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, NamedCount{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// RecommendationsFor suggests up to amount posts for a slug: other posts of
// the same category first (most recent first), backfilled with the most
// recent posts overall. The target itself is never suggested.
func (s *Store) RecommendationsFor(slug string, amount int) []Post {
	target, ok := s.snap.Posts[slug]
	if !ok {
		return nil
	}

	recent := s.sorted("date", false)
	seen := map[string]bool{slug: true}
	var recs []Post

	for _, post := range recent {
		if len(recs) >= amount {
			return recs
		}
		if post.Category == target.Category && !seen[post.Slug] {
			seen[post.Slug] = true
			recs = append(recs, post)
		}
	}
	for _, post := range recent {
		if len(recs) >= amount {
			return recs
		}
		if !seen[post.Slug] {
			seen[post.Slug] = true
			recs = append(recs, post)
		}
	}
	return recs
}

func (s *Store) sorted(field string, asc bool) []Post {
	posts := make([]Post, 0, len(s.snap.Posts))
	for _, post := range s.snap.Posts {
		posts = append(posts, post)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		c := comparePosts(posts[i], posts[j], field)
		if c == 0 {
			return strings.ToLower(posts[i].Title) < strings.ToLower(posts[j].Title)
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
	return posts
}

func comparePosts(a, b Post, field string) int {
	if field == "date" {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		default:
			return 0
		}
	}

	av, _ := a.Field(field)
	bv, _ := b.Field(field)
	return strings.Compare(
		strings.ToLower(fmt.Sprint(av)),
		strings.ToLower(fmt.Sprint(bv)),
	)
}
