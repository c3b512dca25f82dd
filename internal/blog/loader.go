package blog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"go.uber.org/zap"
)

// Loader reads the posts directory and turns front-matter-tagged source
// files into Post metadata. Files with empty or unparseable front matter and
// unpublished posts are skipped silently; a single bad file never fails the
// whole scan.
type Loader struct {
	postsDir  string
	thumbsDir string
	thumbsURL string
	debug     bool
	logger    *zap.Logger

	// Now is the clock used for future-date suppression.
	Now func() time.Time
}

func NewLoader(postsDir, thumbsDir, thumbsURL string, debug bool, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		postsDir:  postsDir,
		thumbsDir: thumbsDir,
		thumbsURL: strings.TrimRight(thumbsURL, "/"),
		debug:     debug,
		logger:    logger,
		Now:       time.Now,
	}
}

// Load scans the posts directory in reverse-filename order. A missing
// directory yields an empty result, not an error.
func (l *Loader) Load() ([]Post, error) {
	entries, err := os.ReadDir(l.postsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() > entries[j].Name()
	})

	var posts []Post
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		post, ok := l.loadFile(entry.Name())
		if ok {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (l *Loader) loadFile(name string) (Post, bool) {
	f, err := os.Open(filepath.Join(l.postsDir, name))
	if err != nil {
		l.logger.Warn("failed to open post file", zap.String("file", name), zap.Error(err))
		return Post{}, false
	}
	defer f.Close()

	meta := map[string]any{}
	if _, err := frontmatter.Parse(f, &meta); err != nil || len(meta) == 0 {
		l.logger.Debug("skipping post with empty or invalid front matter", zap.String("file", name))
		return Post{}, false
	}

	published, _ := meta["published"].(bool)
	if !published {
		return Post{}, false
	}

	date, parsed := parseDate(meta["date"])
	if !l.debug && parsed && date.After(l.Now()) {
		// Hide published posts from the future on prod. Unparseable dates
		// deliberately fall through this gate: they are treated as "not
		// future" and the post is kept.
		return Post{}, false
	}

	slug := stringValue(meta, "slug")
	if slug == "" {
		l.logger.Warn("skipping post without slug", zap.String("file", name))
		return Post{}, false
	}

	post := Post{
		Slug:      slug,
		Title:     stringValue(meta, "title"),
		Date:      date,
		Published: true,
		Language:  stringValue(meta, "language"),
		Category:  stringValue(meta, "category"),
		Tags:      stringSlice(meta["tags"]),
		Excerpt:   stringValue(meta, "excerpt"),
		Filename:  name,
	}
	post.Thumbnail, post.Hero = l.resolveImages(name, meta)

	extra := make(map[string]any)
	for key, value := range meta {
		switch key {
		case "slug", "title", "date", "published", "language", "category",
			"tags", "excerpt", "thumbnail_filename", "hero_filename":
			continue
		}
		extra[key] = normalizeYAML(value)
	}
	if len(extra) > 0 {
		post.Extra = extra
	}

	return post, true
}

// resolveImages derives the thumbnail and hero URLs. An explicit
// thumbnail_filename/hero_filename wins; otherwise the names are derived
// from the source filename. A missing file on disk leaves the URL empty.
func (l *Loader) resolveImages(name string, meta map[string]any) (thumbnail, hero string) {
	thumbName := stringValue(meta, "thumbnail_filename")
	if thumbName == "" {
		thumbName = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	}
	if fileExists(filepath.Join(l.thumbsDir, thumbName)) {
		thumbnail = l.thumbsURL + "/" + thumbName
	}

	heroName := stringValue(meta, "hero_filename")
	if heroName == "" {
		ext := filepath.Ext(thumbName)
		heroName = strings.TrimSuffix(thumbName, ext) + "-hero" + ext
	}
	if fileExists(filepath.Join(l.thumbsDir, heroName)) {
		hero = l.thumbsURL + "/" + heroName
	}
	return thumbnail, hero
}

// parseDate accepts the date formats seen in front matter. The second return
// value reports whether the date could be parsed; callers treat an
// unparseable date as "not in the future".
func parseDate(v any) (time.Time, bool) {
	switch value := v.(type) {
	case time.Time:
		return value, true
	case string:
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02 15:04",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, value); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func stringValue(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var result []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// normalizeYAML converts the map[interface{}]interface{} values produced by
// the YAML decoder into map[string]any so the snapshot stays JSON-encodable.
func normalizeYAML(v any) any {
	switch value := v.(type) {
	case map[any]any:
		result := make(map[string]any, len(value))
		for key, item := range value {
			if k, ok := key.(string); ok {
				result[k] = normalizeYAML(item)
			}
		}
		return result
	case []any:
		result := make([]any, len(value))
		for i, item := range value {
			result[i] = normalizeYAML(item)
		}
		return result
	default:
		return v
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
