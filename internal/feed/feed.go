package feed

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"github.com/neoground/charm-blog/internal/blog"
	"github.com/neoground/charm-blog/internal/config"
	"github.com/neoground/charm-blog/internal/fsutil"
)

// ErrUnknownLanguage is returned for a feed language that is neither
// configured nor "all".
var ErrUnknownLanguage = errors.New("unknown feed language")

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomNS  string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Generator     string    `xml:"generator,omitempty"`
	Copyright     string    `xml:"copyright,omitempty"`
	Image         *rssImage `xml:"image,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	SelfLink      atomLink  `xml:"atom:link"`
	Language      string    `xml:"language"`
	Items         []rssItem `xml:"item"`
}

type rssImage struct {
	Link  string `xml:"link"`
	Title string `xml:"title"`
	URL   string `xml:"url"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string `xml:"title"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Category    string `xml:"category,omitempty"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
}

type entry struct {
	Title       string
	Link        string
	Category    string
	Description string
	Date        time.Time
}

// Generator projects the content store into per-language RSS documents. The
// output is deterministic for a given snapshot and clock.
type Generator struct {
	cfg    *config.Config
	outDir string
	logger *zap.Logger

	// Now stamps the lastBuildDate.
	Now func() time.Time
}

func NewGenerator(cfg *config.Config, outDir string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, outDir: outDir, logger: logger, Now: time.Now}
}

// Generate renders the RSS 2.0 document for one language, or for "all"
// languages with one entry per configured language per post.
func (g *Generator) Generate(store *blog.Store, lang string) ([]byte, error) {
	if lang != "all" && !g.cfg.HasLanguage(lang) {
		return nil, ErrUnknownLanguage
	}

	doc := rssDocument{
		Version: "2.0",
		AtomNS:  "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         g.cfg.FeedTitle(lang),
			Link:          g.cfg.FeedLink(lang),
			Description:   g.cfg.FeedDescription(lang),
			Generator:     g.cfg.Feed.Generator,
			Copyright:     g.cfg.Feed.Copyright,
			LastBuildDate: g.Now().Format(time.RFC1123Z),
			SelfLink: atomLink{
				Href: g.cfg.Feed.BlogBaseURL + "/feed/" + lang,
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Language: lang,
		},
	}
	if g.cfg.Feed.ImagePath != "" {
		doc.Channel.Image = &rssImage{
			Link:  g.cfg.Feed.BlogBaseURL,
			Title: g.cfg.FeedTitle(lang),
			URL:   g.cfg.SiteBaseURL + "/" + g.cfg.Feed.ImagePath,
		}
	}

	for _, e := range g.entries(store, lang) {
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       e.Title,
			GUID:        e.Link,
			PubDate:     e.Date.Format(time.RFC1123Z),
			Category:    e.Category,
			Link:        e.Link,
			Description: e.Description,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// WriteFile regenerates the feed file for one language. Any prior file at
// the path is removed first, so regeneration is idempotent.
func (g *Generator) WriteFile(store *blog.Store, lang string) error {
	data, err := g.Generate(store, lang)
	if err != nil {
		return err
	}

	path := g.Path(lang)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := fsutil.AtomicWriteFile(path, data, 0o644); err != nil {
		return err
	}
	g.logger.Info("feed written", zap.String("lang", lang), zap.String("path", path))
	return nil
}

// WriteAll regenerates the feed files for every configured language plus the
// aggregated "all" feed.
func (g *Generator) WriteAll(store *blog.Store) error {
	for _, lang := range append(append([]string{}, g.cfg.Languages...), "all") {
		if err := g.WriteFile(store, lang); err != nil {
			return err
		}
	}
	return nil
}

// WriteAtom emits an Atom variant of the feed next to the RSS file.
func (g *Generator) WriteAtom(store *blog.Store, lang string) error {
	if lang != "all" && !g.cfg.HasLanguage(lang) {
		return ErrUnknownLanguage
	}

	f := &feeds.Feed{
		Title:       g.cfg.FeedTitle(lang),
		Link:        &feeds.Link{Href: g.cfg.FeedLink(lang)},
		Description: g.cfg.FeedDescription(lang),
		Copyright:   g.cfg.Feed.Copyright,
		Created:     g.Now(),
	}
	for _, e := range g.entries(store, lang) {
		f.Items = append(f.Items, &feeds.Item{
			Title:       e.Title,
			Link:        &feeds.Link{Href: e.Link},
			Description: e.Description,
			Created:     e.Date,
		})
	}

	out, err := f.ToAtom()
	if err != nil {
		return err
	}

	path := filepath.Join(g.outDir, "feed_"+lang+".atom.xml")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return fsutil.AtomicWriteFile(path, []byte(out), 0o644)
}

// Path returns the deterministic output path for one language's feed file.
func (g *Generator) Path(lang string) string {
	return filepath.Join(g.outDir, "feed_"+lang+".xml")
}

// entries selects the most recent posts (capped by the configured amount)
// and expands them into feed entries, one per post for a single language or
// one per configured language per post for "all".
func (g *Generator) entries(store *blog.Store, lang string) []entry {
	posts := store.All()
	if max := g.cfg.Feed.Amount; max > 0 && len(posts) > max {
		posts = posts[:max]
	}

	var result []entry
	for _, post := range posts {
		if !post.Published {
			continue
		}
		if lang != "all" {
			result = append(result, g.entryFor(post, "_"+lang))
			continue
		}
		for _, l := range g.cfg.Languages {
			result = append(result, g.entryFor(post, "_"+l))
		}
	}
	return result
}

func (g *Generator) entryFor(post blog.Post, suffix string) entry {
	slug := post.Variant("slug", suffix)
	return entry{
		Title:       post.Variant("title", suffix),
		Link:        g.cfg.Feed.BlogBaseURL + "/" + slug + "?utm_src=rss",
		Category:    post.Variant("category", suffix),
		Description: post.Variant("excerpt", suffix),
		Date:        post.Date,
	}
}
