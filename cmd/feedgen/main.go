package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/neoground/charm-blog/internal/blog"
	"github.com/neoground/charm-blog/internal/config"
	"github.com/neoground/charm-blog/internal/feed"
	"github.com/neoground/charm-blog/internal/kv"
)

func main() {
	cfgFile := flag.String("config", "", "Path to the config file (default: ./config.yaml)")
	lang := flag.String("lang", "", "Generate only this language (default: every configured language plus \"all\")")
	atom := flag.Bool("atom", false, "Also write Atom variants")
	rebuild := flag.Bool("rebuild", false, "Invalidate the cached snapshot before generating")
	watch := flag.Bool("watch", false, "Keep running and regenerate feeds when post files change")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	store, err := openKV(cfg)
	if err != nil {
		logger.Fatal("failed to open cache store", zap.Error(err))
	}

	loader := blog.NewLoader(cfg.PostsDir, cfg.ThumbsDir,
		cfg.SiteBaseURL+"/data/blog/thumbnails", cfg.Debug, logger)
	cache := blog.NewCache(loader, store,
		filepath.Join(cfg.DataDir, "blog_posts.cache"), cfg.Debug, logger)

	ctx := context.Background()
	if *rebuild {
		if err := cache.Invalidate(ctx); err != nil {
			logger.Fatal("failed to invalidate snapshot", zap.Error(err))
		}
	}

	snap, err := cache.Snapshot(ctx)
	if err != nil {
		logger.Fatal("failed to build snapshot", zap.Error(err))
	}
	posts := blog.NewStore(snap)

	gen := feed.NewGenerator(cfg, filepath.Join(cfg.DataDir, "blog"), logger)

	langs := append(append([]string{}, cfg.Languages...), "all")
	if *lang != "" {
		langs = []string{*lang}
	}
	if err := writeFeeds(gen, posts, langs, *atom); err != nil {
		logger.Fatal("failed to write feeds", zap.Error(err))
	}
	logger.Info("feeds generated", zap.Int("posts", posts.Len()), zap.Strings("languages", langs))

	if *watch {
		logger.Info("watching for post changes", zap.String("dir", cfg.PostsDir))
		err := cache.Watch(ctx, cfg.PostsDir, func() {
			snap, err := cache.Snapshot(ctx)
			if err != nil {
				logger.Error("failed to rebuild snapshot", zap.Error(err))
				return
			}
			regenerated := blog.NewStore(snap)
			if err := writeFeeds(gen, regenerated, langs, *atom); err != nil {
				logger.Error("failed to rewrite feeds", zap.Error(err))
				return
			}
			logger.Info("feeds regenerated", zap.Int("posts", regenerated.Len()))
		})
		if err != nil {
			logger.Fatal("watcher stopped", zap.Error(err))
		}
	}
}

func writeFeeds(gen *feed.Generator, posts *blog.Store, langs []string, atom bool) error {
	for _, l := range langs {
		if err := gen.WriteFile(posts, l); err != nil {
			return fmt.Errorf("feed %s: %w", l, err)
		}
		if atom {
			if err := gen.WriteAtom(posts, l); err != nil {
				return fmt.Errorf("atom feed %s: %w", l, err)
			}
		}
	}
	return nil
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func openKV(cfg *config.Config) (kv.Store, error) {
	if cfg.RedisAddr != "" {
		return kv.NewRedis(cfg.RedisAddr), nil
	}
	return kv.NewSQLite(filepath.Join(cfg.DataDir, "cache.db"))
}
