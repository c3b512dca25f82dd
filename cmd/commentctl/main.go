package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/neoground/charm-blog/internal/comments"
	"github.com/neoground/charm-blog/internal/config"
	"github.com/neoground/charm-blog/internal/kv"
	"github.com/neoground/charm-blog/internal/notify"
)

func main() {
	cfgFile := flag.String("config", "", "Path to the config file (default: ./config.yaml)")
	slug := flag.String("slug", "", "Post slug to operate on")
	action := flag.String("action", "list", "One of: list, approve, remove, removeblock, backup, restore, blocklist")
	id := flag.String("id", "", "Comment id (for approve/remove/removeblock)")
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

	var notifier notify.Notifier = &notify.LogNotifier{Logger: logger}
	if cfg.SMTPHost != "" {
		notifier = &notify.Mailer{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
			To:   cfg.AdminEmail,
		}
	}

	guard := comments.NewGuard(store, cfg.MaxAttempts, logger)
	cs := comments.NewStore(store, guard, comments.DefaultPolicy(), notifier,
		filepath.Join(cfg.DataDir, "blog", "comments"), logger)

	ctx := context.Background()

	if *action != "blocklist" && *slug == "" {
		log.Fatal("-slug is required")
	}

	switch *action {
	case "list":
		list, err := cs.List(ctx, *slug)
		if err != nil {
			logger.Fatal("failed to list comments", zap.Error(err))
		}
		for _, c := range list {
			state := "pending"
			if c.Approved {
				state = "approved"
			}
			fmt.Printf("%s  %s  %-8s  %s: %s\n",
				c.ID, c.CreatedAt.Format("2006-01-02 15:04"), state, c.Name, c.Msg)
		}

	case comments.ActionApprove, comments.ActionRemove, comments.ActionRemoveBlock:
		if *id == "" {
			log.Fatal("-id is required")
		}
		if !cs.Moderate(ctx, *slug, *id, *action) {
			fmt.Fprintln(os.Stderr, "moderation failed")
			os.Exit(1)
		}
		fmt.Println("ok")

	case "backup":
		if err := cs.Backup(ctx, *slug); err != nil {
			logger.Fatal("backup failed", zap.Error(err))
		}
		fmt.Println("ok")

	case "restore":
		if err := cs.Restore(ctx, *slug); err != nil {
			logger.Fatal("restore failed", zap.Error(err))
		}
		fmt.Println("ok")

	case "blocklist":
		for _, ip := range cs.Blocklist(ctx) {
			fmt.Println(ip)
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}
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
