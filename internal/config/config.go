package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FeedConfig holds the per-language feed settings plus the shared
// channel-level fields.
type FeedConfig struct {
	// Titles, Descriptions and Links are keyed by language code, with an
	// optional "all" entry for the aggregated feed.
	Titles       map[string]string `mapstructure:"titles"`
	Descriptions map[string]string `mapstructure:"descriptions"`
	Links        map[string]string `mapstructure:"links"`

	Generator string `mapstructure:"generator"`
	Copyright string `mapstructure:"copyright"`

	// ImagePath is the channel image, relative to the site base URL.
	ImagePath string `mapstructure:"imagePath"`

	// BlogBaseURL is the absolute URL posts and feeds are linked under.
	BlogBaseURL string `mapstructure:"blogBaseURL"`

	// Amount caps the number of posts per feed.
	Amount int `mapstructure:"amount"`
}

type Config struct {
	Debug bool `mapstructure:"debug"`

	DataDir   string `mapstructure:"dataDir"`
	PostsDir  string `mapstructure:"postsDir"`
	ThumbsDir string `mapstructure:"thumbsDir"`

	SiteBaseURL   string `mapstructure:"siteBaseURL"`
	AssetsBaseURL string `mapstructure:"assetsBaseURL"`

	// Languages lists the available content languages, e.g. ["de", "en"].
	Languages []string `mapstructure:"languages"`

	Feed FeedConfig `mapstructure:"feed"`

	// AdminEmail receives comment notifications.
	AdminEmail string `mapstructure:"adminEmail"`

	// SMTP settings for comment notifications. Notifications fall back to
	// the log when no host is configured.
	SMTPHost string `mapstructure:"smtpHost"`
	SMTPPort string `mapstructure:"smtpPort"`
	SMTPUser string `mapstructure:"smtpUser"`
	SMTPPass string `mapstructure:"smtpPass"`
	SMTPFrom string `mapstructure:"smtpFrom"`

	// MaxAttempts is the abuse-counter ceiling shared with the login guard.
	MaxAttempts int `mapstructure:"maxAttempts"`

	// RedisAddr enables the Redis cache backend when non-empty.
	RedisAddr string `mapstructure:"redisAddr"`
}

// Load reads the YAML config file (if any), applies environment overrides
// with the CHARMBLOG_ prefix and fills in defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("debug", false)
	v.SetDefault("dataDir", "data")
	v.SetDefault("siteBaseURL", "http://localhost:8084")
	v.SetDefault("languages", []string{"en"})
	v.SetDefault("feed.generator", "charm-blog")
	v.SetDefault("feed.amount", 50)
	v.SetDefault("maxAttempts", 20)
	v.SetDefault("smtpPort", "587")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CHARMBLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SiteBaseURL = strings.TrimRight(cfg.SiteBaseURL, "/")
	if cfg.AssetsBaseURL == "" {
		cfg.AssetsBaseURL = cfg.SiteBaseURL + "/data/blog/assets"
	}
	if cfg.PostsDir == "" {
		cfg.PostsDir = filepath.Join(cfg.DataDir, "blog", "posts")
	}
	if cfg.ThumbsDir == "" {
		cfg.ThumbsDir = filepath.Join(cfg.DataDir, "blog", "thumbnails")
	}
	if cfg.Feed.BlogBaseURL == "" {
		cfg.Feed.BlogBaseURL = cfg.SiteBaseURL
	}

	return &cfg, nil
}

// HasLanguage reports whether lang is one of the configured languages.
func (c *Config) HasLanguage(lang string) bool {
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// FeedTitle returns the feed title for lang, falling back to the blog base
// URL when none is configured.
func (c *Config) FeedTitle(lang string) string {
	if t, ok := c.Feed.Titles[lang]; ok && t != "" {
		return t
	}
	return c.Feed.BlogBaseURL
}

// FeedDescription returns the feed description for lang.
func (c *Config) FeedDescription(lang string) string {
	if d, ok := c.Feed.Descriptions[lang]; ok && d != "" {
		return d
	}
	return c.Feed.BlogBaseURL
}

// FeedLink returns the blog link for lang.
func (c *Config) FeedLink(lang string) string {
	if l, ok := c.Feed.Links[lang]; ok && l != "" {
		return l
	}
	return c.Feed.BlogBaseURL
}
