package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultDSN keeps the database next to the binary. Times are written in
// SQLite's native format so date ordering and date filters work in SQL.
const DefaultDSN = "file:bookmarks.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		Driver string
		DSN    string
	}
	Download struct {
		Limit int
	}
	Cache struct {
		Kind string // memory, file or redis
		Dir  string
		TTL  time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Sync struct {
		Feed     string
		Outbox   string
		Schedule string
	}
	Log struct {
		Level  string
		Pretty bool
	}
}

// Load reads config from environment (BOOKMARKS_ prefix) and an optional
// bookmarks.yaml in the working directory, or from path when it is set.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKMARKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("bookmarks")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", DefaultDSN)
	v.SetDefault("download.limit", 3)
	v.SetDefault("cache.kind", "memory")
	v.SetDefault("cache.dir", "thumbnails")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("sync.schedule", "@every 5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.Download.Limit = v.GetInt("download.limit")
	cfg.Cache.Kind = v.GetString("cache.kind")
	cfg.Cache.Dir = v.GetString("cache.dir")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Sync.Feed = v.GetString("sync.feed")
	cfg.Sync.Outbox = v.GetString("sync.outbox")
	cfg.Sync.Schedule = v.GetString("sync.schedule")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Pretty = v.GetBool("log.pretty")

	ttl, err := time.ParseDuration(v.GetString("cache.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKMARKS_CACHE_TTL: %w", err)
	}
	cfg.Cache.TTL = ttl

	switch cfg.DB.Driver {
	case "sqlite3", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("BOOKMARKS_DB_DRIVER must be sqlite3, mysql, or postgres, got %q", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("BOOKMARKS_DB_DSN is required")
	}
	if cfg.Download.Limit < 1 {
		return nil, fmt.Errorf("BOOKMARKS_DOWNLOAD_LIMIT must be at least 1, got %d", cfg.Download.Limit)
	}
	switch cfg.Cache.Kind {
	case "memory", "file", "redis":
	default:
		return nil, fmt.Errorf("BOOKMARKS_CACHE_KIND must be memory, file, or redis, got %q", cfg.Cache.Kind)
	}
	if cfg.Sync.Outbox == "" && cfg.Sync.Feed != "" {
		cfg.Sync.Outbox = cfg.Sync.Feed + ".outbox.yaml"
	}

	return cfg, nil
}
