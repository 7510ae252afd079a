package server

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/victornm/dramquiz/internal/game"
)

const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
	SourceMongo    = "mongo"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	LedgerNone     = "none"
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level  string
		Format string
	}

	Redis struct {
		// Cache holds question pools and the items each player has seen.
		Cache       RedisConfig
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
		// Migrate applies pending migrations before connecting.
		Migrate bool
	}

	Mongo struct {
		URI        string
		Database   string
		Collection string
	}

	SQLite struct {
		Path string
	}

	Questions struct {
		// Source is static, postgres or mongo.
		Source string
		// Catalog is the YAML file of the static source.
		Catalog  string
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	}

	Seen struct {
		Limit int
		TTL   time.Duration
	}

	Record struct {
		// Store is memory, sqlite or postgres.
		Store string
		// Ledger is none, memory or postgres.
		Ledger          string
		MaxAttempts     int           `mapstructure:"max_attempts"`
		InitialInterval time.Duration `mapstructure:"initial_interval"`
		MaxInterval     time.Duration `mapstructure:"max_interval"`
	}

	Session struct {
		// TTL is how long an untouched session stays in memory.
		TTL             time.Duration
		JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	}

	Modes map[string]game.ModeSettings
}

// DefaultConfig is what Load starts from before reading the file.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Redis.Cache = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "dramquiz"}
	c.Redis.Leaderboard = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "dramquiz"}
	c.Redis.Pubsub = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "dramquiz"}
	c.Mongo.Database = "dramquiz"
	c.Mongo.Collection = "questions"
	c.SQLite.Path = "dramquiz.db"
	c.Questions.Source = SourceStatic
	c.Questions.Catalog = "config/catalog.yaml"
	c.Questions.CacheTTL = 5 * time.Minute
	c.Seen.Limit = 200
	c.Seen.TTL = 30 * 24 * time.Hour
	c.Record.Store = StoreMemory
	c.Record.Ledger = LedgerMemory
	c.Record.MaxAttempts = 5
	c.Record.InitialInterval = 200 * time.Millisecond
	c.Record.MaxInterval = 5 * time.Second
	c.Session.TTL = 30 * time.Minute
	c.Session.JanitorInterval = time.Minute
	return c
}

func (c Config) Validate() error {
	var errs []error

	switch c.Questions.Source {
	case SourceStatic:
		if c.Questions.Catalog == "" {
			errs = append(errs, errors.New("questions.catalog is required for the static source"))
		}
	case SourcePostgres:
	case SourceMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required for the mongo source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown questions.source %q", c.Questions.Source))
	}

	switch c.Record.Store {
	case StoreMemory, StorePostgres:
	case StoreSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown record.store %q", c.Record.Store))
	}

	switch c.Record.Ledger {
	case LedgerNone, LedgerMemory, LedgerPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown record.ledger %q", c.Record.Ledger))
	}

	if c.usesPostgres() && c.Postgres.Addr == "" {
		errs = append(errs, errors.New("postgres.addr is required"))
	}
	if c.Session.TTL <= 0 || c.Session.JanitorInterval <= 0 {
		errs = append(errs, errors.New("session.ttl and session.janitor_interval must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) usesPostgres() bool {
	return c.Questions.Source == SourcePostgres ||
		c.Record.Store == StorePostgres ||
		c.Record.Ledger == LedgerPostgres
}

// PostgresDSN is the connection string of the Postgres database.
func (c Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Pass),
		Host:     c.Postgres.Addr,
		Path:     c.Postgres.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
