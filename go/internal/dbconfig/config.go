package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
)

// Config holds Postgres connection settings shared by the game server, the
// outbox relay and the seed tools.
type Config struct {
	URL             string // DATABASE_URL, takes precedence over the fields below
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	ApplicationName string
}

// NewConfigFromEnv reads DATABASE_URL or the DB_* variables. When
// DATABASE_URL is set its host, port, user and database are parsed into the
// fields so they can be logged.
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	cfg := Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnv("DB_USER", "bingo"),
		Password:        getEnv("DB_PASSWORD", "bingo"),
		Database:        getEnv("DB_NAME", "bingo"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		ApplicationName: getEnv("DB_APPLICATION_NAME", "bingo"),
	}
	if cfg.URL == "" {
		return cfg
	}

	// An unparsable URL is left for the driver to report on connect.
	if pc, err := pgconn.ParseConfig(cfg.URL); err == nil {
		cfg.Host = pc.Host
		cfg.Port = int(pc.Port)
		cfg.User = pc.User
		cfg.Password = pc.Password
		cfg.Database = pc.Database
	}
	return cfg
}

// DSN returns the Postgres connection URL understood by both pgx and lib/pq.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
