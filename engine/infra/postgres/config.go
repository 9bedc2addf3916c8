package postgres

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config describes the catalog database. ConnString wins over the discrete
// fields, which only exist for callers that assemble a DSN piecemeal.
type Config struct {
	ConnString string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
	PingTimeout     time.Duration
}

func dsn(cfg *Config) string {
	if s := strings.TrimSpace(cfg.ConnString); s != "" {
		return s
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     orDefault(cfg.Host, "localhost") + ":" + orDefault(cfg.Port, "5432"),
		Path:     "/" + cfg.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", url.QueryEscape(orDefault(cfg.SSLMode, "disable"))),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
