package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"pdfservice/internal/config"
)

const defaultPort = 5432

// DSN returns the connection URL of the token database. A non-empty dsn wins; otherwise the
// URL is built from cfg, whose Host may itself be a postgres:// URL.
func DSN(dsn string, cfg config.PostgresConfig) (string, error) {
	if dsn != "" {
		return dsn, nil
	}
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	switch {
	case cfg.Host == "":
		return "", fmt.Errorf("postgres host is empty")
	case cfg.Database == "":
		return "", fmt.Errorf("postgres database is empty")
	case cfg.User == "":
		return "", fmt.Errorf("postgres user is empty")
	}

	u := &url.URL{Scheme: "postgres", Host: hostPort(cfg), Path: "/" + cfg.Database}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// hostPort adds the configured or default port unless host already carries one.
func hostPort(cfg config.PostgresConfig) string {
	if _, _, err := net.SplitHostPort(cfg.Host); err == nil {
		return cfg.Host
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	host := strings.TrimSuffix(strings.TrimPrefix(cfg.Host, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(port))
}
