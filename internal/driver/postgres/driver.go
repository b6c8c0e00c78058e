package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/testenv/testenv/internal/driver/base"
)

// Driver implements driver.Driver for PostgreSQL
type Driver struct{}

// NewDriver creates a new PostgreSQL driver
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string          { return "postgres" }
func (d *Driver) SQLDriverName() string { return "postgres" }
func (d *Driver) AdminUser() string     { return "postgres" }
func (d *Driver) DefaultImage() string  { return "postgres:16" }
func (d *Driver) ContainerPort() int    { return 5432 }

func (d *Driver) ContainerEnv(password string) []string {
	return []string{"POSTGRES_PASSWORD=" + password}
}

// The official image runs a bootstrap server before the real one, and both
// print the sentinel.
func (d *Driver) ReadySentinel() string { return "database system is ready to accept connections" }
func (d *Driver) ReadyOccurrences() int { return 2 }

func (d *Driver) DSN(ep base.Endpoint, database string) string {
	if database == "" {
		database = "postgres"
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(ep.User, ep.Password),
		Host:     ep.Host + ":" + strconv.Itoa(ep.Port),
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (d *Driver) ToolConnectionString(ep base.Endpoint, database string) string {
	return d.DSN(ep, database)
}

func (d *Driver) CreateDatabase(name string) string {
	return `CREATE DATABASE "` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SplitStatements splits on GO separator lines first, then splits every
// batch into single statements with the PostgreSQL scanner so that
// dollar-quoted bodies stay intact.
func (d *Driver) SplitStatements(script string) ([]string, error) {
	var statements []string
	for _, batch := range base.SplitBatches(script) {
		parts, err := pg_query.SplitWithScanner(batch, true)
		if err != nil {
			return nil, fmt.Errorf("failed to split statements: %w", err)
		}
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				statements = append(statements, part)
			}
		}
	}
	return statements, nil
}
