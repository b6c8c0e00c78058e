package mysql

import (
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/testenv/testenv/internal/driver/base"
)

// Driver implements driver.Driver for MySQL
type Driver struct{}

// NewDriver creates a new MySQL driver
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string          { return "mysql" }
func (d *Driver) SQLDriverName() string { return "mysql" }
func (d *Driver) AdminUser() string     { return "root" }
func (d *Driver) DefaultImage() string  { return "mysql:8.4" }
func (d *Driver) ContainerPort() int    { return 3306 }

func (d *Driver) ContainerEnv(password string) []string {
	return []string{"MYSQL_ROOT_PASSWORD=" + password}
}

// The entrypoint starts a temporary server for initialization first; both
// servers log the sentinel.
func (d *Driver) ReadySentinel() string { return "ready for connections" }
func (d *Driver) ReadyOccurrences() int { return 2 }

// DSN enables multiStatements so a GO batch may hold several statements.
func (d *Driver) DSN(ep base.Endpoint, database string) string {
	cfg := gomysql.NewConfig()
	cfg.User = ep.User
	cfg.Passwd = ep.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", ep.Host, ep.Port)
	cfg.DBName = database
	cfg.MultiStatements = true
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func (d *Driver) ToolConnectionString(ep base.Endpoint, database string) string {
	return d.DSN(ep, database)
}

func (d *Driver) CreateDatabase(name string) string {
	return "CREATE DATABASE `" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *Driver) SplitStatements(script string) ([]string, error) {
	return base.SplitBatches(script), nil
}
