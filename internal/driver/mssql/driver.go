package mssql

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/testenv/testenv/internal/driver/base"
)

// Driver implements driver.Driver for SQL Server
type Driver struct{}

// NewDriver creates a new SQL Server driver
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string          { return "mssql" }
func (d *Driver) SQLDriverName() string { return "sqlserver" }
func (d *Driver) AdminUser() string     { return "sa" }
func (d *Driver) DefaultImage() string  { return "mcr.microsoft.com/mssql/server:2022-latest" }
func (d *Driver) ContainerPort() int    { return 1433 }

func (d *Driver) ContainerEnv(password string) []string {
	return []string{"ACCEPT_EULA=Y", "MSSQL_SA_PASSWORD=" + password}
}

// ReadySentinel is printed after recovery of tempdb, the last system
// database brought online at startup.
func (d *Driver) ReadySentinel() string { return "The tempdb database has" }
func (d *Driver) ReadyOccurrences() int { return 1 }

func (d *Driver) DSN(ep base.Endpoint, database string) string {
	query := url.Values{}
	query.Set("TrustServerCertificate", "true")
	if database != "" {
		query.Set("database", database)
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(ep.User, ep.Password),
		Host:     ep.Host + ":" + strconv.Itoa(ep.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// ToolConnectionString returns an ADO.NET style connection string.
func (d *Driver) ToolConnectionString(ep base.Endpoint, database string) string {
	cs := fmt.Sprintf("Data Source=%s,%d;User Id=%s;Password=%s;TrustServerCertificate=true", ep.Host, ep.Port, ep.User, ep.Password)
	if database != "" {
		cs += ";Database=" + database
	}
	return cs
}

func (d *Driver) CreateDatabase(name string) string {
	return "CREATE DATABASE [" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *Driver) SplitStatements(script string) ([]string, error) {
	return base.SplitBatches(script), nil
}
