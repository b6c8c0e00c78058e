// Package driver describes the SQL engines testenv can provision.
package driver

import (
	"fmt"
	"strings"

	"github.com/testenv/testenv/internal/driver/base"
	"github.com/testenv/testenv/internal/driver/mssql"
	"github.com/testenv/testenv/internal/driver/mysql"
	"github.com/testenv/testenv/internal/driver/postgres"
)

// Engine names a supported SQL engine.
type Engine string

const (
	EngineMSSQL    Engine = "mssql"
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
)

// Engines lists the supported engines in display order.
var Engines = []Engine{EngineMSSQL, EnginePostgres, EngineMySQL}

// Endpoint is where the database container listens.
type Endpoint = base.Endpoint

// Driver is an engine profile: how to run it in a container, how to tell it
// is ready, and how to talk to it.
type Driver interface {
	// Name returns the engine name
	Name() string

	// SQLDriverName is the database/sql driver registered for the engine
	SQLDriverName() string

	// AdminUser is the administrator account created by the image
	AdminUser() string

	// DefaultImage is the container image used when none is configured
	DefaultImage() string

	// ContainerPort is the port the engine listens on inside the container
	ContainerPort() int

	// ContainerEnv returns the environment required by the image
	ContainerEnv(password string) []string

	// ReadySentinel is the log line fragment printed once the engine accepts
	// connections, and ReadyOccurrences how many times it must appear
	ReadySentinel() string
	ReadyOccurrences() int

	// DSN builds a Go driver connection string. An empty database connects
	// to the server's default database.
	DSN(ep Endpoint, database string) string

	// ToolConnectionString builds the connection string handed to external
	// migration tools
	ToolConnectionString(ep Endpoint, database string) string

	// CreateDatabase returns the statement creating a database
	CreateDatabase(name string) string

	// SplitStatements splits a script into executable statements
	SplitStatements(script string) ([]string, error)
}

// NewDriver creates the driver for an engine name.
func NewDriver(engine Engine) (Driver, error) {
	switch Engine(strings.ToLower(string(engine))) {
	case EngineMSSQL, "sqlserver", "":
		return mssql.NewDriver(), nil
	case EnginePostgres, "postgresql":
		return postgres.NewDriver(), nil
	case EngineMySQL:
		return mysql.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported database engine: %s", engine)
	}
}
