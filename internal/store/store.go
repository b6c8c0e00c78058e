// Package store executes SQL against the provisioned database server.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/testenv/testenv/internal/driver"
	"github.com/testenv/testenv/internal/failure"
)

// Dialect is the part of an engine driver the store needs.
type Dialect interface {
	SQLDriverName() string
	DSN(ep driver.Endpoint, database string) string
	CreateDatabase(name string) string
}

// Store opens short-lived connections to one database server. Every call
// opens its own pool so that concurrent stages share nothing.
type Store struct {
	dialect  Dialect
	endpoint driver.Endpoint
}

// New creates a Store for the server at endpoint.
func New(dialect Dialect, endpoint driver.Endpoint) *Store {
	return &Store{dialect: dialect, endpoint: endpoint}
}

// open connects to database (the server default when empty) and verifies the
// connection. Failures are reported as *failure.ConnectError.
func (s *Store) open(ctx context.Context, database string) (*sqlx.DB, error) {
	db, err := sqlx.Open(s.dialect.SQLDriverName(), s.dialect.DSN(s.endpoint, database))
	if err != nil {
		return nil, failure.Connect(database, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, failure.Connect(database, err)
	}
	return db, nil
}

// Probe reports whether the server accepts connections.
func (s *Store) Probe(ctx context.Context) error {
	db, err := s.open(ctx, "")
	if err != nil {
		return err
	}
	return db.Close()
}

// CreateDatabases creates each named database in order on the server's
// default database.
func (s *Store) CreateDatabases(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	db, err := s.open(ctx, "")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for i, name := range names {
		statement := s.dialect.CreateDatabase(name)
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return failure.Statement(name, i, statement, fmt.Errorf("failed to create database: %w", err))
		}
	}
	return nil
}

// ExecBatch executes statements against database strictly in order on one
// connection. It stops at the first failing statement.
func (s *Store) ExecBatch(ctx context.Context, database string, statements []string) error {
	db, err := s.open(ctx, database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	conn, err := db.Connx(ctx)
	if err != nil {
		return failure.Connect(database, err)
	}
	defer func() { _ = conn.Close() }()

	for i, statement := range statements {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return failure.Statement(database, i, statement, err)
		}
	}
	return nil
}
