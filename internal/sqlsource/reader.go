// Package sqlsource reads the on-disk SQL sources of each database into
// ordered statement batches.
package sqlsource

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/failure"
)

// Batch is the ordered list of statements executed against one database.
type Batch struct {
	Database   string
	Statements []string
}

// Splitter splits a script into statements.
type Splitter interface {
	SplitStatements(script string) ([]string, error)
}

// sessionSettings are emitted by script generators and are skipped because
// they are connection-scoped and already the server default.
var sessionSettings = []string{
	"SET ANSI_PADDING ON",
	"SET ANSI_NULLS ON",
	"SET QUOTED_IDENTIFIER ON",
}

// Reader turns the configured SQL files into batches.
type Reader struct {
	cfg      config.SchemaConfig
	splitter Splitter
}

// NewReader creates a Reader for the schema configuration.
func NewReader(cfg config.SchemaConfig, splitter Splitter) *Reader {
	return &Reader{cfg: cfg, splitter: splitter}
}

// Folder returns the absolute SQL source folder under workDir.
func (r *Reader) Folder(workDir string) string {
	return filepath.Join(workDir, r.cfg.SQLFolder)
}

// Read loads every configured file. Statements keep file-list order and then
// in-file order. Batches are sorted by database name.
func (r *Reader) Read(workDir string) ([]Batch, error) {
	folder := r.Folder(workDir)
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil, failure.Config(folder, "invalid directory for SQL files")
	}

	byDatabase := make(map[string][]string)
	for _, entry := range r.cfg.Files {
		statements := byDatabase[entry.Database]
		for _, name := range entry.Files {
			path := filepath.Join(folder, name)
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, failure.Config(path, "SQL file for database %q does not exist", entry.Database)
				}
				return nil, err
			}

			parts, err := r.splitter.SplitStatements(string(data))
			if err != nil {
				return nil, failure.Config(path, "failed to split SQL: %v", err)
			}
			for _, part := range parts {
				part = strings.TrimSpace(part)
				if part == "" || IsSessionSetting(part) {
					continue
				}
				statements = append(statements, part)
			}
		}
		byDatabase[entry.Database] = statements
	}

	batches := make([]Batch, 0, len(byDatabase))
	for database, statements := range byDatabase {
		batches = append(batches, Batch{Database: database, Statements: statements})
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].Database < batches[j].Database
	})
	return batches, nil
}

// IsSessionSetting reports whether statement is one of the skipped session
// settings. Case, inner whitespace and a trailing semicolon are ignored.
func IsSessionSetting(statement string) bool {
	normalized := strings.Join(strings.Fields(strings.TrimSuffix(strings.TrimSpace(statement), ";")), " ")
	for _, setting := range sessionSettings {
		if strings.EqualFold(normalized, setting) {
			return true
		}
	}
	return false
}
