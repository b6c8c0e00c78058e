package schemapull

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DumpSuffix marks dump files written by a schema pull.
	DumpSuffix = "-SchemaDump"
	// BackupDir is where previous dumps are moved, under the SQL folder.
	BackupDir = "backups"

	backupTimeLayout = "20060102-150405"
)

// DumpFileName returns the dump file name of a database.
func DumpFileName(database string) string {
	return database + DumpSuffix + ".sql"
}

// RotateBackups moves every dump file in sqlDir into sqlDir/backups with the
// time appended before the extension. It returns the new paths. Nothing is
// created when there is nothing to move.
func RotateBackups(sqlDir string, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(sqlDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", sqlDir, err)
	}

	var dumps []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), DumpSuffix+".sql") {
			dumps = append(dumps, entry.Name())
		}
	}
	if len(dumps) == 0 {
		return nil, nil
	}

	backupDir := filepath.Join(sqlDir, BackupDir)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", backupDir, err)
	}

	stamp := now.Format(backupTimeLayout)
	moved := make([]string, 0, len(dumps))
	for _, name := range dumps {
		database := strings.TrimSuffix(name, DumpSuffix+".sql")
		target, err := freeName(backupDir, database+DumpSuffix+"-"+stamp)
		if err != nil {
			return moved, err
		}
		if err := os.Rename(filepath.Join(sqlDir, name), target); err != nil {
			return moved, fmt.Errorf("failed to back up %s: %w", name, err)
		}
		moved = append(moved, target)
	}
	return moved, nil
}

// freeName returns dir/base.sql, or dir/base-N.sql for the first N not taken.
func freeName(dir, base string) (string, error) {
	candidate := filepath.Join(dir, base+".sql")
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d.sql", base, n))
	}
}
