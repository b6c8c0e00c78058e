// Package base holds the pieces shared by every engine driver.
package base

import (
	"bufio"
	"strings"
)

// Endpoint is where a database server listens and how to log in.
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string
}

// BatchSeparator separates batches in SQL scripts. It only counts when it
// is the whole line, so identifiers such as CATEGORY are never split.
const BatchSeparator = "GO"

// SplitBatches splits a script on separator lines and returns the trimmed,
// non-empty batches in source order.
func SplitBatches(script string) []string {
	var (
		batches []string
		current strings.Builder
	)
	flush := func() {
		if batch := strings.TrimSpace(current.String()); batch != "" {
			batches = append(batches, batch)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == BatchSeparator {
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return batches
}
