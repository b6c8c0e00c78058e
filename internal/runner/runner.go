// Package runner invokes external build and run tooling.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/testenv/testenv/internal/failure"
)

// stderrTail is the number of stderr lines kept for error reports.
const stderrTail = 20

// maxLineLen caps a single stderr line; the rest of a longer line is dropped.
const maxLineLen = 64 * 1024

// Command is one external invocation.
type Command struct {
	Args []string
	Dir  string
	Env  []string
}

// String renders the command as a shell-quoted line.
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// Runner runs a command to completion. Each stderr line is handed to
// onStderr as it arrives; onStderr may be nil.
type Runner interface {
	Run(ctx context.Context, cmd Command, onStderr func(line string)) error
}

// Exec runs commands as local processes.
type Exec struct {
	// Stdout receives the process standard output; nil discards it
	Stdout io.Writer
}

// Run starts the process and waits for it. A nonzero exit is reported as a
// *failure.ProcessError carrying the last lines of stderr.
func (e Exec) Run(ctx context.Context, cmd Command, onStderr func(line string)) error {
	if len(cmd.Args) == 0 {
		return errors.New("empty command")
	}

	proc := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	proc.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		proc.Env = append(proc.Environ(), cmd.Env...)
	}
	if e.Stdout != nil {
		proc.Stdout = e.Stdout
	}

	stderr, err := proc.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stderr: %w", err)
	}
	if err := proc.Start(); err != nil {
		return failure.Process(cmd.String(), -1, "", err)
	}

	var tail []string
	readErr := readLines(stderr, func(line string) {
		if onStderr != nil {
			onStderr(line)
		}
		tail = append(tail, line)
		if len(tail) > stderrTail {
			tail = tail[len(tail)-stderrTail:]
		}
	})
	if readErr != nil {
		// Keep the pipe empty so the child never blocks on a write.
		_, _ = io.Copy(io.Discard, stderr)
	}

	if err := proc.Wait(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return failure.Process(cmd.String(), code, strings.Join(tail, "\n"), err)
	}
	return nil
}

// readLines calls fn for every line of r, truncating lines longer than
// maxLineLen. It returns at EOF or on the first read error.
func readLines(r io.Reader, fn func(line string)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	for {
		frag, isPrefix, err := br.ReadLine()
		if room := maxLineLen - len(line); room > 0 && len(frag) > 0 {
			line = append(line, frag[:min(len(frag), room)]...)
		}
		if err != nil {
			if len(line) > 0 {
				fn(string(line))
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !isPrefix {
			fn(string(line))
			line = line[:0]
		}
	}
}
