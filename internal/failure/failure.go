// Package failure defines the error taxonomy shared by every testenv stage.
//
// Constructors attach a stack trace with github.com/pkg/errors so the CLI can
// print diagnostic detail with %+v. All types unwrap to their cause, so
// errors.Is and errors.As work through stage wrapping.
package failure

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrHealthCheckTimeout is returned when the database container does not
	// report readiness before the configured deadline.
	ErrHealthCheckTimeout = errors.New("database health check timed out")

	// ErrSchemaPullTimeout is returned when the schema pull container does not
	// print its completion sentinel before the configured deadline.
	ErrSchemaPullTimeout = errors.New("schema pull timed out")
)

// ConfigError reports a bad path, missing file or invalid setting.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// Config returns a *ConfigError with a stack trace attached.
func Config(path, format string, args ...interface{}) error {
	return errors.WithStack(&ConfigError{Path: path, Reason: fmt.Sprintf(format, args...)})
}

// Timeout wraps one of the timeout sentinels with the elapsed deadline.
func Timeout(sentinel error, what string, after time.Duration) error {
	return errors.WithStack(fmt.Errorf("%w: %s (waited %s)", sentinel, what, after))
}

// ProcessError reports a nonzero exit from an external build, run or dump
// invocation.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Process returns a *ProcessError with a stack trace attached.
func Process(command string, exitCode int, stderr string, err error) error {
	return errors.WithStack(&ProcessError{Command: command, ExitCode: exitCode, Stderr: stderr, Err: err})
}

// ConnectError reports that a database connection could not be established.
// It is kept distinct from StatementError so callers can tell an unreachable
// engine from a bad script.
type ConnectError struct {
	Database string
	Err      error
}

func (e *ConnectError) Error() string {
	if e.Database == "" {
		return fmt.Sprintf("failed to connect to database server: %v", e.Err)
	}
	return fmt.Sprintf("failed to connect to database %q: %v", e.Database, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Connect returns a *ConnectError with a stack trace attached.
func Connect(database string, err error) error {
	return errors.WithStack(&ConnectError{Database: database, Err: err})
}

// StatementError reports a failed statement inside a database batch. The
// remaining statements of that batch are not executed.
type StatementError struct {
	Database  string
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d on database %q failed: %v", e.Index, e.Database, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Statement returns a *StatementError with a stack trace attached.
func Statement(database string, index int, statement string, err error) error {
	return errors.WithStack(&StatementError{Database: database, Index: index, Statement: statement, Err: err})
}

// StageError carries the identity of the orchestration stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.Stage, e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// Stage wraps err with the stage name. A nil err stays nil.
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// CleanupError is returned only when a run failed AND the cleanup that
// followed also failed. The original cause is the one that unwraps.
type CleanupError struct {
	Cause   error
	Cleanup error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("%v (cleanup also failed: %v)", e.Cause, e.Cleanup)
}

func (e *CleanupError) Unwrap() error { return e.Cause }

// Format prints the cause first. With %+v the cause's stack trace follows.
func (e *CleanupError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%+v\ncleanup also failed: %+v", e.Cause, e.Cleanup)
		return
	}
	fmt.Fprint(s, e.Error())
}
