// Package progress prints step notifications for long-running stages.
//
// A step prints in grey when it starts and in green with a "done" suffix when
// it finishes, so interleaved output from concurrent stages stays readable.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Reporter receives progress notifications. Implementations must be safe for
// concurrent use.
type Reporter interface {
	// Begin announces a step and returns a func that marks it done.
	Begin(format string, args ...interface{}) (done func())
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

var (
	startColor = color.New(color.FgHiBlack)
	doneColor  = color.New(color.FgGreen)
	infoColor  = color.New(color.FgYellow)
	warnColor  = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed)
)

// Console writes colored lines to an io.Writer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a Console writing to out. A nil out means stderr.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{out: out}
}

func (c *Console) Begin(format string, args ...interface{}) func() {
	msg := fmt.Sprintf(format, args...)
	c.println(startColor, msg+"...")

	var once sync.Once
	return func() {
		once.Do(func() { c.println(doneColor, msg+"...done") })
	}
}

func (c *Console) Info(format string, args ...interface{}) {
	c.println(infoColor, fmt.Sprintf(format, args...))
}

func (c *Console) Warn(format string, args ...interface{}) {
	c.println(warnColor, "⚠ "+fmt.Sprintf(format, args...))
}

func (c *Console) Error(format string, args ...interface{}) {
	c.println(errorColor, fmt.Sprintf(format, args...))
}

func (c *Console) println(col *color.Color, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = col.Fprintln(c.out, line)
}

type discard struct{}

// Discard drops every notification.
var Discard Reporter = discard{}

func (discard) Begin(string, ...interface{}) func() { return func() {} }
func (discard) Info(string, ...interface{})         {}
func (discard) Warn(string, ...interface{})         {}
func (discard) Error(string, ...interface{})        {}
