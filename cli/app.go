// Package cli implements the imageintactd command-line commands.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/kmichels/imageintactcore/internal/logging"
)

var log = logging.Module("cli")

// Process exit codes, per spec §6.
const (
	exitOK         = 0
	exitFailure    = 1
	exitCancelled  = 2
	exitSetupError = 3
)

// exitError pairs an error with the process exit code it should produce,
// letting a command signal something other than the generic failure code
// without Main needing to know command-specific error types.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// withExitCode wraps err so Main reports code instead of exitFailure. It
// returns nil if err is nil.
func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// nolint:gochecknoglobals
var (
	defaultColor = color.New()
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgHiRed)
	noteColor    = color.New(color.FgHiCyan)
)

// App wires every subcommand into a kingpin.Application and holds the
// few pieces of state (output streams, root context) commands need.
type App struct {
	backup  commandBackup
	status  commandStatus
	version commandVersion

	osExit       func(int)
	stdoutWriter io.Writer
	stderrWriter io.Writer
	rootctx      context.Context //nolint:containedctx
}

// NewApp builds an App with real stdout/stderr/exit hooks.
func NewApp() *App {
	return &App{
		osExit:       os.Exit,
		stdoutWriter: colorable.NewColorableStdout(),
		stderrWriter: colorable.NewColorableStderr(),
		rootctx:      context.Background(),
	}
}

func (c *App) stdout() io.Writer { return c.stdoutWriter }
func (c *App) stderr() io.Writer { return c.stderrWriter }

// interactive reports whether stdout is an actual terminal. Progress
// output redraws a single line when interactive and falls back to one
// line per tick otherwise, since a redialed carriage return is useless
// once stdout is redirected to a file or pipe.
func (c *App) interactive() bool {
	f, ok := c.stdoutWriter.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Attach registers every subcommand against app.
func (c *App) Attach(app *kingpin.Application) {
	c.backup.setup(c, app)
	c.status.setup(c, app)
	c.version.setup(c, app)
}

// BuildVersion is set at link time with -ldflags; defaults to "dev".
var BuildVersion = "dev" //nolint:gochecknoglobals

// Main parses os.Args and runs the selected command, returning the
// process exit code.
func Main() int {
	app := kingpin.New("imageintactd", "Verified multi-destination backup engine for photo and video archives.")
	c := NewApp()
	c.Attach(app)

	code := exitOK
	if _, err := app.Parse(os.Args[1:]); err != nil {
		errorColor.Fprintf(c.stderr(), "error: %v\n", err) //nolint:errcheck
		code = exitFailure
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
	}

	c.osExit(code)
	return code
}
