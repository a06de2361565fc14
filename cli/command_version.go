package cli

import (
	"github.com/alecthomas/kingpin/v2"
)

type commandVersion struct{}

func (c *commandVersion) setup(app *App, parent *kingpin.Application) {
	cmd := parent.Command("version", "Print the build version.")
	cmd.Action(func(*kingpin.ParseContext) error {
		defaultColor.Fprintln(app.stdout(), BuildVersion) //nolint:errcheck
		return nil
	})
}
