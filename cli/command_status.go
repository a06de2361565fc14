package cli

import (
	"github.com/alecthomas/kingpin/v2"

	"github.com/kmichels/imageintactcore/apiclient"
	"github.com/kmichels/imageintactcore/backup"
	"github.com/kmichels/imageintactcore/config"
	"github.com/kmichels/imageintactcore/statusserver"
)

type commandStatus struct {
	serverAddr string
}

func (c *commandStatus) setup(app *App, parent *kingpin.Application) {
	cmd := parent.Command("status", "Query a running backup's status server.")
	cmd.Arg("server", "Base URL of the status server, e.g. http://localhost:8080.").Required().StringVar(&c.serverAddr)
	cmd.Action(func(*kingpin.ParseContext) error {
		return c.run(app)
	})
}

func (c *commandStatus) run(app *App) error {
	client := apiclient.New(apiclient.Options{BaseURL: c.serverAddr})

	var resp statusserver.StatusResponse
	if err := client.Get(app.rootctx, "/status", &resp); err != nil {
		return err
	}

	defaultColor.Fprintf(app.stdout(), "running: %v  progress: %.0f%%\n", resp.IsRunning, resp.OverallProgress*100) //nolint:errcheck

	for name, d := range resp.ByDestination {
		defaultColor.Fprintf(app.stdout(), "  %s: %d/%d copied, %d verified, %d failed\n", //nolint:errcheck
			name, d.Copied, d.Total, d.Verified, len(d.Failed))
	}

	return nil
}

// maybeServeStatus starts the optional status HTTP server in the
// background when cfg.StatusServerAddr is set. Listen failures are
// logged, not fatal: the status server is a convenience, not a
// requirement for the backup itself to proceed.
func maybeServeStatus(cfg config.Config, coordinator *backup.Coordinator, app *App) {
	if cfg.StatusServerAddr == "" {
		return
	}

	srv, err := statusserver.New(cfg.StatusServerAddr, cfg.StatusServerCredentialsFile, coordinator)
	if err != nil {
		warningColor.Fprintf(app.stderr(), "status server disabled: %v\n", err) //nolint:errcheck
		return
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Warnw("status server stopped", "error", err)
		}
	}()

	go func() {
		<-coordinator.Done()
		srv.Close() //nolint:errcheck
	}()
}
