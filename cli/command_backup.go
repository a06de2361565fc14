package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/alecthomas/units"

	"github.com/kmichels/imageintactcore/backup"
	"github.com/kmichels/imageintactcore/config"
)

type commandBackup struct {
	source               string
	destinations         []string
	excludeCache         bool
	skipHidden           bool
	filterPreset         string
	organizationFolder   string
	preventSleep         bool
	statusAddr           string
	statusCredentials    string

	app *App
}

func (c *commandBackup) setup(app *App, parent *kingpin.Application) {
	cmd := parent.Command("backup", "Copy a source tree to one or more verified destinations.")
	cmd.Arg("source", "Source directory to back up.").Required().StringVar(&c.source)
	cmd.Arg("destination", "One or more destination directories.").Required().StringsVar(&c.destinations)
	cmd.Flag("exclude-cache-files", "Exclude recognized cache directories.").Default("true").BoolVar(&c.excludeCache)
	cmd.Flag("skip-hidden", "Skip dotfiles and OS junk files.").Default("true").BoolVar(&c.skipHidden)
	cmd.Flag("filter", "File type filter: all, raw, photos, videos.").Default("all").StringVar(&c.filterPreset)
	cmd.Flag("organize-into", "Destination subfolder to copy into.").StringVar(&c.organizationFolder)
	cmd.Flag("prevent-sleep", "Inhibit system sleep while the backup runs.").BoolVar(&c.preventSleep)
	cmd.Flag("status-addr", "Listen address for an optional status HTTP server (e.g. :8080).").StringVar(&c.statusAddr)
	cmd.Flag("status-credentials", "htpasswd file required to query the status server.").StringVar(&c.statusCredentials)
	cmd.Action(func(*kingpin.ParseContext) error {
		return c.run(app)
	})

	c.app = app
}

func (c *commandBackup) run(app *App) error {
	cfg := config.Default()
	cfg.ExcludeCacheFiles = c.excludeCache
	cfg.SkipHiddenFiles = c.skipHidden
	cfg.FileTypeFilter = config.FileTypeFilter{Preset: c.filterPreset}
	cfg.OrganizationFolder = c.organizationFolder
	cfg.PreventSleepDuringBackup = c.preventSleep
	cfg.StatusServerAddr = c.statusAddr
	cfg.StatusServerCredentialsFile = c.statusCredentials

	dests := make([]backup.Destination, 0, len(c.destinations))
	for i, d := range c.destinations {
		dests = append(dests, backup.Destination{Name: fmt.Sprintf("dest%d", i+1), Root: d})
	}

	coordinator := backup.New(cfg, nil, log)

	ctx, stop := signal.NotifyContext(app.rootctx, os.Interrupt)
	defer stop()

	if err := coordinator.StartBackup(ctx, c.source, dests); err != nil {
		return withExitCode(exitSetupError, err)
	}

	maybeServeStatus(cfg, coordinator, app)

	go c.printProgress(ctx, app, coordinator)

	<-coordinator.Done()

	result := coordinator.Result()
	noteColor.Fprintf(app.stdout(), "\n%s\n", result.FinalMessage) //nolint:errcheck

	if result.Stats != nil {
		defaultColor.Fprintf(app.stdout(), "%d processed, %d skipped, %d failed, %.1f%% success, %.1f MB/s average\n", //nolint:errcheck
			result.Stats.Processed, result.Stats.Skipped, result.Stats.Failed,
			result.Stats.SuccessRate(), result.Stats.AverageThroughputMBps())
	}

	for _, f := range result.CollectedFailures {
		errorColor.Fprintf(app.stdout(), "  %s/%s: %s\n", f.Destination, f.RelativePath, f.Error) //nolint:errcheck
	}

	if result.Cancelled {
		return withExitCode(exitCancelled, fmt.Errorf("backup cancelled"))
	}

	if len(result.CollectedFailures) > 0 {
		return fmt.Errorf("%d file(s) failed", len(result.CollectedFailures))
	}

	return nil
}

func (c *commandBackup) printProgress(ctx context.Context, app *App, coordinator *backup.Coordinator) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-coordinator.Done():
			return
		case <-ticker.C:
		}

		st := coordinator.Status()
		line := fmt.Sprintf("%3.0f%%  %s / %s copied",
			st.OverallProgress*100,
			units.Base2Bytes(st.TotalBytesCopied).String(),
			units.Base2Bytes(st.TotalBytesToCopy).String(),
		)

		if app.interactive() {
			defaultColor.Fprintf(app.stdout(), "\r%s", line) //nolint:errcheck
		} else {
			defaultColor.Fprintln(app.stdout(), line) //nolint:errcheck
		}
	}
}
