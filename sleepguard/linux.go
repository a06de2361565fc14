//go:build linux

package sleepguard

import (
	"context"

	"github.com/coreos/go-systemd/v22/login1"

	"github.com/kmichels/imageintactcore/internal/ierrors"
)

// Systemd inhibits sleep via logind's Inhibit D-Bus call, holding the
// inhibitor lock file descriptor open until release is called.
type Systemd struct{}

// Inhibit asks logind for a "sleep" inhibitor lock. The returned
// release function closes the lock's file descriptor, which is how
// logind's inhibitor API expects callers to give the lock back.
func (Systemd) Inhibit(ctx context.Context, reason string) (func(), error) {
	conn, err := login1.New()
	if err != nil {
		return nil, ierrors.IO(err, "connecting to logind")
	}

	fd, err := conn.Inhibit("sleep", "imageintactcore", reason, "block")
	if err != nil {
		conn.Close()
		return nil, ierrors.IO(err, "requesting sleep inhibitor")
	}

	release := func() {
		fd.Close() //nolint:errcheck
		conn.Close()
	}

	go func() {
		<-ctx.Done()
		release()
	}()

	return release, nil
}
