// Package sleepguard defines the external sleep-prevention interface
// the coordinator calls when Config.PreventSleepDuringBackup is set.
// Sleep prevention is advisory: the spec lists it as a concern owned by
// an external collaborator, so failure to inhibit never aborts a
// backup — it is logged and the run proceeds.
package sleepguard

import "context"

// Inhibitor prevents the host from sleeping for as long as the
// returned release func hasn't been called.
type Inhibitor interface {
	Inhibit(ctx context.Context, reason string) (release func(), err error)
}

// Noop never actually prevents sleep; it's the default on platforms
// without a supported implementation, and when the config option is
// off.
type Noop struct{}

// Inhibit returns a no-op release.
func (Noop) Inhibit(context.Context, string) (func(), error) {
	return func() {}, nil
}
