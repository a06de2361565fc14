//go:build linux

package sleepguard

// Default returns the best available Inhibitor for this platform.
func Default() Inhibitor { return Systemd{} }
