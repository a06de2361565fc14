// Package runname pairs a session UUID with a human-friendly label for
// one backup run, so operators scanning logs can say "the
// sleepy-badger run" instead of memorizing a UUID.
package runname

import (
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

// New generates a fresh session id and a two-word petname.
func New() (sessionID, name string) {
	return uuid.NewString(), petname.Generate(2, "-")
}
