//go:build unix

package ierrors

import (
	"errors"
	"syscall"
)

func isOutOfSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
