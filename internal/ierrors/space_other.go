//go:build !unix

package ierrors

import "strings"

func isOutOfSpace(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no space")
}
