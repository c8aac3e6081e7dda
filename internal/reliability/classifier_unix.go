//go:build unix

package reliability

import (
	"errors"
	"syscall"
)

func classifyErrno(err error) (string, bool) {
	switch {
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return ClassQuota, true
	case errors.Is(err, syscall.ECONNREFUSED):
		return ClassUnavailable, true
	default:
		return "", false
	}
}
