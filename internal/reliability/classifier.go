package reliability

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ent0n29/tasklist/internal/storage"
)

// Storage error classes used as metric labels.
const (
	ClassNone        = "none"
	ClassNotFound    = "not_found"
	ClassTimeout     = "timeout"
	ClassCanceled    = "canceled"
	ClassQuota       = "quota"
	ClassUnavailable = "unavailable"
	ClassInvalidKey  = "invalid_key"
	ClassOther       = "other"
)

// ClassifyStorageError maps a backend error onto a small fixed label set.
func ClassifyStorageError(err error) string {
	if err == nil {
		return ClassNone
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, storage.ErrInvalidKey):
		return ClassInvalidKey
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, storage.ErrClosed):
		return ClassUnavailable
	}
	if class, ok := classifyErrno(err); ok {
		return class
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassUnavailable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"), strings.Contains(msg, "no space left"), strings.Contains(msg, "disk full"):
		return ClassQuota
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"), strings.Contains(msg, "unavailable"):
		return ClassUnavailable
	default:
		return ClassOther
	}
}
