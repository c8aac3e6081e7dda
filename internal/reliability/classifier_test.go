package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ent0n29/tasklist/internal/storage"
)

func TestClassifyStorageError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ClassNone},
		{storage.ErrNotFound, ClassNotFound},
		{fmt.Errorf("get entry: %w", storage.ErrNotFound), ClassNotFound},
		{fmt.Errorf("key: %w", storage.ErrInvalidKey), ClassInvalidKey},
		{context.DeadlineExceeded, ClassTimeout},
		{fmt.Errorf("put entry: %w", context.Canceled), ClassCanceled},
		{errors.New("write entry: no space left on device"), ClassQuota},
		{errors.New("QuotaExceededError: storage full"), ClassQuota},
		{storage.ErrClosed, ClassUnavailable},
		{errors.New("dial tcp 127.0.0.1:5432: connection refused"), ClassUnavailable},
		{errors.New("boom"), ClassOther},
	}
	for _, tc := range cases {
		if got := ClassifyStorageError(tc.err); got != tc.want {
			t.Fatalf("ClassifyStorageError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
