package notification

import (
	"context"
	"errors"
)

// ErrCursorNotFound is returned by LoadCursor when no checkpoint has been
// persisted yet (first run of the service).
var ErrCursorNotFound = errors.New("ledger cursor not found")

// CheckpointStore persists the ingestion cursor: the ledger timestamp (Unix
// seconds) below which all events are considered processed. The stored value
// must never decrease.
type CheckpointStore interface {
	LoadCursor(ctx context.Context) (int64, error)
	SaveCursor(ctx context.Context, cursor int64) error
}
