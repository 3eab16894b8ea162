package event

import "context"

// Source is the external ledger read side for the polling loop.
type Source interface {
	// EventsSince returns every event with ledger timestamp strictly greater
	// than cursor, along with the ledger's latest observed timestamp (carried
	// on the batch).
	EventsSince(ctx context.Context, cursor int64) (*Batch, error)
}
