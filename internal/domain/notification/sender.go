package notification

import (
	"context"
	"errors"
)

// ErrNoSubscription is returned when an address has no push subscription on
// record. The dispatcher counts such recipients as failed rather than erroring
// the whole batch.
var ErrNoSubscription = errors.New("no push subscription for address")

// ErrSubscriptionGone is returned when the push service rejected the
// subscription as permanently invalid (404/410). Callers may prune the
// subscription record; this service only surfaces the condition.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Sender delivers one payload to one address through the push transport.
type Sender interface {
	SendPush(ctx context.Context, address string, payload *Payload) error
}

// PreferenceLookup resolves a user's notification preferences.
// Implementations return ErrNoSubscription when the address is unknown.
type PreferenceLookup interface {
	LookupPreferences(ctx context.Context, address string) (*Preferences, error)
}

// Subscription is a single browser push registration for an address. One
// address may hold several (one per device).
type Subscription struct {
	Address    string
	Endpoint   string
	P256dhKey  string
	AuthKey    string
	DeviceName string
}

// SubscriptionStore provides read access to stored push subscriptions.
type SubscriptionStore interface {
	SubscriptionsByAddress(ctx context.Context, address string) ([]Subscription, error)
}
