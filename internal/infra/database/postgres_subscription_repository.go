package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"circle_notifier/internal/domain/notification"
)

// PostgresSubscriptionRepository reads push subscriptions and notification
// preferences. Subscription CRUD and preference updates happen elsewhere; this
// service only reads.
//
// Schema:
//
//	push_subscriptions(id, address, endpoint, p256dh_key, auth_key, device_name, created_at)
//	notification_settings(address PK, push_enabled)
//	notification_preferences(address, category, enabled, PK(address, category))
type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

// SubscriptionsByAddress returns every device subscription for an address.
func (r *PostgresSubscriptionRepository) SubscriptionsByAddress(ctx context.Context, address string) ([]notification.Subscription, error) {
	query := `SELECT address, endpoint, p256dh_key, auth_key, COALESCE(device_name, '')
              FROM push_subscriptions
              WHERE LOWER(address) = LOWER($1)`
	rows, err := r.db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("error listing subscriptions for %s: %w", address, err)
	}
	defer rows.Close()

	var subs []notification.Subscription
	for rows.Next() {
		var s notification.Subscription
		if err := rows.Scan(&s.Address, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.DeviceName); err != nil {
			return nil, fmt.Errorf("error scanning subscription row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}
	return subs, nil
}

// LookupPreferences assembles a user's preferences. An address with no
// subscription on record yields notification.ErrNoSubscription. A missing
// settings row defaults to push enabled; missing category rows count as
// enabled (fail-open).
func (r *PostgresSubscriptionRepository) LookupPreferences(ctx context.Context, address string) (*notification.Preferences, error) {
	addr := strings.ToLower(address)

	var subscribed bool
	existsQuery := `SELECT EXISTS (SELECT 1 FROM push_subscriptions WHERE LOWER(address) = $1)`
	if err := r.db.QueryRowContext(ctx, existsQuery, addr).Scan(&subscribed); err != nil {
		return nil, fmt.Errorf("error checking subscriptions for %s: %w", address, err)
	}
	if !subscribed {
		return nil, notification.ErrNoSubscription
	}

	prefs := &notification.Preferences{
		PushEnabled: true,
		Categories:  make(map[notification.Category]bool),
	}

	settingsQuery := `SELECT push_enabled FROM notification_settings WHERE LOWER(address) = $1`
	err := r.db.QueryRowContext(ctx, settingsQuery, addr).Scan(&prefs.PushEnabled)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("error loading settings for %s: %w", address, err)
	}

	catQuery := `SELECT category, enabled FROM notification_preferences WHERE LOWER(address) = $1`
	rows, err := r.db.QueryContext(ctx, catQuery, addr)
	if err != nil {
		return nil, fmt.Errorf("error loading preferences for %s: %w", address, err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var enabled bool
		if err := rows.Scan(&cat, &enabled); err != nil {
			return nil, fmt.Errorf("error scanning preference row: %w", err)
		}
		prefs.Categories[notification.Category(cat)] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preference rows: %w", err)
	}
	return prefs, nil
}
