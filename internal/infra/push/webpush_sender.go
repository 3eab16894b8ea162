// Package push is the Web Push transport adapter behind notification.Sender.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"circle_notifier/internal/domain/notification"
)

// WebpushSender delivers payloads through the Web Push protocol. An address
// may hold several device subscriptions; one transport call is made per
// device, and the recipient counts as reached if any device accepted.
type WebpushSender struct {
	subs            notification.SubscriptionStore
	vapidPublicKey  string
	vapidPrivateKey string
	subject         string
	ttl             int
	log             *logrus.Entry
}

func NewWebpushSender(subs notification.SubscriptionStore, vapidPublicKey, vapidPrivateKey, subject string, ttl int, log *logrus.Entry) *WebpushSender {
	return &WebpushSender{
		subs:            subs,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		subject:         subject,
		ttl:             ttl,
		log:             log,
	}
}

// SendPush implements notification.Sender. Returns ErrNoSubscription when the
// address has no devices, ErrSubscriptionGone when the push service rejected
// every device as permanently invalid (404/410).
func (s *WebpushSender) SendPush(ctx context.Context, address string, payload *notification.Payload) error {
	subs, err := s.subs.SubscriptionsByAddress(ctx, address)
	if err != nil {
		return fmt.Errorf("fetching subscriptions for %s: %w", address, err)
	}
	if len(subs) == 0 {
		return notification.ErrNoSubscription
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding push payload: %w", err)
	}

	var delivered, gone int
	var lastErr error
	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dhKey,
				Auth:   sub.AuthKey,
			},
		}, &webpush.Options{
			Subscriber:      s.subject,
			VAPIDPublicKey:  s.vapidPublicKey,
			VAPIDPrivateKey: s.vapidPrivateKey,
			TTL:             s.ttl,
			Urgency:         urgencyFor(payload.Priority),
		})
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			gone++
			s.log.WithFields(logrus.Fields{"address": address, "device": sub.DeviceName}).
				Debug("Push service reports subscription gone")
		case resp.StatusCode >= 400:
			lastErr = fmt.Errorf("push service returned status %d", resp.StatusCode)
		default:
			delivered++
		}
		resp.Body.Close()
	}

	if delivered > 0 {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("push delivery to %s: %w", address, lastErr)
	}
	// Nothing delivered and no transport error: every device was 404/410.
	return notification.ErrSubscriptionGone
}

func urgencyFor(p notification.Priority) webpush.Urgency {
	switch p {
	case notification.PriorityHigh:
		return webpush.UrgencyHigh
	case notification.PriorityLow:
		return webpush.UrgencyLow
	default:
		return webpush.UrgencyNormal
	}
}
