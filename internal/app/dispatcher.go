package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"circle_notifier/internal/domain/notification"
	"circle_notifier/internal/infra/metrics"
)

// DeliveryResult aggregates the outcome of one dispatch across its recipients.
type DeliveryResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// PayloadDispatcher is the fan-out engine's view of the delivery side.
type PayloadDispatcher interface {
	Send(ctx context.Context, recipients []string, payload *notification.Payload) *DeliveryResult
}

// Dispatcher delivers one payload to a list of recipients, filtering each
// recipient through their stored preferences. It owns no retry logic: a
// failure is terminal for that recipient for that notification.
type Dispatcher struct {
	prefs  notification.PreferenceLookup
	sender notification.Sender
	log    *logrus.Entry
}

func NewDispatcher(prefs notification.PreferenceLookup, sender notification.Sender, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{prefs: prefs, sender: sender, log: log}
}

// Send delivers payload to every eligible recipient, one transport call per
// recipient. Recipients without a subscription, with push disabled globally,
// or with the payload's type switched off are counted as failed; a missing
// per-type flag counts as enabled.
func (d *Dispatcher) Send(ctx context.Context, recipients []string, payload *notification.Payload) *DeliveryResult {
	res := &DeliveryResult{}
	for _, addr := range recipients {
		prefs, err := d.prefs.LookupPreferences(ctx, addr)
		if err != nil {
			res.Failed++
			if errors.Is(err, notification.ErrNoSubscription) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: no subscription", addr))
				metrics.NotificationsFailed.WithLabelValues("no_subscription").Inc()
			} else {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: preference lookup: %v", addr, err))
				metrics.NotificationsFailed.WithLabelValues("preference_lookup").Inc()
			}
			continue
		}
		if !prefs.Allows(payload.Type) {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: notifications disabled", addr))
			metrics.NotificationsFailed.WithLabelValues("disabled").Inc()
			continue
		}

		if err := d.sender.SendPush(ctx, addr, payload); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", addr, err))
			if errors.Is(err, notification.ErrSubscriptionGone) {
				d.log.WithField("address", addr).Warn("Push subscription permanently invalid; record should be pruned")
				metrics.NotificationsFailed.WithLabelValues("subscription_gone").Inc()
			} else {
				metrics.NotificationsFailed.WithLabelValues("transport").Inc()
			}
			continue
		}
		res.Sent++
		metrics.NotificationsSent.WithLabelValues(string(payload.Type)).Inc()
	}

	if res.Failed > 0 {
		d.log.WithFields(logrus.Fields{
			"type":   payload.Type,
			"sent":   res.Sent,
			"failed": res.Failed,
		}).Debug("Dispatch finished with failures")
	}
	return res
}
