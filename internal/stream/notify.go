package stream

import (
	"fmt"

	"github.com/iava-ai/marketstream/internal/events"
)

// Order statuses that warrant a user-facing notification, with their
// display severity. Statuses outside this table are delivered on the
// bus as order updates but produce no notification.
var orderSeverities = map[string]string{
	"fill":         "success",
	"partial_fill": "info",
	"rejected":     "error",
	"canceled":     "warning",
}

// orderNotification formats the notification for an order update, if
// its status is notification-worthy.
func orderNotification(ou events.OrderUpdate) (events.Notification, bool) {
	severity, ok := orderSeverities[ou.Status]
	if !ok {
		return events.Notification{}, false
	}

	var text string
	switch ou.Status {
	case "fill":
		text = fmt.Sprintf("%s: order filled, %v @ %v", ou.Symbol, ou.FilledQty, ou.FilledPrice)
	case "partial_fill":
		text = fmt.Sprintf("%s: order partially filled, %v of %v @ %v", ou.Symbol, ou.FilledQty, ou.Qty, ou.FilledPrice)
	case "rejected":
		text = fmt.Sprintf("%s: order rejected", ou.Symbol)
	case "canceled":
		text = fmt.Sprintf("%s: order canceled", ou.Symbol)
	}

	return events.Notification{Text: text, Severity: severity}, true
}

// notifyOrderStatus bridges order updates onto the notification
// side-channel. Registered on the bus by Initialize.
func (c *Client) notifyOrderStatus(e events.Event) {
	ou, ok := e.(events.OrderUpdate)
	if !ok {
		return
	}

	note, ok := orderNotification(ou)
	if !ok {
		return
	}

	c.bus.Publish(note)
	c.metrics.EventPublished(note.EventName())
}
