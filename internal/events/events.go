// Package events defines the typed domain events decoded from provider
// wire frames, plus the implementation-level status and notification
// events published alongside them.
//
// Events form a closed set: every variant implements Event and names the
// bus topic it is delivered on. They are immutable value objects,
// constructed once by the codec and never mutated downstream.
package events

import (
	"encoding/json"
	"time"
)

// Bus topic names.
const (
	NameTrade         = "trade"
	NameQuote         = "quote"
	NameBar           = "bar"
	NameOrderUpdate   = "order_update"
	NameAccountUpdate = "account_update"
	NameStatus        = "status"
	NameNotification  = "notification"
)

// Event is implemented by every domain event variant.
type Event interface {
	// EventName returns the bus topic the event is delivered on.
	EventName() string
}

// Trade is a single executed trade for a symbol.
type Trade struct {
	Symbol    string
	Price     float64
	Size      uint32
	Timestamp time.Time
}

func (Trade) EventName() string { return NameTrade }

// Quote is a top-of-book bid/ask update for a symbol.
type Quote struct {
	Symbol    string
	BidPrice  float64
	BidSize   uint32
	AskPrice  float64
	AskSize   uint32
	Timestamp time.Time
}

func (Quote) EventName() string { return NameQuote }

// Bar is an aggregate of trades over a fixed window.
type Bar struct {
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    uint64
	Timestamp time.Time
}

func (Bar) EventName() string { return NameBar }

// OrderUpdate reports a state change of one of the account's orders.
type OrderUpdate struct {
	OrderID     string
	Status      string // "fill", "partial_fill", "rejected", "canceled", ...
	FilledQty   float64
	FilledPrice float64
	Symbol      string
	Qty         float64
	Timestamp   time.Time
}

func (OrderUpdate) EventName() string { return NameOrderUpdate }

// AccountUpdate carries an opaque account change payload. The provider
// does not commit to a schema here, so the raw JSON is passed through.
type AccountUpdate struct {
	Data json.RawMessage
}

func (AccountUpdate) EventName() string { return NameAccountUpdate }

// Status signals connection lifecycle changes: connect, disconnect, and
// fatal per-channel failure after retry exhaustion.
type Status struct {
	Channel  string // "data" or "trading"
	State    string // "connected", "disconnected", "failed"
	Severity string // "info", "warning", "fatal"
	Err      string // underlying error, empty on connect
}

func (Status) EventName() string { return NameStatus }

// Notification is a human-readable message for the UI side-channel,
// emitted for notification-worthy order updates.
type Notification struct {
	Text     string
	Severity string // "success", "info", "warning", "error"
}

func (Notification) EventName() string { return NameNotification }
