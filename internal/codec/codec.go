package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iava-ai/marketstream/internal/events"
)

// Batch is the result of decoding one wire frame. A frame can carry any
// mix of domain events and control messages; control messages yield no
// events but may flip the channel's authentication state.
type Batch struct {
	// Events holds the decoded domain events, in wire order.
	Events []events.Event

	// AuthAck is true when the frame acknowledged the auth handshake.
	AuthAck bool

	// AuthErr is non-nil when the provider rejected authentication.
	AuthErr error

	// Controls counts control messages (acks, subscription confirms)
	// seen in the frame.
	Controls int
}

// DecodeError reports a single malformed wire message. The offending
// message is skipped; decoding of the rest of the frame continues.
type DecodeError struct {
	Channel string
	Line    int // 1-based line within the frame (data channel batches)
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s frame line %d: %v", e.Channel, e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// dataWire is one field-coded message on the market-data channel.
type dataWire struct {
	Type   string    `json:"T"` // "t", "q", "b", "success", "subscription", "error"
	Symbol string    `json:"S"`
	Msg    string    `json:"msg"`
	Code   int       `json:"code"`
	TS     time.Time `json:"t"`

	// trade
	Price float64 `json:"p"`
	Size  uint32  `json:"s"`

	// quote
	BidPrice float64 `json:"bp"`
	BidSize  uint32  `json:"bs"`
	AskPrice float64 `json:"ap"`
	AskSize  uint32  `json:"as"`

	// bar
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume uint64  `json:"v"`
}

// DecodeData decodes one market-data frame: a batch of newline-delimited
// field-coded JSON objects. Malformed lines are skipped and reported via
// the returned error (joined per line); the remaining lines still decode
// in order. The returned Batch is valid even when the error is non-nil.
func DecodeData(frame []byte) (Batch, error) {
	var batch Batch
	var errs []error

	for i, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var wire dataWire
		if err := json.Unmarshal(line, &wire); err != nil {
			errs = append(errs, &DecodeError{Channel: "data", Line: i + 1, Err: err})
			continue
		}

		switch wire.Type {
		case "t":
			batch.Events = append(batch.Events, events.Trade{
				Symbol:    wire.Symbol,
				Price:     wire.Price,
				Size:      wire.Size,
				Timestamp: wire.TS,
			})

		case "q":
			batch.Events = append(batch.Events, events.Quote{
				Symbol:    wire.Symbol,
				BidPrice:  wire.BidPrice,
				BidSize:   wire.BidSize,
				AskPrice:  wire.AskPrice,
				AskSize:   wire.AskSize,
				Timestamp: wire.TS,
			})

		case "b":
			batch.Events = append(batch.Events, events.Bar{
				Symbol:    wire.Symbol,
				Open:      wire.Open,
				High:      wire.High,
				Low:       wire.Low,
				Close:     wire.Close,
				Volume:    wire.Volume,
				Timestamp: wire.TS,
			})

		case "success":
			batch.Controls++
			if wire.Msg == "authenticated" {
				batch.AuthAck = true
			}

		case "subscription":
			// Subscription confirms are fire-and-forget; the session
			// logs them and moves on.
			batch.Controls++

		case "error":
			batch.Controls++
			batch.AuthErr = fmt.Errorf("provider error %d: %s", wire.Code, wire.Msg)

		default:
			errs = append(errs, &DecodeError{
				Channel: "data",
				Line:    i + 1,
				Err:     fmt.Errorf("unknown message type %q", wire.Type),
			})
		}
	}

	return batch, errors.Join(errs...)
}

// tradingEnvelope is the outer shape of every trading-channel frame.
type tradingEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// authorizationWire is the payload of an "authorization" control frame.
type authorizationWire struct {
	Status string `json:"status"` // "authorized" or "unauthorized"
	Action string `json:"action"`
}

// orderUpdateWire is the payload of a "trade_updates" frame.
type orderUpdateWire struct {
	OrderID        string    `json:"order_id"`
	Event          string    `json:"event"`
	FilledQty      float64   `json:"filled_qty"`
	FilledAvgPrice float64   `json:"filled_avg_price"`
	Symbol         string    `json:"symbol"`
	Qty            float64   `json:"qty"`
	Timestamp      time.Time `json:"timestamp"`
}

// DecodeTrading decodes one trading-channel frame: a single
// {stream, data} JSON envelope.
func DecodeTrading(frame []byte) (Batch, error) {
	var batch Batch

	var env tradingEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(frame), &env); err != nil {
		return batch, &DecodeError{Channel: "trading", Line: 1, Err: err}
	}

	switch env.Stream {
	case "authorization":
		batch.Controls++
		var auth authorizationWire
		if err := json.Unmarshal(env.Data, &auth); err != nil {
			return batch, &DecodeError{Channel: "trading", Line: 1, Err: err}
		}
		if auth.Status == "authorized" {
			batch.AuthAck = true
		} else {
			batch.AuthErr = fmt.Errorf("authorization %s", auth.Status)
		}

	case "trade_updates":
		var ou orderUpdateWire
		if err := json.Unmarshal(env.Data, &ou); err != nil {
			return batch, &DecodeError{Channel: "trading", Line: 1, Err: err}
		}
		batch.Events = append(batch.Events, events.OrderUpdate{
			OrderID:     ou.OrderID,
			Status:      ou.Event,
			FilledQty:   ou.FilledQty,
			FilledPrice: ou.FilledAvgPrice,
			Symbol:      ou.Symbol,
			Qty:         ou.Qty,
			Timestamp:   ou.Timestamp,
		})

	case "account_updates":
		batch.Events = append(batch.Events, events.AccountUpdate{Data: env.Data})

	default:
		return batch, &DecodeError{
			Channel: "trading",
			Line:    1,
			Err:     fmt.Errorf("unknown stream %q", env.Stream),
		}
	}

	return batch, nil
}
