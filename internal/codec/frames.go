package codec

// SubscribeFrame is the outbound subscription change frame for the
// market-data channel. Only the types actually being changed are
// included; empty lists are omitted from the wire form.
type SubscribeFrame struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Trades []string `json:"trades,omitempty"`
	Quotes []string `json:"quotes,omitempty"`
	Bars   []string `json:"bars,omitempty"`
}

// ListenFrame is the outbound frame that starts the trading channel's
// update streams after authentication.
type ListenFrame struct {
	Action string     `json:"action"` // always "listen"
	Data   ListenData `json:"data"`
}

// ListenData lists the trading streams to enable.
type ListenData struct {
	Streams []string `json:"streams"`
}

// NewListenFrame returns the listen frame enabling the given streams.
func NewListenFrame(streams ...string) ListenFrame {
	return ListenFrame{Action: "listen", Data: ListenData{Streams: streams}}
}
