package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iava-ai/marketstream/internal/bus"
	"github.com/iava-ai/marketstream/internal/codec"
	"github.com/iava-ai/marketstream/internal/events"
)

var testAuth = json.RawMessage(`{"action":"auth","key":"k","secret":"s"}`)

// authThen reads the auth frame, replies with the data-channel ack, and
// hands the connection to the rest of the script.
func authThen(t *testing.T, rest func(*websocket.Conn)) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		_, auth, err := conn.ReadMessage()
		if err != nil {
			t.Logf("read auth: %v", err)
			return
		}
		if string(auth) != string(testAuth) {
			t.Errorf("auth frame = %s, want %s", auth, testAuth)
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"T":"success","msg":"authenticated"}`)); err != nil {
			return
		}
		if rest != nil {
			rest(conn)
		}
	}
}

func newTestSession(url string, b *bus.Bus, onReady func(*Session) error) *Session {
	return New(Params{
		Kind:      KindData,
		Auth:      testAuth,
		Transport: NewTransport(testTransportConfig(url), discardLogger()),
		Decode:    codec.DecodeData,
		Bus:       b,
		OnReady:   onReady,
		Logger:    discardLogger(),
	})
}

func TestSession_ReadyAfterAuth(t *testing.T) {
	server := mockWSServer(t, authThen(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	sess := newTestSession(wsURL(server), bus.New(discardLogger()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	select {
	case <-sess.Ready():
	case <-time.After(time.Second):
		t.Fatal("session never became ready")
	}

	if got := sess.State(); got != StateReady {
		t.Errorf("State = %v, want %v", got, StateReady)
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run returned %v after cancel, want nil", err)
	}
	if got := sess.State(); got != StateClosed {
		t.Errorf("State after shutdown = %v, want %v", got, StateClosed)
	}
}

func TestSession_PublishesEvents(t *testing.T) {
	frame := `{"T":"t","S":"AAPL","p":187.5,"s":100,"t":"2024-01-15T14:30:00Z"}
{"T":"q","S":"AAPL","bp":187.4,"bs":2,"ap":187.6,"as":3,"t":"2024-01-15T14:30:00Z"}`

	server := mockWSServer(t, authThen(t, func(conn *websocket.Conn) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		time.Sleep(time.Second)
	}))
	defer server.Close()

	b := bus.New(discardLogger())
	got := make(chan events.Event, 4)
	b.On(events.NameTrade, func(e events.Event) { got <- e })
	b.On(events.NameQuote, func(e events.Event) { got <- e })

	sess := newTestSession(wsURL(server), b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	var received []events.Event
	timeout := time.After(time.Second)
	for len(received) < 2 {
		select {
		case e := <-got:
			received = append(received, e)
		case <-timeout:
			t.Fatalf("timeout, received %d of 2 events", len(received))
		}
	}

	trade, ok := received[0].(events.Trade)
	if !ok {
		t.Fatalf("first event is %T, want Trade", received[0])
	}
	if trade.Symbol != "AAPL" || trade.Price != 187.5 {
		t.Errorf("trade = %+v", trade)
	}
	if _, ok := received[1].(events.Quote); !ok {
		t.Errorf("second event is %T, want Quote", received[1])
	}
}

func TestSession_SkipsMalformedFrames(t *testing.T) {
	server := mockWSServer(t, authThen(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{garbage`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"T":"t","S":"MSFT","p":402.1,"s":50}`))
		time.Sleep(time.Second)
	}))
	defer server.Close()

	b := bus.New(discardLogger())
	got := make(chan events.Event, 1)
	b.On(events.NameTrade, func(e events.Event) { got <- e })

	sess := newTestSession(wsURL(server), b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	select {
	case e := <-got:
		if e.(events.Trade).Symbol != "MSFT" {
			t.Errorf("trade = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("session did not survive the malformed frame")
	}
}

func TestSession_AuthRejected(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"T":"error","code":402,"msg":"auth failed"}`))
		time.Sleep(time.Second)
	})
	defer server.Close()

	sess := newTestSession(wsURL(server), bus.New(discardLogger()), nil)

	err := sess.Run(context.Background())
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("Run returned %v, want ErrAuthRejected", err)
	}
}

func TestSession_SendJSONBeforeReady(t *testing.T) {
	sess := newTestSession("ws://localhost:12345", bus.New(discardLogger()), nil)

	err := sess.SendJSON(codec.SubscribeFrame{Action: "subscribe"})
	if err != ErrNotConnected {
		t.Errorf("SendJSON before ready = %v, want ErrNotConnected", err)
	}
}

func TestSession_OnReadyRunsBeforeReady(t *testing.T) {
	frames := make(chan string, 4)

	server := mockWSServer(t, authThen(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- string(msg)
		}
	}))
	defer server.Close()

	replay := codec.SubscribeFrame{Action: "subscribe", Trades: []string{"AAPL"}}
	onReady := func(s *Session) error {
		return s.SendJSON(replay)
	}

	sess := newTestSession(wsURL(server), bus.New(discardLogger()), onReady)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	select {
	case <-sess.Ready():
	case <-time.After(time.Second):
		t.Fatal("session never became ready")
	}

	// Anything sent after Ready must arrive after the replay frame.
	if err := sess.SendJSON(codec.SubscribeFrame{Action: "subscribe", Bars: []string{"MSFT"}}); err != nil {
		t.Fatalf("SendJSON after ready: %v", err)
	}

	want, _ := json.Marshal(replay)
	select {
	case first := <-frames:
		if first != string(want) {
			t.Errorf("first frame after auth = %s, want replay %s", first, want)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the replay frame")
	}
}

func TestSession_TradingChannel(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"authorization","data":{"status":"authorized","action":"authenticate"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"trade_updates","data":{"order_id":"1","event":"fill","filled_qty":10,"filled_avg_price":101.5,"symbol":"MSFT","qty":10}}`))
		time.Sleep(time.Second)
	})
	defer server.Close()

	b := bus.New(discardLogger())
	got := make(chan events.Event, 1)
	b.On(events.NameOrderUpdate, func(e events.Event) { got <- e })

	sess := New(Params{
		Kind:      KindTrading,
		Auth:      testAuth,
		Transport: NewTransport(testTransportConfig(wsURL(server)), discardLogger()),
		Decode:    codec.DecodeTrading,
		Bus:       b,
		Logger:    discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	select {
	case e := <-got:
		ou := e.(events.OrderUpdate)
		if ou.OrderID != "1" || ou.Status != "fill" || ou.Symbol != "MSFT" {
			t.Errorf("order update = %+v", ou)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for order update")
	}
}
