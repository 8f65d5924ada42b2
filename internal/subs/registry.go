package subs

import (
	"sort"
	"sync"
)

// Type is one subscribable message type on the market-data channel.
type Type string

const (
	TypeTrade Type = "trade"
	TypeQuote Type = "quote"
	TypeBar   Type = "bar"
)

// AllTypes lists every subscribable type.
var AllTypes = []Type{TypeTrade, TypeQuote, TypeBar}

// Snapshot is the per-type view of the registry: one sorted symbol list
// per message type, directly usable to build a provider subscribe frame.
// Add and Remove return their effective delta in the same shape.
type Snapshot struct {
	Trades []string
	Quotes []string
	Bars   []string
}

// Empty reports whether the snapshot carries no symbols at all.
func (s Snapshot) Empty() bool {
	return len(s.Trades) == 0 && len(s.Quotes) == 0 && len(s.Bars) == 0
}

// Registry tracks the set of symbols currently subscribed, per message
// type, so a reconnect can replay subscriptions without caller
// involvement. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	symbols map[string]map[Type]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		symbols: make(map[string]map[Type]struct{}),
	}
}

// Add subscribes the given symbols to the given types and returns the
// pairs that were actually added. Re-adding an existing pair is a no-op
// and does not appear in the delta.
func (r *Registry) Add(symbols []string, types []Type) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var delta Snapshot
	for _, sym := range symbols {
		if sym == "" {
			continue
		}
		set := r.symbols[sym]
		if set == nil {
			set = make(map[Type]struct{})
			r.symbols[sym] = set
		}
		for _, t := range types {
			if _, ok := set[t]; ok {
				continue
			}
			set[t] = struct{}{}
			delta.append(t, sym)
		}
	}

	delta.sort()
	return delta
}

// Remove unsubscribes the given symbols from the given types and returns
// the pairs that were actually removed. A symbol whose last type is
// removed disappears from the registry entirely.
func (r *Registry) Remove(symbols []string, types []Type) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var delta Snapshot
	for _, sym := range symbols {
		set := r.symbols[sym]
		if set == nil {
			continue
		}
		for _, t := range types {
			if _, ok := set[t]; !ok {
				continue
			}
			delete(set, t)
			delta.append(t, sym)
		}
		if len(set) == 0 {
			delete(r.symbols, sym)
		}
	}

	delta.sort()
	return delta
}

// Snapshot returns the current per-type view, used to rebuild provider
// subscribe frames after a reconnect.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var snap Snapshot
	for sym, set := range r.symbols {
		for t := range set {
			snap.append(t, sym)
		}
	}

	snap.sort()
	return snap
}

// Types returns the per-symbol view: the sorted types the symbol is
// subscribed to, or nil if the symbol is not present.
func (r *Registry) Types(symbol string) []Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.symbols[symbol]
	if len(set) == 0 {
		return nil
	}

	out := make([]Type, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of subscribed symbols.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.symbols)
}

// Clear drops all subscriptions. Used by the facade on disconnect.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.symbols = make(map[string]map[Type]struct{})
	r.mu.Unlock()
}

func (s *Snapshot) append(t Type, symbol string) {
	switch t {
	case TypeTrade:
		s.Trades = append(s.Trades, symbol)
	case TypeQuote:
		s.Quotes = append(s.Quotes, symbol)
	case TypeBar:
		s.Bars = append(s.Bars, symbol)
	}
}

func (s *Snapshot) sort() {
	sort.Strings(s.Trades)
	sort.Strings(s.Quotes)
	sort.Strings(s.Bars)
}
