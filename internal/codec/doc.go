// Package codec translates provider wire frames into typed domain events.
//
// The codec is pure and stateless:
//   - market-data frames are batches of newline-delimited field-coded JSON
//   - trading frames are single {stream, data} envelopes
//   - malformed messages are skipped and reported, never fatal
//
// Outbound frame shapes (subscribe/unsubscribe, listen) live here too so
// every wire format has a single home.
package codec
