// Package bus implements the in-process event bus.
//
// Consumers register callbacks per event name and receive every decoded
// domain event published for that name. Delivery is synchronous and in
// registration order; callback failures are isolated from each other and
// from the publisher.
package bus
