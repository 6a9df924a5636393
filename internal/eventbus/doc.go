// Package eventbus is a small in-process publish/subscribe bus.
//
// Producers publish Events under a publisher name (a topic). Consumers
// subscribe to one or more publishers and receive a Subscription that
// revokes the registration when cancelled.
//
// Design decision: Delivery is synchronous on the publisher's goroutine,
// outside the bus lock, because:
//  1. Scan lifecycle events must reach the gate in publish order
//  2. Consumers that need to do real work hand it off themselves
//  3. A consumer may cancel its own subscription from inside the callback
package eventbus
