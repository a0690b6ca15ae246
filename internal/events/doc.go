// Package events defines the lifecycle events emitted by the task executor
// and the sink boundary they are published through.
//
// The executor never assumes a transport: it only sees the Sink interface.
// Bus is the in-process implementation, fanning events out to broadcast
// subscribers and, when an event carries an origin, to subscribers registered
// for that origin.
package events
