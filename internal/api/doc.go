// Package api implements the HTTP control surface over the task executor:
// task submission, cancellation and listing, plus a Server-Sent Events
// stream of lifecycle events off the bus.
package api
