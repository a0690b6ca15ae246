// Package task implements the background task execution core: a registry of
// pluggable handlers keyed by type, and an executor that queues submitted
// tasks by priority, bounds how many run concurrently, supports cooperative
// cancellation and timeouts, and publishes lifecycle events through an
// events.Sink without ever blocking the caller.
package task
