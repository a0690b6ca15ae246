package task

import "github.com/google/uuid"

// reporter is the Reporter handed to a running handler. It routes back
// through the executor so that every progress and stream event is published
// under the executor's lock, keeping the per-task event order strict and
// suppressing anything a rogue handler reports after settling.
type reporter struct {
	exec *Executor
	id   uuid.UUID
}

func (r *reporter) Progress(percent float64, message string, data any) {
	r.exec.publishProgress(r.id, percent, message, data)
}

func (r *reporter) Stream(chunk string) {
	r.exec.publishStream(r.id, chunk)
}

var _ Reporter = (*reporter)(nil)
