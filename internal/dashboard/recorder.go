package dashboard

import (
	"github.com/swiftlens/swiftlens/internal/logging"
)

// Recorder is what the tool layer talks to. A nil *Recorder is valid and
// records nothing, so tools never branch on whether the dashboard is on.
type Recorder struct {
	store *Store
	hub   *Hub
	log   *logging.AppLogger
}

// NewRecorder wires a recorder to the store and live feed.
func NewRecorder(store *Store, hub *Hub, log *logging.AppLogger) *Recorder {
	return &Recorder{store: store, hub: hub, log: log}
}

// Begin opens an in-progress record for a tool invocation.
func (r *Recorder) Begin(tool, root, file string) ExecutionRecord {
	if r == nil {
		return ExecutionRecord{}
	}
	rec := NewRecord(tool, root, file)
	r.publish(rec)
	return rec
}

// End finishes a record. errType and errMsg are empty on success.
func (r *Recorder) End(rec ExecutionRecord, errType, errMsg string) {
	if r == nil {
		return
	}
	r.publish(rec.Finish(errType, errMsg))
}

func (r *Recorder) publish(rec ExecutionRecord) {
	if err := r.store.Put(rec); err != nil && r.log != nil {
		// Observability must never fail a tool call.
		r.log.Warn("failed to persist execution record", "tool", rec.ToolName, "error", err)
	}
	r.hub.Broadcast(rec)
}
