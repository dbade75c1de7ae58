package transmit

import "github.com/sweeney/patchbay/internal/patch"

// Recorder is a Sink that records events for test assertions.
type Recorder struct {
	// Events contains every event that was sent.
	Events []patch.Event

	// SendError, if set, is returned by Send and the event is not recorded.
	SendError error
}

// Send records the event.
func (r *Recorder) Send(event patch.Event) error {
	if r.SendError != nil {
		return r.SendError
	}
	r.Events = append(r.Events, event)
	return nil
}

// Reset clears recorded events and the injected error.
func (r *Recorder) Reset() {
	r.Events = nil
	r.SendError = nil
}
