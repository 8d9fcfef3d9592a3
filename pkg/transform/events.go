package transform

// Event is an outbound message from the engine to a caller. Concrete
// variants are ProgressEvent, ReadyEvent, UpdateEvent, CompleteEvent and
// ErrorEvent; switch on the concrete type to handle them exhaustively.
//
// Update, Complete and Error events raised by a generate call carry the
// caller-supplied request id unchanged so a caller juggling several in-flight
// requests can demultiplex responses. Load-scoped events (Progress, Ready)
// are not request-scoped and carry no id.
type Event interface {
	isEvent()
}

// Progress reports load progress as a 0-100 percentage with a status line.
type Progress struct {
	Progress float64
	Text     string
}

// ProgressEvent is emitted while a local model loads.
type ProgressEvent struct {
	Progress Progress
}

// ReadyEvent signals that a load command finished.
type ReadyEvent struct{}

// UpdateEvent carries the accumulated text so far for one request. Within a
// request, Text only ever grows; a caller may render it as the new full state.
type UpdateEvent struct {
	Text      string
	Mode      Mode
	Backend   string
	RequestID string
}

// CompleteEvent is the successful terminal event for one request. Text is the
// fully accumulated result regardless of how many updates were coalesced.
type CompleteEvent struct {
	Text      string
	Mode      Mode
	Backend   string
	RequestID string
}

// ErrorEvent is the failing terminal event. Code, when set, is one of the
// coarse error-code constants. Mode and RequestID are set for generate
// failures and empty for load failures.
type ErrorEvent struct {
	Err       string
	Code      string
	Mode      Mode
	RequestID string
}

func (ProgressEvent) isEvent() {}
func (ReadyEvent) isEvent()    {}
func (UpdateEvent) isEvent()   {}
func (CompleteEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}
