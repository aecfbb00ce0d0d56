package process

// EventType classifies a stream event emitted by an assistant process.
type EventType string

const (
	EventText  EventType = "text"
	EventError EventType = "error"
	EventDone  EventType = "done"
)

// StreamEvent is one NDJSON line on the assistant process's stdout. Text
// events carry a chunk of the reply, done marks the end of a complete reply,
// error marks an abnormal end.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// prompt is one NDJSON line on the assistant process's stdin.
type prompt struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
