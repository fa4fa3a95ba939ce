package domain

type StreamEventType string

const (
	EventStatus StreamEventType = "status"
	EventChunk  StreamEventType = "chunk"
	EventDone   StreamEventType = "done"
	EventError  StreamEventType = "error"
)

// StreamEvent is one element of the answer event stream. Ordering contract:
// zero or more status events, zero or more chunk events, then exactly one
// done or error event. Nothing follows the terminal event.
type StreamEvent struct {
	Type    StreamEventType
	Message string  // status and error payload
	Content string  // chunk payload, concatenation-ordered
	Answer  *Answer // done payload
}

func StatusEvent(message string) StreamEvent {
	return StreamEvent{Type: EventStatus, Message: message}
}

func ChunkEvent(content string) StreamEvent {
	return StreamEvent{Type: EventChunk, Content: content}
}

func DoneEvent(answer *Answer) StreamEvent {
	return StreamEvent{Type: EventDone, Answer: answer}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Message: message}
}
