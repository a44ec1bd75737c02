package session

import "github.com/danmuck/rndcctl/internal/protocol/wire"

// State is the session lifecycle position. Transitions only move forward.
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventReady EventKind = iota + 1
	EventData
	EventError
	EventTimeout
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventData:
		return "data"
	case EventError:
		return "error"
	case EventTimeout:
		return "timeout"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one notification. Data is set for EventData, Err for EventError
// and EventTimeout.
type Event struct {
	Kind EventKind
	Data *wire.Table
	Err  error
}
