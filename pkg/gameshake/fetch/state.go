package fetch

import (
	"github.com/gameshake/gameshake/pkg/gameshake/client"
)

// State is a step of the fetch state machine:
// Idle -> Authenticating -> Fetching -> Completed | Failed, with a single
// Fetching -> Authenticating edge after a 401.
type State string

const (
	Idle           State = "Idle"
	Authenticating State = "Authenticating"
	Fetching       State = "Fetching"
	Completed      State = "Completed"
	Failed         State = "Failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

type EventKind int

const (
	// EventState announces a non-terminal transition.
	EventState EventKind = iota
	// EventRecords carries the items of one page.
	EventRecords
	// EventProgress follows every EventRecords.
	EventProgress
	EventCompleted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventRecords:
		return "records"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Progress counts records delivered so far. Total is nil when the server
// does not report one.
type Progress struct {
	Fetched int
	Total   *int
}

type Event struct {
	Kind     EventKind
	State    State
	Records  []client.Record
	Progress Progress
	// Result is set on EventCompleted and EventFailed.
	Result *Result
	// Err is set on EventFailed.
	Err error
}

// Terminal reports whether ev is the last event of a stream.
func (ev Event) Terminal() bool {
	return ev.Kind == EventCompleted || ev.Kind == EventFailed
}

// Result summarises a fetch. On failure Records holds what was delivered
// before the error.
type Result struct {
	Records     []client.Record
	Transitions []State
	Total       *int
	Pages       int
}
