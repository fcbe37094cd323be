package domain

import "time"

// EventType is the discriminator of the closed event set.
type EventType string

const (
	EventChildAttached EventType = "childAttached"
	EventChildDetached EventType = "childDetached"
	EventTreeUpdated   EventType = "treeUpdated"
	EventStateSnapshot EventType = "stateSnapshot"
	EventStepStart     EventType = "stepStart"
	EventStepEnd       EventType = "stepEnd"
	EventError         EventType = "error"
)

// IsStructural reports whether observers must also be told the tree changed.
func (t EventType) IsStructural() bool {
	switch t {
	case EventChildAttached, EventChildDetached, EventTreeUpdated:
		return true
	}
	return false
}

// Event is one of the event records declared in this file. The set is closed:
// the unexported method keeps other packages from adding variants.
type Event interface {
	Kind() EventType
	OccurredAt() time.Time
	sealed()
}

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time
}

func (b EventBase) OccurredAt() time.Time { return b.Timestamp }
func (EventBase) sealed()                 {}

func now() EventBase { return EventBase{Timestamp: time.Now().UTC()} }

// ChildAttached carries the whole attached subtree so receivers can index it.
type ChildAttached struct {
	EventBase
	ParentID string
	Child    *Node
}

// ChildDetached carries ids only; receivers resolve descendants from their own state.
type ChildDetached struct {
	EventBase
	ParentID string
	ChildID  string
}

// TreeUpdated signals a non-structural change (status, state) somewhere in the tree.
type TreeUpdated struct {
	EventBase
	Root *Node
}

// StateSnapshot is emitted after a node's observed state was captured.
type StateSnapshot struct {
	EventBase
	Node *Node
}

// StepStart is emitted before a step body runs.
type StepStart struct {
	EventBase
	Node *Node
	Step string
}

// StepEnd is emitted after a step body returns; Err is nil on success.
type StepEnd struct {
	EventBase
	Node     *Node
	Step     string
	Duration time.Duration
	Err      error
}

// ErrorEvent reports a failure together with a copy of the node's logs.
type ErrorEvent struct {
	EventBase
	Node *Node
	Err  error
	Logs []LogEntry
}

func (ChildAttached) Kind() EventType { return EventChildAttached }
func (ChildDetached) Kind() EventType { return EventChildDetached }
func (TreeUpdated) Kind() EventType   { return EventTreeUpdated }
func (StateSnapshot) Kind() EventType { return EventStateSnapshot }
func (StepStart) Kind() EventType     { return EventStepStart }
func (StepEnd) Kind() EventType       { return EventStepEnd }
func (ErrorEvent) Kind() EventType    { return EventError }

func NewChildAttached(parentID string, child *Node) ChildAttached {
	return ChildAttached{EventBase: now(), ParentID: parentID, Child: child}
}

func NewChildDetached(parentID, childID string) ChildDetached {
	return ChildDetached{EventBase: now(), ParentID: parentID, ChildID: childID}
}

func NewTreeUpdated(root *Node) TreeUpdated {
	return TreeUpdated{EventBase: now(), Root: root}
}

func NewStateSnapshot(node *Node) StateSnapshot {
	return StateSnapshot{EventBase: now(), Node: node}
}

func NewStepStart(node *Node, step string) StepStart {
	return StepStart{EventBase: now(), Node: node, Step: step}
}

func NewStepEnd(node *Node, step string, d time.Duration, err error) StepEnd {
	return StepEnd{EventBase: now(), Node: node, Step: step, Duration: d, Err: err}
}

// NewErrorEvent copies logs so the event never aliases the node's live list.
func NewErrorEvent(node *Node, err error, logs []LogEntry) ErrorEvent {
	return ErrorEvent{EventBase: now(), Node: node, Err: err, Logs: append([]LogEntry(nil), logs...)}
}

// SubjectID returns the id of the node an event is about.
func SubjectID(e Event) string {
	switch ev := e.(type) {
	case ChildAttached:
		return ev.ParentID
	case ChildDetached:
		return ev.ParentID
	case TreeUpdated:
		return nodeID(ev.Root)
	case StateSnapshot:
		return nodeID(ev.Node)
	case StepStart:
		return nodeID(ev.Node)
	case StepEnd:
		return nodeID(ev.Node)
	case ErrorEvent:
		return nodeID(ev.Node)
	}
	return ""
}

func nodeID(n *Node) string {
	if n == nil {
		return ""
	}
	return n.ID
}
