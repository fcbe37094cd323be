package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// wireEvent is the JSON envelope for every event variant. Which fields are
// present depends on Type.
type wireEvent struct {
	Type       EventType  `json:"type"`
	Timestamp  time.Time  `json:"timestamp"`
	ParentID   string     `json:"parentId,omitempty"`
	ChildID    string     `json:"childId,omitempty"`
	Child      *NodeView  `json:"child,omitempty"`
	Root       *NodeView  `json:"root,omitempty"`
	Node       *NodeView  `json:"node,omitempty"`
	Step       string     `json:"step,omitempty"`
	DurationMs *int64     `json:"durationMs,omitempty"`
	Error      string     `json:"error,omitempty"`
	Logs       []LogEntry `json:"logs,omitempty"`
}

// MarshalOption adjusts how MarshalEvent encodes an event.
type MarshalOption func(*marshalConfig)

type marshalConfig struct {
	shallowRoot bool
}

// WithShallowRoot encodes treeUpdated with the root record only. Its
// children are sent as null, so the frame no longer grows with the tree.
func WithShallowRoot() MarshalOption {
	return func(c *marshalConfig) {
		c.shallowRoot = true
	}
}

// MarshalEvent encodes an event into its wire form.
func MarshalEvent(e Event, opts ...MarshalOption) ([]byte, error) {
	if e == nil {
		return nil, errors.New("cannot marshal nil event")
	}
	var cfg marshalConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	w := wireEvent{Type: e.Kind(), Timestamp: e.OccurredAt()}

	switch ev := e.(type) {
	case ChildAttached:
		w.ParentID = ev.ParentID
		w.Child = ev.Child.View()
	case ChildDetached:
		w.ParentID = ev.ParentID
		w.ChildID = ev.ChildID
	case TreeUpdated:
		if cfg.shallowRoot && ev.Root != nil {
			w.Root = newView(ev.Root)
		} else {
			w.Root = ev.Root.View()
		}
	case StateSnapshot:
		w.Node = ev.Node.View()
	case StepStart:
		w.Node = ev.Node.View()
		w.Step = ev.Step
	case StepEnd:
		w.Node = ev.Node.View()
		w.Step = ev.Step
		ms := ev.Duration.Milliseconds()
		w.DurationMs = &ms
		if ev.Err != nil {
			w.Error = ev.Err.Error()
		}
	case ErrorEvent:
		w.Node = ev.Node.View()
		if ev.Err != nil {
			w.Error = ev.Err.Error()
		}
		w.Logs = ev.Logs
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, e)
	}

	return json.Marshal(w)
}

// UnmarshalEvent decodes the wire form. Node payloads come back as detached
// record trees; errors come back as opaque messages.
func UnmarshalEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	base := EventBase{Timestamp: w.Timestamp}

	switch w.Type {
	case EventChildAttached:
		if w.Child == nil {
			return nil, missingField(w.Type, "child")
		}
		return ChildAttached{EventBase: base, ParentID: w.ParentID, Child: w.Child.Node()}, nil
	case EventChildDetached:
		if w.ChildID == "" {
			return nil, missingField(w.Type, "childId")
		}
		return ChildDetached{EventBase: base, ParentID: w.ParentID, ChildID: w.ChildID}, nil
	case EventTreeUpdated:
		if w.Root == nil {
			return nil, missingField(w.Type, "root")
		}
		return TreeUpdated{EventBase: base, Root: w.Root.Node()}, nil
	case EventStateSnapshot:
		return StateSnapshot{EventBase: base, Node: w.Node.Node()}, nil
	case EventStepStart:
		return StepStart{EventBase: base, Node: w.Node.Node(), Step: w.Step}, nil
	case EventStepEnd:
		var d time.Duration
		if w.DurationMs != nil {
			d = time.Duration(*w.DurationMs) * time.Millisecond
		}
		return StepEnd{EventBase: base, Node: w.Node.Node(), Step: w.Step, Duration: d, Err: wireError(w.Error)}, nil
	case EventError:
		return ErrorEvent{EventBase: base, Node: w.Node.Node(), Err: wireError(w.Error), Logs: w.Logs}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
}

func missingField(t EventType, field string) error {
	return fmt.Errorf("event %s: missing required field %q", t, field)
}

func wireError(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
