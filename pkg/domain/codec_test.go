package domain

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEvent_WireFields(t *testing.T) {
	tree := sampleTree()
	node := tree.Children[0]

	tests := []struct {
		name  string
		event Event
		want  map[string]any
	}{
		{
			name:  "childAttached",
			event: NewChildAttached("r", node),
			want:  map[string]any{"type": "childAttached", "parentId": "r"},
		},
		{
			name:  "childDetached",
			event: NewChildDetached("r", "a"),
			want:  map[string]any{"type": "childDetached", "parentId": "r", "childId": "a"},
		},
		{
			name:  "stepEnd",
			event: NewStepEnd(node, "fetch", 1500*time.Millisecond, errors.New("timeout")),
			want:  map[string]any{"type": "stepEnd", "step": "fetch", "durationMs": float64(1500), "error": "timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalEvent(tt.event)
			require.NoError(t, err)

			var raw map[string]any
			require.NoError(t, json.Unmarshal(data, &raw))
			for k, v := range tt.want {
				assert.Equal(t, v, raw[k], k)
			}
			assert.Contains(t, raw, "timestamp")
		})
	}
}

func TestMarshalEvent_ShallowRoot(t *testing.T) {
	tree := sampleTree()
	tree.Status = StatusRunning

	full, err := MarshalEvent(NewTreeUpdated(tree))
	require.NoError(t, err)
	shallow, err := MarshalEvent(NewTreeUpdated(tree), WithShallowRoot())
	require.NoError(t, err)
	assert.Less(t, len(shallow), len(full))

	var raw struct {
		Root map[string]any `json:"root"`
	}
	require.NoError(t, json.Unmarshal(shallow, &raw))
	assert.Equal(t, "r", raw.Root["id"])
	assert.Equal(t, string(StatusRunning), raw.Root["status"])
	assert.Contains(t, raw.Root, "children")
	assert.Nil(t, raw.Root["children"])

	got, err := UnmarshalEvent(shallow)
	require.NoError(t, err)
	root := got.(TreeUpdated).Root
	assert.Equal(t, "r", root.ID)
	assert.Empty(t, root.Children)

	// Other kinds ignore the option.
	attached, err := MarshalEvent(NewChildAttached("r", tree.Children[0]), WithShallowRoot())
	require.NoError(t, err)
	ev, err := UnmarshalEvent(attached)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.(ChildAttached).Child.Size())
}

func TestMarshalEvent_ChildCarriesSubtree(t *testing.T) {
	tree := sampleTree()
	data, err := MarshalEvent(NewChildAttached("r", tree.Children[0]))
	require.NoError(t, err)

	got, err := UnmarshalEvent(data)
	require.NoError(t, err)

	ev, ok := got.(ChildAttached)
	require.True(t, ok)
	assert.Equal(t, "a", ev.Child.ID)
	require.Len(t, ev.Child.Children, 1)
	assert.Equal(t, "a1", ev.Child.Children[0].ID)
	assert.Same(t, ev.Child, ev.Child.Children[0].Parent)
	assert.Nil(t, ev.Child.Parent, "decoded subtree is detached")
}

func TestUnmarshalEvent_ErrorEvent(t *testing.T) {
	node := NewNode("n", "n")
	logs := []LogEntry{NewLogEntry(slog.LevelError, "failed", map[string]any{"code": "E42"})}
	data, err := MarshalEvent(NewErrorEvent(node, errors.New("boom"), logs))
	require.NoError(t, err)

	got, err := UnmarshalEvent(data)
	require.NoError(t, err)

	ev := got.(ErrorEvent)
	assert.EqualError(t, ev.Err, "boom")
	require.Len(t, ev.Logs, 1)
	assert.Equal(t, slog.LevelError, ev.Logs[0].Level)
	assert.Equal(t, "E42", ev.Logs[0].Attrs["code"])
	assert.Equal(t, "n", SubjectID(ev))
}

func TestUnmarshalEvent_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		is      error
	}{
		{name: "unknown type", payload: `{"type":"nodeExploded"}`, is: ErrUnknownEventType},
		{name: "attached without child", payload: `{"type":"childAttached","parentId":"r"}`},
		{name: "detached without id", payload: `{"type":"childDetached","parentId":"r"}`},
		{name: "updated without root", payload: `{"type":"treeUpdated"}`},
		{name: "not json", payload: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.payload))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestMarshalEvent_Nil(t *testing.T) {
	_, err := MarshalEvent(nil)
	assert.Error(t, err)
}

func TestEventType_IsStructural(t *testing.T) {
	structural := map[EventType]bool{
		EventChildAttached: true,
		EventChildDetached: true,
		EventTreeUpdated:   true,
		EventStateSnapshot: false,
		EventStepStart:     false,
		EventStepEnd:       false,
		EventError:         false,
	}
	for kind, want := range structural {
		assert.Equal(t, want, kind.IsStructural(), kind)
	}
}

func TestErrors_Is(t *testing.T) {
	for kind, sentinel := range map[ValidationKind]error{
		KindDuplicateAttachment: ErrDuplicateAttachment,
		KindParentConflict:      ErrParentConflict,
		KindCircularReference:   ErrCircularReference,
		KindNotAttached:         ErrNotAttached,
		KindNotRoot:             ErrNotRoot,
		KindDuplicateID:         ErrDuplicateID,
	} {
		err := error(&ValidationError{Kind: kind, Op: "op", Msg: "msg"})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, "op: msg", err.Error())
	}

	ierr := error(&IntegrityError{Op: "root lookup", NodeID: "x", Msg: "cycle"})
	assert.ErrorIs(t, ierr, ErrIntegrity)

	cause := errors.New("cause")
	oerr := error(&ObserverError{Callback: "OnEvent", Observer: "*x", Cause: cause})
	assert.ErrorIs(t, oerr, cause)
	assert.Contains(t, oerr.Error(), "OnEvent")
}
