package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	rec := &recorder{}
	r := newWorkflow(t, "r", workflow.WithObservers(rec))
	c := newWorkflow(t, "c", workflow.WithParent(r))
	rec.reset()

	require.NoError(t, c.Log(slog.LevelWarn, "disk almost full", "free", 12, slog.String("mount", "/data")))

	logs := c.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, slog.LevelWarn, logs[0].Level)
	assert.Equal(t, "disk almost full", logs[0].Message)
	assert.EqualValues(t, 12, logs[0].Attrs["free"])
	assert.Equal(t, "/data", logs[0].Attrs["mount"])
	assert.False(t, logs[0].Timestamp.IsZero())

	assert.Equal(t, []string{"log"}, rec.calls, "logs are not events")
	require.Len(t, rec.logs, 1)
	assert.Equal(t, "disk almost full", rec.logs[0].Message)

	logs[0].Message = "mutated"
	assert.Equal(t, "disk almost full", c.Logs()[0].Message, "Logs returns a copy")
}

func TestSetStatus(t *testing.T) {
	rec := &recorder{}
	r := newWorkflow(t, "r", workflow.WithObservers(rec))
	c := newWorkflow(t, "c", workflow.WithParent(r))
	rec.reset()

	require.NoError(t, c.SetStatus(domain.StatusRunning))

	assert.Equal(t, domain.StatusRunning, c.Status())
	assert.Equal(t, domain.StatusRunning, c.Node().Status)
	assert.Equal(t, []string{"event:treeUpdated", "tree"}, rec.calls)

	ev := rec.events[0].(domain.TreeUpdated)
	assert.Same(t, r.Node(), ev.Root)
}

func TestCaptureState(t *testing.T) {
	state := map[string]any{"step": "download", "progress": 0.5}
	rec := &recorder{}
	w := newWorkflow(t, "w",
		workflow.WithObservers(rec),
		workflow.WithStateFunc(func(context.Context) map[string]any { return state }),
	)

	got, err := w.CaptureState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, state, got)
	assert.Equal(t, state, w.Node().StateSnapshot)
	assert.Equal(t, []string{"state", "event:stateSnapshot", "event:treeUpdated", "tree"}, rec.calls)
	require.Len(t, rec.states, 1)
	assert.Same(t, w.Node(), rec.states[0])

	state["step"] = "changed"
	assert.Equal(t, "download", w.Node().StateSnapshot["step"], "snapshot is decoupled from the collaborator")
	got["progress"] = 1.0
	assert.Equal(t, 0.5, w.Node().StateSnapshot["progress"], "returned map is a copy")
}

func TestCaptureState_NoCollaborator(t *testing.T) {
	w := newWorkflow(t, "w")

	got, err := w.CaptureState(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NotNil(t, w.Node().StateSnapshot)
}

func TestRunStep_Success(t *testing.T) {
	rec := &recorder{}
	w := newWorkflow(t, "w", workflow.WithObservers(rec))

	ran := false
	err := w.RunStep(context.Background(), "fetch", func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []domain.EventType{domain.EventStepStart, domain.EventStepEnd}, rec.kinds())

	end := rec.events[1].(domain.StepEnd)
	assert.Equal(t, "fetch", end.Step)
	assert.NoError(t, end.Err)
	assert.GreaterOrEqual(t, end.Duration.Nanoseconds(), int64(0))
	assert.Equal(t, domain.StatusPending, w.Status())
}

func TestRunStep_Failure(t *testing.T) {
	boom := errors.New("connection refused")
	rec := &recorder{}
	w := newWorkflow(t, "w",
		workflow.WithObservers(rec),
		workflow.WithStateFunc(func(context.Context) map[string]any { return map[string]any{"attempt": 3} }),
	)
	require.NoError(t, w.Log(slog.LevelInfo, "dialing"))
	rec.reset()

	err := w.RunStep(context.Background(), "dial", func(context.Context) error { return boom })

	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.StatusFailed, w.Status())
	assert.Equal(t, map[string]any{"attempt": 3}, w.Node().StateSnapshot)
	assert.Equal(t, []domain.EventType{
		domain.EventStepStart,
		domain.EventStepEnd,
		domain.EventTreeUpdated,
		domain.EventStateSnapshot,
		domain.EventTreeUpdated,
		domain.EventError,
	}, rec.kinds())

	end := rec.events[1].(domain.StepEnd)
	assert.ErrorIs(t, end.Err, boom)

	errEv := rec.events[5].(domain.ErrorEvent)
	assert.ErrorIs(t, errEv.Err, boom)
	require.Len(t, errEv.Logs, 1)
	assert.Equal(t, "dialing", errEv.Logs[0].Message)
}

func TestRunStep_ContextPassedThrough(t *testing.T) {
	type ctxKey struct{}
	w := newWorkflow(t, "w")
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")

	var seen any
	require.NoError(t, w.RunStep(ctx, "s", func(ctx context.Context) error {
		seen = ctx.Value(ctxKey{})
		return nil
	}))
	assert.Equal(t, "v", seen)
}
