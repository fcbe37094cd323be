package observability

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

const defaultTrailBuffer = 256

// Trail records the encoded event stream of one root in a ports.TrailSink.
// Events are encoded inside the callback, while the tree is still locked, and
// written by Run on its own goroutine. When the buffer is full the event is
// dropped and counted.
//
// treeUpdated frames carry the root record without its descendants, so a
// status change costs the same on any tree size. Readers that need the whole
// tree fetch it from the index.
type Trail struct {
	ports.BaseObserver

	rootID  string
	sink    ports.TrailSink
	queue   chan []byte
	logger  *slog.Logger
	dropped atomic.Int64
}

// TrailOption configures a Trail.
type TrailOption func(*Trail)

// WithTrailBuffer sets how many encoded events may wait for the sink.
func WithTrailBuffer(n int) TrailOption {
	return func(t *Trail) {
		if n > 0 {
			t.queue = make(chan []byte, n)
		}
	}
}

// WithTrailLogger sets the logger used for encode and sink failures.
func WithTrailLogger(logger *slog.Logger) TrailOption {
	return func(t *Trail) {
		t.logger = logger
	}
}

// NewTrail creates a trail for the tree whose root has rootID.
func NewTrail(rootID string, sink ports.TrailSink, opts ...TrailOption) *Trail {
	t := &Trail{
		rootID: rootID,
		sink:   sink,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.queue == nil {
		t.queue = make(chan []byte, defaultTrailBuffer)
	}
	t.logger = t.logger.With("component", "trail", "root", rootID)
	return t
}

func (t *Trail) OnEvent(event domain.Event) {
	payload, err := domain.MarshalEvent(event, domain.WithShallowRoot())
	if err != nil {
		t.logger.Error("Failed to encode event", "type", event.Kind(), "err", err)
		return
	}
	select {
	case t.queue <- payload:
	default:
		t.dropped.Add(1)
		t.logger.Warn("Trail buffer full, dropping event", "type", event.Kind())
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (t *Trail) Dropped() int64 {
	return t.dropped.Load()
}

// Run writes queued events to the sink until ctx is cancelled, then flushes
// whatever is still buffered.
func (t *Trail) Run(ctx context.Context) error {
	for {
		select {
		case payload := <-t.queue:
			t.write(ctx, payload)
		case <-ctx.Done():
			t.flush(context.WithoutCancel(ctx))
			return nil
		}
	}
}

func (t *Trail) flush(ctx context.Context) {
	for {
		select {
		case payload := <-t.queue:
			t.write(ctx, payload)
		default:
			return
		}
	}
}

func (t *Trail) write(ctx context.Context, payload []byte) {
	if err := t.sink.Append(ctx, t.rootID, payload); err != nil {
		t.logger.Error("Failed to append to trail", "err", err)
	}
}
