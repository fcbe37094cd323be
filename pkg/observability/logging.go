package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/canopy/pkg/domain"
)

// LoggingObserver logs every observer callback.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a logging observer. A nil logger uses slog.Default.
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger.With("component", "observer")}
}

// OnLog replays node log lines at their own level.
func (o *LoggingObserver) OnLog(entry domain.LogEntry) {
	args := make([]any, 0, len(entry.Attrs)*2)
	for k, v := range entry.Attrs {
		args = append(args, k, v)
	}
	o.logger.Log(context.Background(), entry.Level, entry.Message, args...)
}

func (o *LoggingObserver) OnEvent(event domain.Event) {
	attrs := []any{"type", event.Kind(), "subject", domain.SubjectID(event)}

	switch ev := event.(type) {
	case domain.ChildAttached:
		o.logger.Info("child attached", append(attrs, "child", ev.Child.ID, "subtree_size", ev.Child.Size())...)
	case domain.ChildDetached:
		o.logger.Info("child detached", append(attrs, "child", ev.ChildID)...)
	case domain.StepStart:
		o.logger.Debug("step started", append(attrs, "step", ev.Step)...)
	case domain.StepEnd:
		attrs = append(attrs, "step", ev.Step, "duration", ev.Duration)
		if ev.Err != nil {
			o.logger.Warn("step failed", append(attrs, "err", ev.Err)...)
			return
		}
		o.logger.Debug("step finished", attrs...)
	case domain.ErrorEvent:
		o.logger.Error("workflow error", append(attrs, "err", ev.Err, "logs", len(ev.Logs))...)
	default:
		o.logger.Debug("event", attrs...)
	}
}

func (o *LoggingObserver) OnStateUpdated(node *domain.Node) {
	o.logger.Debug("state captured", "node", node.ID, "keys", len(node.StateSnapshot))
}

func (o *LoggingObserver) OnTreeChanged(root *domain.Node) {
	o.logger.Debug("tree changed", "root", root.ID)
}
