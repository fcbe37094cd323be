package canopy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/debugger"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the release of the canopy module and CLI.
var Version = "0.1.0"

// Debugger is the high-level entry point for observing a workflow tree.
// It subscribes a tree index and the observability observers to the tree's
// root and keeps them in sync as the tree is mutated.
type Debugger struct {
	Root        *workflow.Workflow
	Index       *debugger.Index
	Streams     *observability.Broadcaster
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
	Trail       *observability.Trail
	TrailSink   ports.TrailSink
	eventLog    *observability.LoggingObserver
	logger      *slog.Logger
	namespace   string
	logEvents   bool
	trailBuffer int
}

// Option defines a functional option for configuring the Debugger.
type Option func(*Debugger)

// WithLogger sets the structured logger for the debugger's observers.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Debugger) {
		d.logger = logger
	}
}

// WithTrailSink records the encoded event trail of the tree in sink.
func WithTrailSink(sink ports.TrailSink) Option {
	return func(d *Debugger) {
		d.TrailSink = sink
	}
}

// WithTrailBuffer sets how many events may wait for the trail sink.
func WithTrailBuffer(n int) Option {
	return func(d *Debugger) {
		d.trailBuffer = n
	}
}

// WithMetricsNamespace sets the Prometheus namespace (default "canopy").
func WithMetricsNamespace(ns string) Option {
	return func(d *Debugger) {
		d.namespace = ns
	}
}

// WithRegistry registers the debugger's collectors on reg instead of a
// fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(d *Debugger) {
		if reg != nil {
			d.Registry = reg
		}
	}
}

// WithEventLogging also logs every event through the debugger's logger.
func WithEventLogging() Option {
	return func(d *Debugger) {
		d.logEvents = true
	}
}

// Attach resolves the root of w's tree, indexes it and registers the
// debugger's observers on it. On error nothing stays registered.
func Attach(w *workflow.Workflow, opts ...Option) (_ *Debugger, err error) {
	d := &Debugger{
		logger:    logging.NewNop(),
		namespace: "canopy",
		Registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(d)
	}

	idx, root, err := debugger.Attach(w)
	if err != nil {
		return nil, err
	}
	d.Root = root
	d.Index = idx

	registered := []ports.Observer{idx}
	defer func() {
		if err == nil {
			return
		}
		for _, obs := range registered {
			if rerr := root.RemoveObserver(obs); rerr != nil {
				d.logger.Warn("Failed to unregister observer", "root", root.ID(), "err", rerr)
			}
		}
	}()

	d.Metrics, err = observability.NewMetrics(d.Registry, d.namespace)
	if err != nil {
		return nil, err
	}
	if err := observability.RegisterIndexSize(d.Registry, d.namespace, idx.Len); err != nil {
		return nil, err
	}
	d.Streams = observability.NewBroadcaster(d.logger)

	observers := []ports.Observer{d.Metrics, d.Streams}
	if d.TrailSink != nil {
		d.Trail = observability.NewTrail(root.ID(), d.TrailSink,
			observability.WithTrailBuffer(d.trailBuffer),
			observability.WithTrailLogger(d.logger),
		)
		observers = append(observers, d.Trail)
	}
	if d.logEvents {
		d.eventLog = observability.NewLoggingObserver(d.logger)
		observers = append(observers, d.eventLog)
	}

	for _, obs := range observers {
		if err := root.AddObserver(obs); err != nil {
			return nil, fmt.Errorf("failed to register observer: %w", err)
		}
		registered = append(registered, obs)
	}
	return d, nil
}

// Run drives background work (the trail writer) until ctx is cancelled.
// Without a trail sink it simply waits for ctx.
func (d *Debugger) Run(ctx context.Context) error {
	if d.Trail == nil {
		<-ctx.Done()
		return nil
	}
	return d.Trail.Run(ctx)
}

// Detach unregisters every observer the debugger added.
func (d *Debugger) Detach() error {
	observers := []ports.Observer{d.Index, d.Metrics, d.Streams}
	if d.Trail != nil {
		observers = append(observers, d.Trail)
	}
	if d.eventLog != nil {
		observers = append(observers, d.eventLog)
	}
	for _, obs := range observers {
		if err := d.Root.RemoveObserver(obs); err != nil {
			return err
		}
	}
	return nil
}
