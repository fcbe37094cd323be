package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/scenario"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/adapters/middleware"
	"github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/workflow"
)

// session is a scenario whose initial roots each carry a debugger.
type session struct {
	scenario  *scenario.Scenario
	tree      *scenario.Tree
	debuggers []*canopy.Debugger
	sink      ports.TrailSink
	outcomes  []scenario.Outcome

	runCtx    context.Context
	stop      context.CancelFunc
	wg        sync.WaitGroup
	closeSink func() error
}

func openSession(ctx context.Context, path string) (*session, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}

	s := &session{scenario: sc}
	s.runCtx, s.stop = context.WithCancel(ctx)

	if cfg.Redis.Addr != "" {
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithMaxLen(cfg.Redis.MaxLen),
			redis.WithTTL(cfg.Redis.TTL),
		)
		s.sink, s.closeSink = store, store.Close
		logger.Info("Recording event trail in redis", "addr", cfg.Redis.Addr, "channel", store.Channel())
	} else {
		s.sink = memory.NewTrailStore(cfg.Trail.MaxLen)
	}

	mws, err := trailMiddlewares()
	if err != nil {
		s.close()
		return nil, err
	}
	s.sink = middleware.Chain(s.sink, mws...)
	return s, nil
}

// trailMiddlewares redacts before it seals, so masked values never reach the
// cipher.
func trailMiddlewares() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Trail.Redact) > 0 {
		redact, err := middleware.NewRedactMiddleware(cfg.Trail.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, redact)
	}
	key, err := cfg.Trail.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, seal)
	}
	return mws, nil
}

// attach registers a debugger on root and starts its trail writer.
func (s *session) attach(root *workflow.Workflow) error {
	d, err := canopy.Attach(root,
		canopy.WithLogger(logger),
		canopy.WithTrailSink(s.sink),
		canopy.WithTrailBuffer(cfg.Trail.Buffer),
		canopy.WithMetricsNamespace(cfg.Metrics.Namespace),
		canopy.WithEventLogging(),
	)
	if err != nil {
		return err
	}
	s.debuggers = append(s.debuggers, d)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := d.Run(s.runCtx); err != nil {
			logger.Error("Debugger stopped", "root", d.Root.ID(), "err", err)
		}
	}()
	return nil
}

// run builds the tree and applies every op at once.
func (s *session) run(ctx context.Context) error {
	tree, outcomes, err := scenario.Run(ctx, s.scenario, s.attach, scenario.WithLogger(logger))
	s.tree, s.outcomes = tree, outcomes
	return err
}

// build creates the tree and its debuggers without applying ops.
func (s *session) build() error {
	tree, err := scenario.Build(s.scenario, scenario.WithLogger(logger))
	if err != nil {
		return err
	}
	s.tree = tree
	for _, root := range tree.Roots() {
		if err := s.attach(root); err != nil {
			return err
		}
	}
	return nil
}

// replay applies the ops one by one, waiting delay between them.
func (s *session) replay(ctx context.Context, delay time.Duration) error {
	for i, op := range s.scenario.Ops {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		outcomes, err := s.tree.Apply(ctx, []scenario.Op{op})
		for _, o := range outcomes {
			o.Index = i
			s.outcomes = append(s.outcomes, o)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// primary returns the debugger of the first declared root.
func (s *session) primary() (*canopy.Debugger, error) {
	if len(s.debuggers) == 0 {
		return nil, errors.New("scenario declares no nodes")
	}
	return s.debuggers[0], nil
}

// verify checks every current root and every index still attached to a root.
func (s *session) verify() error {
	var errs []error
	for _, root := range s.tree.Roots() {
		if err := root.Verify(); err != nil {
			errs = append(errs, fmt.Errorf("tree %s: %w", root, err))
		}
	}
	for _, d := range s.debuggers {
		if !d.Root.IsRoot() {
			continue
		}
		if err := d.Index.Verify(); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", d.Root, err))
		}
	}
	return errors.Join(errs...)
}

// drain stops the trail writers, which flush what they hold.
func (s *session) drain() {
	s.stop()
	s.wg.Wait()
}

// close drains the trail writers and releases the sink.
func (s *session) close() {
	s.drain()
	if s.closeSink != nil {
		if err := s.closeSink(); err != nil {
			logger.Warn("Failed to close trail sink", "err", err)
		}
	}
}
