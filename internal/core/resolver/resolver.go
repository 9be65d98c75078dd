// Package resolver runs the applicable strategies for a URL, racing or
// falling back as the registry prescribes, and normalizes the winner.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guiyumin/vresolve/internal/core/extractor"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/normalize"
	"github.com/guiyumin/vresolve/internal/core/registry"
	"github.com/guiyumin/vresolve/internal/core/workpool"
	"github.com/sirupsen/logrus"
)

// DefaultSlack is added to the summed strategy budgets when no request
// timeout is configured
const DefaultSlack = 10 * time.Second

// Classifier turns a raw URL into a target
type Classifier interface {
	Classify(ctx context.Context, raw string) (media.Target, error)
}

// Options tune an Engine
type Options struct {
	// RequestTimeout caps a whole resolution. Zero derives it from the
	// strategy budgets plus DefaultSlack.
	RequestTimeout time.Duration
}

// Engine is safe for concurrent use
type Engine struct {
	classifier Classifier
	registry   *registry.Registry
	strategies extractor.Set
	pool       *workpool.Pool
	ownsPool   bool
	opts       Options
	log        *logrus.Entry
}

// New wires an engine. A nil pool gets a started default pool which Close
// stops; a caller-supplied pool stays the caller's to stop.
func New(classifier Classifier, reg *registry.Registry, strategies extractor.Set, pool *workpool.Pool, opts Options) *Engine {
	owns := pool == nil
	if owns {
		pool = workpool.New(16, 0)
		pool.Start()
	}
	return &Engine{
		classifier: classifier,
		registry:   reg,
		strategies: strategies,
		pool:       pool,
		ownsPool:   owns,
		opts:       opts,
		log:        logging.For("resolver"),
	}
}

// Close stops the pool New created. It is safe to call more than once.
func (e *Engine) Close() {
	if e.ownsPool {
		e.pool.Stop()
	}
}

// Registry returns the registry the engine looks strategies up in
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Stats reports the worker pool counters
func (e *Engine) Stats() workpool.Stats { return e.pool.Stats() }

// Resolve classifies rawURL and resolves it into a bundle
func (e *Engine) Resolve(ctx context.Context, rawURL string) (*media.MediaBundle, error) {
	target, err := e.classifier.Classify(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return e.ResolveTarget(ctx, target)
}

// ResolveTarget resolves an already classified target
func (e *Engine) ResolveTarget(ctx context.Context, target media.Target) (*media.MediaBundle, error) {
	descs := e.registry.Lookup(target.Platform, target.Kind)
	if len(descs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", target.Platform, target.Kind, media.ErrNoStrategyApplicable)
	}

	raw, _, err := e.Execute(ctx, target, descs)
	if err != nil {
		return nil, err
	}
	bundle := normalize.Normalize(raw, e.registry.Policy(target.Platform))
	if bundle.Status != media.StatusSuccess {
		return nil, fmt.Errorf("%s %s: %w", target.Platform, target.Kind, media.ErrNotViable)
	}
	return bundle, nil
}

// Execute runs descs group by group until one yields a viable result. The
// attempts are returned in every case.
func (e *Engine) Execute(ctx context.Context, target media.Target, descs []registry.Descriptor) (media.RawResult, []media.Attempt, error) {
	if len(descs) == 0 {
		return nil, nil, media.ErrNoStrategyApplicable
	}

	budget := e.opts.RequestTimeout
	if budget <= 0 {
		budget = Budget(descs) + DefaultSlack
	}
	reqCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	log := e.log.WithFields(logrus.Fields{
		"platform": target.Platform,
		"kind":     target.Kind,
		"url":      target.URL,
	})
	start := time.Now()

	var attempts []media.Attempt
	for _, g := range Groups(descs) {
		var (
			raw media.RawResult
			got []media.Attempt
		)
		if g.Mode == registry.Race {
			raw, got = e.race(reqCtx, target, g.Descriptors, log)
		} else {
			raw, got = e.sequential(reqCtx, target, g.Descriptors, log)
		}
		attempts = append(attempts, got...)

		if raw != nil {
			log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("resolved")
			return raw, attempts, nil
		}
		if reqCtx.Err() != nil {
			break
		}
	}

	switch {
	case ctx.Err() != nil:
		return nil, attempts, ctx.Err()
	case reqCtx.Err() != nil:
		log.WithField("budget", budget).Warn("request ceiling reached")
		return nil, attempts, fmt.Errorf("after %s: %w", budget, media.ErrTimeout)
	}

	failed := &media.AllStrategiesFailedError{Attempts: attempts}
	log.WithError(failed.Last()).Warn("all strategies failed")
	return nil, attempts, failed
}

// Group is a run of consecutive descriptors sharing mode and group name
type Group struct {
	Mode        registry.Mode
	Name        string
	Descriptors []registry.Descriptor
}

// Groups partitions descs in order
func Groups(descs []registry.Descriptor) []Group {
	var groups []Group
	for _, d := range descs {
		if n := len(groups); n > 0 && groups[n-1].Mode == d.Mode && groups[n-1].Name == d.Group {
			groups[n-1].Descriptors = append(groups[n-1].Descriptors, d)
			continue
		}
		groups = append(groups, Group{Mode: d.Mode, Name: d.Group, Descriptors: []registry.Descriptor{d}})
	}
	return groups
}

// Budget is the longest a chain of descs can take: the slowest member of a
// race group, the sum of a sequential one
func Budget(descs []registry.Descriptor) time.Duration {
	var total time.Duration
	for _, g := range Groups(descs) {
		var group time.Duration
		for _, d := range g.Descriptors {
			if g.Mode == registry.Race {
				group = max(group, d.Timeout)
			} else {
				group += d.Timeout
			}
		}
		total += group
	}
	return total
}

func (e *Engine) sequential(ctx context.Context, target media.Target, descs []registry.Descriptor, log *logrus.Entry) (media.RawResult, []media.Attempt) {
	attempts := make([]media.Attempt, 0, len(descs))
	for _, d := range descs {
		if ctx.Err() != nil {
			break
		}
		a := e.run(ctx, target, d, log)
		attempts = append(attempts, a)
		if a.Succeeded() {
			return a.Result, attempts
		}
	}
	return nil, attempts
}

// race starts every member at once. The first viable result cancels the rest;
// failures keep the race going until everyone has reported.
func (e *Engine) race(ctx context.Context, target media.Target, descs []registry.Descriptor, log *logrus.Entry) (media.RawResult, []media.Attempt) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan media.Attempt, len(descs))
	for _, d := range descs {
		go func(d registry.Descriptor) {
			results <- e.run(raceCtx, target, d, log)
		}(d)
	}

	attempts := make([]media.Attempt, 0, len(descs))
	for range descs {
		a := <-results
		attempts = append(attempts, a)
		if a.Succeeded() {
			cancel()
			return a.Result, attempts
		}
	}
	return nil, attempts
}

type outcome struct {
	raw media.RawResult
	err error
}

// run executes one strategy on the worker pool under its own deadline. The
// deadline holds even when the adapter ignores its context.
func (e *Engine) run(ctx context.Context, target media.Target, d registry.Descriptor, log *logrus.Entry) (a media.Attempt) {
	start := time.Now()
	a.Strategy = d.Name
	log = log.WithField("strategy", d.Name)

	defer func() {
		a.Elapsed = time.Since(start)
		entry := log.WithField("elapsed", a.Elapsed.Round(time.Millisecond))
		if a.Err != nil {
			entry.WithError(a.Err).Debug("strategy failed")
		} else {
			entry.Debug("strategy succeeded")
		}
	}()

	strategy, err := e.strategies.Get(d.Name)
	if err != nil {
		a.Err = &media.StrategyError{Strategy: d.Name, Err: err}
		return a
	}

	sctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("strategy panicked: %v", r)}
			}
		}()
		if err := sctx.Err(); err != nil {
			done <- outcome{err: err}
			return
		}
		raw, err := strategy.Attempt(sctx, target)
		done <- outcome{raw: raw, err: err}
	}

	var out outcome
	if err := e.pool.Submit(sctx, task); err != nil {
		out.err = err
	} else {
		select {
		case out = <-done:
		case <-sctx.Done():
			out.err = sctx.Err()
		}
	}

	switch {
	case out.err != nil && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded):
		a.Err = &media.StrategyError{Strategy: d.Name, Err: fmt.Errorf("after %s: %w", d.Timeout, media.ErrStrategyTimeout)}
	case out.err != nil:
		a.Err = &media.StrategyError{Strategy: d.Name, Err: out.err}
	case out.raw == nil || !out.raw.Viable():
		a.Err = &media.StrategyError{Strategy: d.Name, Err: media.ErrNotViable}
	default:
		a.Result = out.raw
	}
	return a
}
