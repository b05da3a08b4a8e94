package frame

import (
	"time"

	"github.com/ArbiusIntern/amicaxr/log"
)

// Phase identifies one step of the per-frame sequence.
type Phase uint8

const (
	// PhasePoseUpdate advances animated scene sources to the frame clock.
	PhasePoseUpdate Phase = iota

	// PhaseTreeSync integrates finished tree builds and refits posed ones.
	PhaseTreeSync

	// PhaseRender invokes the drawing backend.
	PhaseRender

	// PhaseRaycast resolves the frame's pick queries.
	PhaseRaycast

	// PhaseTelemetry publishes the frame's phase timings.
	PhaseTelemetry
)

// String implements fmt.Stringer for Phase.
func (p Phase) String() string {
	switch p {
	case PhasePoseUpdate:
		return "pose update"
	case PhaseTreeSync:
		return "tree sync"
	case PhaseRender:
		return "render"
	case PhaseRaycast:
		return "raycast"
	case PhaseTelemetry:
		return "telemetry"
	}

	return "unknown"
}

// Loop sequences the per-frame phases in a fixed order: pose update, tree
// sync, render, raycast and telemetry. Tree builds stay on background
// workers so no phase ever blocks waiting for one; a frame that runs before
// a build completes simply picks against the previously published tree.
type Loop struct {
	logger log.Logger

	opts Options

	frame uint64
	clock float64
	stats FrameStats
}

// New creates a frame loop with the supplied options. It returns an error
// if no tree store or no dispatcher is attached.
func New(opts Options) (*Loop, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}
	if opts.SyncEvery < 1 {
		opts.SyncEvery = 1
	}

	return &Loop{
		logger: log.New("frame loop"),
		opts:   opts,
	}, nil
}

// Step advances the frame clock by dt (in seconds) and runs one frame. A
// phase that exceeds its soft budget is logged and the frame still runs to
// completion. Step returns the first error a phase reported, after the
// remaining phases have run.
func (l *Loop) Step(dt float64) error {
	start := time.Now()
	l.frame++
	l.clock += dt
	l.stats = FrameStats{
		Frame:  l.frame,
		Phases: make([]PhaseStat, 0, 5),
	}

	var firstErr error
	keepErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keepErr(l.runPhase(PhasePoseUpdate, func() error {
		for _, updater := range l.opts.Updaters {
			updater.UpdatePose(l.clock)
		}
		return nil
	}))

	if (l.frame-1)%uint64(l.opts.SyncEvery) == 0 {
		keepErr(l.runPhase(PhaseTreeSync, func() error {
			l.opts.Store.Sync()
			return nil
		}))
	}

	if l.opts.Renderer != nil {
		keepErr(l.runPhase(PhaseRender, func() error {
			return l.opts.Renderer.Render()
		}))
	}

	keepErr(l.runPhase(PhaseRaycast, func() error {
		if l.opts.Input == nil {
			return nil
		}

		queries := l.opts.Input.Rays()
		if len(queries) == 0 {
			return nil
		}

		hits := l.opts.Dispatcher.Dispatch(queries, l.opts.Store.Targets())
		l.stats.Hits = len(hits)
		if l.opts.Observer != nil {
			for _, hit := range hits {
				l.opts.Observer.OnHit(hit)
			}
		}
		return nil
	}))

	keepErr(l.runPhase(PhaseTelemetry, func() error {
		if l.opts.Telemetry == nil {
			return nil
		}

		for _, stat := range l.stats.Phases {
			l.opts.Telemetry.Record(stat.Phase, stat.Duration)
		}
		return nil
	}))

	l.stats.FrameTime = time.Since(start)
	return firstErr
}

// Frame returns the number of frames stepped so far.
func (l *Loop) Frame() uint64 {
	return l.frame
}

// Stats returns the statistics for the last stepped frame.
func (l *Loop) Stats() FrameStats {
	return l.stats
}

// runPhase times fn, checks it against the phase budget and appends the
// result to the frame stats.
func (l *Loop) runPhase(phase Phase, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	budget := l.opts.Budgets[phase]
	over := budget > 0 && elapsed > budget
	if over {
		l.logger.Warningf("%s phase exceeded budget: %s > %s", phase, elapsed, budget)
	}

	l.stats.Phases = append(l.stats.Phases, PhaseStat{
		Phase:      phase,
		Duration:   elapsed,
		Budget:     budget,
		OverBudget: over,
	})

	return err
}
