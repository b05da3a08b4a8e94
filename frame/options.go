package frame

import (
	"time"

	"github.com/ArbiusIntern/amicaxr/bvh"
	"github.com/ArbiusIntern/amicaxr/pick"
)

// The Renderer interface is implemented by drawing backends that the loop
// sequences once per frame.
type Renderer interface {
	// Render the current frame.
	Render() error
}

// The InputSource interface is implemented by pointing device adapters. A
// device that is absent or idle contributes no queries for the frame.
type InputSource interface {
	// Rays returns the pick queries for the current frame.
	Rays() []pick.Query
}

// The Telemetry interface is implemented by timing sinks. Record is called
// once per phase per frame and must not block.
type Telemetry interface {
	Record(phase Phase, d time.Duration)
}

// The Updater interface is implemented by scene sources whose pose advances
// with the frame clock.
type Updater interface {
	// UpdatePose moves the source to its pose at time t (in seconds).
	UpdatePose(t float64)
}

// Budgets assigns per-phase soft time limits. A phase that exceeds its
// budget is logged but the frame always runs to completion. A zero budget
// disables the check for that phase.
type Budgets map[Phase]time.Duration

type Options struct {
	// The tree store that tracks pickable targets.
	Store *bvh.Store

	// The dispatcher that resolves the frame's pick queries.
	Dispatcher *pick.Dispatcher

	// The source of pick queries. If nil the raycast phase is a no-op.
	Input InputSource

	// The drawing backend. If nil the render phase is a no-op.
	Renderer Renderer

	// The observer notified of each hit the raycast phase produces.
	Observer pick.Observer

	// The sink for per-phase timings.
	Telemetry Telemetry

	// Scene sources stepped during the pose update phase.
	Updaters []Updater

	// Soft per-phase time limits.
	Budgets Budgets

	// Run the tree sync phase every n-th frame. Values less than 1 are
	// treated as 1 (sync every frame).
	SyncEvery int
}
