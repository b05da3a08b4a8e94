package frame

import "time"

// PhaseStat contains the timing of a single phase of the last frame.
type PhaseStat struct {
	// The phase this stat refers to.
	Phase Phase

	// The time the phase took.
	Duration time.Duration

	// The soft budget assigned to the phase; zero if none.
	Budget time.Duration

	// True if the phase exceeded its budget.
	OverBudget bool
}

// FrameStats contains aggregated statistics for the last stepped frame.
type FrameStats struct {
	// The number of frames stepped so far.
	Frame uint64

	// Per-phase timings in execution order. Phases skipped this frame
	// (an inactive sync cadence or a nil collaborator) are absent.
	Phases []PhaseStat

	// Total time for the frame.
	FrameTime time.Duration

	// The number of hits the raycast phase produced.
	Hits int
}
