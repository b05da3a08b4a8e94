package pick

import (
	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
)

// SourceID identifies the input ray that produced a query or a hit.
type SourceID uint8

const (
	Pointer SourceID = iota
	ControllerLeft
	ControllerRight
)

func (s SourceID) String() string {
	switch s {
	case Pointer:
		return "pointer"
	case ControllerLeft:
		return "controller-left"
	case ControllerRight:
		return "controller-right"
	}
	return "unknown"
}

// Query is a named world-space ray to be tested against the tracked
// targets. Instances are transient and rebuilt by the input collaborator
// every frame.
type Query struct {
	Source SourceID

	Origin types.Vec3
	Dir    types.Vec3

	// Hits beyond MaxDist are ignored. Zero or negative means unbounded.
	MaxDist float32

	// FirstHitOnly allows the dispatcher to use the best hit found so
	// far as a pruning bound for the remaining targets. The selected hit
	// is the same either way; only the amount of traversal work differs.
	FirstHitOnly bool
}

// Hit is the resolved nearest intersection for one query. Transient,
// constructed per frame and handed to observers without being retained.
type Hit struct {
	// The object that was hit.
	Object scene.ObjectID

	// World-space intersection point.
	Point types.Vec3

	// Distance from the query origin in world units.
	Distance float32

	// The query source that produced this hit.
	Source SourceID
}

// The Observer interface is implemented by consumers of resolved hits,
// such as a visual marker spawner.
type Observer interface {
	OnHit(hit Hit)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(hit Hit)

func (f ObserverFunc) OnHit(hit Hit) {
	f(hit)
}
