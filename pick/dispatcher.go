package pick

import (
	"math"
	"sort"

	"github.com/ArbiusIntern/amicaxr/bvh"
	"github.com/ArbiusIntern/amicaxr/log"
	"github.com/ArbiusIntern/amicaxr/scene"
)

// Dispatcher resolves each query to its globally nearest hit across all
// targets. Ties between targets at exactly equal hit distance are broken
// by a fixed category priority (and object id within a category), never
// by the order targets happen to be supplied in.
type Dispatcher struct {
	logger log.Logger

	// Tie-break priority, most important first.
	order []scene.Category
	rank  map[scene.Category]int
}

// Create a dispatcher with an explicit category tie-break priority.
// Categories missing from the order rank behind every listed one. Called
// with no arguments the subject, prop, environment order is used.
func NewDispatcher(order ...scene.Category) *Dispatcher {
	if len(order) == 0 {
		order = []scene.Category{scene.Subject, scene.Prop, scene.Environment}
	}

	rank := make(map[scene.Category]int, len(order))
	for i, category := range order {
		if _, exists := rank[category]; !exists {
			rank[category] = i
		}
	}

	return &Dispatcher{
		logger: log.New("dispatcher"),
		order:  order,
		rank:   rank,
	}
}

// Dispatch intersects every query against every target and returns at
// most one hit per query, selected by nearest distance with the
// dispatcher's tie-break priority. Targets without a published tree
// contribute nothing; targets removed since the handle list was taken are
// skipped as local failures without aborting the dispatch.
func (d *Dispatcher) Dispatch(queries []Query, targets []*bvh.Handle) []Hit {
	ordered := d.orderTargets(targets)

	hits := make([]Hit, 0, len(queries))
	for _, query := range queries {
		if hit, ok := d.resolve(query, ordered); ok {
			hits = append(hits, hit)
		}
	}
	return hits
}

// Resolve a single query to its nearest hit. Targets arrive in priority
// order and a later target must beat the running best strictly, so equal
// distances resolve to the higher-priority target.
func (d *Dispatcher) resolve(query Query, targets []*bvh.Handle) (Hit, bool) {
	ray := bvh.NewRay(query.Origin, query.Dir)

	maxDist := query.MaxDist
	if maxDist <= 0 {
		maxDist = float32(math.Inf(1))
	}

	var best Hit
	bestOK := false
	bestDist := maxDist

	for _, target := range targets {
		if target.Removed() {
			// The object was unloaded after the handle list was taken.
			d.logger.Debugf("skipping target %q: %v", target.Object(), bvh.ErrTargetRemoved)
			continue
		}
		tree := target.Tree()
		if tree == nil {
			continue
		}

		limit := maxDist
		if query.FirstHitOnly && bestOK {
			// Prune targets whose bounds cannot beat the running best.
			if entryDist, ok := tree.BBoxEntry(ray); !ok || entryDist > bestDist {
				continue
			}
			limit = bestDist
		}

		hit, ok := tree.CastNearest(ray, limit)
		if !ok {
			continue
		}
		if !bestOK || hit.Distance < bestDist {
			bestOK = true
			bestDist = hit.Distance
			best = Hit{
				Object:   target.Object(),
				Point:    hit.Point,
				Distance: hit.Distance,
				Source:   query.Source,
			}
		}
	}

	return best, bestOK
}

// Sort a copy of the target list by (category rank, object id).
func (d *Dispatcher) orderTargets(targets []*bvh.Handle) []*bvh.Handle {
	ordered := make([]*bvh.Handle, len(targets))
	copy(ordered, targets)

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := d.rankOf(ordered[i].Category()), d.rankOf(ordered[j].Category())
		if ri != rj {
			return ri < rj
		}
		return ordered[i].Object() < ordered[j].Object()
	})
	return ordered
}

func (d *Dispatcher) rankOf(category scene.Category) int {
	if r, ok := d.rank[category]; ok {
		return r
	}
	return len(d.order)
}
