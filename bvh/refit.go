package bvh

import (
	"math"

	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
)

// Refit node bounds to a refreshed snapshot without altering the tree
// topology. The snapshot must be the one the tree was built from, re-posed
// in place so that its triangle layout is unchanged.
//
// Baked leaf triangles are reloaded from the snapshot first. The node list
// stores children after their parents so a single reverse pass sees every
// child before the inner node that unions it.
func (t *Tree) Refit(snap *scene.Snapshot) {
	for i := range t.Tris {
		tri := &t.Tris[i]
		base := 3 * int(tri.Index)
		tri.V0 = snap.Vertices[base]
		tri.V1 = snap.Vertices[base+1]
		tri.V2 = snap.Vertices[base+2]
	}

	for i := len(t.Nodes) - 1; i >= 0; i-- {
		node := &t.Nodes[i]
		if node.Leaf() {
			firstTriIndex, count := node.GetTriangles()

			min := types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
			max := types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
			for ti := firstTriIndex; ti < firstTriIndex+count; ti++ {
				tri := &t.Tris[ti]
				min = types.MinVec3(min, types.MinVec3(types.MinVec3(tri.V0, tri.V1), tri.V2))
				max = types.MaxVec3(max, types.MaxVec3(types.MaxVec3(tri.V0, tri.V1), tri.V2))
			}
			node.SetBBox([2]types.Vec3{min, max})
			continue
		}

		left := &t.Nodes[node.LData]
		right := &t.Nodes[node.RData]
		node.Min = types.MinVec3(left.Min, right.Min)
		node.Max = types.MaxVec3(left.Max, right.Max)
	}
}
