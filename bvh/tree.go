package bvh

import (
	"math"
	"time"

	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
)

// Params control how snapshots are partitioned into trees.
type Params struct {
	// The maximum number of triangles that may share a leaf. Static room
	// geometry favors 1 for the tightest culling; frequently rebuilt
	// geometry like avatars tolerates coarser leafs in exchange for
	// cheaper builds.
	MaxLeafTris int
}

// Validate params. Invalid leaf sizes are rejected outright instead of
// being clamped so that misconfigurations surface at setup time.
func (p Params) Validate() error {
	if p.MaxLeafTris <= 0 {
		return ErrInvalidLeafSize
	}
	return nil
}

// A baked triangle referenced by tree leafs. Vertices are stored in
// tree-local space. Index points to the triangle's position in the source
// snapshot so refits can reload moved vertices.
type Triangle struct {
	V0, V1, V2 types.Vec3

	Index uint32
}

// An adapter that allows snapshot triangles to be partitioned by the builder.
type triVolume struct {
	bbox   [2]types.Vec3
	center types.Vec3
	index  uint32
}

func (tv *triVolume) BBox() [2]types.Vec3 {
	return tv.bbox
}

func (tv *triVolume) Center() types.Vec3 {
	return tv.center
}

// Statistics for a built tree.
type TreeStats struct {
	Nodes    int
	Leafs    int
	Tris     int
	MaxDepth int

	BuildTime time.Duration
}

// A bounding volume hierarchy over a single snapshot generation.
//
// Nodes are stored as a contiguous list with children following their
// parents. Tris contains the leaf triangles baked in partition order.
// Trees are immutable once published except for refits which adjust node
// bounds in place without touching the topology.
type Tree struct {
	Nodes []Node
	Tris  []Triangle

	// The object and snapshot generation this tree was built from.
	Object     scene.ObjectID
	Generation uint64

	// The recentering offset inherited from the snapshot. Queries subtract
	// it from ray origins to enter tree-local space.
	Center types.Vec3

	Stats TreeStats
}

// Build a tree for a snapshot. A snapshot with no triangles yields a valid
// empty tree that all queries miss. Snapshots containing non-finite vertex
// data are rejected with ErrInvalidGeometry.
func NewTree(snap *scene.Snapshot, params Params) (*Tree, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tree := &Tree{
		Object:     snap.Object,
		Generation: snap.Generation,
		Center:     snap.Center,
	}

	triCount := snap.TriangleCount()
	if triCount == 0 {
		return tree, nil
	}

	for _, v := range snap.Vertices {
		if !finiteVec3(v) {
			return nil, ErrInvalidGeometry
		}
	}

	workList := make([]BoundedVolume, triCount)
	for i := 0; i < triCount; i++ {
		v0 := snap.Vertices[3*i]
		v1 := snap.Vertices[3*i+1]
		v2 := snap.Vertices[3*i+2]

		min := types.MinVec3(types.MinVec3(v0, v1), v2)
		max := types.MaxVec3(types.MaxVec3(v0, v1), v2)
		workList[i] = &triVolume{
			bbox:   [2]types.Vec3{min, max},
			center: min.Add(max).Mul(0.5),
			index:  uint32(i),
		}
	}

	// Bake leaf triangles in partition order so each leaf covers a
	// contiguous triangle range.
	tree.Tris = make([]Triangle, 0, triCount)
	leafCb := func(leaf *Node, itemList []BoundedVolume) {
		firstTriIndex := uint32(len(tree.Tris))
		for _, item := range itemList {
			triIndex := item.(*triVolume).index
			tree.Tris = append(tree.Tris, Triangle{
				V0:    snap.Vertices[3*triIndex],
				V1:    snap.Vertices[3*triIndex+1],
				V2:    snap.Vertices[3*triIndex+2],
				Index: triIndex,
			})
		}
		leaf.SetTriangles(firstTriIndex, uint32(len(itemList)))
	}

	start := time.Now()
	tree.Nodes = Build(workList, params.MaxLeafTris, leafCb, SurfaceAreaHeuristic)
	tree.Stats = measureTree(tree, time.Since(start))

	return tree, nil
}

// Walk the node list and collect stats for the assembled tree.
func measureTree(tree *Tree, buildTime time.Duration) TreeStats {
	treeStats := TreeStats{
		Nodes:     len(tree.Nodes),
		Tris:      len(tree.Tris),
		BuildTime: buildTime,
	}
	if len(tree.Nodes) == 0 {
		return treeStats
	}

	type nodeDepth struct {
		index uint32
		depth int
	}
	pending := []nodeDepth{{0, 0}}
	for len(pending) > 0 {
		next := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if next.depth > treeStats.MaxDepth {
			treeStats.MaxDepth = next.depth
		}

		node := &tree.Nodes[next.index]
		if node.Leaf() {
			treeStats.Leafs++
			continue
		}
		pending = append(pending,
			nodeDepth{uint32(node.LData), next.depth + 1},
			nodeDepth{uint32(node.RData), next.depth + 1},
		)
	}

	return treeStats
}

func finiteVec3(v types.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		c := float64(v[axis])
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
