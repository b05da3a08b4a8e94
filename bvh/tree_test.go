package bvh

import (
	"math"
	"testing"

	"github.com/ArbiusIntern/amicaxr/scene"
	"github.com/ArbiusIntern/amicaxr/types"
)

func snapFromTris(id scene.ObjectID, generation uint64, verts []types.Vec3) *scene.Snapshot {
	return &scene.Snapshot{
		Object:     id,
		Generation: generation,
		Vertices:   verts,
	}
}

// A scattered grid of small triangles, one per cell.
func gridSnap(id scene.ObjectID, triCount int) *scene.Snapshot {
	verts := make([]types.Vec3, 0, triCount*3)
	for i := 0; i < triCount; i++ {
		base := types.Vec3{
			float32(i%4) * 3,
			float32((i/4)%4) * 3,
			float32(i/16) * 3,
		}
		verts = append(verts,
			base,
			base.Add(types.Vec3{1, 0, 0}),
			base.Add(types.Vec3{0, 1, 0}),
		)
	}
	return snapFromTris(id, 1, verts)
}

func nan32() float32 {
	return float32(math.NaN())
}

func almostEq(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func almostEqVec3(a, b types.Vec3, eps float32) bool {
	return almostEq(a[0], b[0], eps) && almostEq(a[1], b[1], eps) && almostEq(a[2], b[2], eps)
}

func TestNewTreePartitionsAllTriangles(t *testing.T) {
	const triCount = 32
	tree, err := NewTree(gridSnap("grid", triCount), Params{MaxLeafTris: 4})
	if err != nil {
		t.Fatalf("expected build to succeed; got %v", err)
	}
	if len(tree.Tris) != triCount {
		t.Fatalf("expected %d baked triangles; got %d", triCount, len(tree.Tris))
	}

	seen := make(map[uint32]int, triCount)
	leafTris := 0
	for i := range tree.Nodes {
		node := &tree.Nodes[i]
		if !node.Leaf() {
			continue
		}
		firstTriIndex, count := node.GetTriangles()
		leafTris += int(count)
		for ti := firstTriIndex; ti < firstTriIndex+count; ti++ {
			seen[tree.Tris[ti].Index]++
		}
	}

	if leafTris != triCount {
		t.Fatalf("expected leafs to reference %d triangles; got %d", triCount, leafTris)
	}
	for i := uint32(0); i < triCount; i++ {
		if seen[i] != 1 {
			t.Fatalf("expected triangle %d to appear in exactly one leaf; appeared %d times", i, seen[i])
		}
	}

	if tree.Stats.Nodes != len(tree.Nodes) || tree.Stats.Tris != triCount {
		t.Fatalf("expected stats to match the assembled tree; got %+v", tree.Stats)
	}
	if tree.Stats.Leafs == 0 || tree.Stats.MaxDepth == 0 {
		t.Fatalf("expected a partitioned tree; got %+v", tree.Stats)
	}
}

func TestNewTreeChildBoundsContained(t *testing.T) {
	tree, err := NewTree(gridSnap("grid", 24), Params{MaxLeafTris: 2})
	if err != nil {
		t.Fatalf("expected build to succeed; got %v", err)
	}

	for i := range tree.Nodes {
		node := &tree.Nodes[i]
		if node.Leaf() {
			continue
		}
		for _, childIndex := range []int32{node.LData, node.RData} {
			child := &tree.Nodes[childIndex]
			for axis := 0; axis < 3; axis++ {
				if child.Min[axis] < node.Min[axis] || child.Max[axis] > node.Max[axis] {
					t.Fatalf("expected node %d bounds to contain child %d", i, childIndex)
				}
			}
		}
	}
}

func TestNewTreeEmptySnapshot(t *testing.T) {
	tree, err := NewTree(snapFromTris("empty", 1, nil), Params{MaxLeafTris: 1})
	if err != nil {
		t.Fatalf("expected empty snapshots to build an empty tree; got %v", err)
	}
	if len(tree.Nodes) != 0 || len(tree.Tris) != 0 {
		t.Fatalf("expected an empty tree; got %d nodes, %d tris", len(tree.Nodes), len(tree.Tris))
	}

	ray := NewRay(types.Vec3{0, 0, 1}, types.Vec3{0, 0, -1})
	if _, ok := tree.CastNearest(ray, float32(math.Inf(1))); ok {
		t.Fatal("expected queries against an empty tree to miss")
	}
}

func TestNewTreeRejectsNonFiniteGeometry(t *testing.T) {
	verts := []types.Vec3{
		{0, 0, 0},
		{1, 0, 0},
		{float32(math.NaN()), 1, 0},
	}
	if _, err := NewTree(snapFromTris("bad", 1, verts), Params{MaxLeafTris: 1}); err != ErrInvalidGeometry {
		t.Fatalf("expected ErrInvalidGeometry; got %v", err)
	}

	verts[2] = types.Vec3{float32(math.Inf(1)), 1, 0}
	if _, err := NewTree(snapFromTris("bad", 1, verts), Params{MaxLeafTris: 1}); err != ErrInvalidGeometry {
		t.Fatalf("expected ErrInvalidGeometry; got %v", err)
	}
}

func TestNewTreeRejectsInvalidLeafSize(t *testing.T) {
	for _, maxLeafTris := range []int{0, -3} {
		if _, err := NewTree(gridSnap("grid", 4), Params{MaxLeafTris: maxLeafTris}); err != ErrInvalidLeafSize {
			t.Fatalf("expected ErrInvalidLeafSize for max %d; got %v", maxLeafTris, err)
		}
	}
}
