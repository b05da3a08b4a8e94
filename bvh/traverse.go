package bvh

import (
	"math"

	"github.com/ArbiusIntern/amicaxr/types"
)

const (
	// Direction components below this threshold are treated as parallel
	// to the slab planes.
	parallelEpsilon float32 = 1e-12

	// Epsilon for Möller-Trumbore determinant and hit distance checks.
	triEpsilon float32 = 1e-6
)

// A world-space ray with precomputed per-axis reciprocals for slab tests.
type Ray struct {
	origin types.Vec3
	dir    types.Vec3

	inv types.Vec3
	par [3]bool
}

// Create a ray for traversal. The direction is normalized so that hit
// distances are measured in world units.
func NewRay(origin, dir types.Vec3) Ray {
	r := Ray{
		origin: origin,
		dir:    dir.Normalize(),
	}
	for axis := 0; axis < 3; axis++ {
		if d := r.dir[axis]; d > parallelEpsilon || d < -parallelEpsilon {
			r.inv[axis] = 1 / d
		} else {
			r.par[axis] = true
		}
	}
	return r
}

// Origin returns the world-space ray origin.
func (r *Ray) Origin() types.Vec3 {
	return r.origin
}

// Dir returns the normalized ray direction.
func (r *Ray) Dir() types.Vec3 {
	return r.dir
}

// The result of a nearest-hit query against a single tree.
type TriHit struct {
	// World-space intersection point.
	Point types.Vec3

	// Distance from the ray origin in world units.
	Distance float32

	// The snapshot index of the intersected triangle.
	Tri uint32
}

// CastNearest finds the closest triangle intersection along the ray within
// maxDist. maxDist can be +Inf to search everything.
//
// Traversal is iterative and stack-based. Children are visited near to far
// and subtrees whose bbox entry distance exceeds the current best hit are
// pruned. Empty trees always miss.
func (t *Tree) CastNearest(ray Ray, maxDist float32) (TriHit, bool) {
	if len(t.Nodes) == 0 {
		return TriHit{}, false
	}

	// Shift the ray origin into tree-local space. Directions are
	// unaffected by the recentering translation.
	origin := ray.origin.Sub(t.Center)

	bestT := maxDist
	var best TriHit
	found := false

	type entry struct {
		index uint32
		tmin  float32
	}
	stack := make([]entry, 0, 64)
	stack = append(stack, entry{0, 0})
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &t.Nodes[e.index]
		ok, tmin := rayBBox(origin, &ray, node.Min, node.Max)
		if !ok || tmin > bestT {
			continue
		}

		if node.Leaf() {
			firstTriIndex, count := node.GetTriangles()
			for ti := firstTriIndex; ti < firstTriIndex+count; ti++ {
				if dist, ok := intersectTriangle(origin, ray.dir, &t.Tris[ti]); ok && dist < bestT {
					bestT = dist
					found = true
					best = TriHit{
						Point:    origin.Add(ray.dir.Mul(dist)).Add(t.Center),
						Distance: dist,
						Tri:      t.Tris[ti].Index,
					}
				}
			}
			continue
		}

		// Order children near to far. The far child is pushed first so
		// the near child is processed next.
		left := &t.Nodes[node.LData]
		right := &t.Nodes[node.RData]
		lOK, lT := rayBBox(origin, &ray, left.Min, left.Max)
		lOK = lOK && lT <= bestT
		rOK, rT := rayBBox(origin, &ray, right.Min, right.Max)
		rOK = rOK && rT <= bestT

		if lOK && rOK {
			if lT < rT {
				stack = append(stack, entry{uint32(node.RData), rT}, entry{uint32(node.LData), lT})
			} else {
				stack = append(stack, entry{uint32(node.LData), lT}, entry{uint32(node.RData), rT})
			}
		} else if lOK {
			stack = append(stack, entry{uint32(node.LData), lT})
		} else if rOK {
			stack = append(stack, entry{uint32(node.RData), rT})
		}
	}

	if !found {
		return TriHit{}, false
	}
	return best, true
}

// BBoxEntry returns the entry distance of the ray into the tree's root
// bounds. Dispatchers use it to prune targets that cannot beat an existing
// hit. The second return value is false when the ray misses the bounds
// entirely or the tree is empty.
func (t *Tree) BBoxEntry(ray Ray) (float32, bool) {
	if len(t.Nodes) == 0 {
		return 0, false
	}
	origin := ray.origin.Sub(t.Center)
	ok, tmin := rayBBox(origin, &ray, t.Nodes[0].Min, t.Nodes[0].Max)
	return tmin, ok
}

// Slab test against an AABB. Returns the entry distance along the ray which
// is clamped to zero when the origin lies inside the box. Boxes entirely
// behind the origin are rejected.
func rayBBox(origin types.Vec3, r *Ray, min, max types.Vec3) (bool, float32) {
	var tmin float32 = 0
	var tmax float32 = math.MaxFloat32

	for axis := 0; axis < 3; axis++ {
		if r.par[axis] {
			if origin[axis] < min[axis] || origin[axis] > max[axis] {
				return false, 0
			}
			continue
		}

		t1 := (min[axis] - origin[axis]) * r.inv[axis]
		t2 := (max[axis] - origin[axis]) * r.inv[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return false, 0
		}
	}

	return true, tmin
}

// Möller-Trumbore ray/triangle intersection. Returns the hit distance along
// the (normalized) direction and whether the triangle was hit. Backfacing
// triangles are reported too since pick rays may approach geometry from
// either side.
func intersectTriangle(origin, dir types.Vec3, tri *Triangle) (float32, bool) {
	e1 := tri.V1.Sub(tri.V0)
	e2 := tri.V2.Sub(tri.V0)
	pvec := dir.Cross(e2)
	det := e1.Dot(pvec)
	if det > -triEpsilon && det < triEpsilon {
		return 0, false
	}

	invDet := 1.0 / det
	tvec := origin.Sub(tri.V0)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	qvec := tvec.Cross(e1)
	v := dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	dist := e2.Dot(qvec) * invDet
	if dist <= triEpsilon {
		return 0, false
	}
	return dist, true
}
