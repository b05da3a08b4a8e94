package scene

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/ArbiusIntern/amicaxr/types"
)

// Snapshot is a flattened triangle soup captured from a posed source. All
// parts are merged into a single buffer so that one BVH covers the whole
// object. Vertices are stored in world space minus Center; the offset is
// recorded so that query results can be mapped back to world coordinates.
//
// A snapshot is owned by the build pipeline until it is applied to a store
// handle and must not be mutated afterwards except through Refresh.
type Snapshot struct {
	// The captured object.
	Object ObjectID

	// Monotonically increasing per-object geometry version. Bumped on
	// every capture, stable across Refresh calls.
	Generation uint64

	// Recentered world-space triangle list (three entries per triangle).
	Vertices []types.Vec3

	// Per-vertex normals. Empty when any source part lacks them.
	Normals []types.Vec3

	// The recentering offset recorded at capture time.
	Center types.Vec3

	// Connectivity signature used for the unchanged-topology check.
	Topology uint64
}

// Get the number of triangles in the snapshot.
func (s *Snapshot) TriangleCount() int {
	return len(s.Vertices) / 3
}

// Capture flattens the posed parts of src into a new snapshot. When the
// source topology matches prev (same part structure and vertex counts) no
// buffer is produced and the second return value is false; pose-only
// frames take this path and should use Refresh instead.
func Capture(id ObjectID, src Source, prev *Snapshot) (*Snapshot, bool) {
	parts := src.PosedParts()
	sig := topologySignature(parts)
	if prev != nil && prev.Topology == sig {
		return nil, false
	}
	return capture(id, src, parts, sig, nextGeneration(prev)), true
}

// Recapture flattens the posed parts of src unconditionally, continuing
// the generation lineage of prev. Forced rebuilds use it since their
// topology may well be unchanged.
func Recapture(id ObjectID, src Source, prev *Snapshot) *Snapshot {
	parts := src.PosedParts()
	return capture(id, src, parts, topologySignature(parts), nextGeneration(prev))
}

func nextGeneration(prev *Snapshot) uint64 {
	if prev == nil {
		return 1
	}
	return prev.Generation + 1
}

func capture(id ObjectID, src Source, parts []MeshPart, sig uint64, generation uint64) *Snapshot {
	snap := &Snapshot{
		Object:     id,
		Generation: generation,
		Topology:   sig,
	}

	total := 0
	withNormals := true
	for _, part := range parts {
		total += len(part.Vertices)
		if len(part.Normals) != len(part.Vertices) {
			withNormals = false
		}
	}

	snap.Vertices = make([]types.Vec3, 0, total)
	if withNormals {
		snap.Normals = make([]types.Vec3, 0, total)
	}
	snap.pose(src, parts, withNormals)

	// Recenter about the bounds midpoint and record the offset.
	if total > 0 {
		min := types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
		max := types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
		for _, v := range snap.Vertices {
			min = types.MinVec3(min, v)
			max = types.MaxVec3(max, v)
		}
		snap.Center = min.Add(max).Mul(0.5)
		for idx, v := range snap.Vertices {
			snap.Vertices[idx] = v.Sub(snap.Center)
		}
	}

	return snap
}

// Refresh re-poses the snapshot buffer in place. The generation, topology
// signature and recorded center are kept so that an existing tree can be
// refitted against the refreshed buffer. Returns false when the source
// topology no longer matches, in which case the caller must Capture anew.
func (s *Snapshot) Refresh(src Source) bool {
	parts := src.PosedParts()
	if topologySignature(parts) != s.Topology {
		return false
	}

	s.Vertices = s.Vertices[:0]
	if s.Normals != nil {
		s.Normals = s.Normals[:0]
	}
	s.pose(src, parts, s.Normals != nil)
	for idx, v := range s.Vertices {
		s.Vertices[idx] = v.Sub(s.Center)
	}
	return true
}

// Append world-space vertices (and optionally normals) for all parts.
func (s *Snapshot) pose(src Source, parts []MeshPart, withNormals bool) {
	world := src.WorldTransform()
	normalMat := world.Mat3()

	for _, part := range parts {
		for _, v := range part.Vertices {
			s.Vertices = append(s.Vertices, world.Mul4x1(v.Vec4(1)).Vec3())
		}
		if withNormals {
			for _, n := range part.Normals {
				s.Normals = append(s.Normals, normalMat.Mul3x1(n).Normalize())
			}
		}
	}
}

// Calculate a connectivity signature for a part list. Two poses of the
// same mesh hierarchy produce the same signature as long as the part count
// and per-part vertex counts are unchanged.
func topologySignature(parts []MeshPart) uint64 {
	var scratch [8]byte
	h := fnv.New64a()

	binary.LittleEndian.PutUint64(scratch[:], uint64(len(parts)))
	h.Write(scratch[:])
	for _, part := range parts {
		binary.LittleEndian.PutUint64(scratch[:], uint64(len(part.Vertices)))
		h.Write(scratch[:])
		binary.LittleEndian.PutUint64(scratch[:], uint64(len(part.Normals)))
		h.Write(scratch[:])
	}
	return h.Sum64()
}
