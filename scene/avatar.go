package scene

import (
	"math"

	"github.com/ArbiusIntern/amicaxr/types"
	"github.com/fogleman/fauxgl"
)

// Avatar is the built-in animated subject: a blocky humanoid that waves,
// bobs and slowly turns in place. The pose changes every frame while the
// part topology stays fixed, so trackers refit rather than rebuild.
//
// Local coordinates put the feet at y=0 with the body centered on the y
// axis; use NewAvatar's origin to place it in the room.
type Avatar struct {
	origin types.Vec3
	t      float64
	parts  []avatarPart
}

type avatarPart struct {
	rest  MeshPart
	pivot types.Vec3

	// Joint rotation at animation time t. Nil for rigid parts.
	rotate func(t float64) types.Quat
}

// Create a new avatar standing at origin.
func NewAvatar(origin types.Vec3) *Avatar {
	box := func(minX, minY, minZ, maxX, maxY, maxZ float64) MeshPart {
		return partFromMesh(boxMesh(fauxgl.V(minX, minY, minZ), fauxgl.V(maxX, maxY, maxZ)))
	}

	return &Avatar{
		origin: origin,
		parts: []avatarPart{
			// Torso and legs form a single rigid trunk.
			{
				rest: box(-0.25, 0, -0.15, 0.25, 1.5, 0.15),
			},
			// Head nods and tilts about the neck joint.
			{
				rest:  box(-0.18, 1.55, -0.16, 0.18, 1.95, 0.16),
				pivot: types.Vec3{0, 1.55, 0},
				rotate: func(t float64) types.Quat {
					tilt := types.QuatFromAxisAngle(types.Vec3{0, 0, 1}, 0.12*float32(math.Sin(t*1.3)))
					nod := types.QuatFromAxisAngle(types.Vec3{1, 0, 0}, 0.08*float32(math.Sin(t*2.1)))
					return tilt.Mul(nod).Normalize()
				},
			},
			// Left arm waves about the shoulder.
			{
				rest:  box(-0.45, 0.85, -0.08, -0.28, 1.45, 0.08),
				pivot: types.Vec3{-0.33, 1.42, 0},
				rotate: func(t float64) types.Quat {
					return types.QuatFromAxisAngle(types.Vec3{0, 0, 1}, 0.6*float32(math.Sin(t*4.0)))
				},
			},
			// Right arm swings back and forth.
			{
				rest:  box(0.28, 0.85, -0.08, 0.45, 1.45, 0.08),
				pivot: types.Vec3{0.33, 1.42, 0},
				rotate: func(t float64) types.Quat {
					return types.QuatFromAxisAngle(types.Vec3{1, 0, 0}, 0.4*float32(math.Sin(t*2.0)))
				},
			},
		},
	}
}

// Advance the animation clock. Implements the frame loop Updater hook.
func (a *Avatar) UpdatePose(t float64) {
	a.t = t
}

func (a *Avatar) Category() Category {
	return Subject
}

func (a *Avatar) WorldTransform() types.Mat4 {
	bob := types.Vec3{0, 0.05 * float32(math.Sin(a.t*2.4)), 0}
	turn := types.QuatFromAxisAngle(types.Vec3{0, 1, 0}, 0.3*float32(math.Sin(a.t*0.7)))
	return types.Translate4(a.origin.Add(bob)).Mul4(turn.Mat4())
}

func (a *Avatar) PosedParts() []MeshPart {
	posed := make([]MeshPart, len(a.parts))
	for idx, part := range a.parts {
		if part.rotate == nil {
			posed[idx] = part.rest
			continue
		}

		rot := part.rotate(a.t)
		out := MeshPart{
			Vertices: make([]types.Vec3, len(part.rest.Vertices)),
			Normals:  make([]types.Vec3, len(part.rest.Normals)),
		}
		for vidx, v := range part.rest.Vertices {
			out.Vertices[vidx] = part.pivot.Add(rot.Rotate(v.Sub(part.pivot)))
		}
		for nidx, n := range part.rest.Normals {
			out.Normals[nidx] = rot.Rotate(n)
		}
		posed[idx] = out
	}
	return posed
}
