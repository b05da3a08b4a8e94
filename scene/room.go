package scene

import (
	"github.com/ArbiusIntern/amicaxr/types"
	"github.com/fogleman/fauxgl"
)

const wallThickness = 0.1

// Build the built-in room shell: a floor slab and four walls centered on
// the origin, with the floor top at y=0. Interior rays always terminate on
// one of the five slabs, which keeps the simulate command's environment
// hits predictable.
func NewRoom(width, height, depth float32) *Model {
	w := float64(width) * 0.5
	h := float64(height)
	d := float64(depth) * 0.5
	t := float64(wallThickness)

	parts := []MeshPart{
		// Floor.
		partFromMesh(boxMesh(fauxgl.V(-w, -t, -d), fauxgl.V(w, 0, d))),
		// Walls along x.
		partFromMesh(boxMesh(fauxgl.V(-w-t, 0, -d), fauxgl.V(-w, h, d))),
		partFromMesh(boxMesh(fauxgl.V(w, 0, -d), fauxgl.V(w+t, h, d))),
		// Walls along z.
		partFromMesh(boxMesh(fauxgl.V(-w, 0, -d-t), fauxgl.V(w, h, -d))),
		partFromMesh(boxMesh(fauxgl.V(-w, 0, d), fauxgl.V(w, h, d+t))),
	}

	return NewModel(Environment, parts...)
}

// Build a prop pedestal: a simple block standing on the floor at center.
func NewPedestal(center types.Vec3, size float32) *Model {
	half := float64(size) * 0.5
	mesh := boxMesh(
		fauxgl.V(-half, 0, -half),
		fauxgl.V(half, float64(size), half),
	)

	prop := NewModel(Prop, partFromMesh(mesh))
	prop.SetTransform(types.Translate4(center))
	return prop
}
