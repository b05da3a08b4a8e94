package scene

import (
	"github.com/ArbiusIntern/amicaxr/types"
)

// ObjectID uniquely identifies a hit-testable object in the viewer.
type ObjectID string

// Category assigns a hit-testable object to a priority class. The raycast
// dispatcher resolves equal-distance hits between two objects by comparing
// their categories.
type Category uint8

const (
	// The animated avatar.
	Subject Category = iota

	// Interactive props placed in the room.
	Prop

	// The room shell (floor, walls, fixed furniture).
	Environment
)

func (c Category) String() string {
	switch c {
	case Subject:
		return "subject"
	case Prop:
		return "prop"
	case Environment:
		return "environment"
	}
	return "unknown"
}

// MeshPart contains a posed triangle list in object-local space. Vertices
// stores three entries per triangle. Normals is either empty or has the
// same length as Vertices.
type MeshPart struct {
	Vertices []types.Vec3
	Normals  []types.Vec3
}

// The Source interface is implemented by all hit-testable scene objects.
// Implementations pose their own geometry; the snapshot builder only reads
// the current part list and the world transform.
type Source interface {
	// Get the hit priority class for this object.
	Category() Category

	// Get the transform from object-local to world space.
	WorldTransform() types.Mat4

	// Get the mesh parts for the current pose.
	PosedParts() []MeshPart
}

// Model is a static source with a fixed part list and transform. It backs
// wavefront-loaded assets and the built-in room geometry.
type Model struct {
	category  Category
	transform types.Mat4
	parts     []MeshPart
}

// Create a new static model source.
func NewModel(category Category, parts ...MeshPart) *Model {
	return &Model{
		category:  category,
		transform: types.Ident4(),
		parts:     parts,
	}
}

// Set the model world transform.
func (m *Model) SetTransform(transform types.Mat4) {
	m.transform = transform
}

func (m *Model) Category() Category {
	return m.category
}

func (m *Model) WorldTransform() types.Mat4 {
	return m.transform
}

func (m *Model) PosedParts() []MeshPart {
	return m.parts
}
