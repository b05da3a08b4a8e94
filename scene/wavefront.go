package scene

import (
	"fmt"

	"github.com/ArbiusIntern/amicaxr/types"
	"github.com/fogleman/fauxgl"
)

// Load a hit-testable model from a wavefront obj file. The mesh is taken
// as-is (object-local coordinates); position it with SetTransform.
func LoadWavefront(path string, category Category) (*Model, error) {
	mesh, err := fauxgl.LoadOBJ(path)
	if err != nil {
		return nil, fmt.Errorf("loadWavefront: %s", err.Error())
	}

	return NewModel(category, partFromMesh(mesh)), nil
}

// Convert a fauxgl mesh into a single triangle-soup part.
func partFromMesh(mesh *fauxgl.Mesh) MeshPart {
	part := MeshPart{
		Vertices: make([]types.Vec3, 0, len(mesh.Triangles)*3),
		Normals:  make([]types.Vec3, 0, len(mesh.Triangles)*3),
	}

	for _, tri := range mesh.Triangles {
		for _, vertex := range [3]fauxgl.Vertex{tri.V1, tri.V2, tri.V3} {
			part.Vertices = append(part.Vertices, vec3From(vertex.Position))
			part.Normals = append(part.Normals, vec3From(vertex.Normal))
		}
	}

	return part
}

func vec3From(v fauxgl.Vector) types.Vec3 {
	return types.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Build a triangulated axis-aligned box spanning min..max with outward
// facing normals. Used by the built-in avatar and room sources.
func boxMesh(min, max fauxgl.Vector) *fauxgl.Mesh {
	corners := [8]fauxgl.Vector{
		fauxgl.V(min.X, min.Y, min.Z),
		fauxgl.V(max.X, min.Y, min.Z),
		fauxgl.V(max.X, max.Y, min.Z),
		fauxgl.V(min.X, max.Y, min.Z),
		fauxgl.V(min.X, min.Y, max.Z),
		fauxgl.V(max.X, min.Y, max.Z),
		fauxgl.V(max.X, max.Y, max.Z),
		fauxgl.V(min.X, max.Y, max.Z),
	}

	// Each face as a corner quad with counter-clockwise outward winding.
	faces := [6][4]int{
		{4, 5, 6, 7}, // +z
		{1, 0, 3, 2}, // -z
		{5, 1, 2, 6}, // +x
		{0, 4, 7, 3}, // -x
		{3, 7, 6, 2}, // +y
		{0, 1, 5, 4}, // -y
	}

	triangles := make([]*fauxgl.Triangle, 0, len(faces)*2)
	for _, face := range faces {
		a, b, c, d := corners[face[0]], corners[face[1]], corners[face[2]], corners[face[3]]
		triangles = append(triangles, fauxgl.NewTriangleForPoints(a, b, c))
		triangles = append(triangles, fauxgl.NewTriangleForPoints(a, c, d))
	}

	return fauxgl.NewTriangleMesh(triangles)
}
