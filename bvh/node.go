package bvh

import "github.com/ArbiusIntern/amicaxr/types"

// Bvh nodes are comprised of two Vec3 and two multipurpose int32 parameters
// whose value depends on the node type:
//
// - For inner nodes they are both >0 and point to the L/R child nodes
// - For leafs:
//   - LData is <= 0 and points to the first baked triangle index
//   - RData is >0 and contains the count of leaf triangles
type Node struct {
	Min   types.Vec3
	LData int32

	Max   types.Vec3
	RData int32
}

// Set bounding box.
func (n *Node) SetBBox(bbox [2]types.Vec3) {
	n.Min = bbox[0]
	n.Max = bbox[1]
}

// Set left and right child node indices.
func (n *Node) SetChildNodes(left, right uint32) {
	n.LData = int32(left)
	n.RData = int32(right)
}

// Set triangle index and count.
func (n *Node) SetTriangles(firstTriIndex, count uint32) {
	n.LData = -int32(firstTriIndex)
	n.RData = int32(count)
}

// Get triangle index and count.
func (n *Node) GetTriangles() (firstTriIndex, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// Check whether this node is a leaf.
func (n *Node) Leaf() bool {
	return n.LData <= 0
}
