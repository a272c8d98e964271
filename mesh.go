package amf

import (
	"math"

	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// MeshTriangle 同一材质的三角面. Batchid is the 0-based shader index, -1 for
// faces no submesh covers.
type MeshTriangle struct {
	Batchid int32  `json:"batchid"`
	Faces   []Face `json:"faces"`
}

// Skin holds per-vertex bone influences, parallel to MeshNode.Vertices.
type Skin struct {
	Bones   [][]int     `json:"bones"`
	Weights [][]float32 `json:"weights"`
	// Rigid asks the host to bind each vertex to a single bone.
	Rigid bool `json:"rigid"`
}

// Influences returns the bone count of the most influenced vertex.
func (s *Skin) Influences() int {
	n := 0
	for _, b := range s.Bones {
		if len(b) > n {
			n = len(b)
		}
	}
	return n
}

type MeshNode struct {
	Name        string          `json:"name"`
	Region      int             `json:"region"`
	Permutation int             `json:"permutation"`
	Submesh     int             `json:"submesh"`
	Vertices    []vec3.T        `json:"vertices"`
	Normals     []vec3.T        `json:"normals,omitempty"`
	TexCoords   []vec2.T        `json:"texCoords,omitempty"`
	Mat         *dmat.T         `json:"mat,omitempty"`
	FaceGroup   []*MeshTriangle `json:"faceGroup,omitempty"`
	Skin        *Skin           `json:"skin,omitempty"`
	Unwrap      bool            `json:"unwrap,omitempty"`
	Props       *Properties     `json:"props,omitempty"`
}

func (n *MeshNode) FaceCount() int {
	c := 0
	for _, g := range n.FaceGroup {
		c += len(g.Faces)
	}
	return c
}

func (n *MeshNode) ReComputeNormal() {
	normals := make([]vec3.T, len(n.Vertices))
	for _, g := range n.FaceGroup {
		for _, f := range g.Faces {
			pt1 := n.Vertices[f[0]]
			pt2 := n.Vertices[f[1]]
			pt3 := n.Vertices[f[2]]

			sub1 := vec3.Sub(&pt3, &pt2)
			sub2 := vec3.Sub(&pt1, &pt2)

			cro := vec3.Cross(&sub1, &sub2)
			l := cro.Length()
			if l == 0 {
				continue
			}
			weightedNormal := cro.Scale(1 / l)

			normals[f[0]].Add(weightedNormal)
			normals[f[1]].Add(weightedNormal)
			normals[f[2]].Add(weightedNormal)
		}
	}

	for i := range normals {
		if normals[i].IsZero() {
			continue
		}
		normals[i].Normalize()
	}

	n.Normals = normals
}

func (nd *MeshNode) GetBoundbox() *[6]float64 {
	minX := math.MaxFloat64
	minY := math.MaxFloat64
	minZ := math.MaxFloat64
	maxX := -math.MaxFloat64
	maxY := -math.MaxFloat64
	maxZ := -math.MaxFloat64
	for i := range nd.Vertices {
		minX = math.Min(minX, float64(nd.Vertices[i][0]))
		minY = math.Min(minY, float64(nd.Vertices[i][1]))
		minZ = math.Min(minZ, float64(nd.Vertices[i][2]))

		maxX = math.Max(maxX, float64(nd.Vertices[i][0]))
		maxY = math.Max(maxY, float64(nd.Vertices[i][1]))
		maxZ = math.Max(maxZ, float64(nd.Vertices[i][2]))
	}
	return &[6]float64{minX, minY, minZ, maxX, maxY, maxZ}
}

// InstanceMesh places an already built mesh again under its own transform.
type InstanceMesh struct {
	Name        string      `json:"name"`
	Region      int         `json:"region"`
	Permutation int         `json:"permutation"`
	Submesh     int         `json:"submesh"`
	Transform   dmat.T      `json:"-"`
	Mesh        *MeshNode   `json:"-"`
	Props       *Properties `json:"props,omitempty"`
}

// MeshSet is the output of one assembly pass.
type MeshSet struct {
	Meshes    []*MeshNode     `json:"meshes"`
	Instances []*InstanceMesh `json:"instances,omitempty"`
	// UsedShaders lists shader indices in order of first use.
	UsedShaders []int     `json:"usedShaders"`
	Warnings    []Warning `json:"-"`
}

func (s *MeshSet) MeshCount() int {
	return len(s.Meshes)
}

func (s *MeshSet) InstanceCount() int {
	return len(s.Instances)
}

func transformBox(bx *[6]float64, m *dmat.T) dvec3.Box {
	if m == nil {
		return dvec3.Box{Min: dvec3.T{bx[0], bx[1], bx[2]}, Max: dvec3.T{bx[3], bx[4], bx[5]}}
	}
	box := dvec3.MinBox
	for i := 0; i < 8; i++ {
		c := dvec3.T{bx[(i&1)*3], bx[((i>>1)&1)*3+1], bx[((i>>2)&1)*3+2]}
		p := m.MulVec3(&c)
		b := dvec3.Box{Min: p, Max: p}
		box.Join(&b)
	}
	return box
}

// ComputeBBox returns the bounds of every mesh and instance in model space.
func (s *MeshSet) ComputeBBox() dvec3.Box {
	if len(s.Meshes) == 0 {
		return dvec3.Box{}
	}

	bbox := dvec3.MinBox
	for _, nd := range s.Meshes {
		if len(nd.Vertices) == 0 {
			continue
		}
		bbx := transformBox(nd.GetBoundbox(), nd.Mat)
		bbox.Join(&bbx)
	}
	for _, inst := range s.Instances {
		if len(inst.Mesh.Vertices) == 0 {
			continue
		}
		bbx := transformBox(inst.Mesh.GetBoundbox(), &inst.Transform)
		bbox.Join(&bbx)
	}
	return bbox
}
