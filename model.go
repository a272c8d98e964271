package amf

import (
	"math"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

type Header struct {
	Magic   uint32  `json:"magic"`
	Version float32 `json:"version"`
	Name    string  `json:"name"`
}

// HasTransforms reports whether permutation records carry a transform block.
func (h *Header) HasTransforms() bool {
	return h.Version >= V0_1
}

// HasTints reports whether standard shader records carry tint colors.
func (h *Header) HasTints() bool {
	return h.Version >= V1_1
}

// Node is one entry of the skeleton table. Indices are 0-based, -1 for none.
type Node struct {
	Name     string       `json:"name"`
	Parent   int          `json:"parent"`
	Child    int          `json:"child"`
	Sibling  int          `json:"sibling"`
	Position vec3.T       `json:"position"`
	Rotation quaternion.T `json:"rotation"`
}

type MarkerInstance struct {
	Region      int          `json:"region"`
	Permutation int          `json:"permutation"`
	Node        int          `json:"node"`
	Position    vec3.T       `json:"position"`
	Rotation    quaternion.T `json:"rotation"`
}

type MarkerGroup struct {
	Name    string           `json:"name"`
	Markers []MarkerInstance `json:"markers"`
}

// Vertex is a decoded vertex. Bones and Weights are parallel and hold
// 0-based node indices.
type Vertex struct {
	Position vec3.T    `json:"position"`
	Normal   vec3.T    `json:"normal"`
	TexCoord vec2.T    `json:"texCoord"`
	Bones    []int     `json:"bones,omitempty"`
	Weights  []float32 `json:"weights,omitempty"`
}

type Face [3]uint32

// Submesh is a run of faces drawn with one shader.
type Submesh struct {
	Shader    int `json:"shader"`
	FaceStart int `json:"faceStart"`
	FaceCount int `json:"faceCount"`
}

type Permutation struct {
	Name         string       `json:"name"`
	VertexFormat VertexFormat `json:"vertexFormat"`
	Compression  uint8        `json:"compression"`
	NodeIndex    uint8        `json:"nodeIndex"`
	VertexCount  int          `json:"vertexCount"`
	FaceCount    int          `json:"faceCount"`
	VertexOffset uint32       `json:"vertexOffset"`
	FaceOffset   uint32       `json:"faceOffset"`
	SubmeshCount int          `json:"submeshCount"`

	Vertices  []Vertex  `json:"-"`
	Faces     []Face    `json:"-"`
	Submeshes []Submesh `json:"submeshes"`

	// Multiplier is NaN when the permutation has no transform.
	Multiplier float32 `json:"-"`
	Transform  dmat.T  `json:"-"`

	Bounds        *CompressionBounds `json:"bounds,omitempty"`
	PositionQuant *Dequantizer       `json:"-"`
	TexCoordQuant *Dequantizer       `json:"-"`
}

// HasTransform reports whether Multiplier and Transform are meaningful.
func (p *Permutation) HasTransform() bool {
	return !math.IsNaN(float64(p.Multiplier))
}

// Rigid reports whether the whole permutation is bound to NodeIndex.
func (p *Permutation) Rigid() bool {
	return p.NodeIndex != NODE_INDEX_NONE
}

// SharesBuffersWith reports whether both permutations were decoded from the
// same vertex and face buffers.
func (p *Permutation) SharesBuffersWith(o *Permutation) bool {
	return p.VertexOffset == o.VertexOffset && p.FaceOffset == o.FaceOffset
}

type Region struct {
	Name         string         `json:"name"`
	Permutations []*Permutation `json:"permutations"`
}

// Model is everything decoded from one scene file.
type Model struct {
	Header  Header        `json:"header"`
	Nodes   []Node        `json:"nodes"`
	Markers []MarkerGroup `json:"markers"`
	Regions []*Region     `json:"regions"`
	Shaders []Shader      `json:"-"`
}

func (m *Model) RegionCount() int {
	return len(m.Regions)
}

func (m *Model) ShaderCount() int {
	return len(m.Shaders)
}

// Permutation returns the permutation at (region, perm) or nil.
func (m *Model) Permutation(region, perm int) *Permutation {
	if region < 0 || region >= len(m.Regions) {
		return nil
	}
	r := m.Regions[region]
	if perm < 0 || perm >= len(r.Permutations) {
		return nil
	}
	return r.Permutations[perm]
}

// FindRegion returns the index of the named region or -1.
func (m *Model) FindRegion(name string) int {
	for i, r := range m.Regions {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// FindPermutation returns the index of the named permutation in r or -1.
func (r *Region) FindPermutation(name string) int {
	for i, p := range r.Permutations {
		if p.Name == name {
			return i
		}
	}
	return -1
}
