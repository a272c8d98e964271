package amf

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/flywave/go3d/quaternion"
)

type testVertex struct {
	Vertex
	// quantized attributes, used when the permutation is compressed
	Q  [3]uint16
	QT [2]int16
}

type testPermutation struct {
	Name        string
	Format      VertexFormat
	Compression uint8
	NodeIndex   uint8
	Vertices    []testVertex
	Bounds      CompressionBounds
	Faces       []Face
	Submeshes   []Submesh
	// HasTransform writes Multiplier and Rows; otherwise a NaN multiplier.
	HasTransform bool
	Multiplier   float32
	Rows         [12]float32
	// ShareWith reuses the buffers of an earlier permutation.
	ShareWith *testPermutation

	vertexTable, faceTable, submeshTable int
	vertexAt, faceAt                     uint32
}

type testRegion struct {
	Name         string
	Permutations []*testPermutation
}

type testScene struct {
	Version float32
	Name    string
	Nodes   []Node
	Markers []MarkerGroup
	Regions []testRegion
	Shaders []Shader
}

// sceneWriter lays out scene files for tests. Tables are written as
// (count, offset) placeholders and patched once their records land.
type sceneWriter struct {
	buf bytes.Buffer
	enc StringEncoding
	ver float32
}

func writeLittleByte(wt io.Writer, v interface{}) {
	if err := binary.Write(wt, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

func (w *sceneWriter) pos() uint32 {
	return uint32(w.buf.Len())
}

func (w *sceneWriter) str(s string) {
	if w.enc == NullTerminated {
		w.buf.WriteString(s)
		w.buf.WriteByte(0)
		return
	}
	writeLittleByte(&w.buf, uint32(len(s)))
	w.buf.WriteString(s)
}

// table writes a count and an offset placeholder and returns the placeholder
// position.
func (w *sceneWriter) table(count int) int {
	writeLittleByte(&w.buf, uint32(count))
	at := w.buf.Len()
	writeLittleByte(&w.buf, uint32(0))
	return at
}

func (w *sceneWriter) patch(at int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf.Bytes()[at:], v)
}

// fill points the placeholder at the current position.
func (w *sceneWriter) fill(at int) {
	w.patch(at, w.pos())
}

func (w *sceneWriter) vec(vs ...float32) {
	for _, v := range vs {
		writeLittleByte(&w.buf, v)
	}
}

func buildScene(s *testScene, enc StringEncoding) []byte {
	w := &sceneWriter{enc: enc, ver: s.Version}
	w.buf.WriteString(AMF_SIGNATURE)
	writeLittleByte(&w.buf, s.Version)
	w.str(s.Name)

	nodes := w.table(len(s.Nodes))
	markers := w.table(len(s.Markers))
	regions := w.table(len(s.Regions))
	shaders := w.table(len(s.Shaders))

	if len(s.Nodes) > 0 {
		w.fill(nodes)
		for _, n := range s.Nodes {
			w.str(n.Name)
			writeLittleByte(&w.buf, [3]int16{int16(n.Parent), int16(n.Child), int16(n.Sibling)})
			w.vec(n.Position[:]...)
			w.vec(n.Rotation[:]...)
		}
	}

	if len(s.Markers) > 0 {
		w.fill(markers)
		tables := make([]int, len(s.Markers))
		for i, g := range s.Markers {
			w.str(g.Name)
			tables[i] = w.table(len(g.Markers))
		}
		for i, g := range s.Markers {
			if len(g.Markers) == 0 {
				continue
			}
			w.fill(tables[i])
			for _, m := range g.Markers {
				writeLittleByte(&w.buf, int8(m.Region))
				writeLittleByte(&w.buf, int8(m.Permutation))
				writeLittleByte(&w.buf, int16(m.Node))
				w.vec(m.Position[:]...)
				w.vec(m.Rotation[:]...)
			}
		}
	}

	if len(s.Regions) > 0 {
		w.fill(regions)
		tables := make([]int, len(s.Regions))
		for i, r := range s.Regions {
			w.str(r.Name)
			tables[i] = w.table(len(r.Permutations))
		}
		var perms []*testPermutation
		for i, r := range s.Regions {
			if len(r.Permutations) == 0 {
				continue
			}
			w.fill(tables[i])
			for _, p := range r.Permutations {
				w.permutation(p)
				perms = append(perms, p)
			}
		}
		for _, p := range perms {
			w.buffers(p)
		}
	}

	if len(s.Shaders) > 0 {
		w.fill(shaders)
		for _, sh := range s.Shaders {
			w.shader(sh)
		}
	}
	return w.buf.Bytes()
}

func (w *sceneWriter) permutation(p *testPermutation) {
	w.str(p.Name)
	writeLittleByte(&w.buf, uint8(p.Format)|p.Compression<<4)
	writeLittleByte(&w.buf, p.NodeIndex)
	p.vertexTable = w.table(len(p.Vertices))
	p.faceTable = w.table(len(p.Faces))
	p.submeshTable = w.table(len(p.Submeshes))
	if w.ver < V0_1 {
		return
	}
	if !p.HasTransform {
		w.vec(float32(math.NaN()))
		return
	}
	w.vec(p.Multiplier)
	w.vec(p.Rows[:]...)
}

// buffers writes the vertex, face and submesh blocks of p, or points p at
// the blocks of ShareWith.
func (w *sceneWriter) buffers(p *testPermutation) {
	if p.ShareWith != nil {
		w.patch(p.vertexTable, p.ShareWith.vertexAt)
		w.patch(p.faceTable, p.ShareWith.faceAt)
		p.vertexAt, p.faceAt = p.ShareWith.vertexAt, p.ShareWith.faceAt
	} else {
		if len(p.Vertices) > 0 {
			p.vertexAt = w.pos()
			w.fill(p.vertexTable)
			w.vertices(p)
		}
		if len(p.Faces) > 0 {
			p.faceAt = w.pos()
			w.fill(p.faceTable)
			wide := wideIndices(len(p.Vertices))
			for _, f := range p.Faces {
				for _, v := range f {
					if wide {
						writeLittleByte(&w.buf, v)
					} else {
						writeLittleByte(&w.buf, uint16(v))
					}
				}
			}
		}
	}
	if len(p.Submeshes) > 0 {
		w.fill(p.submeshTable)
		for _, s := range p.Submeshes {
			writeLittleByte(&w.buf, int16(s.Shader))
			writeLittleByte(&w.buf, int32(s.FaceStart))
			writeLittleByte(&w.buf, int32(s.FaceCount))
		}
	}
}

func (w *sceneWriter) vertices(p *testPermutation) {
	compressed := p.Compression != COMPRESSION_NONE
	if compressed {
		b := p.Bounds
		w.vec(b.X.Min, b.X.Max, b.Y.Min, b.Y.Max, b.Z.Min, b.Z.Max, b.U.Min, b.U.Max, b.V.Min, b.V.Max)
	}
	for _, v := range p.Vertices {
		if compressed {
			writeLittleByte(&w.buf, v.Q)
			writeLittleByte(&w.buf, uint32(0))
			writeLittleByte(&w.buf, v.QT)
		} else {
			w.vec(v.Position[:]...)
			w.vec(v.Normal[:]...)
			w.vec(v.TexCoord[:]...)
		}
		if p.Format == VERTEX_FORMAT_RIGID {
			continue
		}
		for _, b := range v.Bones {
			writeLittleByte(&w.buf, uint8(b))
		}
		if len(v.Bones) < MAX_BONES_PER_VERTEX {
			writeLittleByte(&w.buf, BONE_INDEX_END)
		}
		if p.Format == VERTEX_FORMAT_SKINNED {
			w.vec(v.Weights...)
		}
	}
}

func (w *sceneWriter) slot(s TextureSlot, optional bool) {
	path := s.Path
	if path == "" {
		path = NULL_PATH
	}
	w.str(path)
	if optional && path == NULL_PATH {
		return
	}
	w.vec(s.Tile[:]...)
}

func (w *sceneWriter) shader(sh Shader) {
	switch s := sh.(type) {
	case *StandardShader:
		w.str(s.Name)
		for _, t := range s.Textures {
			w.slot(t, true)
		}
		if w.ver >= V1_1 {
			writeLittleByte(&w.buf, s.Tints)
		}
		writeLittleByte(&w.buf, s.Transparent)
		writeLittleByte(&w.buf, s.CommunityOnly)
	case *TerrainShader:
		w.str(TERRAIN_PREFIX + s.Name)
		w.slot(s.Blend, true)
		writeLittleByte(&w.buf, [3]uint8{uint8(len(s.Base)), uint8(len(s.Bump)), uint8(len(s.Detail))})
		for _, layer := range [][]TextureSlot{s.Base, s.Bump, s.Detail} {
			for _, t := range layer {
				w.slot(t, false)
			}
		}
	}
}

func ident() quaternion.T {
	return quaternion.T{0, 0, 0, 1}
}
