package amf

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// instanceKey identifies geometry that can be shared between permutations.
// Submesh is -1 when submeshes are merged.
type instanceKey struct {
	vertexOffset uint32
	faceOffset   uint32
	submesh      int
}

type instanceEntry struct {
	mesh      *MeshNode
	format    VertexFormat
	nodeIndex uint8
	submeshes []Submesh
}

func (e *instanceEntry) matches(p *Permutation, subs []Submesh) bool {
	if e.format != p.VertexFormat || e.nodeIndex != p.NodeIndex || len(e.submeshes) != len(subs) {
		return false
	}
	for i := range subs {
		if e.submeshes[i] != subs[i] {
			return false
		}
	}
	return true
}

// Assembler owns the state of one assembly pass.
type Assembler struct {
	model     *Model
	opts      AssembleOptions
	log       *slog.Logger
	set       *MeshSet
	instances map[instanceKey]*instanceEntry
	used      map[int]bool
}

func NewAssembler(m *Model, opts AssembleOptions) *Assembler {
	return &Assembler{
		model:     m,
		opts:      opts,
		log:       loggerOrDiscard(opts.Logger),
		set:       &MeshSet{},
		instances: make(map[instanceKey]*instanceEntry),
		used:      make(map[int]bool),
	}
}

// Assemble builds meshes for every permutation enabled in sel. ctx is checked
// between permutations; on cancellation the meshes built so far are returned
// together with ctx.Err().
func Assemble(ctx context.Context, m *Model, sel *Selection, opts AssembleOptions) (*MeshSet, error) {
	return NewAssembler(m, opts).Run(ctx, sel)
}

func (a *Assembler) Run(ctx context.Context, sel *Selection) (*MeshSet, error) {
	for ri, r := range a.model.Regions {
		for pi, p := range r.Permutations {
			if !sel.Enabled(ri, pi) {
				continue
			}
			if err := ctx.Err(); err != nil {
				a.log.Info("assembly cancelled", "region", r.Name, "permutation", p.Name, "meshes", len(a.set.Meshes))
				return a.set, err
			}
			a.permutation(ri, pi)
		}
	}
	a.log.Debug("assembled", "meshes", len(a.set.Meshes), "instances", len(a.set.Instances), "warnings", len(a.set.Warnings))
	return a.set, nil
}

func (a *Assembler) warn(mesh string, format string, args ...interface{}) {
	w := Warning{Mesh: mesh, Message: fmt.Sprintf(format, args...)}
	a.set.Warnings = append(a.set.Warnings, w)
	a.log.Warn(w.Message, "mesh", mesh)
}

func (a *Assembler) useShader(mesh string, shader int) {
	if a.used[shader] {
		return
	}
	a.used[shader] = true
	a.set.UsedShaders = append(a.set.UsedShaders, shader)
	if shader < 0 || shader >= len(a.model.Shaders) {
		a.warn(mesh, "shader index %d outside %d shaders", shader, len(a.model.Shaders))
	}
}

func meshName(region, perm string, submesh int) string {
	if submesh < 0 {
		return region + ":" + perm
	}
	return region + ":" + perm + ":" + strconv.Itoa(submesh+1)
}

func (a *Assembler) permutation(ri, pi int) {
	r := a.model.Regions[ri]
	p := r.Permutations[pi]
	if len(p.Submeshes) == 0 {
		a.log.Debug("permutation has no submeshes", "region", r.Name, "permutation", p.Name)
		return
	}
	if a.opts.Merge {
		a.emit(ri, pi, -1, p.Submeshes)
		return
	}
	for s := range p.Submeshes {
		a.emit(ri, pi, s, p.Submeshes[s:s+1])
	}
}

// transform composes the multiplier, the permutation transform and the host
// unit conversion. It is nil when the permutation carries no transform and
// no conversion is set.
func (a *Assembler) transform(p *Permutation) *dmat.T {
	if !p.HasTransform() {
		if a.opts.Units == nil {
			return nil
		}
		m := a.opts.Units.apply(dmat.Ident, false)
		return &m
	}
	sc := scaleMatrix(float64(p.Multiplier))
	m := mulMatrix(&p.Transform, &sc)
	m = a.opts.Units.apply(m, false)
	return &m
}

func (a *Assembler) emit(ri, pi, submesh int, subs []Submesh) {
	r := a.model.Regions[ri]
	p := r.Permutations[pi]
	name := meshName(r.Name, p.Name, submesh)
	key := instanceKey{p.VertexOffset, p.FaceOffset, submesh}

	if p.HasTransform() {
		if e, ok := a.instances[key]; ok {
			if e.matches(p, subs) {
				for _, s := range subs {
					a.useShader(name, s.Shader)
				}
				a.set.Instances = append(a.set.Instances, &InstanceMesh{
					Name:        name,
					Region:      ri,
					Permutation: pi,
					Submesh:     submesh,
					Transform:   *a.transform(p),
					Mesh:        e.mesh,
					Props:       a.props(r, p, subs),
				})
				return
			}
			a.warn(name, "%v: %s shares buffers but differs in layout or binding, rebuilding", ErrAmbiguousInstance, e.mesh.Name)
		}
	}

	nd := a.build(name, p, subs, submesh < 0)
	nd.Region, nd.Permutation, nd.Submesh = ri, pi, submesh
	nd.Mat = a.transform(p)
	nd.Props = a.props(r, p, subs)
	a.set.Meshes = append(a.set.Meshes, nd)

	if _, ok := a.instances[key]; !ok {
		a.instances[key] = &instanceEntry{
			mesh:      nd,
			format:    p.VertexFormat,
			nodeIndex: p.NodeIndex,
			submeshes: append([]Submesh(nil), subs...),
		}
	}
}

func (a *Assembler) props(r *Region, p *Permutation, subs []Submesh) *Properties {
	props := Properties{}
	props.SetString("region", r.Name)
	props.SetString("permutation", p.Name)
	props.SetInt("vertexFormat", int64(p.VertexFormat))
	props.SetInt("compression", int64(p.Compression))
	if p.Rigid() {
		props.SetInt("node", int64(p.NodeIndex))
	}
	shaders := make([]int, len(subs))
	for i, s := range subs {
		shaders[i] = s.Shader
	}
	props.SetInts("shaders", shaders)
	props.SetBool("transformed", p.HasTransform())
	if p.HasTransform() {
		props.SetFloat("multiplier", float64(p.Multiplier))
	}
	if p.Bounds != nil {
		props.SetMap("bounds", boundsProps(p.Bounds))
	}
	return &props
}

func boundsProps(b *CompressionBounds) Properties {
	props := Properties{}
	for _, ax := range []struct {
		name string
		b    Bounds
	}{{"x", b.X}, {"y", b.Y}, {"z", b.Z}, {"u", b.U}, {"v", b.V}} {
		props.SetFloat(ax.name+"Min", float64(ax.b.Min))
		props.SetFloat(ax.name+"Max", float64(ax.b.Max))
	}
	return props
}

// faceRange clamps a submesh to the permutation's face list.
func (a *Assembler) faceRange(name string, s Submesh, total int) (int, int) {
	start, end := s.FaceStart, s.FaceStart+s.FaceCount
	if start < 0 || s.FaceCount < 0 || end > total {
		a.warn(name, "submesh faces [%d,%d) outside %d faces, clamped", start, end, total)
		if start < 0 {
			start = 0
		}
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}
		if end < start {
			end = start
		}
	}
	return start, end
}

// clampFaces copies faces and pulls indices at or past vertexCount back to
// the last vertex.
func (a *Assembler) clampFaces(name string, faces []Face, vertexCount int) []Face {
	out := make([]Face, 0, len(faces))
	clamped := 0
	for _, f := range faces {
		if vertexCount == 0 {
			clamped++
			continue
		}
		for j := range f {
			if int(f[j]) >= vertexCount {
				f[j] = uint32(vertexCount - 1)
				clamped++
			}
		}
		out = append(out, f)
	}
	if clamped > 0 {
		a.warn(name, "%d face indices outside %d vertices, clamped", clamped, vertexCount)
	}
	return out
}

func (a *Assembler) build(name string, p *Permutation, subs []Submesh, merge bool) *MeshNode {
	nd := &MeshNode{Name: name, Unwrap: a.opts.UnwrapPlaceholder}
	total := len(p.Faces)
	vcount := len(p.Vertices)

	var covered []bool
	if merge {
		covered = make([]bool, total)
	}
	for _, s := range subs {
		start, end := a.faceRange(name, s, total)
		a.useShader(name, s.Shader)
		nd.FaceGroup = append(nd.FaceGroup, &MeshTriangle{
			Batchid: int32(s.Shader),
			Faces:   a.clampFaces(name, p.Faces[start:end], vcount),
		})
		for i := start; merge && i < end; i++ {
			covered[i] = true
		}
	}
	if merge {
		var rest []Face
		for i, c := range covered {
			if !c {
				rest = append(rest, p.Faces[i])
			}
		}
		if len(rest) > 0 {
			a.log.Debug("faces outside every submesh", "mesh", name, "faces", len(rest))
			nd.FaceGroup = append(nd.FaceGroup, &MeshTriangle{Batchid: -1, Faces: a.clampFaces(name, rest, vcount)})
		}
	}

	lo, hi := 0, vcount-1
	if !merge {
		lo, hi = compactRange(nd.FaceGroup)
		for _, g := range nd.FaceGroup {
			for i := range g.Faces {
				for j := range g.Faces[i] {
					g.Faces[i][j] -= uint32(lo)
				}
			}
		}
	}
	verts := p.Vertices[lo : hi+1]

	nd.Vertices = make([]vec3.T, len(verts))
	for i := range verts {
		nd.Vertices[i] = verts[i].Position
	}
	if a.opts.UV {
		nd.TexCoords = make([]vec2.T, len(verts))
		for i := range verts {
			nd.TexCoords[i] = verts[i].TexCoord
		}
	}
	if a.opts.Normals {
		if p.Compression != COMPRESSION_NONE {
			nd.ReComputeNormal()
		} else {
			nd.Normals = make([]vec3.T, len(verts))
			for i := range verts {
				nd.Normals[i] = verts[i].Normal
			}
		}
	}
	if a.opts.Weights && (p.VertexFormat != VERTEX_FORMAT_RIGID || p.Rigid()) {
		nd.Skin = a.skin(name, p, verts)
	}
	return nd
}

// compactRange returns the smallest and largest vertex index the groups
// reference. Empty groups give the empty range (0, -1).
func compactRange(groups []*MeshTriangle) (int, int) {
	lo, hi := -1, -1
	for _, g := range groups {
		for _, f := range g.Faces {
			for _, v := range f {
				if lo < 0 || int(v) < lo {
					lo = int(v)
				}
				if int(v) > hi {
					hi = int(v)
				}
			}
		}
	}
	if lo < 0 {
		return 0, -1
	}
	return lo, hi
}

func (a *Assembler) skin(name string, p *Permutation, verts []Vertex) *Skin {
	sk := &Skin{
		Bones:   make([][]int, len(verts)),
		Weights: make([][]float32, len(verts)),
		Rigid:   p.VertexFormat == VERTEX_FORMAT_SKINNED2 || p.Rigid(),
	}
	nodes := len(a.model.Nodes)
	if p.Rigid() {
		if int(p.NodeIndex) >= nodes {
			a.warn(name, "bound to node %d outside %d nodes", p.NodeIndex, nodes)
		}
		for i := range verts {
			sk.Bones[i] = []int{int(p.NodeIndex)}
			sk.Weights[i] = []float32{1}
		}
		return sk
	}
	dropped := 0
	for i := range verts {
		v := &verts[i]
		bones := make([]int, 0, len(v.Bones))
		weights := make([]float32, 0, len(v.Bones))
		for j, b := range v.Bones {
			if b >= nodes {
				dropped++
				continue
			}
			bones = append(bones, b)
			weights = append(weights, v.Weights[j])
		}
		sk.Bones[i], sk.Weights[i] = bones, weights
	}
	if dropped > 0 {
		a.warn(name, "%d bone influences outside %d nodes dropped", dropped, nodes)
	}
	return sk
}
