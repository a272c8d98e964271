package amf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/qmuntal/gltf"
)

const GLTF_VERSION = "2.0"

const (
	ATTR_POSITION = "POSITION"
	ATTR_NORMAL   = "NORMAL"
	ATTR_TEXCOORD = "TEXCOORD_0"
	ATTR_JOINTS   = "JOINTS_0"
	ATTR_WEIGHTS  = "WEIGHTS_0"
)

func CreateDoc() *gltf.Document {
	doc := &gltf.Document{}
	doc.Asset.Version = GLTF_VERSION
	doc.Asset.Generator = "go-amf"
	srcIndex := uint32(0)
	doc.Scene = &srcIndex
	doc.Scenes = append(doc.Scenes, &gltf.Scene{})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	return doc
}

type calcSizeWriter struct {
	writer io.Writer
	Size   int
}

func (w *calcSizeWriter) Write(p []byte) (n int, err error) {
	si := len(p)
	w.writer.Write(p)
	w.Size += int(si)
	return si, nil
}

func (w *calcSizeWriter) Bytes() []byte {
	return w.writer.(*bytes.Buffer).Bytes()
}

func newSizeWriter() calcSizeWriter {
	wt := bytes.NewBuffer([]byte{})
	return calcSizeWriter{Size: int(0), writer: wt}
}

func calcPadding(offset, paddingUnit int) int {
	padding := offset % paddingUnit
	if padding != 0 {
		padding = paddingUnit - padding
	}
	return padding
}

// GetGltfBinary encodes doc as GLB, padded with spaces to paddingUnit.
func GetGltfBinary(doc *gltf.Document, paddingUnit int) ([]byte, error) {
	w := newSizeWriter()
	enc := gltf.NewEncoder(w.writer)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	w.Size = len(w.Bytes())
	padding := calcPadding(w.Size, paddingUnit)
	if padding == 0 {
		return w.Bytes(), nil
	}
	pad := make([]byte, padding)
	for i := range pad {
		pad[i] = 0x20
	}
	w.Write(pad)
	return w.Bytes(), nil
}

// WriteGltf writes doc as GLB, or as JSON with an embedded buffer.
func WriteGltf(w io.Writer, doc *gltf.Document, asBinary bool) error {
	if !asBinary {
		for _, b := range doc.Buffers {
			if b.URI == "" && len(b.Data) > 0 {
				b.EmbeddedResource()
			}
		}
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = asBinary
	return enc.Encode(doc)
}

func matrixArray(m *dmat.T) [16]float32 {
	ay := *m.Array()
	var out [16]float32
	for i := range ay {
		out[i] = float32(ay[i])
	}
	return out
}

// rigidInverse inverts a rotation plus translation.
func rigidInverse(m *dmat.T) dmat.T {
	inv := dmat.Ident
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv[i][j] = m[j][i]
		}
	}
	for i := 0; i < 3; i++ {
		inv[3][i] = -(inv[0][i]*m[3][0] + inv[1][i]*m[3][1] + inv[2][i]*m[3][2])
	}
	return inv
}

type meshRef struct {
	mesh       uint32
	node       uint32
	instances  []*InstanceMesh
	instNodes  []uint32
	primitives []*gltf.Primitive
}

// GltfSink builds a glTF 2.0 document from an assembled scene. All data goes
// into the first buffer.
type GltfSink struct {
	model     *Model
	doc       *gltf.Document
	bones     []*Bone
	boneNodes []uint32
	skins     map[[16]float32]uint32
	meshes    map[*MeshNode]*meshRef
	materials map[int32]uint32
}

func NewGltfSink(model *Model) *GltfSink {
	return &GltfSink{
		model:     model,
		doc:       CreateDoc(),
		skins:     make(map[[16]float32]uint32),
		meshes:    make(map[*MeshNode]*meshRef),
		materials: make(map[int32]uint32),
	}
}

// Document links the bone hierarchy and returns the finished document.
func (s *GltfSink) Document() *gltf.Document {
	for i, b := range s.bones {
		nd := s.boneNodes[i]
		if b.Parent < 0 || b.Parent >= len(s.boneNodes) {
			s.addRoot(nd)
			continue
		}
		parent := s.doc.Nodes[s.boneNodes[b.Parent]]
		parent.Children = append(parent.Children, nd)
	}
	s.bones = nil
	return s.doc
}

func (s *GltfSink) addRoot(nd uint32) {
	s.doc.Scenes[0].Nodes = append(s.doc.Scenes[0].Nodes, nd)
}

func (s *GltfSink) addNode(nd *gltf.Node) uint32 {
	idx := uint32(len(s.doc.Nodes))
	s.doc.Nodes = append(s.doc.Nodes, nd)
	return idx
}

func (s *GltfSink) CreateBone(b *Bone) error {
	nd := &gltf.Node{Name: b.Name, Matrix: matrixArray(&b.Local)}
	s.bones = append(s.bones, b)
	s.boneNodes = append(s.boneNodes, s.addNode(nd))
	return nil
}

// appendBufferView writes data to the buffer and returns its view index.
func (s *GltfSink) appendBufferView(data interface{}) (uint32, error) {
	buffer := s.doc.Buffers[0]
	buf := bytes.NewBuffer(nil)
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return 0, err
	}
	view := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: buffer.ByteLength,
		ByteLength: uint32(buf.Len()),
	}
	buffer.ByteLength += uint32(buf.Len())
	buffer.Data = append(buffer.Data, buf.Bytes()...)
	idx := uint32(len(s.doc.BufferViews))
	s.doc.BufferViews = append(s.doc.BufferViews, view)
	return idx, nil
}

func (s *GltfSink) appendAccessor(acc *gltf.Accessor) uint32 {
	idx := uint32(len(s.doc.Accessors))
	s.doc.Accessors = append(s.doc.Accessors, acc)
	return idx
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}

func (s *GltfSink) material(batch int32) uint32 {
	if idx, ok := s.materials[batch]; ok {
		return idx
	}
	gm := &gltf.Material{DoubleSided: true, AlphaMode: gltf.AlphaOpaque}
	gm.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{1, 1, 1, 1}}
	if s.model != nil && batch >= 0 && int(batch) < len(s.model.Shaders) {
		sh := s.model.Shaders[batch]
		gm.Name = sh.GetName()
		gm.Extras = shaderExtras(sh)
		if st, ok := sh.(*StandardShader); ok && st.Transparent {
			gm.AlphaMode = gltf.AlphaBlend
		}
	} else {
		gm.Name = fmt.Sprintf("shader%d", batch)
	}
	idx := uint32(len(s.doc.Materials))
	s.doc.Materials = append(s.doc.Materials, gm)
	s.materials[batch] = idx
	return idx
}

func slotExtras(slots []TextureSlot) []interface{} {
	out := make([]interface{}, 0, len(slots))
	for _, sl := range slots {
		if sl.Empty() {
			continue
		}
		out = append(out, map[string]interface{}{"path": sl.Path, "tile": []float32{sl.Tile[0], sl.Tile[1]}})
	}
	return out
}

func shaderExtras(sh Shader) map[string]interface{} {
	switch m := sh.(type) {
	case *StandardShader:
		return map[string]interface{}{
			"type":          "standard",
			"textures":      slotExtras(m.Textures[:]),
			"communityOnly": m.CommunityOnly,
		}
	case *TerrainShader:
		return map[string]interface{}{
			"type":   "terrain",
			"blend":  slotExtras([]TextureSlot{m.Blend}),
			"base":   slotExtras(m.Base),
			"bump":   slotExtras(m.Bump),
			"detail": slotExtras(m.Detail),
		}
	}
	return nil
}

func (s *GltfSink) CreateMesh(m *MeshNode) error {
	nd := &gltf.Node{Name: m.Name}
	if m.Mat != nil {
		nd.Matrix = matrixArray(m.Mat)
	}
	if m.Props != nil {
		nd.Extras = propsToMap(m.Props)
	}
	if len(m.Vertices) == 0 || m.FaceCount() == 0 {
		s.addRoot(s.addNode(nd))
		return nil
	}

	var faces []Face
	for _, g := range m.FaceGroup {
		faces = append(faces, g.Faces...)
	}
	bvIndex, err := s.appendBufferView(faces)
	if err != nil {
		return err
	}
	bvPos, err := s.appendBufferView(m.Vertices)
	if err != nil {
		return err
	}

	box := m.GetBoundbox()
	attributes := gltf.Attribute{}
	attributes[ATTR_POSITION] = s.appendAccessor(&gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec3,
		Count:         uint32(len(m.Vertices)),
		BufferView:    &bvPos,
		Min:           []float32{float32(box[0]), float32(box[1]), float32(box[2])},
		Max:           []float32{float32(box[3]), float32(box[4]), float32(box[5])},
	})
	if len(m.TexCoords) > 0 {
		bvTex, err := s.appendBufferView(m.TexCoords)
		if err != nil {
			return err
		}
		attributes[ATTR_TEXCOORD] = s.appendAccessor(&gltf.Accessor{
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec2,
			Count:         uint32(len(m.TexCoords)),
			BufferView:    &bvTex,
		})
	}
	if len(m.Normals) > 0 {
		bvNl, err := s.appendBufferView(m.Normals)
		if err != nil {
			return err
		}
		attributes[ATTR_NORMAL] = s.appendAccessor(&gltf.Accessor{
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec3,
			Count:         uint32(len(m.Normals)),
			BufferView:    &bvNl,
		})
	}

	mesh := &gltf.Mesh{Name: m.Name}
	var start uint32
	for _, g := range m.FaceGroup {
		count := uint32(len(g.Faces))
		if count == 0 {
			continue
		}
		index := s.appendAccessor(&gltf.Accessor{
			ComponentType: gltf.ComponentUint,
			ByteOffset:    start * 12,
			Count:         count * 3,
			BufferView:    uint32Ptr(bvIndex),
		})
		start += count
		attrs := gltf.Attribute{}
		for k, v := range attributes {
			attrs[k] = v
		}
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Attributes: attrs,
			Indices:    uint32Ptr(index),
			Material:   uint32Ptr(s.material(g.Batchid)),
			Mode:       gltf.PrimitiveTriangles,
		})
	}

	meshIndex := uint32(len(s.doc.Meshes))
	s.doc.Meshes = append(s.doc.Meshes, mesh)
	nd.Mesh = &meshIndex
	nodeIndex := s.addNode(nd)
	s.addRoot(nodeIndex)
	s.meshes[m] = &meshRef{mesh: meshIndex, node: nodeIndex, primitives: mesh.Primitives}
	return nil
}

func (s *GltfSink) CreateInstance(inst *InstanceMesh) error {
	nd := &gltf.Node{Name: inst.Name, Matrix: matrixArray(&inst.Transform)}
	if inst.Props != nil {
		nd.Extras = propsToMap(inst.Props)
	}
	idx := s.addNode(nd)
	if ref, ok := s.meshes[inst.Mesh]; ok {
		meshIndex := ref.mesh
		nd.Mesh = &meshIndex
		ref.instances = append(ref.instances, inst)
		ref.instNodes = append(ref.instNodes, idx)
	}
	s.addRoot(idx)
	return nil
}

func (s *GltfSink) CreateMarker(name string, m *MarkerInstance) error {
	nd := &gltf.Node{
		Name:        name,
		Translation: [3]float32{m.Position[0], m.Position[1], m.Position[2]},
		Rotation:    [4]float32{m.Rotation[0], m.Rotation[1], m.Rotation[2], m.Rotation[3]},
		Scale:       [3]float32{1, 1, 1},
		Extras: map[string]interface{}{
			"region":      m.Region,
			"permutation": m.Permutation,
		},
	}
	idx := s.addNode(nd)
	if m.Node >= 0 && m.Node < len(s.boneNodes) {
		parent := s.doc.Nodes[s.boneNodes[m.Node]]
		parent.Children = append(parent.Children, idx)
		return nil
	}
	s.addRoot(idx)
	return nil
}

// skinIndex returns a skin over every bone whose bind pose places the mesh
// at mat. Skinned nodes ignore their own transform, so mat is folded into
// the inverse bind matrices. Skins are shared between equal transforms.
func (s *GltfSink) skinIndex(mat *dmat.T) (uint32, error) {
	key := gltf.DefaultMatrix
	if mat != nil {
		key = matrixArray(mat)
	}
	if idx, ok := s.skins[key]; ok {
		return idx, nil
	}
	ibms := make([][16]float32, len(s.bones))
	for i, b := range s.bones {
		inv := rigidInverse(&b.World)
		if mat != nil {
			inv = mulMatrix(&inv, mat)
		}
		ibms[i] = matrixArray(&inv)
	}
	skin := &gltf.Skin{Joints: append([]uint32(nil), s.boneNodes...)}
	if len(ibms) > 0 {
		bv, err := s.appendBufferView(ibms)
		if err != nil {
			return 0, err
		}
		skin.InverseBindMatrices = uint32Ptr(s.appendAccessor(&gltf.Accessor{
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorMat4,
			Count:         uint32(len(ibms)),
			BufferView:    &bv,
		}))
	}
	idx := uint32(len(s.doc.Skins))
	s.doc.Skins = append(s.doc.Skins, skin)
	s.skins[key] = idx
	return idx, nil
}

// packInfluences turns one vertex' influences into glTF joints and weights.
// Rigid vertices keep only their first bone.
func packInfluences(bones []int, weights []float32, rigid bool) ([4]uint16, [4]float32) {
	var j [4]uint16
	var w [4]float32
	n := len(bones)
	if n > 4 {
		n = 4
	}
	if rigid && n > 1 {
		n = 1
	}
	var sum float32
	for i := 0; i < n; i++ {
		j[i] = uint16(bones[i])
		w[i] = weights[i]
		if rigid {
			w[i] = 1
		}
		sum += w[i]
	}
	if sum <= 0 {
		return [4]uint16{}, [4]float32{1, 0, 0, 0}
	}
	for i := 0; i < n; i++ {
		w[i] /= sum
	}
	return j, w
}

func (s *GltfSink) SetSkinWeights(m *MeshNode, skin *Skin) error {
	ref, ok := s.meshes[m]
	if !ok || len(s.boneNodes) == 0 {
		return nil
	}
	joints := make([][4]uint16, len(m.Vertices))
	weights := make([][4]float32, len(m.Vertices))
	for i := range m.Vertices {
		if i < len(skin.Bones) {
			joints[i], weights[i] = packInfluences(skin.Bones[i], skin.Weights[i], skin.Rigid)
		} else {
			weights[i] = [4]float32{1, 0, 0, 0}
		}
	}
	bvJoints, err := s.appendBufferView(joints)
	if err != nil {
		return err
	}
	bvWeights, err := s.appendBufferView(weights)
	if err != nil {
		return err
	}
	ja := s.appendAccessor(&gltf.Accessor{
		ComponentType: gltf.ComponentUshort,
		Type:          gltf.AccessorVec4,
		Count:         uint32(len(joints)),
		BufferView:    &bvJoints,
	})
	wa := s.appendAccessor(&gltf.Accessor{
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorVec4,
		Count:         uint32(len(weights)),
		BufferView:    &bvWeights,
	})
	for _, p := range ref.primitives {
		p.Attributes[ATTR_JOINTS] = ja
		p.Attributes[ATTR_WEIGHTS] = wa
	}
	if err := s.bindSkin(ref.node, m.Mat); err != nil {
		return err
	}
	for i, inst := range ref.instances {
		if err := s.bindSkin(ref.instNodes[i], &inst.Transform); err != nil {
			return err
		}
	}
	return nil
}

func (s *GltfSink) bindSkin(node uint32, mat *dmat.T) error {
	si, err := s.skinIndex(mat)
	if err != nil {
		return err
	}
	nd := s.doc.Nodes[node]
	nd.Skin = &si
	nd.Matrix = gltf.DefaultMatrix
	return nil
}

// ExportGltf presents a scene to a new GltfSink and returns the document.
func ExportGltf(model *Model, sk *Skeleton, set *MeshSet) (*gltf.Document, error) {
	s := NewGltfSink(model)
	if err := Present(s, model, sk, set); err != nil {
		return nil, err
	}
	return s.Document(), nil
}
