package amf

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/vec4"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateDoc 测试CreateDoc函数是否正确创建GLTF文档
func TestCreateDoc(t *testing.T) {
	doc := CreateDoc()

	if doc == nil {
		t.Fatal("CreateDoc() returned nil")
	}
	if doc.Asset.Version != GLTF_VERSION {
		t.Errorf("Expected GLTF version %s, got %s", GLTF_VERSION, doc.Asset.Version)
	}
	if len(doc.Scenes) != 1 {
		t.Errorf("Expected 1 scene, got %d", len(doc.Scenes))
	}
	if doc.Scene == nil || *doc.Scene != 0 {
		t.Error("Scene index should be 0")
	}
	if len(doc.Buffers) != 1 {
		t.Errorf("Expected 1 buffer, got %d", len(doc.Buffers))
	}
}

// TestCalcPadding 测试填充计算
func TestCalcPadding(t *testing.T) {
	tests := []struct {
		offset   int
		unit     int
		expected int
	}{
		{0, 4, 0},
		{1, 4, 3},
		{2, 4, 2},
		{3, 4, 1},
		{4, 4, 0},
		{5, 4, 3},
		{7, 8, 1},
		{8, 8, 0},
	}

	for _, test := range tests {
		result := calcPadding(test.offset, test.unit)
		if result != test.expected {
			t.Errorf("calcPadding(%d, %d) = %d, expected %d", test.offset, test.unit, result, test.expected)
		}
	}
}

func exportScene(t *testing.T, s *testScene, units TransformConverter) (*Model, *MeshSet, *gltf.Document) {
	t.Helper()
	opts := DefaultAssembleOptions()
	opts.Units = units
	m, set := assembleScene(t, s, opts)
	skOpts := DefaultSkeletonOptions()
	skOpts.Units = units
	sk, err := BuildSkeleton(m.Nodes, skOpts)
	require.NoError(t, err)
	doc, err := ExportGltf(m, sk, set)
	require.NoError(t, err)
	return m, set, doc
}

func findNode(doc *gltf.Document, name string) (uint32, *gltf.Node) {
	for i, n := range doc.Nodes {
		if n.Name == name {
			return uint32(i), n
		}
	}
	return 0, nil
}

// TestExportGltf 测试场景导出GLTF
func TestExportGltf(t *testing.T) {
	_, _, doc := exportScene(t, headScene(), nil)

	// four bones, one mesh, one marker
	require.Len(t, doc.Nodes, 6)
	require.Len(t, doc.Meshes, 1)
	require.Len(t, doc.Skins, 1)
	assert.Equal(t, []uint32{0, 1, 2, 3}, doc.Skins[0].Joints)
	require.NotNil(t, doc.Skins[0].InverseBindMatrices)

	meshIdx, meshNode := findNode(doc, "Head:Default")
	require.NotNil(t, meshNode)
	require.NotNil(t, meshNode.Mesh)
	require.NotNil(t, meshNode.Skin)
	assert.Equal(t, gltf.DefaultMatrix, meshNode.Matrix)
	assert.ElementsMatch(t, []uint32{0, meshIdx}, doc.Scenes[0].Nodes)

	prim := doc.Meshes[0].Primitives
	require.Len(t, prim, 1)
	for _, attr := range []string{ATTR_POSITION, ATTR_NORMAL, ATTR_TEXCOORD, ATTR_JOINTS, ATTR_WEIGHTS} {
		assert.Contains(t, prim[0].Attributes, attr)
	}
	pos := doc.Accessors[prim[0].Attributes[ATTR_POSITION]]
	assert.Equal(t, uint32(4), pos.Count)
	assert.Equal(t, []float32{1, 1, 0}, pos.Max)
	assert.Equal(t, uint32(6), doc.Accessors[*prim[0].Indices].Count)

	require.Len(t, doc.Materials, 1)
	assert.Equal(t, "head_skin", doc.Materials[0].Name)
	assert.Equal(t, gltf.AlphaOpaque, doc.Materials[0].AlphaMode)

	markerIdx, marker := findNode(doc, MARKER_PREFIX+"primary_trigger")
	require.NotNil(t, marker)
	assert.Equal(t, [3]float32{1, 2, 3}, marker.Translation)
	assert.Contains(t, doc.Nodes[2].Children, markerIdx)
	assert.Contains(t, doc.Nodes[2].Children, uint32(3))

	assert.Equal(t, len(doc.Buffers[0].Data), int(doc.Buffers[0].ByteLength))
}

func TestExportInstances(t *testing.T) {
	_, set, doc := exportScene(t, sharedScene(3), UnitScale(DEFAULT_UNIT_SCALE))
	require.Equal(t, 1, set.InstanceCount())
	require.Len(t, doc.Meshes, 1)

	_, orig := findNode(doc, "Head:Default")
	_, dup := findNode(doc, "Head:Copy")
	require.NotNil(t, orig)
	require.NotNil(t, dup)
	assert.Equal(t, *orig.Mesh, *dup.Mesh)

	// skinned nodes carry their transform in the bind pose
	require.NotNil(t, orig.Skin)
	require.NotNil(t, dup.Skin)
	assert.NotEqual(t, *orig.Skin, *dup.Skin)
	assert.Equal(t, gltf.DefaultMatrix, dup.Matrix)
	require.Len(t, doc.Skins, 2)

	pos := accessorVec3s(t, doc, doc.Meshes[0].Primitives[0].Attributes[ATTR_POSITION])
	world := bindPosition(t, doc, *dup.Skin, 3, pos[2])
	// S(100) * T(5, 6, 7) * S(2) applied to (1, 1, 0)
	assert.InDeltaSlice(t, []float64{700, 800, 700}, world[:], 1e-3)
}

// TestExportSharedUnits checks that geometry, bones and markers end up in
// one unit system.
func TestExportSharedUnits(t *testing.T) {
	for _, scale := range []float64{1, DEFAULT_UNIT_SCALE} {
		t.Run(fmt.Sprint(scale), func(t *testing.T) {
			var units TransformConverter
			if scale != 1 {
				units = UnitScale(scale)
			}
			_, _, doc := exportScene(t, headScene(), units)

			// bone 3 sits at z=4 in file units
			origin := nodeWorld(doc, 3)
			assert.InDeltaSlice(t, []float64{0, 0, 4 * scale}, []float64{origin[3][0], origin[3][1], origin[3][2]}, 1e-6)

			_, meshNode := findNode(doc, "Head:Default")
			require.NotNil(t, meshNode.Skin)
			pos := accessorVec3s(t, doc, doc.Meshes[0].Primitives[0].Attributes[ATTR_POSITION])
			world := bindPosition(t, doc, *meshNode.Skin, 3, pos[2])
			assert.InDeltaSlice(t, []float64{scale, scale, 0}, world[:], 1e-4)

			_, marker := findNode(doc, MARKER_PREFIX+"primary_trigger")
			require.NotNil(t, marker)
			assert.InDeltaSlice(t, []float32{float32(scale), float32(2 * scale), float32(3 * scale)}, marker.Translation[:], 1e-4)
		})
	}
}

func readAccessor(t *testing.T, doc *gltf.Document, idx uint32, data interface{}) {
	t.Helper()
	acc := doc.Accessors[idx]
	require.NotNil(t, acc.BufferView)
	view := doc.BufferViews[*acc.BufferView]
	start := view.ByteOffset + acc.ByteOffset
	raw := doc.Buffers[view.Buffer].Data[start : view.ByteOffset+view.ByteLength]
	require.NoError(t, binary.Read(bytes.NewReader(raw), binary.LittleEndian, data))
}

func accessorVec3s(t *testing.T, doc *gltf.Document, idx uint32) [][3]float32 {
	out := make([][3]float32, doc.Accessors[idx].Count)
	readAccessor(t, doc, idx, out)
	return out
}

func toMatrix(a [16]float32) dmat.T {
	var m dmat.T
	for i := 0; i < 16; i++ {
		m[i/4][i%4] = float64(a[i])
	}
	return m
}

// nodeWorld multiplies the node matrices from the scene root down to idx.
func nodeWorld(doc *gltf.Document, idx uint32) dmat.T {
	m := toMatrix(doc.Nodes[idx].MatrixOrDefault())
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if c == idx {
				parent := nodeWorld(doc, uint32(i))
				return mulMatrix(&parent, &m)
			}
		}
	}
	return m
}

// bindPosition places v with the given joint of a skin at its bind pose.
func bindPosition(t *testing.T, doc *gltf.Document, skin uint32, joint int, v [3]float32) [3]float64 {
	t.Helper()
	sk := doc.Skins[skin]
	require.NotNil(t, sk.InverseBindMatrices)
	ibms := make([][16]float32, doc.Accessors[*sk.InverseBindMatrices].Count)
	readAccessor(t, doc, *sk.InverseBindMatrices, ibms)
	jw := nodeWorld(doc, sk.Joints[joint])
	ibm := toMatrix(ibms[joint])
	m := mulMatrix(&jw, &ibm)
	p := vec4.T{float64(v[0]), float64(v[1]), float64(v[2]), 1}
	w := m.MulVec4(&p)
	return [3]float64{w[0], w[1], w[2]}
}

func TestGetGltfBinary(t *testing.T) {
	_, _, doc := exportScene(t, headScene(), nil)
	bt, err := GetGltfBinary(doc, 8)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bt, []byte("glTF")))
	assert.Equal(t, 0, len(bt)%8)

	var back gltf.Document
	require.NoError(t, gltf.NewDecoder(bytes.NewReader(bt)).Decode(&back))
	assert.Len(t, back.Nodes, len(doc.Nodes))
	assert.Len(t, back.Meshes, 1)
}

func TestWriteGltfJSON(t *testing.T) {
	_, _, doc := exportScene(t, headScene(), nil)
	var buf bytes.Buffer
	require.NoError(t, WriteGltf(&buf, doc, false))
	assert.True(t, strings.HasPrefix(doc.Buffers[0].URI, "data:"))
	assert.Contains(t, buf.String(), `"Head:Default"`)
}

func TestPackInfluences(t *testing.T) {
	tests := []struct {
		name    string
		bones   []int
		weights []float32
		rigid   bool
		joints  [4]uint16
		out     [4]float32
	}{
		{"Normalized", []int{1, 2}, []float32{3, 1}, false, [4]uint16{1, 2}, [4]float32{0.75, 0.25}},
		{"Rigid", []int{5, 6}, []float32{1, 1}, true, [4]uint16{5}, [4]float32{1}},
		{"Empty", nil, nil, false, [4]uint16{}, [4]float32{1}},
		{"ZeroWeights", []int{4}, []float32{0}, false, [4]uint16{}, [4]float32{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, w := packInfluences(tt.bones, tt.weights, tt.rigid)
			assert.Equal(t, tt.joints, j)
			assert.Equal(t, tt.out, w)
		})
	}
}

func TestRigidInverse(t *testing.T) {
	n := Node{Position: vec3.T{1, 2, 3}, Rotation: quaternion.T{0, 0.6, 0, 0.8}}
	m := nodeMatrix(&n)
	inv := rigidInverse(&m)
	prod := mulMatrix(&m, &inv)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, dmat.Ident[i][j], prod[i][j], 1e-6, "[%d][%d]", i, j)
		}
	}
}

type recordingSink struct {
	calls []string
}

func (r *recordingSink) CreateBone(b *Bone) error {
	r.calls = append(r.calls, "bone "+b.Name)
	return nil
}

func (r *recordingSink) CreateMesh(m *MeshNode) error {
	r.calls = append(r.calls, "mesh "+m.Name)
	return nil
}

func (r *recordingSink) CreateInstance(inst *InstanceMesh) error {
	r.calls = append(r.calls, "instance "+inst.Name)
	return nil
}

func (r *recordingSink) CreateMarker(name string, m *MarkerInstance) error {
	r.calls = append(r.calls, "marker "+name)
	return nil
}

func (r *recordingSink) SetSkinWeights(m *MeshNode, skin *Skin) error {
	r.calls = append(r.calls, "skin "+m.Name)
	return nil
}

func TestPresentOrder(t *testing.T) {
	m := decodeScene(t, sharedScene(3))
	sk, err := BuildSkeleton(m.Nodes[:1], DefaultSkeletonOptions())
	require.NoError(t, err)
	set, err := Assemble(context.Background(), m, SelectAll(m), DefaultAssembleOptions())
	require.NoError(t, err)

	r := &recordingSink{}
	require.NoError(t, Present(r, m, sk, set))
	assert.Equal(t, []string{
		"bone 001bone0",
		"mesh Head:Default",
		"instance Head:Copy",
		"skin Head:Default",
		"marker #primary_trigger",
	}, r.calls)

	r = &recordingSink{}
	require.NoError(t, Present(r, nil, nil, nil))
	assert.Empty(t, r.calls)
}
