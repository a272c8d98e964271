package amf

import (
	"math"
	"testing"

	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildSkeleton 测试骨架构建
func TestBuildSkeleton(t *testing.T) {
	sk, err := BuildSkeleton(chainNodes(4), DefaultSkeletonOptions())
	require.NoError(t, err)
	require.Equal(t, 4, sk.BoneCount())
	assert.Equal(t, []int{0}, sk.Roots)

	for i, b := range sk.Bones {
		pos := b.Position()
		assert.InDelta(t, float64(i+1), pos[2], 1e-9, "bone %d", i)
	}
	assert.Equal(t, []int{1}, sk.Bones[0].Children)
	assert.InDelta(t, 1, sk.Bones[0].Length, 1e-9)
	assert.Equal(t, DEFAULT_NODE_RADIUS, sk.Bones[3].Length)

	assert.Equal(t, float64(BONE_TAPER_BRANCH), sk.Bones[0].Taper)
	assert.Equal(t, float64(BONE_TAPER_LEAF), sk.Bones[3].Taper)

	assert.Equal(t, []int{0, 1, 2, 3}, sk.Lineage(3))
	assert.Equal(t, []int{0}, sk.Lineage(0))
	assert.Nil(t, sk.Lineage(4))
}

func TestSkeletonLongestChild(t *testing.T) {
	nodes := []Node{
		{Name: "root", Parent: -1, Child: 1, Sibling: -1, Rotation: ident()},
		{Name: "near", Parent: 0, Child: -1, Sibling: 2, Position: vec3.T{1, 0, 0}, Rotation: ident()},
		{Name: "far", Parent: 0, Child: -1, Sibling: -1, Position: vec3.T{0, 3, 4}, Rotation: ident()},
	}
	sk, err := BuildSkeleton(nodes, SkeletonOptions{NodeRadius: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, sk.Bones[0].Children)
	assert.InDelta(t, 5, sk.Bones[0].Length, 1e-9)
	assert.Equal(t, 2.0, sk.Bones[1].Length)
}

func TestSkeletonRotation(t *testing.T) {
	s := float32(math.Sqrt2 / 2)
	nodes := []Node{
		{Name: "root", Parent: -1, Child: 1, Sibling: -1, Position: vec3.T{0, 0, 1}, Rotation: quaternion.T{0, 0, s, s}},
		{Name: "tip", Parent: 0, Child: -1, Sibling: -1, Position: vec3.T{1, 0, 0}, Rotation: ident()},
	}
	sk, err := BuildSkeleton(nodes, DefaultSkeletonOptions())
	require.NoError(t, err)

	tip := sk.Bones[1].Position()
	// a quarter turn about z moves the child off the x axis
	assert.InDelta(t, 0, tip[0], 1e-6)
	assert.InDelta(t, 1, math.Abs(tip[1]), 1e-6)
	assert.InDelta(t, 1, tip[2], 1e-6)
	assert.InDelta(t, 1, sk.Bones[0].Length, 1e-6)
}

func TestSkeletonUnits(t *testing.T) {
	opts := DefaultSkeletonOptions()
	opts.Units = UnitScale(DEFAULT_UNIT_SCALE)
	sk, err := BuildSkeleton(chainNodes(3), opts)
	require.NoError(t, err)

	pos := sk.Bones[2].Position()
	assert.InDelta(t, 300, pos[2], 1e-6)
	assert.InDelta(t, 100, sk.Bones[0].Length, 1e-6)
	// bone transforms keep a unit scale
	assert.InDelta(t, 1, sk.Bones[2].World[0][0], 1e-9)
}

func TestSkeletonErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		opts  SkeletonOptions
	}{
		{
			"ParentOutOfRange",
			[]Node{{Name: "a", Parent: 5, Child: -1, Sibling: -1}},
			DefaultSkeletonOptions(),
		},
		{
			"SelfParent",
			[]Node{{Name: "a", Parent: 0, Child: -1, Sibling: -1}},
			DefaultSkeletonOptions(),
		},
		{
			"Cycle",
			[]Node{
				{Name: "a", Parent: 1, Child: 1, Sibling: -1, Rotation: ident()},
				{Name: "b", Parent: 0, Child: 0, Sibling: -1, Rotation: ident()},
			},
			DefaultSkeletonOptions(),
		},
		{
			"ZeroRadius",
			chainNodes(2),
			SkeletonOptions{NodeRadius: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sk, err := BuildSkeleton(tt.nodes, tt.opts)
			assert.Nil(t, sk)
			assert.Error(t, err)
		})
	}
}

func TestEmptySkeleton(t *testing.T) {
	sk, err := BuildSkeleton(nil, DefaultSkeletonOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, sk.BoneCount())
	assert.Empty(t, sk.Roots)
}
