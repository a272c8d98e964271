package amf

import (
	"fmt"

	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"
	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
)

const (
	BONE_TAPER_LEAF   = 50
	BONE_TAPER_BRANCH = 70
)

type Bone struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Parent   int    `json:"parent"`
	Children []int  `json:"children,omitempty"`
	// Local is relative to the parent bone, World to the model root.
	Local  dmat.T  `json:"-"`
	World  dmat.T  `json:"-"`
	Length float64 `json:"length"`
	Taper  float64 `json:"taper"`
}

// Position returns the bone origin in model space.
func (b *Bone) Position() dvec3.T {
	return dvec3.T{b.World[3][0], b.World[3][1], b.World[3][2]}
}

type Skeleton struct {
	Bones []*Bone `json:"bones"`
	Roots []int   `json:"roots"`

	units TransformConverter
}

// Marker returns mk with its offset converted to the units of the bones.
func (s *Skeleton) Marker(mk MarkerInstance) MarkerInstance {
	if s.units == nil {
		return mk
	}
	m := dmat.Ident
	m[3] = dvec4.T{float64(mk.Position[0]), float64(mk.Position[1]), float64(mk.Position[2]), 1}
	m = s.units.apply(m, true)
	mk.Position = vec3.T{float32(m[3][0]), float32(m[3][1]), float32(m[3][2])}
	return mk
}

func (s *Skeleton) BoneCount() int {
	return len(s.Bones)
}

// Lineage returns the bone indices from the root down to i.
func (s *Skeleton) Lineage(i int) []int {
	if i < 0 || i >= len(s.Bones) {
		return nil
	}
	var path []int
	for j := i; j != -1; j = s.Bones[j].Parent {
		path = append(path, j)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// nodeMatrix builds a node's parent relative transform.
func nodeMatrix(n *Node) dmat.T {
	m := mat4.Ident
	m.AssignQuaternion(&n.Rotation)
	m[3] = vec4.T{n.Position[0], n.Position[1], n.Position[2], 1}
	var out dmat.T
	for i := range m {
		for j := range m[i] {
			out[i][j] = float64(m[i][j])
		}
	}
	return out
}

// BuildSkeleton turns the flat node table into a bone hierarchy with world
// transforms, lengths and tapers.
func BuildSkeleton(nodes []Node, opts SkeletonOptions) (*Skeleton, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("amf: skeleton options: %w", err)
	}
	sk := &Skeleton{Bones: make([]*Bone, len(nodes)), units: opts.Units}
	for i := range nodes {
		n := &nodes[i]
		if n.Parent < -1 || n.Parent >= len(nodes) || n.Parent == i {
			return nil, fmt.Errorf("amf: node %d %q: parent %d out of range", i, n.Name, n.Parent)
		}
		taper := float64(BONE_TAPER_BRANCH)
		if n.Child == -1 {
			taper = BONE_TAPER_LEAF
		}
		sk.Bones[i] = &Bone{
			Index:  i,
			Name:   n.Name,
			Parent: n.Parent,
			Local:  opts.Units.apply(nodeMatrix(n), true),
			Taper:  taper,
		}
	}
	for i, b := range sk.Bones {
		if b.Parent == -1 {
			sk.Roots = append(sk.Roots, i)
			continue
		}
		p := sk.Bones[b.Parent]
		p.Children = append(p.Children, i)
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(sk.Bones))
	var resolve func(i int) error
	resolve = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("amf: node %d %q: parent cycle", i, sk.Bones[i].Name)
		}
		state[i] = visiting
		b := sk.Bones[i]
		b.World = b.Local
		if b.Parent != -1 {
			if err := resolve(b.Parent); err != nil {
				return err
			}
			b.World = mulMatrix(&sk.Bones[b.Parent].World, &b.Local)
		}
		state[i] = done
		return nil
	}
	for i := range sk.Bones {
		if err := resolve(i); err != nil {
			return nil, err
		}
	}

	for _, b := range sk.Bones {
		if len(b.Children) == 0 {
			b.Length = opts.NodeRadius
			continue
		}
		pos := b.Position()
		for _, c := range b.Children {
			cp := sk.Bones[c].Position()
			d := dvec3.Sub(&cp, &pos)
			if l := d.Length(); l > b.Length {
				b.Length = l
			}
		}
	}
	return sk, nil
}
