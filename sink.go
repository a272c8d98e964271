package amf

import "fmt"

// MARKER_PREFIX is prepended to marker group names handed to a sink.
const MARKER_PREFIX = "#"

// SceneSink is implemented by presentation layers that turn an assembled
// scene into host objects.
type SceneSink interface {
	CreateBone(b *Bone) error
	CreateMesh(m *MeshNode) error
	CreateInstance(inst *InstanceMesh) error
	CreateMarker(name string, m *MarkerInstance) error
	SetSkinWeights(m *MeshNode, skin *Skin) error
}

// Present hands a skeleton and mesh set to sink: bones first, then meshes,
// instances, skins and markers. Marker offsets are converted with the units
// of sk. sk and set may be nil.
func Present(sink SceneSink, model *Model, sk *Skeleton, set *MeshSet) error {
	if sk != nil {
		for _, b := range sk.Bones {
			if err := sink.CreateBone(b); err != nil {
				return fmt.Errorf("bone %s: %w", b.Name, err)
			}
		}
	}
	if set != nil {
		for _, m := range set.Meshes {
			if err := sink.CreateMesh(m); err != nil {
				return fmt.Errorf("mesh %s: %w", m.Name, err)
			}
		}
		for _, inst := range set.Instances {
			if err := sink.CreateInstance(inst); err != nil {
				return fmt.Errorf("instance %s: %w", inst.Name, err)
			}
		}
		for _, m := range set.Meshes {
			if m.Skin == nil {
				continue
			}
			if err := sink.SetSkinWeights(m, m.Skin); err != nil {
				return fmt.Errorf("skin %s: %w", m.Name, err)
			}
		}
	}
	if model != nil {
		for gi := range model.Markers {
			g := &model.Markers[gi]
			for i := range g.Markers {
				mk := g.Markers[i]
				if sk != nil {
					mk = sk.Marker(mk)
				}
				if err := sink.CreateMarker(MARKER_PREFIX+g.Name, &mk); err != nil {
					return fmt.Errorf("marker %s: %w", g.Name, err)
				}
			}
		}
	}
	return nil
}
