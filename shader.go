package amf

import (
	"strings"

	"github.com/flywave/go3d/vec2"
)

func (d *Decoder) readShaders(h *Header) ([]Shader, error) {
	c := d.c
	count, offset, err := c.Table(minShaderRecord)
	if err != nil || count == 0 {
		return nil, err
	}
	d.log.Debug("shaders", "count", count, "offset", offset)
	shaders := make([]Shader, 0, count)
	err = c.At(offset, func() error {
		for i := 0; i < count; i++ {
			s, err := d.readShader(h)
			if err != nil {
				return err
			}
			shaders = append(shaders, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shaders, nil
}

func (d *Decoder) readShader(h *Header) (Shader, error) {
	name, err := d.c.ReadString()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(name, TERRAIN_PREFIX) {
		s := &TerrainShader{BaseShader: BaseShader{Name: strings.TrimPrefix(name, TERRAIN_PREFIX)}}
		return s, d.readTerrainShader(s)
	}
	s := &StandardShader{BaseShader: BaseShader{Name: name}}
	return s, d.readStandardShader(h, s)
}

func (d *Decoder) readTile() (vec2.T, error) {
	var t vec2.T
	err := d.c.ReadF32s(t[:])
	return t, err
}

// readOptionalSlot reads a path and, unless it is "null", its tile.
func (d *Decoder) readOptionalSlot(s *TextureSlot) error {
	var err error
	if s.Path, err = d.c.ReadString(); err != nil {
		return err
	}
	if s.Path == NULL_PATH {
		return nil
	}
	s.Tile, err = d.readTile()
	return err
}

func (d *Decoder) readStandardShader(h *Header, s *StandardShader) error {
	c := d.c
	for i := range s.Textures {
		if err := d.readOptionalSlot(&s.Textures[i]); err != nil {
			return err
		}
	}
	if h.HasTints() {
		for i := range s.Tints {
			for j := range s.Tints[i] {
				b, err := c.ReadU8()
				if err != nil {
					return err
				}
				s.Tints[i][j] = b
			}
		}
	}
	var err error
	if s.Transparent, err = c.ReadBool(); err != nil {
		return err
	}
	s.CommunityOnly, err = c.ReadBool()
	return err
}

func (d *Decoder) readTerrainShader(s *TerrainShader) error {
	c := d.c
	if err := d.readOptionalSlot(&s.Blend); err != nil {
		return err
	}
	var counts [3]uint8
	for i := range counts {
		n, err := c.ReadU8()
		if err != nil {
			return err
		}
		counts[i] = n
	}
	layers := []*[]TextureSlot{&s.Base, &s.Bump, &s.Detail}
	for i, layer := range layers {
		if counts[i] == 0 {
			continue
		}
		slots := make([]TextureSlot, counts[i])
		for j := range slots {
			var err error
			if slots[j].Path, err = c.ReadString(); err != nil {
				return err
			}
			if slots[j].Tile, err = d.readTile(); err != nil {
				return err
			}
		}
		*layer = slots
	}
	return nil
}
