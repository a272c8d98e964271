package amf

import "github.com/flywave/go3d/vec2"

// TextureSlot 纹理槽
type TextureSlot struct {
	Path string `json:"path"`
	Tile vec2.T `json:"tile"`
}

// Empty reports whether the slot holds the "null" placeholder path.
func (s *TextureSlot) Empty() bool {
	return s.Path == "" || s.Path == NULL_PATH
}

type Shader interface {
	GetName() string
	GetType() int
	HasTexture() bool
	GetTexture() *TextureSlot
}

type BaseShader struct {
	Name string `json:"name"`
}

func (s *BaseShader) GetName() string {
	return s.Name
}

// StandardShader 标准材质
type StandardShader struct {
	BaseShader
	Textures      [SHADER_TEXTURE_SLOTS]TextureSlot `json:"textures"`
	Tints         [SHADER_TINT_SLOTS][4]byte        `json:"tints"`
	Transparent   bool                              `json:"transparent"`
	CommunityOnly bool                              `json:"communityOnly"`
}

func (s *StandardShader) GetType() int {
	return SHADER_TYPE_STANDARD
}

func (s *StandardShader) HasTexture() bool {
	return !s.Textures[0].Empty()
}

// GetTexture returns the diffuse slot, or nil when it is empty.
func (s *StandardShader) GetTexture() *TextureSlot {
	if !s.HasTexture() {
		return nil
	}
	return &s.Textures[0]
}

// TerrainShader 地形混合材质
type TerrainShader struct {
	BaseShader
	Blend  TextureSlot   `json:"blend"`
	Base   []TextureSlot `json:"base,omitempty"`
	Bump   []TextureSlot `json:"bump,omitempty"`
	Detail []TextureSlot `json:"detail,omitempty"`
}

func (s *TerrainShader) GetType() int {
	return SHADER_TYPE_TERRAIN
}

func (s *TerrainShader) HasTexture() bool {
	return len(s.Base) > 0
}

// GetTexture returns the first base layer, or nil for a terrain without layers.
func (s *TerrainShader) GetTexture() *TextureSlot {
	if len(s.Base) == 0 {
		return nil
	}
	return &s.Base[0]
}
