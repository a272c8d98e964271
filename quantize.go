package amf

import (
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/float64/vec4"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

const (
	QUANTIZED_POSITION_MAX = 65535
	QUANTIZED_TEXCOORD_MAX = 32767
)

// Bounds is a 1-D (min, max) range of a quantized attribute.
type Bounds struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// CompressionBounds is the block written ahead of a quantized vertex buffer.
type CompressionBounds struct {
	X, Y, Z Bounds
	U, V    Bounds
}

func readCompressionBounds(c *Cursor) (*CompressionBounds, error) {
	var f [10]float32
	if err := c.ReadF32s(f[:]); err != nil {
		return nil, err
	}
	return &CompressionBounds{
		X: Bounds{f[0], f[1]},
		Y: Bounds{f[2], f[3]},
		Z: Bounds{f[4], f[5]},
		U: Bounds{f[6], f[7]},
		V: Bounds{f[8], f[9]},
	}, nil
}

// Dequantizers returns the position and texcoord maps for the bounds.
func (b *CompressionBounds) Dequantizers() (pos, tex *Dequantizer) {
	return NewPositionDequantizer(b.X, b.Y, b.Z), NewTexCoordDequantizer(b.U, b.V)
}

// Dequantizer is an affine map from a normalized integer range to model space.
type Dequantizer struct {
	mat dmat.T
}

func axisScale(b Bounds, steps float64) float64 {
	return (float64(b.Max) - float64(b.Min)) / steps
}

// NewPositionDequantizer maps unsigned 16-bit values [0,65535] onto each axis' [min,max].
func NewPositionDequantizer(x, y, z Bounds) *Dequantizer {
	m := dmat.Ident
	m[0][0] = axisScale(x, QUANTIZED_POSITION_MAX)
	m[1][1] = axisScale(y, QUANTIZED_POSITION_MAX)
	m[2][2] = axisScale(z, QUANTIZED_POSITION_MAX)
	m[3] = vec4.T{float64(x.Min), float64(y.Min), float64(z.Min), 1}
	return &Dequantizer{mat: m}
}

// NewTexCoordDequantizer maps signed 16-bit values [-32767,32767] onto [min,max]
// for u and v. The third row is zero.
func NewTexCoordDequantizer(u, v Bounds) *Dequantizer {
	su := axisScale(u, 2*QUANTIZED_TEXCOORD_MAX)
	sv := axisScale(v, 2*QUANTIZED_TEXCOORD_MAX)
	m := dmat.Ident
	m[0][0] = su
	m[1][1] = sv
	m[2][2] = 0
	m[3] = vec4.T{
		float64(u.Min) + QUANTIZED_TEXCOORD_MAX*su,
		float64(v.Min) + QUANTIZED_TEXCOORD_MAX*sv,
		0,
		1,
	}
	return &Dequantizer{mat: m}
}

// Matrix returns the underlying affine transform.
func (d *Dequantizer) Matrix() dmat.T {
	return d.mat
}

func (d *Dequantizer) apply(x, y, z float64) dvec3.T {
	return d.mat.MulVec3(&dvec3.T{x, y, z})
}

func (d *Dequantizer) Position(x, y, z uint16) vec3.T {
	p := d.apply(float64(x), float64(y), float64(z))
	return vec3.T{float32(p[0]), float32(p[1]), float32(p[2])}
}

func (d *Dequantizer) TexCoord(u, v int16) vec2.T {
	p := d.apply(float64(u), float64(v), 0)
	return vec2.T{float32(p[0]), float32(p[1])}
}
