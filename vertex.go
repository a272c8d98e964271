package amf

import "github.com/flywave/go3d/vec2"

// vertexLayout is everything that determines how a vertex buffer decodes.
type vertexLayout struct {
	Format      VertexFormat
	Compression uint8
	Count       int
}

func (l vertexLayout) compressed() bool {
	return l.Compression != COMPRESSION_NONE
}

// recordSize is the smallest possible vertex record for the layout.
func (l vertexLayout) recordSize() int64 {
	size := int64(uncompressedVertSize)
	if l.compressed() {
		size = compressedVertSize
	}
	switch l.Format {
	case VERTEX_FORMAT_SKINNED:
		size += 2 + 4
	case VERTEX_FORMAT_SKINNED2:
		size += 2
	}
	return size
}

// readVertexBounds reads the compression bounds block that leads a quantized
// buffer. Uncompressed and empty buffers have none.
func readVertexBounds(c *Cursor, l vertexLayout) (*CompressionBounds, error) {
	if !l.compressed() || l.Count == 0 {
		return nil, nil
	}
	return readCompressionBounds(c)
}

// readVertices decodes l.Count vertices at the cursor, bounds block included.
func readVertices(c *Cursor, l vertexLayout) ([]Vertex, *CompressionBounds, error) {
	bounds, err := readVertexBounds(c, l)
	if err != nil {
		return nil, nil, err
	}
	var pos, tex *Dequantizer
	if bounds != nil {
		pos, tex = bounds.Dequantizers()
	}
	verts := make([]Vertex, l.Count)
	for i := range verts {
		v := &verts[i]
		if bounds != nil {
			err = readCompressedVertex(c, v, pos, tex)
		} else {
			err = readVertex(c, v)
		}
		if err != nil {
			return nil, nil, err
		}
		if v.Bones, v.Weights, err = readBoneWeights(c, l.Format); err != nil {
			return nil, nil, err
		}
	}
	return verts, bounds, nil
}

func readCompressedVertex(c *Cursor, v *Vertex, pos, tex *Dequantizer) error {
	var p [3]uint16
	for i := range p {
		x, err := c.ReadU16()
		if err != nil {
			return err
		}
		p[i] = x
	}
	// packed normal, not recoverable
	if err := c.Skip(4); err != nil {
		return err
	}
	u, err := c.ReadI16()
	if err != nil {
		return err
	}
	w, err := c.ReadI16()
	if err != nil {
		return err
	}
	v.Position = pos.Position(p[0], p[1], p[2])
	v.TexCoord = tex.TexCoord(u, w)
	return nil
}

func readVertex(c *Cursor, v *Vertex) error {
	if err := c.ReadF32s(v.Position[:]); err != nil {
		return err
	}
	if err := c.ReadF32s(v.Normal[:]); err != nil {
		return err
	}
	var uv vec2.T
	if err := c.ReadF32s(uv[:]); err != nil {
		return err
	}
	v.TexCoord = uv
	return nil
}

// readBoneIndices reads a chain of up to four bone bytes. The first index is
// always present; each later byte is read only while the previous one was
// not BONE_INDEX_END, and the terminating byte is consumed.
func readBoneIndices(c *Cursor) ([]int, error) {
	first, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	bones := make([]int, 1, MAX_BONES_PER_VERTEX)
	bones[0] = int(first)
	for len(bones) < MAX_BONES_PER_VERTEX {
		b, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		if b == BONE_INDEX_END {
			break
		}
		bones = append(bones, int(b))
	}
	return bones, nil
}

// readBoneWeights reads the per-vertex skinning data of a vertex format.
// Format 1 reads one weight per resolved index after the whole chain, format 2
// weighs every index 1.0 and rigid vertices carry nothing.
func readBoneWeights(c *Cursor, format VertexFormat) ([]int, []float32, error) {
	switch format {
	case VERTEX_FORMAT_SKINNED:
		bones, err := readBoneIndices(c)
		if err != nil {
			return nil, nil, err
		}
		weights := make([]float32, len(bones))
		if err := c.ReadF32s(weights); err != nil {
			return nil, nil, err
		}
		return bones, weights, nil
	case VERTEX_FORMAT_SKINNED2:
		bones, err := readBoneIndices(c)
		if err != nil {
			return nil, nil, err
		}
		weights := make([]float32, len(bones))
		for i := range weights {
			weights[i] = 1
		}
		return bones, weights, nil
	}
	return nil, nil, nil
}
