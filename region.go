package amf

import (
	"log/slog"
	"math"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/vec4"
)

type vertexEntry struct {
	layout   vertexLayout
	vertices []Vertex
}

type faceEntry struct {
	vertexCount int
	faceCount   int
	faces       []Face
}

// bufferCache maps absolute buffer offsets to buffers already decoded in this
// pass. Entries are never replaced; a hit whose decode parameters differ from
// the cached ones is decoded again.
type bufferCache struct {
	log      *slog.Logger
	vertices map[int64]*vertexEntry
	faces    map[int64]*faceEntry

	vertexHits int
	faceHits   int
}

func newBufferCache(log *slog.Logger) *bufferCache {
	return &bufferCache{
		log:      log,
		vertices: make(map[int64]*vertexEntry),
		faces:    make(map[int64]*faceEntry),
	}
}

func (b *bufferCache) lookupVertices(offset int64, l vertexLayout) ([]Vertex, bool) {
	e, ok := b.vertices[offset]
	if !ok {
		return nil, false
	}
	if e.layout != l {
		b.log.Debug("vertex buffer reused with different layout",
			"err", ErrAmbiguousInstance, "offset", offset,
			"cached", e.layout, "wanted", l)
		return nil, false
	}
	b.vertexHits++
	return e.vertices, true
}

func (b *bufferCache) storeVertices(offset int64, l vertexLayout, v []Vertex) {
	if _, ok := b.vertices[offset]; !ok {
		b.vertices[offset] = &vertexEntry{layout: l, vertices: v}
	}
}

func (b *bufferCache) lookupFaces(offset int64, vertexCount, faceCount int) ([]Face, bool) {
	e, ok := b.faces[offset]
	if !ok {
		return nil, false
	}
	if e.faceCount != faceCount || wideIndices(e.vertexCount) != wideIndices(vertexCount) {
		b.log.Debug("face buffer reused with different layout",
			"err", ErrAmbiguousInstance, "offset", offset,
			"cachedFaces", e.faceCount, "wantedFaces", faceCount)
		return nil, false
	}
	b.faceHits++
	return e.faces, true
}

func (b *bufferCache) storeFaces(offset int64, vertexCount int, f []Face) {
	if _, ok := b.faces[offset]; !ok {
		b.faces[offset] = &faceEntry{vertexCount: vertexCount, faceCount: len(f), faces: f}
	}
}

func (d *Decoder) readRegions(h *Header) ([]*Region, error) {
	c := d.c
	count, offset, err := c.Table(minRegionRecord)
	if err != nil || count == 0 {
		return nil, err
	}
	d.log.Debug("regions", "count", count, "offset", offset)
	regions := make([]*Region, 0, count)
	err = c.At(offset, func() error {
		for i := 0; i < count; i++ {
			r, err := d.readRegion(h)
			if err != nil {
				return err
			}
			regions = append(regions, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return regions, nil
}

func (d *Decoder) readRegion(h *Header) (*Region, error) {
	c := d.c
	r := &Region{}
	var err error
	if r.Name, err = c.ReadString(); err != nil {
		return nil, err
	}
	count, offset, err := c.Table(minPermutation)
	if err != nil || count == 0 {
		return r, err
	}
	r.Permutations = make([]*Permutation, 0, count)
	err = c.At(offset, func() error {
		for i := 0; i < count; i++ {
			p, err := d.readPermutation(h)
			if err != nil {
				return err
			}
			r.Permutations = append(r.Permutations, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// splitFlags unpacks the permutation flag byte: vertex format in the low
// nibble, compression in the high nibble.
func splitFlags(b uint8) (VertexFormat, uint8) {
	return VertexFormat(b & 0x0F), (b & 0xF0) >> 4
}

func (d *Decoder) readPermutation(h *Header) (*Permutation, error) {
	c := d.c
	p := &Permutation{
		Multiplier: float32(math.NaN()),
		Transform:  dmat.Ident,
	}
	var err error
	if p.Name, err = c.ReadString(); err != nil {
		return nil, err
	}
	flags, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	p.VertexFormat, p.Compression = splitFlags(flags)
	if p.NodeIndex, err = c.ReadU8(); err != nil {
		return nil, err
	}

	layout := vertexLayout{Format: p.VertexFormat, Compression: p.Compression}
	vCount, vOff, err := c.Table(layout.recordSize())
	if err != nil {
		return nil, err
	}
	layout.Count = vCount
	fCount, fOff, err := c.Table(faceRecordSize(vCount))
	if err != nil {
		return nil, err
	}
	sCount, sOff, err := c.Table(minSubmeshRecord)
	if err != nil {
		return nil, err
	}
	p.VertexCount, p.VertexOffset = vCount, uint32(vOff)
	p.FaceCount, p.FaceOffset = fCount, uint32(fOff)
	p.SubmeshCount = sCount

	if h.HasTransforms() {
		if err := d.readTransform(p); err != nil {
			return nil, err
		}
	}

	if vCount > 0 {
		if err := c.At(vOff, func() error { return d.resolveVertices(p, vOff, layout) }); err != nil {
			return nil, err
		}
	}
	if fCount > 0 {
		if err := c.At(fOff, func() error { return d.resolveFaces(p, fOff) }); err != nil {
			return nil, err
		}
	}
	if sCount > 0 {
		err := c.At(sOff, func() error {
			var err error
			p.Submeshes, err = readSubmeshes(c, sCount)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// readTransform reads the multiplier and, unless it is NaN, the 4x3 row
// block that follows it. Rows map onto matrix columns.
func (d *Decoder) readTransform(p *Permutation) error {
	c := d.c
	mult, err := c.ReadF32()
	if err != nil {
		return err
	}
	p.Multiplier = mult
	if math.IsNaN(float64(mult)) {
		return nil
	}
	var rows [12]float32
	if err := c.ReadF32s(rows[:]); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		w := 0.0
		if i == 3 {
			w = 1
		}
		p.Transform[i] = vec4.T{float64(rows[i*3]), float64(rows[i*3+1]), float64(rows[i*3+2]), w}
	}
	return nil
}

func (d *Decoder) resolveVertices(p *Permutation, offset int64, l vertexLayout) error {
	c := d.c
	var (
		verts  []Vertex
		bounds *CompressionBounds
		err    error
	)
	if cached, ok := d.cache.lookupVertices(offset, l); ok {
		// the bounds block is still physically there
		verts = cached
		bounds, err = readVertexBounds(c, l)
	} else {
		verts, bounds, err = readVertices(c, l)
		if err == nil {
			d.cache.storeVertices(offset, l, verts)
		}
	}
	if err != nil {
		return err
	}
	p.Vertices = verts
	p.Bounds = bounds
	if bounds != nil {
		p.PositionQuant, p.TexCoordQuant = bounds.Dequantizers()
	}
	return nil
}

func (d *Decoder) resolveFaces(p *Permutation, offset int64) error {
	if cached, ok := d.cache.lookupFaces(offset, p.VertexCount, p.FaceCount); ok {
		p.Faces = cached
		return nil
	}
	faces, err := readFaces(d.c, p.VertexCount, p.FaceCount)
	if err != nil {
		return err
	}
	d.cache.storeFaces(offset, p.VertexCount, faces)
	p.Faces = faces
	return nil
}
