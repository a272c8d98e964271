package amf

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
)

// Decoder owns the state of one decode pass. It must not be reused.
type Decoder struct {
	c     *Cursor
	log   *slog.Logger
	cache *bufferCache
	model *Model
}

func NewDecoder(data []byte, opts DecodeOptions) *Decoder {
	log := loggerOrDiscard(opts.Logger)
	return &Decoder{
		c:     NewCursor(data, opts.Strings),
		log:   log,
		cache: newBufferCache(log),
		model: &Model{},
	}
}

// Decode reads the whole file: header, nodes, marker groups, regions and
// shaders, in that order. Nothing is returned on error.
func (d *Decoder) Decode() (*Model, error) {
	if d.model == nil {
		return nil, fmt.Errorf("amf: decoder already used")
	}
	m := d.model
	d.model = nil

	if err := d.readHeader(&m.Header); err != nil {
		return nil, err
	}
	d.log.Debug("header", "name", m.Header.Name, "version", m.Header.Version)

	var err error
	if m.Nodes, err = d.readNodes(); err != nil {
		return nil, err
	}
	if m.Markers, err = d.readMarkers(); err != nil {
		return nil, err
	}
	if m.Regions, err = d.readRegions(&m.Header); err != nil {
		return nil, err
	}
	if m.Shaders, err = d.readShaders(&m.Header); err != nil {
		return nil, err
	}
	d.log.Debug("decoded",
		"nodes", len(m.Nodes),
		"markerGroups", len(m.Markers),
		"regions", len(m.Regions),
		"shaders", len(m.Shaders),
		"sharedVertexBuffers", d.cache.vertexHits,
		"sharedFaceBuffers", d.cache.faceHits)
	return m, nil
}

func Decode(rd io.Reader, opts DecodeOptions) (*Model, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("amf: read input: %w", err)
	}
	return DecodeBytes(data, opts)
}

func DecodeBytes(data []byte, opts DecodeOptions) (*Model, error) {
	return NewDecoder(data, opts).Decode()
}

func DecodeFile(path string, opts DecodeOptions) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := DecodeBytes(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func checkVersion(v float32, offset int64) error {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || v >= V3_0 {
		return &DecodeError{Err: ErrUnsupportedVersion, Offset: offset, Version: v}
	}
	return nil
}

func (d *Decoder) readHeader(h *Header) error {
	c := d.c
	var err error
	if h.Magic, err = c.ReadU32(); err != nil {
		return err
	}
	at := c.Tell()
	if h.Version, err = c.ReadF32(); err != nil {
		return err
	}
	if err = checkVersion(h.Version, at); err != nil {
		return err
	}
	h.Name, err = c.ReadString()
	return err
}

// nodeName keeps file order under alphabetical sorting.
func nodeName(i int, name string) string {
	return fmt.Sprintf("%03d%s", i+1, name)
}

func (d *Decoder) readVec3() (vec3.T, error) {
	var v vec3.T
	err := d.c.ReadF32s(v[:])
	return v, err
}

func (d *Decoder) readQuat() (quaternion.T, error) {
	var q quaternion.T
	err := d.c.ReadF32s(q[:])
	return q, err
}

func (d *Decoder) readNodes() ([]Node, error) {
	c := d.c
	count, offset, err := c.Table(minNodeRecord)
	if err != nil || count == 0 {
		return nil, err
	}
	d.log.Debug("nodes", "count", count, "offset", offset)
	nodes := make([]Node, count)
	err = c.At(offset, func() error {
		for i := range nodes {
			n := &nodes[i]
			name, err := c.ReadString()
			if err != nil {
				return err
			}
			n.Name = nodeName(i, name)
			var idx [3]int16
			for j := range idx {
				if idx[j], err = c.ReadI16(); err != nil {
					return err
				}
			}
			n.Parent, n.Child, n.Sibling = int(idx[0]), int(idx[1]), int(idx[2])
			if n.Position, err = d.readVec3(); err != nil {
				return err
			}
			if n.Rotation, err = d.readQuat(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (d *Decoder) readMarkers() ([]MarkerGroup, error) {
	c := d.c
	count, offset, err := c.Table(minMarkerGroup)
	if err != nil || count == 0 {
		return nil, err
	}
	d.log.Debug("marker groups", "count", count, "offset", offset)
	groups := make([]MarkerGroup, count)
	err = c.At(offset, func() error {
		for i := range groups {
			g := &groups[i]
			var err error
			if g.Name, err = c.ReadString(); err != nil {
				return err
			}
			n, off, err := c.Table(minMarkerRecord)
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			g.Markers = make([]MarkerInstance, n)
			if err := c.At(off, func() error { return d.readMarkerInstances(g.Markers) }); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (d *Decoder) readMarkerInstances(markers []MarkerInstance) error {
	c := d.c
	for i := range markers {
		m := &markers[i]
		r, err := c.ReadI8()
		if err != nil {
			return err
		}
		p, err := c.ReadI8()
		if err != nil {
			return err
		}
		n, err := c.ReadI16()
		if err != nil {
			return err
		}
		m.Region, m.Permutation, m.Node = int(r), int(p), int(n)
		if m.Position, err = d.readVec3(); err != nil {
			return err
		}
		if m.Rotation, err = d.readQuat(); err != nil {
			return err
		}
	}
	return nil
}
