package amf

const AMF_SIGNATURE string = "AMF!"

// AMFEXT is the file extension scene files are written with.
const AMFEXT string = ".amf"

// format versions that gate optional blocks
const (
	V0_1 float32 = 0.1 // permutation transform block
	V1_1 float32 = 1.1 // shader tint block
	V3_0 float32 = 3.0 // first unknown major
)

type VertexFormat uint8

const (
	VERTEX_FORMAT_RIGID    VertexFormat = 0 // single bone via the permutation node index
	VERTEX_FORMAT_SKINNED  VertexFormat = 1 // up to 4 weighted bones
	VERTEX_FORMAT_SKINNED2 VertexFormat = 2 // up to 4 bones, implicit weight 1.0
)

const (
	COMPRESSION_NONE      uint8 = 0
	COMPRESSION_QUANTIZED uint8 = 1
)

const (
	// NODE_INDEX_NONE in a permutation record means per-vertex weights are used.
	NODE_INDEX_NONE uint8 = 0xFF
	// BONE_INDEX_END terminates a vertex bone index chain.
	BONE_INDEX_END uint8 = 0xFF
	// MAX_BONES_PER_VERTEX is the longest bone index chain.
	MAX_BONES_PER_VERTEX = 4
	// SHORT_INDEX_LIMIT is the largest vertex count addressed with 16-bit face indices.
	SHORT_INDEX_LIMIT = 65535
)

const (
	SHADER_TYPE_STANDARD = 0
	SHADER_TYPE_TERRAIN  = 1
)

const (
	SHADER_TEXTURE_SLOTS = 8
	SHADER_TINT_SLOTS    = 4
	TERRAIN_PREFIX       = "*"
	NULL_PATH            = "null"
)

// Fixed record sizes, used to sanity check table counts against the buffer.
const (
	minStringSize        = 1
	minNodeRecord        = minStringSize + 3*2 + 3*4 + 4*4
	minMarkerGroup       = minStringSize + 2*4
	minMarkerRecord      = 1 + 1 + 2 + 3*4 + 4*4
	minRegionRecord      = minStringSize + 2*4
	minPermutation       = minStringSize + 1 + 1 + 6*4
	minShaderRecord      = minStringSize
	minSubmeshRecord     = 2 + 4 + 4
	compressedVertSize   = 3*2 + 4 + 2*2
	uncompressedVertSize = 3*4 + 3*4 + 2*4
)

// StringEncoding selects how strings are framed in the file.
type StringEncoding uint8

const (
	// LengthPrefixed strings carry a little-endian u32 byte count.
	LengthPrefixed StringEncoding = iota
	// NullTerminated strings end at the first zero byte.
	NullTerminated
)

func (e StringEncoding) String() string {
	switch e {
	case LengthPrefixed:
		return "length-prefixed"
	case NullTerminated:
		return "null-terminated"
	}
	return "unknown"
}
