package amf

import (
	"io"
	"log/slog"

	"github.com/go-playground/validator"
)

const (
	DEFAULT_NODE_RADIUS = 0.5
	DEFAULT_UNIT_SCALE  = 100.0
)

type DecodeOptions struct {
	// Strings selects how strings are framed. Files written by the
	// original exporter use NullTerminated.
	Strings StringEncoding
	Logger  *slog.Logger
}

type AssembleOptions struct {
	// Merge emits one mesh per permutation instead of one per submesh.
	Merge   bool
	Normals bool
	Weights bool
	UV      bool
	// UnwrapPlaceholder asks the host to add an empty UV unwrap to each mesh.
	UnwrapPlaceholder bool
	// Units converts mesh transforms into host units. Meshes without a
	// transform block get the converted identity. Nil keeps file units.
	Units  TransformConverter
	Logger *slog.Logger
}

// DefaultAssembleOptions enables every attribute and keeps file units, like
// DefaultSkeletonOptions. Hosts pass the same converter to both.
func DefaultAssembleOptions() AssembleOptions {
	return AssembleOptions{
		Merge:   true,
		Normals: true,
		Weights: true,
		UV:      true,
	}
}

type SkeletonOptions struct {
	// NodeRadius is the length given to leaf bones.
	NodeRadius float64 `validate:"gt=0"`
	// Units converts node transforms, called with bone set.
	Units TransformConverter `validate:"-"`
}

func DefaultSkeletonOptions() SkeletonOptions {
	return SkeletonOptions{NodeRadius: DEFAULT_NODE_RADIUS}
}

var validate = validator.New()

func (o *SkeletonOptions) Validate() error {
	return validate.Struct(o)
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}
