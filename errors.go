package amf

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedInput is returned when a read runs past the end of the buffer.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrMalformedOffset is returned when a (count, offset) table pair points outside the buffer.
	ErrMalformedOffset = errors.New("malformed offset")
	// ErrUnsupportedVersion is returned for format versions the decoder does not recognize.
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrAmbiguousInstance marks a shared-buffer or instance key whose cached entry was
	// produced with incompatible parameters. It is never returned from Decode or
	// Assemble; the buffer is decoded again instead.
	ErrAmbiguousInstance = errors.New("ambiguous instance")
)

// DecodeError reports a fatal decode failure and the byte offset it happened at.
type DecodeError struct {
	Err     error
	Offset  int64
	Version float32
	Detail  string
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("amf: %v at offset %d", e.Err, e.Offset)
	if errors.Is(e.Err, ErrUnsupportedVersion) {
		msg = fmt.Sprintf("amf: %v %g at offset %d", e.Err, e.Version, e.Offset)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(err error, offset int64, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Err: err, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

// Warning is a recoverable problem met while assembling geometry.
type Warning struct {
	Mesh    string
	Message string
}

func (w Warning) String() string {
	if w.Mesh == "" {
		return w.Message
	}
	return w.Mesh + ": " + w.Message
}
