package amf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

func readLittleByte(rd io.Reader, v interface{}) error {
	return binary.Read(rd, binary.LittleEndian, v)
}

func readStreamString(rd io.Reader, enc StringEncoding) (string, error) {
	if enc == NullTerminated {
		var buf []byte
		for {
			var b uint8
			if err := readLittleByte(rd, &b); err != nil {
				return "", err
			}
			if b == 0 {
				return string(buf), nil
			}
			buf = append(buf, b)
		}
	}
	var size uint32
	if err := readLittleByte(rd, &size); err != nil {
		return "", err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(rd, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadHeader reads only the header from the start of rd, without loading the
// rest of the file.
func ReadHeader(rd io.Reader, enc StringEncoding) (*Header, error) {
	h := &Header{}
	if err := readLittleByte(rd, &h.Magic); err != nil {
		return nil, newDecodeError(ErrTruncatedInput, 0, "magic: %v", err)
	}
	if err := readLittleByte(rd, &h.Version); err != nil {
		return nil, newDecodeError(ErrTruncatedInput, 4, "version: %v", err)
	}
	if err := checkVersion(h.Version, 4); err != nil {
		return nil, err
	}
	name, err := readStreamString(rd, enc)
	if err != nil {
		return nil, newDecodeError(ErrTruncatedInput, 8, "name: %v", err)
	}
	h.Name = name
	return h, nil
}

func ReadHeaderFrom(path string, enc StringEncoding) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := ReadHeader(f, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
