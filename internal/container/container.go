// Package container unwraps drawings stored inside compressed archives.
package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// DefaultLimit caps the size of an unwrapped drawing.
const DefaultLimit = 1 << 30

// ErrTooLarge reports an unwrapped stream above the size limit.
var ErrTooLarge = errors.New("unwrapped data exceeds size limit")

// Kind identifies the wrapper format
type Kind int

const (
	Plain Kind = iota
	Gzip
	Zstd
	XZ
	LZ4
)

func (k Kind) String() string {
	switch k {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case XZ:
		return "xz"
	case LZ4:
		return "lz4"
	}
	return "plain"
}

var magics = []struct {
	kind  Kind
	magic []byte
}{
	{Gzip, []byte{0x1F, 0x8B}},
	{Zstd, []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{XZ, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}},
	{LZ4, []byte{0x04, 0x22, 0x4D, 0x18}},
}

// Detect returns the wrapper format of data from its leading bytes.
func Detect(data []byte) Kind {
	for _, m := range magics {
		if bytes.HasPrefix(data, m.magic) {
			return m.kind
		}
	}
	return Plain
}

// Open reads a file and unwraps it.
func Open(path string) ([]byte, Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Plain, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, DefaultLimit)
	if err != nil {
		return nil, Plain, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Unwrap(data)
}

// Unwrap returns the content of a compressed wrapper, or data itself when
// no wrapper is recognized.
func Unwrap(data []byte) ([]byte, Kind, error) {
	return UnwrapLimit(data, DefaultLimit)
}

// UnwrapLimit is Unwrap with an explicit size limit.
func UnwrapLimit(data []byte, limit int64) ([]byte, Kind, error) {
	kind := Detect(data)
	var r io.Reader
	switch kind {
	case Plain:
		return data, Plain, nil
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case Zstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case XZ:
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, kind, fmt.Errorf("failed to open xz stream: %w", err)
		}
		r = xr
	case LZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	}

	out, err := readLimited(r, limit)
	if err != nil {
		return nil, kind, fmt.Errorf("failed to read %s stream: %w", kind, err)
	}
	return out, kind, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}
