// Package dxf reads and writes Drawing Exchange Format files. Both the
// ASCII and the binary flavours are supported; the tag layer hides the
// difference from the encoder and the reader.
package dxf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dyuri/dwgconv/internal/codec"
	"github.com/dyuri/dwgconv/internal/model"
)

// BinarySentinel starts every binary DXF file.
const BinarySentinel = "AutoCAD Binary DXF\r\n\x1a\x00"

// TagWriter emits DXF group code/value pairs.
type TagWriter interface {
	WriteString(code int, s string) error
	WriteInt16(code int, v int) error
	WriteInt32(code int, v int) error
	WriteInt64(code int, v int64) error
	WriteDouble(code int, v float64) error
	WriteBool(code int, v bool) error
	// WriteUTF8String converts s to the output code page first.
	WriteUTF8String(code int, s string) error
	Flush() error
}

// textCodec picks the string encoding for a file version. From R2007 on
// DXF text is UTF-8.
func textCodec(v model.Version, codePage string) *codec.Codec {
	if v >= model.AC1021 {
		return codec.New("UTF-8")
	}
	return codec.New(codePage)
}

// asciiWriter writes the text format: the group code right aligned in
// three columns, then the value on its own line.
type asciiWriter struct {
	w     *bufio.Writer
	codec *codec.Codec
}

// NewASCIIWriter returns a TagWriter for text DXF. codePage names the
// encoding of strings written with WriteUTF8String before R2007.
func NewASCIIWriter(w io.Writer, v model.Version, codePage string) TagWriter {
	return &asciiWriter{w: bufio.NewWriter(w), codec: textCodec(v, codePage)}
}

func (a *asciiWriter) line(code int, value string) error {
	_, err := fmt.Fprintf(a.w, "%3d\r\n%s\r\n", code, value)
	return err
}

func (a *asciiWriter) WriteString(code int, s string) error { return a.line(code, s) }

func (a *asciiWriter) WriteInt16(code int, v int) error {
	return a.line(code, fmt.Sprintf("%6d", int16(v)))
}

func (a *asciiWriter) WriteInt32(code int, v int) error {
	return a.line(code, fmt.Sprintf("%9d", int32(v)))
}

func (a *asciiWriter) WriteInt64(code int, v int64) error {
	return a.line(code, strconv.FormatInt(v, 10))
}

func (a *asciiWriter) WriteDouble(code int, v float64) error {
	return a.line(code, formatDouble(v))
}

func (a *asciiWriter) WriteBool(code int, v bool) error {
	if v {
		return a.line(code, "     1")
	}
	return a.line(code, "     0")
}

func (a *asciiWriter) WriteUTF8String(code int, s string) error {
	return a.line(code, string(a.codec.Encode(s)))
}

func (a *asciiWriter) Flush() error { return a.w.Flush() }

// formatDouble keeps the shortest representation that reads back to the
// same value, with at least one decimal place.
func formatDouble(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E', 'n', 'N':
			return s
		}
	}
	return s + ".0"
}

// binaryWriter writes little endian values after the sentinel. Group
// codes take two bytes from R13 on and one byte before, with 255 as an
// escape to a two byte code.
type binaryWriter struct {
	w       *bufio.Writer
	codec   *codec.Codec
	wide    bool
	scratch [8]byte
	started bool
}

// NewBinaryWriter returns a TagWriter for binary DXF. The sentinel is
// written before the first tag.
func NewBinaryWriter(w io.Writer, v model.Version, codePage string) TagWriter {
	return &binaryWriter{w: bufio.NewWriter(w), codec: textCodec(v, codePage), wide: v >= model.AC1012}
}

func (b *binaryWriter) code(c int) error {
	if !b.started {
		b.started = true
		if _, err := b.w.WriteString(BinarySentinel); err != nil {
			return err
		}
	}
	if b.wide {
		binary.LittleEndian.PutUint16(b.scratch[:], uint16(c))
		_, err := b.w.Write(b.scratch[:2])
		return err
	}
	if c < 255 {
		return b.w.WriteByte(byte(c))
	}
	b.scratch[0] = 255
	binary.LittleEndian.PutUint16(b.scratch[1:], uint16(c))
	_, err := b.w.Write(b.scratch[:3])
	return err
}

func (b *binaryWriter) WriteString(code int, s string) error {
	if err := b.code(code); err != nil {
		return err
	}
	if _, err := b.w.WriteString(s); err != nil {
		return err
	}
	return b.w.WriteByte(0)
}

func (b *binaryWriter) WriteInt16(code int, v int) error {
	if err := b.code(code); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b.scratch[:], uint16(int16(v)))
	_, err := b.w.Write(b.scratch[:2])
	return err
}

func (b *binaryWriter) WriteInt32(code int, v int) error {
	if err := b.code(code); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b.scratch[:], uint32(int32(v)))
	_, err := b.w.Write(b.scratch[:4])
	return err
}

func (b *binaryWriter) WriteInt64(code int, v int64) error {
	if err := b.code(code); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.scratch[:], uint64(v))
	_, err := b.w.Write(b.scratch[:8])
	return err
}

func (b *binaryWriter) WriteDouble(code int, v float64) error {
	if err := b.code(code); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.scratch[:], math.Float64bits(v))
	_, err := b.w.Write(b.scratch[:8])
	return err
}

func (b *binaryWriter) WriteBool(code int, v bool) error {
	if err := b.code(code); err != nil {
		return err
	}
	if v {
		return b.w.WriteByte(1)
	}
	return b.w.WriteByte(0)
}

func (b *binaryWriter) WriteUTF8String(code int, s string) error {
	return b.WriteString(code, string(b.codec.Encode(s)))
}

func (b *binaryWriter) Flush() error { return b.w.Flush() }

// binaryType is the storage of a group value in binary DXF.
type binaryType int

const (
	binString binaryType = iota
	binInt16
	binInt32
	binInt64
	binDouble
	binBool
	binChunk
)

// binaryTypeOf classifies a group code for binary reading. Handles are
// strings; chunk codes carry a length byte and raw data.
func binaryTypeOf(code int) binaryType {
	switch {
	case code >= 290 && code <= 299:
		return binBool
	case code >= 310 && code <= 319, code == 1004:
		return binChunk
	case code >= 90 && code <= 99, code >= 420 && code <= 429,
		code >= 440 && code <= 449, code == 1071:
		return binInt32
	case code >= 160 && code <= 169, code >= 450 && code <= 459:
		return binInt64
	}
	switch model.GroupKind(code) {
	case model.KindDouble:
		return binDouble
	case model.KindInt:
		return binInt16
	}
	return binString
}
