package binary

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/dyuri/dwgconv/internal/model"
)

// Writer produces DWG bit-packed data, most significant bit first. It is
// the inverse of Reader and is used to build object records.
type Writer struct {
	buf []byte
	bit int
}

// NewWriter creates an empty bit writer
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the written data; a trailing partial byte is zero padded.
func (w *Writer) Bytes() []byte { return w.buf }

// BitLen returns the number of bits written.
func (w *Writer) BitLen() int { return w.bit }

// Len returns the number of bytes touched so far.
func (w *Writer) Len() int { return len(w.buf) }

// Align pads with zero bits up to the next byte boundary.
func (w *Writer) Align() {
	w.bit = len(w.buf) * 8
}

// WriteBits writes the n low bits of v.
func (w *Writer) WriteBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.bit>>3 >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 != 0 {
			w.buf[w.bit>>3] |= 0x80 >> uint(w.bit&7)
		}
		w.bit++
	}
}

func (w *Writer) WriteBit(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

func (w *Writer) WriteBits2(v uint8) { w.WriteBits(uint64(v), 2) }

func (w *Writer) WriteRawChar(v uint8) { w.WriteBits(uint64(v), 8) }

func (w *Writer) WriteBytes(b []byte) {
	for _, c := range b {
		w.WriteRawChar(c)
	}
}

func (w *Writer) WriteRawShort(v uint16) {
	w.WriteRawChar(uint8(v))
	w.WriteRawChar(uint8(v >> 8))
}

func (w *Writer) WriteBigEndianShort(v uint16) {
	w.WriteRawChar(uint8(v >> 8))
	w.WriteRawChar(uint8(v))
}

func (w *Writer) WriteRawLong(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.WriteBytes(b[:])
}

func (w *Writer) WriteRawLongLong(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.WriteBytes(b[:])
}

func (w *Writer) WriteRawDouble(v float64) { w.WriteRawLongLong(math.Float64bits(v)) }

// WriteBitShort writes BS using the shortest selector.
func (w *Writer) WriteBitShort(v uint16) {
	switch {
	case v == 0:
		w.WriteBits2(2)
	case v == 256:
		w.WriteBits2(3)
	case v < 256:
		w.WriteBits2(1)
		w.WriteRawChar(uint8(v))
	default:
		w.WriteBits2(0)
		w.WriteRawShort(v)
	}
}

// WriteBitLong writes BL using the shortest selector.
func (w *Writer) WriteBitLong(v uint32) {
	switch {
	case v == 0:
		w.WriteBits2(2)
	case v < 256:
		w.WriteBits2(1)
		w.WriteRawChar(uint8(v))
	default:
		w.WriteBits2(0)
		w.WriteRawLong(v)
	}
}

// WriteBitDouble writes BD.
func (w *Writer) WriteBitDouble(v float64) {
	switch {
	case v == 1:
		w.WriteBits2(1)
	case v == 0 && !math.Signbit(v):
		w.WriteBits2(2)
	default:
		w.WriteBits2(0)
		w.WriteRawDouble(v)
	}
}

// WriteDefaultDouble writes DD against def, using the partial forms when
// only the low order bytes differ.
func (w *Writer) WriteDefaultDouble(v, def float64) {
	vb, db := math.Float64bits(v), math.Float64bits(def)
	switch {
	case vb == db:
		w.WriteBits2(0)
	case vb>>32 == db>>32:
		w.WriteBits2(1)
		w.WriteRawLong(uint32(vb))
	case vb>>48 == db>>48:
		w.WriteBits2(2)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], vb)
		w.WriteRawChar(b[4])
		w.WriteRawChar(b[5])
		w.WriteBytes(b[0:4])
	default:
		w.WriteBits2(3)
		w.WriteRawDouble(v)
	}
}

// WriteModularChar writes a signed MC.
func (w *Writer) WriteModularChar(v int32) {
	neg := v < 0
	u := uint32(v)
	if neg {
		u = uint32(-v)
	}
	for {
		// the final byte only has 6 value bits next to the sign bit
		if u < 0x40 {
			b := uint8(u)
			if neg {
				b |= 0x40
			}
			w.WriteRawChar(b)
			return
		}
		w.WriteRawChar(uint8(u&0x7F) | 0x80)
		u >>= 7
	}
}

// WriteUModularChar writes an unsigned MC.
func (w *Writer) WriteUModularChar(v uint32) {
	for {
		if v < 0x80 {
			w.WriteRawChar(uint8(v))
			return
		}
		w.WriteRawChar(uint8(v&0x7F) | 0x80)
		v >>= 7
	}
}

// WriteModularShort writes MS.
func (w *Writer) WriteModularShort(v uint32) {
	if v < 0x8000 {
		w.WriteRawShort(uint16(v))
		return
	}
	w.WriteRawShort(uint16(v&0x7FFF) | 0x8000)
	w.WriteRawShort(uint16(v >> 15))
}

// WriteHandle writes H with the minimum number of value bytes.
func (w *Writer) WriteHandle(code uint8, ref model.Handle) {
	var b []byte
	for v := ref; v != 0; v >>= 8 {
		b = append([]byte{uint8(v)}, b...)
	}
	w.WriteRawChar(code<<4 | uint8(len(b)))
	w.WriteBytes(b)
}

// WriteText writes T.
func (w *Writer) WriteText(s string) {
	w.WriteBitShort(uint16(len(s)))
	w.WriteBytes([]byte(s))
}

// WriteTextUnicode writes TU.
func (w *Writer) WriteTextUnicode(s string) {
	units := utf16.Encode([]rune(s))
	w.WriteBitShort(uint16(len(units)))
	for _, u := range units {
		w.WriteRawShort(u)
	}
}

func (w *Writer) WritePoint3BD(c model.Coord) {
	w.WriteBitDouble(c.X)
	w.WriteBitDouble(c.Y)
	w.WriteBitDouble(c.Z)
}

func (w *Writer) WritePoint2RD(c model.Coord) {
	w.WriteRawDouble(c.X)
	w.WriteRawDouble(c.Y)
}

// WriteExtrusion writes BE.
func (w *Writer) WriteExtrusion(r2000 bool, c model.Coord) {
	if r2000 {
		if c == model.ZAxis {
			w.WriteBit(true)
			return
		}
		w.WriteBit(false)
	}
	w.WritePoint3BD(c)
}

// WriteThickness writes BT.
func (w *Writer) WriteThickness(r2000 bool, t float64) {
	if r2000 {
		if t == 0 {
			w.WriteBit(true)
			return
		}
		w.WriteBit(false)
	}
	w.WriteBitDouble(t)
}

// Append copies every bit written to o.
func (w *Writer) Append(o *Writer) {
	for i := 0; i < o.bit; i++ {
		w.WriteBits(uint64(o.buf[i>>3]>>(7-uint(i&7))&1), 1)
	}
}
