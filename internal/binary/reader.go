// Package binary decodes the bit-packed primitives of the DWG format.
//
// A Reader keeps a sticky error: once a read runs past the end of the
// buffer or meets an invalid encoding, every later read returns a zero
// value and Err reports the first failure. Callers decode a whole record
// and check Err once at its end.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/dyuri/dwgconv/internal/model"
)

var (
	// ErrShortRead reports a read past the end of the buffer.
	ErrShortRead = errors.New("read past end of buffer")
	// ErrBadSelector reports a reserved 2-bit selector value.
	ErrBadSelector = errors.New("reserved selector value")
	// ErrBadHandle reports a handle with more than 8 value bytes.
	ErrBadHandle = errors.New("handle size out of range")
	// ErrOutOfRange reports a seek outside the buffer.
	ErrOutOfRange = errors.New("position out of range")
)

// TextDecoder converts code page bytes to a Go string.
type TextDecoder interface {
	Decode(b []byte) string
}

// UnicodeDecoder is implemented by decoders that also handle UTF-16LE.
type UnicodeDecoder interface {
	DecodeUTF16LE(b []byte) string
}

// Reader handles bit level decoding over an in-memory buffer
type Reader struct {
	buf     []byte
	bit     int // absolute bit position
	err     error
	decoder TextDecoder
}

// NewReader creates a reader positioned at the first bit of buf
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// NewSectionReader reads size bytes at off from r into memory. The size
// must fit inside limit, normally the total file size.
func NewSectionReader(r io.ReaderAt, off, size, limit int64) (*Reader, error) {
	if off < 0 || size < 0 || off > limit || size > limit-off {
		return nil, fmt.Errorf("section at %d size %d exceeds %d bytes: %w", off, size, limit, ErrOutOfRange)
	}
	buf := make([]byte, size)
	if _, err := r.ReadAt(buf, off); err != nil && !(errors.Is(err, io.EOF) && size == 0) {
		return nil, fmt.Errorf("read section at %d: %w", off, err)
	}
	return NewReader(buf), nil
}

// SetDecoder sets the code page decoder used by Text.
func (r *Reader) SetDecoder(d TextDecoder) { r.decoder = d }

// Decoder returns the code page decoder.
func (r *Reader) Decoder() TextDecoder { return r.decoder }

// Buffer returns the underlying buffer.
func (r *Reader) Buffer() []byte { return r.buf }

// Size returns the buffer length in bytes.
func (r *Reader) Size() int { return len(r.buf) }

// Good reports whether every read so far succeeded.
func (r *Reader) Good() bool { return r.err == nil }

// Err returns the first error met.
func (r *Reader) Err() error { return r.err }

// Fail records err unless an earlier error is already recorded.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Position returns the current byte position. A partially consumed byte
// counts as consumed.
func (r *Reader) Position() int { return (r.bit + 7) / 8 }

// BitPosition returns the absolute bit position.
func (r *Reader) BitPosition() int { return r.bit }

// Remaining returns the number of whole bytes left.
func (r *Reader) Remaining() int { return len(r.buf) - r.Position() }

// SetPosition moves the cursor to byte p. It does not affect the sticky
// error state.
func (r *Reader) SetPosition(p int) error {
	if p < 0 || p > len(r.buf) {
		return fmt.Errorf("seek to %d of %d: %w", p, len(r.buf), ErrOutOfRange)
	}
	r.bit = p * 8
	return nil
}

// SetBitPosition moves the cursor to bit n (0-7) of the current byte.
func (r *Reader) SetBitPosition(n int) {
	r.bit = (r.bit/8)*8 + n&7
}

// SeekBit moves the cursor to an absolute bit position.
func (r *Reader) SeekBit(bit int) error {
	if bit < 0 || bit > len(r.buf)*8 {
		return fmt.Errorf("seek to bit %d of %d: %w", bit, len(r.buf)*8, ErrOutOfRange)
	}
	r.bit = bit
	return nil
}

// Sub returns an independent reader over size bytes starting at byte
// off. The slice is clipped to the buffer; a clipped slice is reported
// through the returned error.
func (r *Reader) Sub(off, size int) (*Reader, error) {
	if off < 0 || off > len(r.buf) || size < 0 {
		return nil, fmt.Errorf("sub-buffer at %d size %d: %w", off, size, ErrOutOfRange)
	}
	end := off + size
	var err error
	if end > len(r.buf) {
		end = len(r.buf)
		err = fmt.Errorf("sub-buffer at %d size %d clipped to %d: %w", off, size, end-off, ErrShortRead)
	}
	sub := NewReader(r.buf[off:end])
	sub.decoder = r.decoder
	return sub, err
}

func (r *Reader) have(bits int) bool {
	if r.err != nil {
		return false
	}
	if r.bit+bits > len(r.buf)*8 {
		r.err = ErrShortRead
		return false
	}
	return true
}

// Bit reads B.
func (r *Reader) Bit() bool {
	if !r.have(1) {
		return false
	}
	b := r.buf[r.bit>>3] >> (7 - uint(r.bit&7)) & 1
	r.bit++
	return b == 1
}

// Bits2 reads BB, MSB first across byte boundaries.
func (r *Reader) Bits2() uint8 {
	if !r.have(2) {
		return 0
	}
	var v uint8
	for i := 0; i < 2; i++ {
		v = v<<1 | r.buf[r.bit>>3]>>(7-uint(r.bit&7))&1
		r.bit++
	}
	return v
}

// Bits3 reads a 3-bit group (R2010+ object type prefix).
func (r *Reader) Bits3() uint8 {
	if !r.have(3) {
		return 0
	}
	var v uint8
	for i := 0; i < 3; i++ {
		v = v<<1 | r.buf[r.bit>>3]>>(7-uint(r.bit&7))&1
		r.bit++
	}
	return v
}

// RawChar reads RC, shifting across the byte boundary when the cursor is
// not aligned.
func (r *Reader) RawChar() uint8 {
	if !r.have(8) {
		return 0
	}
	i, s := r.bit>>3, uint(r.bit&7)
	r.bit += 8
	if s == 0 {
		return r.buf[i]
	}
	return r.buf[i]<<s | r.buf[i+1]>>(8-s)
}

// Bytes reads n raw bytes. n is checked against the remaining buffer
// before anything is allocated.
func (r *Reader) Bytes(n int) []byte {
	if n < 0 || !r.have(n*8) {
		r.Fail(ErrShortRead)
		return nil
	}
	out := make([]byte, n)
	if r.bit&7 == 0 {
		copy(out, r.buf[r.bit>>3:])
		r.bit += n * 8
		return out
	}
	for i := range out {
		out[i] = r.RawChar()
	}
	return out
}

// Skip advances n bytes.
func (r *Reader) Skip(n int) {
	if n < 0 || !r.have(n*8) {
		r.Fail(ErrShortRead)
		return
	}
	r.bit += n * 8
}

// RawShort reads RS (little endian).
func (r *Reader) RawShort() uint16 {
	lo := r.RawChar()
	hi := r.RawChar()
	return uint16(lo) | uint16(hi)<<8
}

// BigEndianShort reads a big endian 16-bit value.
func (r *Reader) BigEndianShort() uint16 {
	hi := r.RawChar()
	lo := r.RawChar()
	return uint16(hi)<<8 | uint16(lo)
}

// RawLong reads RL.
func (r *Reader) RawLong() uint32 {
	b := r.Bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// RawLongLong reads RLL.
func (r *Reader) RawLongLong() uint64 {
	b := r.Bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// RawDouble reads RD.
func (r *Reader) RawDouble() float64 {
	return math.Float64frombits(r.RawLongLong())
}

// BitShort reads BS.
func (r *Reader) BitShort() uint16 {
	switch r.Bits2() {
	case 0:
		return r.RawShort()
	case 1:
		return uint16(r.RawChar())
	case 2:
		return 0
	default:
		return 256
	}
}

// BitLong reads BL.
func (r *Reader) BitLong() uint32 {
	switch r.Bits2() {
	case 0:
		return r.RawLong()
	case 1:
		return uint32(r.RawChar())
	case 2:
		return 0
	default:
		r.Fail(fmt.Errorf("bit long selector 3: %w", ErrBadSelector))
		return 0
	}
}

// BitLongLong reads BLL: a 3-bit byte count followed by that many bytes.
func (r *Reader) BitLongLong() uint64 {
	n := r.Bits3()
	var v uint64
	for i := uint8(0); i < n; i++ {
		v |= uint64(r.RawChar()) << (8 * i)
	}
	return v
}

// BitDouble reads BD.
func (r *Reader) BitDouble() float64 {
	switch r.Bits2() {
	case 0:
		return r.RawDouble()
	case 1:
		return 1
	case 2:
		return 0
	default:
		r.Fail(ErrBadSelector)
		return 0
	}
}

// DefaultDouble reads DD against the reference value def.
func (r *Reader) DefaultDouble(def float64) float64 {
	switch r.Bits2() {
	case 0:
		return def
	case 1:
		var d [8]byte
		binary.LittleEndian.PutUint64(d[:], math.Float64bits(def))
		b := r.Bytes(4)
		if b == nil {
			return def
		}
		copy(d[0:4], b)
		return math.Float64frombits(binary.LittleEndian.Uint64(d[:]))
	case 2:
		var d [8]byte
		binary.LittleEndian.PutUint64(d[:], math.Float64bits(def))
		b := r.Bytes(6)
		if b == nil {
			return def
		}
		d[4] = b[0]
		d[5] = b[1]
		copy(d[0:4], b[2:6])
		return math.Float64frombits(binary.LittleEndian.Uint64(d[:]))
	default:
		return r.RawDouble()
	}
}

// ModularChar reads a signed MC.
func (r *Reader) ModularChar() int32 {
	var parts [4]uint8
	n := 0
	for n < 4 {
		b := r.RawChar()
		parts[n] = b & 0x7F
		n++
		if b&0x80 == 0 {
			break
		}
	}
	negative := false
	if parts[n-1]&0x40 != 0 {
		negative = true
		parts[n-1] &= 0x3F
	}
	var v int32
	for i := 0; i < n; i++ {
		v |= int32(parts[i]) << (7 * uint(i))
	}
	if negative {
		v = -v
	}
	return v
}

// UModularChar reads an unsigned MC.
func (r *Reader) UModularChar() uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		b := r.RawChar()
		v |= uint32(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			break
		}
	}
	return v
}

// ModularShort reads MS.
func (r *Reader) ModularShort() uint32 {
	var v uint32
	for i := 0; i < 2; i++ {
		s := r.RawShort()
		v |= uint32(s&0x7FFF) << (15 * uint(i))
		if s&0x8000 == 0 {
			break
		}
	}
	return v
}

// HandleRef is a handle as stored on the wire.
type HandleRef struct {
	Code uint8 // reference type
	Size uint8 // number of value bytes
	Ref  model.Handle
}

// Resolve combines the reference with the handle of the object that
// holds it. Codes 6 and 8 step one handle up or down, 0xA and 0xC add or
// subtract the stored value, every other code is absolute.
func (h HandleRef) Resolve(base model.Handle) model.Handle {
	switch h.Code {
	case 0x6:
		return base + 1
	case 0x8:
		return base - 1
	case 0xA:
		return base + h.Ref
	case 0xC:
		return base - h.Ref
	}
	return h.Ref
}

// Handle reads H.
func (r *Reader) Handle() HandleRef {
	b := r.RawChar()
	h := HandleRef{Code: b >> 4, Size: b & 0x0F}
	if h.Size > 8 {
		r.Fail(fmt.Errorf("%w: %d bytes", ErrBadHandle, h.Size))
		return HandleRef{}
	}
	for i := uint8(0); i < h.Size; i++ {
		h.Ref = h.Ref<<8 | model.Handle(r.RawChar())
	}
	return h
}

// OffsetHandle reads H and resolves it against base.
func (r *Reader) OffsetHandle(base model.Handle) model.Handle {
	return r.Handle().Resolve(base)
}

// Text reads T: a BS length followed by code page bytes.
func (r *Reader) Text() string {
	n := int(r.BitShort())
	if n == 0 || !r.Good() {
		return ""
	}
	b := r.Bytes(n)
	if b == nil {
		return ""
	}
	// some writers include the terminating NUL in the length
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	if r.decoder != nil {
		return r.decoder.Decode(b)
	}
	return string(b)
}

// TextUnicode reads TU: a BS character count followed by UTF-16LE code
// units.
func (r *Reader) TextUnicode() string {
	n := int(r.BitShort())
	if n == 0 || !r.Good() {
		return ""
	}
	b := r.Bytes(n * 2)
	if b == nil {
		return ""
	}
	if u, ok := r.decoder.(UnicodeDecoder); ok {
		return u.DecodeUTF16LE(b)
	}
	return DecodeUTF16LE(b)
}

// DecodeUTF16LE converts little endian UTF-16 to a string, stopping at
// the first NUL.
func DecodeUTF16LE(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// Point3BD reads three BD values.
func (r *Reader) Point3BD() model.Coord {
	x := r.BitDouble()
	y := r.BitDouble()
	z := r.BitDouble()
	return model.Coord{X: x, Y: y, Z: z}
}

// Point2RD reads two RD values.
func (r *Reader) Point2RD() model.Coord {
	x := r.RawDouble()
	y := r.RawDouble()
	return model.Coord{X: x, Y: y}
}

// Point3RD reads three RD values.
func (r *Reader) Point3RD() model.Coord {
	x := r.RawDouble()
	y := r.RawDouble()
	z := r.RawDouble()
	return model.Coord{X: x, Y: y, Z: z}
}

// Extrusion reads BE. With r2000 set a single 1 bit stands for the Z
// axis.
func (r *Reader) Extrusion(r2000 bool) model.Coord {
	if r2000 && r.Bit() {
		return model.ZAxis
	}
	return r.Point3BD()
}

// Thickness reads BT. With r2000 set a single 1 bit stands for zero.
func (r *Reader) Thickness(r2000 bool) float64 {
	if r2000 && r.Bit() {
		return 0
	}
	return r.BitDouble()
}

// CmColor reads a color. Before R2004 this is a plain BS index; later
// versions add RGB and name data which is consumed and dropped.
func (r *Reader) CmColor(r2004 bool) int {
	idx := int(int16(r.BitShort()))
	if !r2004 {
		return idx
	}
	rgb := r.BitLong()
	flags := r.RawChar()
	if flags&1 != 0 {
		r.Text()
	}
	if flags&2 != 0 {
		r.Text()
	}
	if rgb>>24 == 0xC3 {
		return int(rgb & 0xFF)
	}
	return idx
}

// EnColor reads the R2004+ entity color: a BS whose upper bits flag an
// RGB value (0x8000), a color book reference (0x4000, stored in the
// handle stream) and a transparency value (0x2000).
func (r *Reader) EnColor() (index int, flags uint16, rgb uint32, transparency uint32) {
	v := r.BitShort()
	index = int(v & 0x1FF)
	flags = v & 0xFE00
	if v&0x8000 != 0 {
		rgb = r.BitLong()
	}
	if v&0x2000 != 0 {
		transparency = r.BitLong()
	}
	return index, flags, rgb, transparency
}

// CRC computes the DWG CRC-16 over buffer bytes [start,end), independent
// of the cursor.
func (r *Reader) CRC(seed uint16, start, end int) uint16 {
	if start < 0 {
		start = 0
	}
	if end > len(r.buf) {
		end = len(r.buf)
	}
	if start >= end {
		return seed
	}
	return CRC16(seed, r.buf[start:end])
}
