// Package compress implements the LZ77 variant and the header
// obfuscation used by DWG R2004 and later.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrInvalidOpcode reports an opcode outside the known ranges.
	ErrInvalidOpcode = errors.New("invalid opcode")
	// ErrBadBackReference reports a copy offset reaching before the output.
	ErrBadBackReference = errors.New("back reference before start of output")
	// ErrTruncated reports input that ends inside an instruction.
	ErrTruncated = errors.New("compressed stream truncated")
	// ErrOverflow reports output growing past the declared page size.
	ErrOverflow = errors.New("output exceeds declared size")
	// ErrSizeMismatch reports output whose length differs from the declared size.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
)

// endOfStream terminates a compressed stream.
const endOfStream = 0x11

type decompressor struct {
	src []byte
	pos int
	dst []byte
	max int
}

func (d *decompressor) next() (byte, error) {
	if d.pos >= len(d.src) {
		return 0, ErrTruncated
	}
	b := d.src[d.pos]
	d.pos++
	return b, nil
}

// literalLength reads the length of a literal run. A leading byte above
// 0x0F is an opcode and means no literals follow.
func (d *decompressor) literalLength() (int, error) {
	if d.pos >= len(d.src) {
		return 0, ErrTruncated
	}
	b := d.src[d.pos]
	if b > 0x0F {
		return 0, nil
	}
	d.pos++
	n := int(b)
	if b == 0 {
		n = 0x0F
		for {
			b, err := d.next()
			if err != nil {
				return 0, err
			}
			if b != 0 {
				n += int(b)
				break
			}
			n += 0xFF
		}
	}
	return n + 3, nil
}

// longLength reads a run of zero bytes (0xFF each) closed by a non-zero
// byte.
func (d *decompressor) longLength() (int, error) {
	n := 0
	for {
		b, err := d.next()
		if err != nil {
			return 0, err
		}
		if b != 0 {
			return n + int(b), nil
		}
		n += 0xFF
	}
}

func (d *decompressor) twoByteOffset() (offset, literals int, err error) {
	b1, err := d.next()
	if err != nil {
		return 0, 0, err
	}
	b2, err := d.next()
	if err != nil {
		return 0, 0, err
	}
	return int(b1>>2) | int(b2)<<6, int(b1 & 0x03), nil
}

func (d *decompressor) copyLiterals(n int) error {
	if d.pos+n > len(d.src) {
		return fmt.Errorf("%d literal bytes at %d: %w", n, d.pos, ErrTruncated)
	}
	if len(d.dst)+n > d.max {
		return fmt.Errorf("%d literal bytes at output %d: %w", n, len(d.dst), ErrOverflow)
	}
	d.dst = append(d.dst, d.src[d.pos:d.pos+n]...)
	d.pos += n
	return nil
}

// copyMatch copies n bytes starting offset+1 bytes back. Source and
// destination may overlap.
func (d *decompressor) copyMatch(n, offset int) error {
	start := len(d.dst) - offset - 1
	if start < 0 {
		return fmt.Errorf("offset %d at output %d: %w", offset+1, len(d.dst), ErrBadBackReference)
	}
	if len(d.dst)+n > d.max {
		return fmt.Errorf("%d match bytes at output %d: %w", n, len(d.dst), ErrOverflow)
	}
	for i := 0; i < n; i++ {
		d.dst = append(d.dst, d.dst[start+i])
	}
	return nil
}

// Decompress expands src into at most size bytes. The result is shorter
// than size when the stream ends early; callers that need an exact size
// compare it themselves or use DecompressExact.
func Decompress(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative size %d: %w", size, ErrSizeMismatch)
	}
	d := &decompressor{src: src, dst: make([]byte, 0, size), max: size}

	n, err := d.literalLength()
	if err != nil {
		return nil, err
	}
	if err := d.copyLiterals(n); err != nil {
		return nil, err
	}

	for d.pos < len(d.src) && len(d.dst) < d.max {
		op, _ := d.next()
		var length, offset, literals int
		switch {
		case op == endOfStream:
			return d.dst, nil
		case op < 0x10:
			return nil, fmt.Errorf("opcode 0x%02x at %d: %w", op, d.pos-1, ErrInvalidOpcode)
		case op == 0x10:
			l, err := d.longLength()
			if err != nil {
				return nil, err
			}
			length = l + 9
			if offset, literals, err = d.twoByteOffset(); err != nil {
				return nil, err
			}
		case op < 0x20:
			length = int(op&0x0F) + 2
			var err error
			if offset, literals, err = d.twoByteOffset(); err != nil {
				return nil, err
			}
			offset += 0x3FFF
		case op == 0x20:
			l, err := d.longLength()
			if err != nil {
				return nil, err
			}
			length = l + 0x21
			if offset, literals, err = d.twoByteOffset(); err != nil {
				return nil, err
			}
		case op < 0x40:
			length = int(op) - 0x1E
			var err error
			if offset, literals, err = d.twoByteOffset(); err != nil {
				return nil, err
			}
		default:
			length = int(op>>4) - 1
			b, err := d.next()
			if err != nil {
				return nil, err
			}
			offset = int(b)<<2 | int(op&0x0C)>>2
			literals = int(op & 0x03)
		}
		if literals == 0 {
			if literals, err = d.literalLength(); err != nil {
				return nil, err
			}
		}
		if err := d.copyMatch(length, offset); err != nil {
			return nil, err
		}
		if err := d.copyLiterals(literals); err != nil {
			return nil, err
		}
	}
	return d.dst, nil
}

// DecompressExact is Decompress with a check that exactly size bytes were
// produced.
func DecompressExact(src []byte, size int) ([]byte, error) {
	out, err := Decompress(src, size)
	if err != nil {
		return nil, err
	}
	if len(out) != size {
		return out, fmt.Errorf("got %d bytes, want %d: %w", len(out), size, ErrSizeMismatch)
	}
	return out, nil
}

// Store encodes data as a single literal run followed by the end marker.
// Runs shorter than four bytes are padded with zeros.
func Store(data []byte) []byte {
	n := len(data)
	if n < 4 {
		data = append(append([]byte(nil), data...), make([]byte, 4-n)...)
		n = 4
	}
	var out []byte
	switch {
	case n <= 0x12:
		out = append(out, byte(n-3))
	default:
		out = append(out, 0)
		rest := n - 3 - 0x0F
		for rest > 0xFF {
			out = append(out, 0)
			rest -= 0xFF
		}
		out = append(out, byte(rest))
	}
	out = append(out, data...)
	return append(out, endOfStream)
}

// Decrypt removes the XOR mask of an R2004 data page header located at
// file offset off. Only whole 32-bit words are touched.
func Decrypt(buf []byte, off uint32) {
	mask := 0x4164536B ^ off
	for i := 0; i+4 <= len(buf); i += 4 {
		binary.LittleEndian.PutUint32(buf[i:], binary.LittleEndian.Uint32(buf[i:])^mask)
	}
}

// MagicSequence returns the first n bytes of the key stream that
// obfuscates the R2004 file header.
func MagicSequence(n int) []byte {
	out := make([]byte, n)
	seed := uint32(1)
	for i := range out {
		seed = seed*0x343FD + 0x269EC3
		out[i] = byte(seed >> 16)
	}
	return out
}
