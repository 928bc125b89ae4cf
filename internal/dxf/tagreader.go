package dxf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Tag is one group code/value pair. Values are kept as text; binary
// numbers are formatted so that they parse back to the same value.
type Tag struct {
	Code  int
	Value string
}

// Float parses the value as a double.
func (t Tag) Float() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil {
		return 0
	}
	return f
}

// Int parses the value as an integer.
func (t Tag) Int() int {
	s := strings.TrimSpace(t.Value)
	i, err := strconv.Atoi(s)
	if err != nil {
		// some writers emit integers with a decimal point
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return i
}

// Bool parses a 0/1 flag.
func (t Tag) Bool() bool { return t.Int() != 0 }

// Handle parses a hexadecimal handle value.
func (t Tag) Handle() uint64 {
	h, err := strconv.ParseUint(strings.TrimSpace(t.Value), 16, 64)
	if err != nil {
		return 0
	}
	return h
}

// tagSource yields tags until io.EOF.
type tagSource interface {
	next() (Tag, error)
	// position describes where the last tag was read, for messages
	position() string
}

// newTagSource sniffs the binary sentinel and returns the matching
// tokenizer.
func newTagSource(r io.Reader) (tagSource, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(BinarySentinel) + 2)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	if bytes.HasPrefix(head, []byte(BinarySentinel)) {
		if _, err := br.Discard(len(BinarySentinel)); err != nil {
			return nil, err
		}
		// the first tag is 0/SECTION: a second zero byte means wide codes
		wide := len(head) >= len(BinarySentinel)+2 && head[len(BinarySentinel)+1] == 0
		return &binaryTags{r: br, wide: wide}, nil
	}
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &asciiTags{scanner: sc}, nil
}

type asciiTags struct {
	scanner *bufio.Scanner
	line    int
}

func (a *asciiTags) readLine() (string, bool) {
	if !a.scanner.Scan() {
		return "", false
	}
	a.line++
	return strings.TrimRight(a.scanner.Text(), "\r"), true
}

func (a *asciiTags) next() (Tag, error) {
	codeLine, ok := a.readLine()
	if !ok {
		if err := a.scanner.Err(); err != nil {
			return Tag{}, fmt.Errorf("line %d: %w", a.line, err)
		}
		return Tag{}, io.EOF
	}
	code, err := strconv.Atoi(strings.TrimSpace(codeLine))
	if err != nil {
		return Tag{}, fmt.Errorf("line %d: bad group code %q", a.line, codeLine)
	}
	value, ok := a.readLine()
	if !ok {
		return Tag{}, fmt.Errorf("line %d: group %d without value: %w", a.line, code, io.ErrUnexpectedEOF)
	}
	return Tag{Code: code, Value: value}, nil
}

func (a *asciiTags) position() string { return fmt.Sprintf("line %d", a.line) }

type binaryTags struct {
	r       *bufio.Reader
	wide    bool
	offset  int64
	scratch [8]byte
}

func (b *binaryTags) read(n int) ([]byte, error) {
	if _, err := io.ReadFull(b.r, b.scratch[:n]); err != nil {
		return nil, err
	}
	b.offset += int64(n)
	return b.scratch[:n], nil
}

func (b *binaryTags) readCode() (int, error) {
	if b.wide {
		p, err := b.read(2)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint16(p)), nil
	}
	p, err := b.read(1)
	if err != nil {
		return 0, err
	}
	if p[0] != 255 {
		return int(p[0]), nil
	}
	p, err = b.read(2)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(p)), nil
}

func (b *binaryTags) next() (Tag, error) {
	code, err := b.readCode()
	if err != nil {
		return Tag{}, err
	}
	t := Tag{Code: code}
	fail := func(err error) (Tag, error) {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Tag{}, fmt.Errorf("offset %d: group %d: %w", b.offset, code, err)
	}
	switch binaryTypeOf(code) {
	case binString:
		s, err := b.r.ReadString(0)
		if err != nil {
			return fail(err)
		}
		b.offset += int64(len(s))
		t.Value = s[:len(s)-1]
	case binInt16:
		p, err := b.read(2)
		if err != nil {
			return fail(err)
		}
		t.Value = strconv.Itoa(int(int16(binary.LittleEndian.Uint16(p))))
	case binInt32:
		p, err := b.read(4)
		if err != nil {
			return fail(err)
		}
		t.Value = strconv.Itoa(int(int32(binary.LittleEndian.Uint32(p))))
	case binInt64:
		p, err := b.read(8)
		if err != nil {
			return fail(err)
		}
		t.Value = strconv.FormatInt(int64(binary.LittleEndian.Uint64(p)), 10)
	case binDouble:
		p, err := b.read(8)
		if err != nil {
			return fail(err)
		}
		t.Value = strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(p)), 'g', -1, 64)
	case binBool:
		p, err := b.read(1)
		if err != nil {
			return fail(err)
		}
		t.Value = strconv.Itoa(int(p[0]))
	case binChunk:
		p, err := b.read(1)
		if err != nil {
			return fail(err)
		}
		data := make([]byte, p[0])
		if _, err := io.ReadFull(b.r, data); err != nil {
			return fail(err)
		}
		b.offset += int64(len(data))
		t.Value = strings.ToUpper(hex.EncodeToString(data))
	}
	return t, nil
}

func (b *binaryTags) position() string { return fmt.Sprintf("offset %d", b.offset) }
