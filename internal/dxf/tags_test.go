package dxf

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dyuri/dwgconv/internal/model"
)

func TestASCIIWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewASCIIWriter(&buf, model.AC1015, "ANSI_1252")
	if err := w.WriteString(0, "SECTION"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if err := w.WriteInt16(70, 5); err != nil {
		t.Fatalf("WriteInt16 failed: %v", err)
	}
	if err := w.WriteDouble(10, 1); err != nil {
		t.Fatalf("WriteDouble failed: %v", err)
	}
	if err := w.WriteDouble(40, 2.5); err != nil {
		t.Fatalf("WriteDouble failed: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	want := "  0\r\nSECTION\r\n 70\r\n     5\r\n 10\r\n1.0\r\n 40\r\n2.5\r\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFormatDouble(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{-3.25, "-3.25"},
		{1e20, "1e+20"},
	}
	for _, tt := range tests {
		if got := formatDouble(tt.in); got != tt.want {
			t.Errorf("formatDouble(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBinaryWriterCodes(t *testing.T) {
	tests := []struct {
		name    string
		version model.Version
		want    []byte
	}{
		{"wide", model.AC1015, []byte{0, 0, 'A', 0, 0xe8, 0x03, 'B', 0}},
		{"narrow", model.AC1009, []byte{0, 'A', 0, 255, 0xe8, 0x03, 'B', 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewBinaryWriter(&buf, tt.version, "ANSI_1252")
			if err := w.WriteString(0, "A"); err != nil {
				t.Fatalf("WriteString failed: %v", err)
			}
			if err := w.WriteString(1000, "B"); err != nil {
				t.Fatalf("WriteString failed: %v", err)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush failed: %v", err)
			}
			got := buf.Bytes()
			if !bytes.HasPrefix(got, []byte(BinarySentinel)) {
				t.Fatalf("output does not start with the sentinel")
			}
			if diff := cmp.Diff(tt.want, got[len(BinarySentinel):]); diff != "" {
				t.Errorf("tags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBinaryTypeOf(t *testing.T) {
	tests := []struct {
		code int
		want binaryType
	}{
		{0, binString},
		{5, binString},
		{10, binDouble},
		{40, binDouble},
		{62, binInt16},
		{70, binInt16},
		{90, binInt32},
		{160, binInt64},
		{290, binBool},
		{310, binChunk},
		{330, binString},
		{370, binInt16},
		{1004, binChunk},
		{1071, binInt32},
	}
	for _, tt := range tests {
		if got := binaryTypeOf(tt.code); got != tt.want {
			t.Errorf("binaryTypeOf(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func writeSample(t *testing.T, w TagWriter) {
	t.Helper()
	steps := []func() error{
		func() error { return w.WriteString(0, "SECTION") },
		func() error { return w.WriteString(2, "ENTITIES") },
		func() error { return w.WriteInt16(70, -3) },
		func() error { return w.WriteInt32(90, 70000) },
		func() error { return w.WriteDouble(10, 0.125) },
		func() error { return w.WriteBool(290, true) },
		func() error { return w.WriteUTF8String(1, "Grüße") },
		func() error { return w.WriteString(0, "EOF") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func readAll(t *testing.T, r io.Reader) []Tag {
	t.Helper()
	src, err := newTagSource(r)
	if err != nil {
		t.Fatalf("newTagSource failed: %v", err)
	}
	var tags []Tag
	for {
		tag, err := src.next()
		if errors.Is(err, io.EOF) {
			return tags
		}
		if err != nil {
			t.Fatalf("next failed at %s: %v", src.position(), err)
		}
		tags = append(tags, tag)
	}
}

func TestTagsReadBack(t *testing.T) {
	tests := []struct {
		name string
		make func(io.Writer) TagWriter
	}{
		{"ascii", func(w io.Writer) TagWriter { return NewASCIIWriter(w, model.AC1015, "ANSI_1252") }},
		{"binary", func(w io.Writer) TagWriter { return NewBinaryWriter(w, model.AC1015, "ANSI_1252") }},
		{"binary r12", func(w io.Writer) TagWriter { return NewBinaryWriter(w, model.AC1009, "ANSI_1252") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeSample(t, tt.make(&buf))
			tags := readAll(t, &buf)
			if len(tags) != 8 {
				t.Fatalf("read %d tags, want 8", len(tags))
			}
			if tags[1].Value != "ENTITIES" {
				t.Errorf("tag 1 = %q, want ENTITIES", tags[1].Value)
			}
			if got := tags[2].Int(); got != -3 {
				t.Errorf("int16 = %d, want -3", got)
			}
			if got := tags[3].Int(); got != 70000 {
				t.Errorf("int32 = %d, want 70000", got)
			}
			if got := tags[4].Float(); got != 0.125 {
				t.Errorf("double = %v, want 0.125", got)
			}
			if !tags[5].Bool() {
				t.Errorf("bool = false, want true")
			}
			// windows-1252 bytes for "Grüße"
			if tags[6].Value != "Gr\xfc\xdfe" {
				t.Errorf("string = %q, want code page bytes", tags[6].Value)
			}
			if tags[7].Code != 0 || tags[7].Value != "EOF" {
				t.Errorf("last tag = %+v, want 0/EOF", tags[7])
			}
		})
	}
}

func TestTagHandle(t *testing.T) {
	if got := (Tag{Code: 5, Value: "1F"}).Handle(); got != 0x1f {
		t.Errorf("Handle = %#x, want 0x1f", got)
	}
	if got := (Tag{Code: 70, Value: "  4.0"}).Int(); got != 4 {
		t.Errorf("Int = %d, want 4", got)
	}
}
