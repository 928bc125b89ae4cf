package dwg

import (
	"errors"
	"io"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := newError(ErrBadTables, io.ErrUnexpectedEOF, "layer %q", "0")

	if !errors.Is(err, ErrBadTables) {
		t.Error("derived error does not match its sentinel")
	}
	if errors.Is(err, ErrBadEntities) {
		t.Error("derived error matches a different sentinel")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause is not reachable through Unwrap")
	}
	if got, want := err.Error(), `bad tables: layer "0": unexpected EOF`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorPartialSupport(t *testing.T) {
	err := newError(ErrPartialSupport, nil, "version %s", "AC1021")
	if !errors.Is(err, ErrPartialSupport) {
		t.Error("error does not match ErrPartialSupport")
	}
	if !errors.Is(err, ErrBadFileHeader) {
		t.Error("partial support does not match ErrBadFileHeader")
	}
	if errors.Is(newError(ErrBadFileHeader, nil, ""), ErrPartialSupport) {
		t.Error("plain file header error matches ErrPartialSupport")
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		r     Reason
		name  string
		fatal bool
	}{
		{ReasonNone, "none", false},
		{ReasonOpen, "bad open", true},
		{ReasonVersion, "bad version", true},
		{ReasonFileHeader, "bad file header", true},
		{ReasonClasses, "bad classes", false},
		{ReasonOffsets, "bad object offsets", false},
		{ReasonTables, "bad tables", false},
		{ReasonEntities, "bad entities", false},
		{Reason(42), "reason(42)", false},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.name {
			t.Errorf("Reason(%d).String() = %q, want %q", int(tt.r), got, tt.name)
		}
		if got := tt.r.Fatal(); got != tt.fatal {
			t.Errorf("%v.Fatal() = %v, want %v", tt.r, got, tt.fatal)
		}
	}
}
