package dxf

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dyuri/dwgconv/internal/model"
)

// dxfText joins code/value pairs into ASCII DXF.
func dxfText(pairs ...string) string {
	return strings.Join(pairs, "\n") + "\n"
}

func TestReadCodePage(t *testing.T) {
	input := dxfText(
		"999", "written by hand",
		"0", "SECTION",
		"2", "HEADER",
		"9", "$ACADVER",
		"1", "AC1009",
		"9", "$DWGCODEPAGE",
		"3", "ANSI_1251",
		"0", "ENDSEC",
		"0", "SECTION",
		"2", "ENTITIES",
		"0", "TEXT",
		"8", "0",
		"10", "1.0",
		"20", "2.0",
		"30", "0.0",
		"40", "2.5",
		"1", "\xcf\xf0\xe8\xe2\xe5\xf2",
		"0", "ENDSEC",
		"0", "EOF",
	)
	r := NewReader(strings.NewReader(input))
	d := model.NewDrawing()
	if err := r.Read(d); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if r.Version() != model.AC1009 {
		t.Errorf("Version = %v, want AC1009", r.Version())
	}
	require.Len(t, d.Entities, 1)
	text, ok := d.Entities[0].(*model.Text)
	require.True(t, ok, "entity is %T", d.Entities[0])
	if text.Value != "Привет" {
		t.Errorf("Value = %q, want %q", text.Value, "Привет")
	}
	if text.Position != (model.Coord{X: 1, Y: 2}) {
		t.Errorf("Position = %v, want (1,2,0)", text.Position)
	}
	if text.Style != "STANDARD" || text.WidthScale != 1 {
		t.Errorf("defaults = style %q width %v, want STANDARD 1", text.Style, text.WidthScale)
	}
	if len(r.Warnings()) != 0 {
		t.Errorf("Warnings = %v, want none", r.Warnings())
	}
}

func TestReadNotDXF(t *testing.T) {
	for _, input := range []string{"", "hello\nworld\n", dxfText("2", "HEADER")} {
		err := NewReader(strings.NewReader(input)).Read(model.NopSink{})
		if !errors.Is(err, ErrNotDXF) {
			t.Errorf("Read(%q) error = %v, want ErrNotDXF", input, err)
		}
	}
}

func TestReadSkipsUnknown(t *testing.T) {
	input := dxfText(
		"0", "SECTION",
		"2", "OBJECTS",
		"0", "DICTIONARY",
		"5", "C",
		"0", "ENDSEC",
		"0", "SECTION",
		"2", "ENTITIES",
		"0", "WIPEOUT",
		"8", "0",
		"0", "LINE",
		"5", "2A",
		"102", "{ACAD_REACTORS",
		"330", "99",
		"102", "}",
		"330", "1F",
		"8", "Walls",
		"62", "3",
		"10", "0",
		"20", "0",
		"11", "1",
		"21", "1",
		"1001", "ACAD",
		"1000", "ignored",
		"0", "ENDSEC",
		"0", "EOF",
	)
	r := NewReader(strings.NewReader(input))
	d := model.NewDrawing()
	require.NoError(t, r.Read(d))

	if r.Skipped()["WIPEOUT"] != 1 {
		t.Errorf("Skipped = %v, want one WIPEOUT", r.Skipped())
	}
	require.Len(t, d.Entities, 1)
	line := d.Entities[0].(*model.Line)
	if line.Handle != 0x2a {
		t.Errorf("Handle = %#x, want 0x2a", uint64(line.Handle))
	}
	if line.Owner != 0x1f {
		t.Errorf("Owner = %#x, want 0x1f", uint64(line.Owner))
	}
	if line.Layer != "Walls" || line.Color != 3 {
		t.Errorf("layer %q color %d, want Walls 3", line.Layer, line.Color)
	}
	if line.End != (model.Coord{X: 1, Y: 1}) {
		t.Errorf("End = %v, want (1,1,0)", line.End)
	}
	if line.Extrusion != model.ZAxis {
		t.Errorf("Extrusion = %v, want Z axis", line.Extrusion)
	}
}

func TestReadPolylineWithoutSeqEnd(t *testing.T) {
	input := dxfText(
		"0", "SECTION",
		"2", "ENTITIES",
		"0", "POLYLINE",
		"8", "0",
		"66", "1",
		"70", "1",
		"0", "VERTEX",
		"10", "1",
		"20", "2",
		"0", "VERTEX",
		"10", "3",
		"20", "4",
		"42", "0.5",
		"0", "LINE",
		"10", "0",
		"11", "5",
		"0", "ENDSEC",
	)
	r := NewReader(strings.NewReader(input))
	d := model.NewDrawing()
	require.NoError(t, r.Read(d))

	require.Len(t, d.Entities, 2)
	pl, ok := d.Entities[0].(*model.Polyline)
	require.True(t, ok, "entity is %T", d.Entities[0])
	require.Len(t, pl.Vertices, 2)
	if pl.Vertices[1].Position != (model.Coord{X: 3, Y: 4}) || pl.Vertices[1].Bulge != 0.5 {
		t.Errorf("vertex = %+v", pl.Vertices[1])
	}
	if _, ok := d.Entities[1].(*model.Line); !ok {
		t.Errorf("second entity is %T, want *model.Line", d.Entities[1])
	}
	// missing SEQEND and missing EOF
	if len(r.Warnings()) != 2 {
		t.Errorf("Warnings = %v, want 2", r.Warnings())
	}
}

func TestReadMTextRotation(t *testing.T) {
	input := dxfText(
		"0", "SECTION",
		"2", "ENTITIES",
		"0", "MTEXT",
		"3", "first ",
		"1", "second",
		"50", "90",
		"0", "ENDSEC",
		"0", "EOF",
	)
	d, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, d.Entities, 1)
	m := d.Entities[0].(*model.MText)
	if m.Value != "first second" {
		t.Errorf("Value = %q, want %q", m.Value, "first second")
	}
	if m.XAxis.X > 1e-9 || m.XAxis.Y < 1-1e-9 {
		t.Errorf("XAxis = %v, want (0,1,0)", m.XAxis)
	}
}

func TestReadHatchEdgeLoop(t *testing.T) {
	input := dxfText(
		"0", "SECTION",
		"2", "ENTITIES",
		"0", "HATCH",
		"10", "0", "20", "0", "30", "0",
		"2", "ANSI31",
		"70", "0",
		"71", "0",
		"91", "1",
		"92", "1",
		"93", "2",
		"72", "1",
		"10", "0", "20", "0",
		"11", "5", "21", "0",
		"72", "1",
		"10", "5", "20", "0",
		"11", "0", "21", "0",
		"97", "0",
		"75", "1",
		"76", "1",
		"52", "45",
		"41", "2",
		"98", "1",
		"10", "9", "20", "9",
		"0", "ENDSEC",
		"0", "EOF",
	)
	d, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, d.Entities, 1)
	h := d.Entities[0].(*model.Hatch)
	require.Len(t, h.Loops, 1)
	if got := len(h.Loops[0].Vertices); got != 2 {
		t.Errorf("loop vertices = %d, want 2", got)
	}
	if h.Style != 1 || h.Angle != 45 || h.Scale != 2 {
		t.Errorf("style %d angle %v scale %v, want 1 45 2", h.Style, h.Angle, h.Scale)
	}
	if h.Pattern != "ANSI31" || h.Solid {
		t.Errorf("pattern %q solid %v, want ANSI31 false", h.Pattern, h.Solid)
	}
}
