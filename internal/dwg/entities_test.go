package dwg

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

func parseRecord(t *testing.T, v model.Version, typ int, rec []byte) *decodedEntity {
	t.Helper()
	d, err := parseEntity(v, binary.NewReader(rec), typ)
	if err != nil {
		t.Fatalf("parseEntity(%d) failed: %v", typ, err)
	}
	return d
}

func TestParseLWPolyline(t *testing.T) {
	v := model.AC1015
	body := entityBody(v, 0x50, true)
	body.WriteBitShort(lwBulges | lwWidths | lwClosed)
	body.WriteBitLong(3)
	body.WriteBitLong(3)
	body.WriteBitLong(3)
	pts := [][2]float64{{0, 0}, {10, 0}, {10, 5}}
	body.WriteRawDouble(pts[0][0])
	body.WriteRawDouble(pts[0][1])
	for i := 1; i < len(pts); i++ {
		body.WriteDefaultDouble(pts[i][0], pts[i-1][0])
		body.WriteDefaultDouble(pts[i][1], pts[i-1][1])
	}
	for _, b := range []float64{0, 1, 0} {
		body.WriteBitDouble(b)
	}
	for i := 0; i < 3; i++ {
		body.WriteBitDouble(0.5)
		body.WriteBitDouble(1)
	}
	rec := objectRecord(v, typeLWPolyline, body, entityHandles(v, 0x10, 0, 0, true))

	d := parseRecord(t, v, typeLWPolyline, rec)
	p, ok := d.entity.(*model.LWPolyline)
	require.True(t, ok, "entity is %T", d.entity)

	want := []model.LWVertex{
		{X: 0, Y: 0, StartWidth: 0.5, EndWidth: 1},
		{X: 10, Y: 0, StartWidth: 0.5, EndWidth: 1, Bulge: 1},
		{X: 10, Y: 5, StartWidth: 0.5, EndWidth: 1},
	}
	if diff := cmp.Diff(want, p.Vertices); diff != "" {
		t.Errorf("Vertices mismatch (-want +got):\n%s", diff)
	}
	if !p.Closed() {
		t.Error("Closed = false, want true")
	}
	if p.Extrusion != model.ZAxis {
		t.Errorf("Extrusion = %v, want Z axis", p.Extrusion)
	}
	if p.Layer != "0" || p.LayerHandle != 0x10 {
		t.Errorf("Layer = %q/%#x, want unresolved 0x10", p.Layer, p.LayerHandle)
	}
}

func TestParseLWPolylineHugeCount(t *testing.T) {
	v := model.AC1015
	body := entityBody(v, 0x50, true)
	body.WriteBitShort(0)
	body.WriteBitLong(1 << 30)
	rec := objectRecord(v, typeLWPolyline, body, entityHandles(v, 0, 0, 0, true))
	if _, err := parseEntity(v, binary.NewReader(rec), typeLWPolyline); err == nil {
		t.Error("expected error for a point count beyond the record")
	}
}

func TestParseText(t *testing.T) {
	v := model.AC1015
	body := entityBody(v, 0x60, true)
	body.WriteRawChar(0xFF &^ textNoRotation)
	body.WritePoint2RD(model.Coord{X: 3, Y: 4})
	body.WriteExtrusion(true, model.ZAxis)
	body.WriteThickness(true, 0)
	body.WriteRawDouble(math.Pi / 2)
	body.WriteRawDouble(2.5)
	body.WriteText("HELLO")
	hs := entityHandles(v, 0, 0, 0, true)
	hs.WriteHandle(5, 0x0A)
	rec := objectRecord(v, typeText, body, hs)

	d := parseRecord(t, v, typeText, rec)
	txt, ok := d.entity.(*model.Text)
	require.True(t, ok, "entity is %T", d.entity)

	if txt.Value != "HELLO" {
		t.Errorf("Value = %q, want HELLO", txt.Value)
	}
	if math.Abs(txt.Rotation-90) > 1e-9 {
		t.Errorf("Rotation = %v, want 90", txt.Rotation)
	}
	if txt.Height != 2.5 {
		t.Errorf("Height = %v, want 2.5", txt.Height)
	}
	if txt.WidthScale != 1 {
		t.Errorf("WidthScale = %v, want 1", txt.WidthScale)
	}
	if txt.AlignPoint != txt.Position {
		t.Errorf("AlignPoint = %v, want %v", txt.AlignPoint, txt.Position)
	}
	if txt.StyleHandle != 0x0A {
		t.Errorf("StyleHandle = %#x, want 0x0A", txt.StyleHandle)
	}
}

func TestParseTextR14(t *testing.T) {
	v := model.AC1014
	body := entityBody(v, 0x60, true)
	body.WriteBitDouble(7)
	body.WritePoint2RD(model.Coord{X: 1, Y: 2})
	body.WritePoint2RD(model.Coord{X: 5, Y: 2})
	body.WritePoint3BD(model.ZAxis)
	body.WriteBitDouble(0)
	body.WriteBitDouble(0)
	body.WriteBitDouble(math.Pi)
	body.WriteBitDouble(1.5)
	body.WriteBitDouble(0.8)
	body.WriteText("R14")
	body.WriteBitShort(0)
	body.WriteBitShort(model.HAlignCenter)
	body.WriteBitShort(model.VAlignMiddle)
	hs := entityHandles(v, 0, 0, 0, true)
	hs.WriteHandle(5, 0x0A)
	rec := objectRecord(v, typeText, body, hs)

	txt := parseRecord(t, v, typeText, rec).entity.(*model.Text)
	if txt.Position != (model.Coord{X: 1, Y: 2, Z: 7}) {
		t.Errorf("Position = %v, want (1,2,7)", txt.Position)
	}
	if math.Abs(txt.Rotation-180) > 1e-9 {
		t.Errorf("Rotation = %v, want 180", txt.Rotation)
	}
	if txt.HAlign != model.HAlignCenter || txt.VAlign != model.VAlignMiddle {
		t.Errorf("Align = %d/%d, want %d/%d", txt.HAlign, txt.VAlign, model.HAlignCenter, model.VAlignMiddle)
	}
	if txt.WidthScale != 0.8 {
		t.Errorf("WidthScale = %v, want 0.8", txt.WidthScale)
	}
}

func insertRecord(v model.Version, typ int, h, block model.Handle, scale uint8, x float64) []byte {
	body := entityBody(v, h, true)
	body.WritePoint3BD(model.Coord{X: 1, Y: 1})
	body.WriteBits2(scale)
	switch scale {
	case 2:
		body.WriteRawDouble(x)
	case 0:
		body.WriteRawDouble(x)
		body.WriteDefaultDouble(x, x)
		body.WriteDefaultDouble(3, x)
	}
	body.WriteBitDouble(0)
	body.WritePoint3BD(model.ZAxis)
	body.WriteBit(false)
	if typ == typeMInsert {
		body.WriteBitShort(3)
		body.WriteBitShort(2)
		body.WriteBitDouble(10)
		body.WriteBitDouble(5)
	}
	hs := entityHandles(v, 0, 0, 0, true)
	hs.WriteHandle(5, block)
	return objectRecord(v, typ, body, hs)
}

func TestParseInsertScale(t *testing.T) {
	v := model.AC1015
	tests := []struct {
		mode uint8
		x    float64
		want model.Coord
	}{
		{3, 0, model.Coord{X: 1, Y: 1, Z: 1}},
		{2, 2, model.Coord{X: 2, Y: 2, Z: 2}},
		{0, 2, model.Coord{X: 2, Y: 2, Z: 3}},
	}
	for _, tt := range tests {
		rec := insertRecord(v, typeInsert, 0x70, 0x30, tt.mode, tt.x)
		ins := parseRecord(t, v, typeInsert, rec).entity.(*model.Insert)
		if ins.Scale != tt.want {
			t.Errorf("mode %d: Scale = %v, want %v", tt.mode, ins.Scale, tt.want)
		}
		if ins.BlockRecord != 0x30 {
			t.Errorf("mode %d: BlockRecord = %#x, want 0x30", tt.mode, ins.BlockRecord)
		}
		if ins.ColCount != 1 || ins.RowCount != 1 {
			t.Errorf("mode %d: array = %dx%d, want 1x1", tt.mode, ins.ColCount, ins.RowCount)
		}
	}
}

func TestParseMInsert(t *testing.T) {
	v := model.AC1015
	rec := insertRecord(v, typeMInsert, 0x71, 0x30, 3, 0)
	ins := parseRecord(t, v, typeMInsert, rec).entity.(*model.Insert)
	if ins.ColCount != 3 || ins.RowCount != 2 {
		t.Errorf("array = %dx%d, want 3x2", ins.ColCount, ins.RowCount)
	}
	if ins.ColSpacing != 10 || ins.RowSpacing != 5 {
		t.Errorf("spacing = %v/%v, want 10/5", ins.ColSpacing, ins.RowSpacing)
	}
}

func TestParse3DFace(t *testing.T) {
	v := model.AC1015
	body := entityBody(v, 0x80, true)
	body.WriteBit(true) // no invisibility flags
	body.WriteBit(true) // z is zero
	body.WriteRawDouble(0)
	body.WriteRawDouble(0)
	corners := []model.Coord{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}
	for i := 1; i < len(corners); i++ {
		body.WriteDefaultDouble(corners[i].X, corners[i-1].X)
		body.WriteDefaultDouble(corners[i].Y, corners[i-1].Y)
		body.WriteDefaultDouble(corners[i].Z, corners[i-1].Z)
	}
	rec := objectRecord(v, type3DFace, body, entityHandles(v, 0, 0, 0, true))

	f := parseRecord(t, v, type3DFace, rec).entity.(*model.Face3D)
	for i, c := range corners {
		if f.Corners[i] != c {
			t.Errorf("Corner %d = %v, want %v", i, f.Corners[i], c)
		}
	}
	if f.InvisibleEdges != 0 {
		t.Errorf("InvisibleEdges = %d, want 0", f.InvisibleEdges)
	}
}

func TestParseSolid(t *testing.T) {
	v := model.AC1014
	body := entityBody(v, 0x81, true)
	body.WriteThickness(false, 0)
	body.WriteBitDouble(2)
	for _, c := range []model.Coord{{X: 0}, {X: 1}, {Y: 1}, {X: 1, Y: 1}} {
		body.WritePoint2RD(c)
	}
	body.WriteExtrusion(false, model.ZAxis)
	rec := objectRecord(v, typeSolid, body, entityHandles(v, 0, 0, 0, true))

	s := parseRecord(t, v, typeSolid, rec).entity.(*model.Solid)
	if s.Corners[3] != (model.Coord{X: 1, Y: 1, Z: 2}) {
		t.Errorf("Corner 3 = %v, want (1,1,2)", s.Corners[3])
	}
	if s.Kind() != model.KindSolid {
		t.Errorf("Kind = %v, want SOLID", s.Kind())
	}
}

func TestParseArcAndEllipse(t *testing.T) {
	v := model.AC1015
	body := entityBody(v, 0x82, true)
	body.WritePoint3BD(model.Coord{X: 1})
	body.WriteBitDouble(2)
	body.WriteThickness(true, 0)
	body.WriteExtrusion(true, model.ZAxis)
	body.WriteBitDouble(0)
	body.WriteBitDouble(math.Pi)
	rec := objectRecord(v, typeArc, body, entityHandles(v, 0, 0, 0, true))
	a := parseRecord(t, v, typeArc, rec).entity.(*model.Arc)
	if a.Radius != 2 || a.EndAngle != math.Pi {
		t.Errorf("Arc = r%v %v..%v, want r2 0..π", a.Radius, a.StartAngle, a.EndAngle)
	}

	body = entityBody(v, 0x83, true)
	body.WritePoint3BD(model.Coord{})
	body.WritePoint3BD(model.Coord{X: 10})
	body.WritePoint3BD(model.ZAxis)
	body.WriteBitDouble(2)
	body.WriteBitDouble(0)
	body.WriteBitDouble(math.Pi)
	rec = objectRecord(v, typeEllipse, body, entityHandles(v, 0, 0, 0, true))
	e := parseRecord(t, v, typeEllipse, rec).entity.(*model.Ellipse)
	if e.Ratio != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", e.Ratio)
	}
	if math.Abs(e.MajorAxis.X) > 1e-9 || math.Abs(e.MajorAxis.Y-20) > 1e-9 {
		t.Errorf("MajorAxis = %v, want (0,20)", e.MajorAxis)
	}
}

func TestParseVertex2D(t *testing.T) {
	v := model.AC1015
	body := entityBody(v, 0x90, true)
	body.WriteRawChar(0)
	body.WritePoint3BD(model.Coord{X: 2, Y: 3})
	body.WriteBitDouble(-0.25)
	body.WriteBitDouble(0.5)
	body.WriteBitDouble(0)
	rec := objectRecord(v, typeVertex2D, body, entityHandles(v, 0, 0, 0, true))

	vx := parseRecord(t, v, typeVertex2D, rec).entity.(*model.Vertex)
	if vx.StartWidth != 0.25 || vx.EndWidth != 0.25 {
		t.Errorf("widths = %v/%v, want 0.25/0.25", vx.StartWidth, vx.EndWidth)
	}
	if vx.Bulge != 0.5 {
		t.Errorf("Bulge = %v, want 0.5", vx.Bulge)
	}
}

func TestParseUnsupportedEntity(t *testing.T) {
	v := model.AC1015
	body := entityBody(v, 0x91, true)
	body.WriteBitDouble(1) // some spline data
	rec := objectRecord(v, 36, body, entityHandles(v, 0x10, 0, 0, true))
	d, err := parseEntity(v, binary.NewReader(rec), 36)
	if !errors.Is(err, errUnsupportedType) {
		t.Fatalf("err = %v, want errUnsupportedType", err)
	}
	if d == nil || d.header.common.LayerHandle != 0x10 {
		t.Error("handles of the skipped entity were not read")
	}
}

func TestParseUnsupportedEntityR14Links(t *testing.T) {
	v := model.AC1014
	d, err := parseEntity(v, binary.NewReader(attdefRecord(v, 0x45, 0x40, 0x42)), typeAttDef)
	if !errors.Is(err, errUnsupportedType) {
		t.Fatalf("err = %v, want errUnsupportedType", err)
	}
	require.NotNil(t, d)
	if c := d.header.common; c.PrevEntity != 0x40 || c.NextEntity != 0x42 {
		t.Errorf("links = %#x/%#x, want 0x40/0x42", uint64(c.PrevEntity), uint64(c.NextEntity))
	}
}

func TestIsEntityType(t *testing.T) {
	tests := []struct {
		typ  int
		want bool
	}{
		{typeLine, true},
		{typeLWPolyline, true},
		{typeMText, true},
		{9, false},
		{42, false},
		{typeLayer, false},
		{typeBlockControl, false},
	}
	for _, tt := range tests {
		if got := isEntityType(tt.typ); got != tt.want {
			t.Errorf("isEntityType(%d) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
