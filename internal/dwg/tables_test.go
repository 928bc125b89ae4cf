package dwg

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

func TestParseObjectControlExtras(t *testing.T) {
	v := model.AC1015
	body := objectBody(v, 0x01)
	body.WriteBitLong(1)
	hs := binary.NewWriter()
	hs.WriteHandle(4, 0)
	hs.WriteHandle(3, 0)
	hs.WriteHandle(2, 0x30)
	hs.WriteHandle(3, 0x1F)
	hs.WriteHandle(3, 0x20)
	rec := objectRecord(v, typeBlockControl, body, hs)

	c, err := parseObjectControl(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseObjectControl failed: %v", err)
	}
	if diff := cmp.Diff([]model.Handle{0x30}, c.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Handle{0x1F, 0x20}, c.Extra); diff != "" {
		t.Errorf("Extra mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDimStyleControl(t *testing.T) {
	v := model.AC1015
	body := objectBody(v, 0x0A)
	body.WriteBitLong(1)
	body.WriteRawChar(1)
	hs := binary.NewWriter()
	hs.WriteHandle(4, 0)
	hs.WriteHandle(3, 0)
	hs.WriteHandle(2, 0x1D)
	hs.WriteHandle(5, 0x88)
	rec := objectRecord(v, typeDimStyleControl, body, hs)

	c, err := parseObjectControl(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseObjectControl failed: %v", err)
	}
	if len(c.Entries) != 1 || c.Entries[0] != 0x1D {
		t.Errorf("Entries = %v, want [0x1D]", c.Entries)
	}
	if len(c.Extra) != 1 || c.Extra[0] != 0x88 {
		t.Errorf("Extra = %v, want [0x88]", c.Extra)
	}
}

func TestParseObjectControlHugeCount(t *testing.T) {
	v := model.AC1014
	body := objectBody(v, 0x02)
	body.WriteBitLong(1 << 28)
	hs := binary.NewWriter()
	hs.WriteHandle(4, 0)
	hs.WriteHandle(3, 0)
	rec := objectRecord(v, typeLayerControl, body, hs)
	if _, err := parseObjectControl(v, binary.NewReader(rec)); err == nil {
		t.Error("expected error for an entry count beyond the record")
	}
}

func TestParseLineType(t *testing.T) {
	v := model.AC1014
	body := objectBody(v, 0x14)
	tableName(v, body, "DASHED")
	body.WriteText("__ __ __")
	body.WriteBitDouble(0.75)
	body.WriteRawChar('A')
	body.WriteRawChar(2)
	for _, l := range []float64{0.5, -0.25} {
		body.WriteBitDouble(l)
		body.WriteBitShort(0)
		body.WriteRawDouble(0)
		body.WriteRawDouble(0)
		body.WriteBitDouble(1)
		body.WriteBitDouble(0)
		body.WriteBitShort(0)
	}
	body.WriteBytes(make([]byte, 256))
	rec := objectRecord(v, typeLType, body, tableHandles(0x05))

	lt, err := parseLineType(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseLineType failed: %v", err)
	}
	if lt.Name != "DASHED" || lt.Description != "__ __ __" {
		t.Errorf("LineType = %q %q, want DASHED", lt.Name, lt.Description)
	}
	if lt.Alignment != 'A' || lt.Length != 0.75 {
		t.Errorf("Alignment/Length = %c/%v, want A/0.75", lt.Alignment, lt.Length)
	}
	if len(lt.Dashes) != 2 || lt.Dashes[1].Length != -0.25 || lt.Dashes[0].Scale != 1 {
		t.Errorf("Dashes = %+v", lt.Dashes)
	}
	if lt.Owner != 0x05 {
		t.Errorf("Owner = %#x, want 0x05", lt.Owner)
	}
}

func TestParseTextStyle(t *testing.T) {
	v := model.AC1015
	body := objectBody(v, 0x11)
	tableName(v, body, "ROMANS")
	body.WriteBit(true)
	body.WriteBit(false)
	body.WriteBitDouble(0)
	body.WriteBitDouble(0.9)
	body.WriteBitDouble(math.Pi / 12)
	body.WriteRawChar(2)
	body.WriteBitDouble(2.5)
	body.WriteText("romans.shx")
	body.WriteText("")
	rec := objectRecord(v, typeStyle, body, tableHandles(0x03))

	s, err := parseTextStyle(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseTextStyle failed: %v", err)
	}
	if s.Flags != 4 {
		t.Errorf("Flags = %d, want 4", s.Flags)
	}
	if math.Abs(s.Oblique-15) > 1e-9 {
		t.Errorf("Oblique = %v, want 15", s.Oblique)
	}
	if s.Width != 0.9 || s.GenFlag != 2 || s.LastHeight != 2.5 {
		t.Errorf("Width/GenFlag/LastHeight = %v/%d/%v", s.Width, s.GenFlag, s.LastHeight)
	}
	if s.Font != "romans.shx" {
		t.Errorf("Font = %q, want romans.shx", s.Font)
	}
}

func TestParseAppID(t *testing.T) {
	v := model.AC1015
	body := objectBody(v, 0x12)
	tableName(v, body, "ACAD")
	body.WriteRawChar(0)
	rec := objectRecord(v, typeAppID, body, tableHandles(0x09))

	a, err := parseAppID(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseAppID failed: %v", err)
	}
	if a.Name != "ACAD" || a.Owner != 0x09 {
		t.Errorf("AppID = %q owned by %#x, want ACAD by 0x09", a.Name, a.Owner)
	}
}

func TestParseVport(t *testing.T) {
	v := model.AC1014
	body := objectBody(v, 0x29)
	tableName(v, body, "*ACTIVE")
	body.WriteBitDouble(10)
	body.WriteBitDouble(15)
	body.WritePoint2RD(model.Coord{X: 5, Y: 5})
	body.WritePoint3BD(model.Coord{})
	body.WritePoint3BD(model.ZAxis)
	body.WriteBitDouble(0)
	body.WriteBitDouble(50)
	body.WriteBitDouble(0)
	body.WriteBitDouble(0)
	for i := 0; i < 4; i++ {
		body.WriteBit(false)
	}
	body.WritePoint2RD(model.Coord{})
	body.WritePoint2RD(model.Coord{X: 1, Y: 1})
	rec := objectRecord(v, typeVport, body, tableHandles(0x08))

	vp, err := parseVport(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseVport failed: %v", err)
	}
	if vp.Height != 10 || vp.Ratio != 1.5 {
		t.Errorf("Height/Ratio = %v/%v, want 10/1.5", vp.Height, vp.Ratio)
	}
	if vp.Center != (model.Coord{X: 5, Y: 5}) || vp.ViewDir != model.ZAxis {
		t.Errorf("Center/ViewDir = %v/%v", vp.Center, vp.ViewDir)
	}
	if vp.LensLength != 50 || vp.UpperRight != (model.Coord{X: 1, Y: 1}) {
		t.Errorf("LensLength/UpperRight = %v/%v", vp.LensLength, vp.UpperRight)
	}
}

func TestParseBlockRecordR2000(t *testing.T) {
	v := model.AC1015
	body := objectBody(v, 0x1F)
	tableName(v, body, "DOOR")
	body.WriteBit(false)
	body.WriteBit(true) // has attributes
	body.WriteBit(false)
	body.WriteBit(false)
	body.WriteBit(false)
	body.WritePoint3BD(model.Coord{X: 1, Y: 2})
	body.WriteText("")
	body.WriteRawChar(1)
	body.WriteRawChar(1)
	body.WriteRawChar(0)
	body.WriteText("a door")
	body.WriteBitLong(3)
	body.WriteBytes([]byte{1, 2, 3})

	hs := tableHandles(0x01)
	hs.WriteHandle(3, 0x20)
	hs.WriteHandle(4, 0x21)
	hs.WriteHandle(4, 0x22)
	hs.WriteHandle(3, 0x23)
	hs.WriteHandle(4, 0x40)
	hs.WriteHandle(4, 0x41)
	hs.WriteHandle(5, 0x50)
	rec := objectRecord(v, typeBlockHeader, body, hs)

	b, err := parseBlockRecord(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseBlockRecord failed: %v", err)
	}
	if b.Name != "DOOR" || b.Flags != blockHasAttribs {
		t.Errorf("Name/Flags = %q/%d, want DOOR/%d", b.Name, b.Flags, blockHasAttribs)
	}
	if b.BasePoint != (model.Coord{X: 1, Y: 2}) || b.Description != "a door" {
		t.Errorf("BasePoint/Description = %v/%q", b.BasePoint, b.Description)
	}
	if b.Block != 0x20 || b.FirstEntity != 0x21 || b.LastEntity != 0x22 || b.EndBlock != 0x23 {
		t.Errorf("handles = %#x %#x %#x %#x, want 0x20 0x21 0x22 0x23", b.Block, b.FirstEntity, b.LastEntity, b.EndBlock)
	}
	if diff := cmp.Diff([]model.Handle{0x40, 0x41}, b.Inserts); diff != "" {
		t.Errorf("Inserts mismatch (-want +got):\n%s", diff)
	}
	if b.Layout != 0x50 {
		t.Errorf("Layout = %#x, want 0x50", b.Layout)
	}
}

func TestParseBlockRecordR2004(t *testing.T) {
	v := model.AC1018
	body := objectBody(v, 0x1F)
	tableName(v, body, "*U1")
	body.WriteBit(true) // anonymous
	body.WriteBit(false)
	body.WriteBit(false)
	body.WriteBit(false)
	body.WriteBit(false)
	body.WriteBitLong(2)
	body.WritePoint3BD(model.Coord{})
	body.WriteText("")
	body.WriteRawChar(0)
	body.WriteText("")
	body.WriteBitLong(0)

	hs := tableHandles(0x01)
	hs.WriteHandle(3, 0x20)
	hs.WriteHandle(4, 0x30)
	hs.WriteHandle(4, 0x31)
	hs.WriteHandle(3, 0x23)
	hs.WriteHandle(5, 0)
	rec := objectRecord(v, typeBlockHeader, body, hs)

	b, err := parseBlockRecord(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseBlockRecord failed: %v", err)
	}
	if b.Flags != blockAnonymous {
		t.Errorf("Flags = %d, want %d", b.Flags, blockAnonymous)
	}
	if diff := cmp.Diff([]model.Handle{0x30, 0x31}, b.Entities); diff != "" {
		t.Errorf("Entities mismatch (-want +got):\n%s", diff)
	}
	if b.EndBlock != 0x23 {
		t.Errorf("EndBlock = %#x, want 0x23", b.EndBlock)
	}
}

func TestParseLayerR2000Flags(t *testing.T) {
	v := model.AC1015
	rec := layerRecord(v, 0x10, 0x02, "WALLS", 1)
	l, err := parseLayer(v, binary.NewReader(rec))
	if err != nil {
		t.Fatalf("parseLayer failed: %v", err)
	}
	if l.Name != "WALLS" || l.Color != 1 {
		t.Errorf("Layer = %q color %d, want WALLS color 1", l.Name, l.Color)
	}
	if !l.Plot {
		t.Error("Plot = false, want true")
	}
	if l.Flags&model.FlagFrozen != 0 {
		t.Error("layer decoded as frozen")
	}
}
