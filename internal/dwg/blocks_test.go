package dwg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/dyuri/dwgconv/internal/model"
)

func TestWalker(t *testing.T) {
	w := newWalker(3)
	for _, h := range []model.Handle{1, 2} {
		if !w.visit(h) {
			t.Errorf("visit(%d) = false, want true", h)
		}
	}
	if w.visit(1) {
		t.Error("repeated handle visited twice")
	}
	if w.visit(0) {
		t.Error("null handle visited")
	}
	if !w.visit(3) {
		t.Error("visit(3) = false, want true")
	}
	if w.visit(4) {
		t.Error("walker went past its step limit")
	}
}

func polylineRecord(v model.Version, h, first, last, seqEnd model.Handle) []byte {
	body := entityBody(v, h, true)
	body.WriteBitShort(model.PolylineClosed)
	body.WriteBitShort(0)
	body.WriteBitDouble(0)
	body.WriteBitDouble(0)
	body.WriteThickness(false, 0)
	body.WriteBitDouble(0)
	body.WriteExtrusion(false, model.ZAxis)
	hs := entityHandles(v, 0, 0, 0, true)
	hs.WriteHandle(4, first)
	hs.WriteHandle(4, last)
	hs.WriteHandle(3, seqEnd)
	return objectRecord(v, typePolyline2D, body, hs)
}

func vertexRecord(v model.Version, h model.Handle, pos model.Coord) []byte {
	body := entityBody(v, h, true)
	body.WriteRawChar(0)
	body.WritePoint3BD(pos)
	body.WriteBitDouble(0)
	body.WriteBitDouble(0)
	body.WriteBitDouble(0)
	body.WriteBitDouble(0)
	return objectRecord(v, typeVertex2D, body, entityHandles(v, 0, 0, 0, true))
}

func seqEndRecord(v model.Version, h model.Handle) []byte {
	body := entityBody(v, h, true)
	return objectRecord(v, typeSeqEnd, body, entityHandles(v, 0, 0, 0, true))
}

// TestDecodePolylineVertices tests that the vertices of a heavy polyline
// are gathered into it and not emitted on their own
func TestDecodePolylineVertices(t *testing.T) {
	v := model.AC1014
	f := newFixture(v)
	f.add(0x60, polylineRecord(v, 0x60, 0x61, 0x63, 0x64))
	f.add(0x61, vertexRecord(v, 0x61, model.Coord{X: 0, Y: 0}))
	f.add(0x62, vertexRecord(v, 0x62, model.Coord{X: 5, Y: 0}))
	f.add(0x63, vertexRecord(v, 0x63, model.Coord{X: 5, Y: 5}))
	f.add(0x64, seqEndRecord(v, 0x64))

	dr, res, err := decodeBytes(f.bytes())
	require.NoError(t, err)
	require.Len(t, dr.Entities, 1)

	p, ok := dr.Entities[0].(*model.Polyline)
	require.True(t, ok, "entity is %T", dr.Entities[0])
	require.Len(t, p.Vertices, 3)
	if p.Vertices[2].Position != (model.Coord{X: 5, Y: 5}) {
		t.Errorf("Vertex 2 = %v, want (5,5)", p.Vertices[2].Position)
	}
	if p.Flags&model.PolylineClosed == 0 {
		t.Error("polyline is not closed")
	}
	if res.Entities != 1 {
		t.Errorf("Entities = %d, want 1", res.Entities)
	}
}

// TestDecodeBlockChainSkipsUnsupported tests that an unparsed entity in
// the middle of a pre-2000 block list keeps the chain intact
func TestDecodeBlockChainSkipsUnsupported(t *testing.T) {
	v := model.AC1014
	f := newFixture(v)
	f.add(0x01, controlRecord(v, typeBlockControl, 0x01, []model.Handle{0x30}, 2))
	f.add(0x30, blockRecord(v, 0x30, 0x01, "TAGGED", 0x31, 0x40, 0x42, 0x32))
	f.add(0x31, blockEntityRecord(v, 0x31, "TAGGED"))
	f.add(0x32, endBlockRecord(v, 0x32))
	f.add(0x40, linkedLineRecord(v, 0x40, 0, 0x45, model.Coord{}, model.Coord{X: 1}))
	f.add(0x45, attdefRecord(v, 0x45, 0x40, 0x42))
	f.add(0x42, linkedLineRecord(v, 0x42, 0x45, 0, model.Coord{X: 1}, model.Coord{X: 1, Y: 1}))

	dr, res, err := decodeBytes(f.bytes())
	require.NoError(t, err)
	require.Len(t, dr.Blocks, 1)
	var got []model.Handle
	for _, e := range dr.Blocks[0].Entities {
		got = append(got, e.Common().Handle)
	}
	if diff := cmp.Diff([]model.Handle{0x40, 0x42}, got); diff != "" {
		t.Errorf("block entities mismatch (-want +got):\n%s", diff)
	}
	if len(dr.Entities) != 0 {
		t.Errorf("Got %d top-level entities, want 0", len(dr.Entities))
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
}

// TestDecodeBlockContent tests a block with entities next to a model
// space entity
func TestDecodeBlockContent(t *testing.T) {
	v := model.AC1014
	f := newFixture(v)
	f.add(0x01, controlRecord(v, typeBlockControl, 0x01, []model.Handle{0x30}, 2))
	f.add(0x30, blockRecord(v, 0x30, 0x01, "BOX", 0x31, 0x40, 0x41, 0x32))
	f.add(0x31, blockEntityRecord(v, 0x31, "BOX"))
	f.add(0x32, endBlockRecord(v, 0x32))
	f.add(0x40, linkedLineRecord(v, 0x40, 0, 0x41, model.Coord{}, model.Coord{X: 1}))
	f.add(0x41, linkedLineRecord(v, 0x41, 0x40, 0, model.Coord{X: 1}, model.Coord{X: 1, Y: 1}))
	f.add(0x50, lineRecord(v, 0x50, 0, model.Coord{}, model.Coord{Y: 9}))

	dr, res, err := decodeBytes(f.bytes())
	require.NoError(t, err)
	require.Len(t, dr.Blocks, 1)
	if got := len(dr.Blocks[0].Entities); got != 2 {
		t.Errorf("Got %d block entities, want 2", got)
	}
	require.Len(t, dr.Entities, 1)
	if dr.Entities[0].Common().Handle != 0x50 {
		t.Errorf("top-level entity = %#x, want 0x50", dr.Entities[0].Common().Handle)
	}
	if res.Blocks != 1 {
		t.Errorf("Blocks = %d, want 1", res.Blocks)
	}
}
