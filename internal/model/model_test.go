package model

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		sig  string
		want Version
	}{
		{"AC1014", AC1014},
		{"AC1015", AC1015},
		{"AC1018", AC1018},
		{"AC1032", AC1032},
		{"AC1099", VersionUnknown},
		{"ac1015", VersionUnknown},
		{"AC101", VersionUnknown},
		{"MC0.0\x00", VersionUnknown},
	}
	for _, tt := range tests {
		if got := ParseVersion(tt.sig); got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.sig, got, tt.want)
		}
	}
	if AC1015.String() != "AC1015" || AC1015.Release() != "R2000" {
		t.Errorf("AC1015 = %s/%s", AC1015.String(), AC1015.Release())
	}
}

func TestLineWidth(t *testing.T) {
	if w := LineWidthFromDWG(7); w.DXF() != 25 {
		t.Errorf("LineWidthFromDWG(7).DXF() = %d, want 25", w.DXF())
	}
	if w := LineWidthFromDWG(29); w != WidthByLayer {
		t.Errorf("LineWidthFromDWG(29) = %d, want ByLayer", w)
	}
	if w := LineWidthFromDWG(26); w != WidthDefault {
		t.Errorf("LineWidthFromDWG(26) = %d, want Default", w)
	}
	if w := LineWidthFromDXF(27); w != 7 {
		t.Errorf("LineWidthFromDXF(27) = %d, want 7", w)
	}
	if w := LineWidthFromDXF(-2); w != WidthByBlock {
		t.Errorf("LineWidthFromDXF(-2) = %d, want ByBlock", w)
	}
}

func TestDrawingCollectsBlocks(t *testing.T) {
	d := NewDrawing()
	d.AddLayer(&Layer{TableEntry: TableEntry{Name: "Walls"}})
	d.AddBlock(&Block{Name: "DOOR"})
	d.AddLine(&Line{})
	d.EndBlock()
	d.AddCircle(&Circle{Radius: 2})

	if d.Layer("WALLS") == nil {
		t.Error("layer lookup is case sensitive")
	}
	b := d.Block("door")
	if b == nil || len(b.Entities) != 1 {
		t.Fatalf("block DOOR = %+v, want one entity", b)
	}
	if len(d.Entities) != 1 || d.Entities[0].Kind() != KindCircle {
		t.Errorf("top-level entities = %v", d.Entities)
	}

	var got []Kind
	rec := &kindRecorder{kinds: &got}
	d.Replay(rec)
	if len(got) != 2 || got[0] != KindLine || got[1] != KindCircle {
		t.Errorf("Replay kinds = %v, want [LINE CIRCLE]", got)
	}
}

type kindRecorder struct {
	NopSink
	kinds *[]Kind
}

func (r *kindRecorder) AddLine(e *Line)     { *r.kinds = append(*r.kinds, e.Kind()) }
func (r *kindRecorder) AddCircle(e *Circle) { *r.kinds = append(*r.kinds, e.Kind()) }
