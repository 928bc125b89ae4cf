package model

import "strings"

// BlockDef is a block definition together with the entities it owns.
type BlockDef struct {
	Block    *Block
	Entities []Entity
}

// Drawing collects everything a decoder emits. It implements Sink and
// can replay its content into another Sink.
type Drawing struct {
	Header     *Header
	LineTypes  []*LineType
	Layers     []*Layer
	TextStyles []*TextStyle
	DimStyles  []*DimStyle
	Vports     []*Vport
	AppIDs     []*AppID
	Blocks     []*BlockDef
	Entities   []Entity

	current *BlockDef
}

// NewDrawing returns an empty drawing with an empty header.
func NewDrawing() *Drawing {
	return &Drawing{Header: NewHeader()}
}

// Layer looks a layer up by name, ignoring case like CAD applications do.
func (d *Drawing) Layer(name string) *Layer {
	for _, l := range d.Layers {
		if strings.EqualFold(l.Name, name) {
			return l
		}
	}
	return nil
}

// LineType looks a line type up by name.
func (d *Drawing) LineType(name string) *LineType {
	for _, lt := range d.LineTypes {
		if strings.EqualFold(lt.Name, name) {
			return lt
		}
	}
	return nil
}

// Block looks a block definition up by name.
func (d *Drawing) Block(name string) *BlockDef {
	for _, b := range d.Blocks {
		if strings.EqualFold(b.Block.Name, name) {
			return b
		}
	}
	return nil
}

// AllEntities returns the entities of all blocks followed by the
// top-level entities.
func (d *Drawing) AllEntities() []Entity {
	var out []Entity
	for _, b := range d.Blocks {
		out = append(out, b.Entities...)
	}
	return append(out, d.Entities...)
}

func (d *Drawing) add(e Entity) {
	if d.current != nil {
		d.current.Entities = append(d.current.Entities, e)
		return
	}
	d.Entities = append(d.Entities, e)
}

func (d *Drawing) AddHeader(h *Header)         { d.Header = h }
func (d *Drawing) AddLineType(lt *LineType)    { d.LineTypes = append(d.LineTypes, lt) }
func (d *Drawing) AddLayer(l *Layer)           { d.Layers = append(d.Layers, l) }
func (d *Drawing) AddTextStyle(s *TextStyle)   { d.TextStyles = append(d.TextStyles, s) }
func (d *Drawing) AddDimStyle(s *DimStyle)     { d.DimStyles = append(d.DimStyles, s) }
func (d *Drawing) AddVport(v *Vport)           { d.Vports = append(d.Vports, v) }
func (d *Drawing) AddAppID(a *AppID)           { d.AppIDs = append(d.AppIDs, a) }
func (d *Drawing) AddPoint(e *Point)           { d.add(e) }
func (d *Drawing) AddLine(e *Line)             { d.add(e) }
func (d *Drawing) AddRay(e *Ray)               { d.add(e) }
func (d *Drawing) AddXLine(e *XLine)           { d.add(e) }
func (d *Drawing) AddCircle(e *Circle)         { d.add(e) }
func (d *Drawing) AddArc(e *Arc)               { d.add(e) }
func (d *Drawing) AddEllipse(e *Ellipse)       { d.add(e) }
func (d *Drawing) AddTrace(e *Trace)           { d.add(e) }
func (d *Drawing) AddSolid(e *Solid)           { d.add(e) }
func (d *Drawing) Add3DFace(e *Face3D)         { d.add(e) }
func (d *Drawing) AddInsert(e *Insert)         { d.add(e) }
func (d *Drawing) AddLWPolyline(e *LWPolyline) { d.add(e) }
func (d *Drawing) AddPolyline(e *Polyline)     { d.add(e) }
func (d *Drawing) AddText(e *Text)             { d.add(e) }
func (d *Drawing) AddMText(e *MText)           { d.add(e) }
func (d *Drawing) AddViewport(e *Viewport)     { d.add(e) }
func (d *Drawing) AddHatch(e *Hatch)           { d.add(e) }
func (d *Drawing) AddSpline(e *Spline)         { d.add(e) }
func (d *Drawing) AddLeader(e *Leader)         { d.add(e) }
func (d *Drawing) AddDimension(e *Dimension)   { d.add(e) }

// AddBlock opens a block definition; entities go into it until EndBlock.
func (d *Drawing) AddBlock(b *Block) {
	d.current = &BlockDef{Block: b}
	d.Blocks = append(d.Blocks, d.current)
}

func (d *Drawing) EndBlock() { d.current = nil }

// Replay emits the drawing into s in decoder order.
func (d *Drawing) Replay(s Sink) {
	if d.Header != nil {
		s.AddHeader(d.Header)
	}
	for _, lt := range d.LineTypes {
		s.AddLineType(lt)
	}
	for _, l := range d.Layers {
		s.AddLayer(l)
	}
	for _, st := range d.TextStyles {
		s.AddTextStyle(st)
	}
	for _, ds := range d.DimStyles {
		s.AddDimStyle(ds)
	}
	for _, v := range d.Vports {
		s.AddVport(v)
	}
	for _, a := range d.AppIDs {
		s.AddAppID(a)
	}
	for _, b := range d.Blocks {
		s.AddBlock(b.Block)
		for _, e := range b.Entities {
			Dispatch(s, e)
		}
		s.EndBlock()
	}
	for _, e := range d.Entities {
		Dispatch(s, e)
	}
}
