package model

// Sink receives a decoded drawing. Tables arrive first, then block
// definitions bracketed by AddBlock and EndBlock, then the entities of
// model and paper space. Payloads carry resolved names wherever the
// referenced table entry was found.
//
// Implementations must not modify the values they receive after the call
// returns if they keep them; the decoder does not reuse them.
type Sink interface {
	AddHeader(h *Header)
	AddLineType(lt *LineType)
	AddLayer(l *Layer)
	AddTextStyle(s *TextStyle)
	AddDimStyle(d *DimStyle)
	AddVport(v *Vport)
	AddAppID(a *AppID)
	AddBlock(b *Block)
	EndBlock()

	AddPoint(e *Point)
	AddLine(e *Line)
	AddRay(e *Ray)
	AddXLine(e *XLine)
	AddCircle(e *Circle)
	AddArc(e *Arc)
	AddEllipse(e *Ellipse)
	AddTrace(e *Trace)
	AddSolid(e *Solid)
	Add3DFace(e *Face3D)
	AddInsert(e *Insert)
	AddLWPolyline(e *LWPolyline)
	AddPolyline(e *Polyline)
	AddText(e *Text)
	AddMText(e *MText)
	AddViewport(e *Viewport)
	AddHatch(e *Hatch)
	AddSpline(e *Spline)
	AddLeader(e *Leader)
	AddDimension(e *Dimension)
}

// NopSink ignores everything. Embed it to implement only some methods.
type NopSink struct{}

func (NopSink) AddHeader(*Header)         {}
func (NopSink) AddLineType(*LineType)     {}
func (NopSink) AddLayer(*Layer)           {}
func (NopSink) AddTextStyle(*TextStyle)   {}
func (NopSink) AddDimStyle(*DimStyle)     {}
func (NopSink) AddVport(*Vport)           {}
func (NopSink) AddAppID(*AppID)           {}
func (NopSink) AddBlock(*Block)           {}
func (NopSink) EndBlock()                 {}
func (NopSink) AddPoint(*Point)           {}
func (NopSink) AddLine(*Line)             {}
func (NopSink) AddRay(*Ray)               {}
func (NopSink) AddXLine(*XLine)           {}
func (NopSink) AddCircle(*Circle)         {}
func (NopSink) AddArc(*Arc)               {}
func (NopSink) AddEllipse(*Ellipse)       {}
func (NopSink) AddTrace(*Trace)           {}
func (NopSink) AddSolid(*Solid)           {}
func (NopSink) Add3DFace(*Face3D)         {}
func (NopSink) AddInsert(*Insert)         {}
func (NopSink) AddLWPolyline(*LWPolyline) {}
func (NopSink) AddPolyline(*Polyline)     {}
func (NopSink) AddText(*Text)             {}
func (NopSink) AddMText(*MText)           {}
func (NopSink) AddViewport(*Viewport)     {}
func (NopSink) AddHatch(*Hatch)           {}
func (NopSink) AddSpline(*Spline)         {}
func (NopSink) AddLeader(*Leader)         {}
func (NopSink) AddDimension(*Dimension)   {}

// Dispatch calls the Sink method matching the concrete entity type. It
// reports false for entities that have no callback of their own (BLOCK
// and VERTEX records are delivered through AddBlock and AddPolyline).
func Dispatch(s Sink, e Entity) bool {
	switch e := e.(type) {
	case *Point:
		s.AddPoint(e)
	case *Line:
		s.AddLine(e)
	case *Ray:
		s.AddRay(e)
	case *XLine:
		s.AddXLine(e)
	case *Circle:
		s.AddCircle(e)
	case *Arc:
		s.AddArc(e)
	case *Ellipse:
		s.AddEllipse(e)
	case *Trace:
		s.AddTrace(e)
	case *Solid:
		s.AddSolid(e)
	case *Face3D:
		s.Add3DFace(e)
	case *Insert:
		s.AddInsert(e)
	case *LWPolyline:
		s.AddLWPolyline(e)
	case *Polyline:
		s.AddPolyline(e)
	case *Text:
		s.AddText(e)
	case *MText:
		s.AddMText(e)
	case *Viewport:
		s.AddViewport(e)
	case *Hatch:
		s.AddHatch(e)
	case *Spline:
		s.AddSpline(e)
	case *Leader:
		s.AddLeader(e)
	case *Dimension:
		s.AddDimension(e)
	default:
		return false
	}
	return true
}
