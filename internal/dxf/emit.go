package dxf

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dyuri/dwgconv/internal/model"
)

// mtextChunk is the longest piece of an MTEXT value per group.
const mtextChunk = 250

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
func radians(deg float64) float64 { return deg * math.Pi / 180 }

// writeEntity emits one entity owned by the block record owner.
func (e *Encoder) writeEntity(ent model.Entity, owner model.Handle) {
	o := e.out
	r12 := !e.handles()
	switch ent := ent.(type) {
	case *model.Point:
		e.common(ent, "POINT", "AcDbPoint", owner)
		o.point(10, ent.Position)
		e.thickness(ent.Thickness)
		e.extrusion(ent.Extrusion)
		if ent.XAxisAngle != 0 {
			o.float(50, degrees(ent.XAxisAngle))
		}
	case *model.Line:
		e.common(ent, "LINE", "AcDbLine", owner)
		e.thickness(ent.Thickness)
		o.point(10, ent.Start)
		o.point(11, ent.End)
		e.extrusion(ent.Extrusion)
	case *model.Ray:
		if r12 {
			e.skip(ent)
			return
		}
		e.common(ent, "RAY", "AcDbRay", owner)
		o.point(10, ent.Origin)
		o.point(11, ent.Direction)
	case *model.XLine:
		if r12 {
			e.skip(ent)
			return
		}
		e.common(ent, "XLINE", "AcDbXline", owner)
		o.point(10, ent.Origin)
		o.point(11, ent.Direction)
	case *model.Circle:
		e.common(ent, "CIRCLE", "AcDbCircle", owner)
		e.thickness(ent.Thickness)
		o.point(10, ent.Center)
		o.float(40, ent.Radius)
		e.extrusion(ent.Extrusion)
	case *model.Arc:
		e.common(ent, "ARC", "AcDbCircle", owner)
		e.thickness(ent.Thickness)
		o.point(10, ent.Center)
		o.float(40, ent.Radius)
		e.extrusion(ent.Extrusion)
		if e.handles() {
			o.str(100, "AcDbArc")
		}
		o.float(50, degrees(ent.StartAngle))
		o.float(51, degrees(ent.EndAngle))
	case *model.Ellipse:
		if r12 {
			e.skip(ent)
			return
		}
		e.common(ent, "ELLIPSE", "AcDbEllipse", owner)
		o.point(10, ent.Center)
		o.point(11, ent.MajorAxis)
		e.extrusion(ent.Extrusion)
		o.float(40, ent.Ratio)
		o.float(41, ent.StartParam)
		o.float(42, ent.EndParam)
	case *model.Solid:
		e.quad(&ent.Trace, ent, "SOLID", owner)
	case *model.Trace:
		e.quad(ent, ent, "TRACE", owner)
	case *model.Face3D:
		e.common(ent, "3DFACE", "AcDbFace", owner)
		for i, c := range ent.Corners {
			o.point(10+i, c)
		}
		if ent.InvisibleEdges != 0 {
			o.integer(70, ent.InvisibleEdges)
		}
	case *model.Insert:
		e.insert(ent, owner)
	case *model.LWPolyline:
		if r12 {
			e.lwAsPolyline(ent)
			return
		}
		e.lwpolyline(ent, owner)
	case *model.Polyline:
		e.polyline(ent, owner)
	case *model.Text:
		e.text(ent, owner)
	case *model.MText:
		if r12 {
			e.skip(ent)
			return
		}
		e.mtext(ent, owner)
	case *model.Viewport:
		e.viewport(ent, owner)
	case *model.Hatch:
		if r12 {
			e.skip(ent)
			return
		}
		e.hatch(ent, owner)
	case *model.Spline:
		if r12 {
			e.skip(ent)
			return
		}
		e.spline(ent, owner)
	case *model.Leader:
		if r12 {
			e.skip(ent)
			return
		}
		e.leader(ent, owner)
	case *model.Dimension:
		e.dimension(ent, owner)
	default:
		e.skip(ent)
	}
}

func (e *Encoder) skip(ent model.Entity) {
	e.skipped++
	e.log.WithField("kind", ent.Kind()).Debugf("%s not representable in %s", ent.Kind(), e.opts.Version.Release())
}

// common writes the entity prologue up to and including the subclass
// marker of the concrete type.
func (e *Encoder) common(ent model.Entity, name, subclass string, owner model.Handle) {
	o := e.out
	c := ent.Common()
	o.str(0, name)
	if e.handles() {
		o.handle(5, e.plan.handle(ent))
		if e.opts.Version >= model.AC1015 {
			o.handle(330, owner)
		}
		o.str(100, "AcDbEntity")
	}
	if c.Space == model.PaperSpace {
		o.integer(67, 1)
	}
	o.text(8, layerName(c.Layer))
	if c.LineType != "" && !strings.EqualFold(c.LineType, "BYLAYER") {
		o.text(6, SanitizeName(c.LineType))
	}
	if c.Color != model.ColorByLayer {
		o.integer(62, c.Color)
	}
	if e.opts.Version >= model.AC1015 && c.LineWeight != model.WidthByLayer {
		o.integer(370, c.LineWeight.DXF())
	}
	if c.LineTypeScale != 1 && c.LineTypeScale != 0 {
		o.float(48, c.LineTypeScale)
	}
	if !c.Visible {
		o.integer(60, 1)
	}
	if subclass != "" && e.handles() {
		o.str(100, subclass)
	}
}

func (e *Encoder) thickness(t float64) {
	if t != 0 {
		e.out.float(39, t)
	}
}

func (e *Encoder) extrusion(n model.Coord) {
	if model.HasExtrusion(n) {
		e.out.point(210, n)
	}
}

func (e *Encoder) quad(t *model.Trace, ent model.Entity, name string, owner model.Handle) {
	e.common(ent, name, "AcDbTrace", owner)
	e.thickness(t.Thickness)
	for i, c := range t.Corners {
		e.out.point(10+i, c)
	}
	e.extrusion(t.Extrusion)
}

func (e *Encoder) insert(ins *model.Insert, owner model.Handle) {
	o := e.out
	array := ins.ColCount > 1 || ins.RowCount > 1
	subclass := "AcDbBlockReference"
	if array {
		subclass = "AcDbMInsertBlock"
	}
	e.common(ins, "INSERT", subclass, owner)
	if ins.HasAttribs {
		o.integer(66, 1)
	}
	o.text(2, SanitizeName(ins.BlockName))
	o.point(10, ins.Position)
	if ins.Scale.X != 1 {
		o.float(41, ins.Scale.X)
	}
	if ins.Scale.Y != 1 {
		o.float(42, ins.Scale.Y)
	}
	if ins.Scale.Z != 1 {
		o.float(43, ins.Scale.Z)
	}
	if ins.Angle != 0 {
		o.float(50, degrees(ins.Angle))
	}
	if array {
		o.integer(70, ins.ColCount)
		o.integer(71, ins.RowCount)
		o.float(44, ins.ColSpacing)
		o.float(45, ins.RowSpacing)
	}
	e.extrusion(ins.Extrusion)
}

func (e *Encoder) lwpolyline(p *model.LWPolyline, owner model.Handle) {
	o := e.out
	e.common(p, "LWPOLYLINE", "AcDbPolyline", owner)
	o.integer(90, len(p.Vertices))
	o.integer(70, p.Flags)
	if p.Width != 0 {
		o.float(43, p.Width)
	}
	if p.Elevation != 0 {
		o.float(38, p.Elevation)
	}
	e.thickness(p.Thickness)
	for _, v := range p.Vertices {
		o.float(10, v.X)
		o.float(20, v.Y)
		if v.StartWidth != p.Width || v.EndWidth != p.Width {
			o.float(40, v.StartWidth)
			o.float(41, v.EndWidth)
		}
		if v.Bulge != 0 {
			o.float(42, v.Bulge)
		}
		if e.opts.Version >= model.AC1024 && v.ID != 0 {
			o.integer(91, v.ID)
		}
	}
	e.extrusion(p.Extrusion)
}

// lwAsPolyline writes a lightweight polyline as POLYLINE/VERTEX/SEQEND
// for R12, which has no LWPOLYLINE.
func (e *Encoder) lwAsPolyline(p *model.LWPolyline) {
	o := e.out
	e.common(p, "POLYLINE", "", 0)
	o.integer(66, 1)
	o.point(10, model.Coord{Z: p.Elevation})
	o.integer(70, p.Flags&model.PolylineClosed)
	if p.Width != 0 {
		o.float(40, p.Width)
		o.float(41, p.Width)
	}
	e.thickness(p.Thickness)
	e.extrusion(p.Extrusion)
	for _, v := range p.Vertices {
		o.str(0, "VERTEX")
		o.text(8, layerName(p.Layer))
		o.point(10, model.Coord{X: v.X, Y: v.Y, Z: p.Elevation})
		if v.StartWidth != 0 || v.EndWidth != 0 {
			o.float(40, v.StartWidth)
			o.float(41, v.EndWidth)
		}
		if v.Bulge != 0 {
			o.float(42, v.Bulge)
		}
	}
	o.str(0, "SEQEND")
	o.text(8, layerName(p.Layer))
}

func polylineSubclass(flags int) (string, string) {
	switch {
	case flags&model.Polyline3D != 0:
		return "AcDb3dPolyline", "AcDb3dPolylineVertex"
	case flags&model.PolylinePolyMesh != 0:
		return "AcDbPolygonMesh", "AcDbPolygonMeshVertex"
	case flags&64 != 0:
		return "AcDbPolyFaceMesh", "AcDbPolyFaceMeshVertex"
	}
	return "AcDb2dPolyline", "AcDb2dVertex"
}

func (e *Encoder) polyline(p *model.Polyline, owner model.Handle) {
	o := e.out
	sub, vsub := polylineSubclass(p.Flags)
	e.common(p, "POLYLINE", sub, owner)
	o.integer(66, 1)
	o.point(10, model.Coord{Z: p.Elevation})
	e.thickness(p.Thickness)
	o.integer(70, p.Flags)
	if p.StartWidth != 0 {
		o.float(40, p.StartWidth)
	}
	if p.EndWidth != 0 {
		o.float(41, p.EndWidth)
	}
	if p.CurveType != 0 {
		o.integer(75, p.CurveType)
	}
	e.extrusion(p.Extrusion)

	self := e.plan.handle(p)
	for _, v := range p.Vertices {
		e.common(v, "VERTEX", "AcDbVertex", self)
		if e.handles() {
			o.str(100, vsub)
		}
		o.point(10, v.Position)
		if v.StartWidth != 0 {
			o.float(40, v.StartWidth)
		}
		if v.EndWidth != 0 {
			o.float(41, v.EndWidth)
		}
		if v.Bulge != 0 {
			o.float(42, v.Bulge)
		}
		o.integer(70, v.Flags)
		if v.TangentDir != 0 {
			o.float(50, degrees(v.TangentDir))
		}
		if e.opts.Version >= model.AC1024 && v.ID != 0 {
			o.integer(91, v.ID)
		}
	}
	o.str(0, "SEQEND")
	if e.handles() {
		o.handle(5, e.plan.seqEnds[p])
		if e.opts.Version >= model.AC1015 {
			o.handle(330, self)
		}
		o.str(100, "AcDbEntity")
	}
	if p.Space == model.PaperSpace {
		o.integer(67, 1)
	}
	o.text(8, layerName(p.Layer))
}

func (e *Encoder) text(t *model.Text, owner model.Handle) {
	o := e.out
	e.common(t, "TEXT", "AcDbText", owner)
	e.thickness(t.Thickness)
	o.point(10, t.Position)
	o.float(40, t.Height)
	o.text(1, t.Value)
	if t.Rotation != 0 {
		o.float(50, t.Rotation)
	}
	if t.WidthScale != 1 {
		o.float(41, t.WidthScale)
	}
	if t.Oblique != 0 {
		o.float(51, t.Oblique)
	}
	style := t.Style
	if style == "" {
		style = "STANDARD"
	}
	o.text(7, SanitizeName(style))
	if t.Generation != 0 {
		o.integer(71, t.Generation)
	}
	if t.HAlign != 0 {
		o.integer(72, t.HAlign)
	}
	o.point(11, t.AlignPoint)
	e.extrusion(t.Extrusion)
	if e.handles() {
		o.str(100, "AcDbText")
	}
	if t.VAlign != 0 {
		o.integer(73, t.VAlign)
	}
}

// splitMText cuts s into pieces of at most mtextChunk bytes without
// splitting a character.
func splitMText(s string) []string {
	var parts []string
	for len(s) > mtextChunk {
		n := mtextChunk
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		if n == 0 {
			n = mtextChunk
		}
		parts = append(parts, s[:n])
		s = s[n:]
	}
	return append(parts, s)
}

func (e *Encoder) mtext(m *model.MText, owner model.Handle) {
	o := e.out
	e.common(m, "MTEXT", "AcDbMText", owner)
	o.point(10, m.Position)
	o.float(40, m.Height)
	o.float(41, m.RectWidth)
	if m.RectHeight != 0 {
		o.float(46, m.RectHeight)
	}
	o.integer(71, m.Attachment)
	o.integer(72, m.DrawingDir)
	parts := splitMText(m.Value)
	for _, p := range parts[:len(parts)-1] {
		o.text(3, p)
	}
	o.text(1, parts[len(parts)-1])
	style := m.Style
	if style == "" {
		style = "STANDARD"
	}
	o.text(7, SanitizeName(style))
	e.extrusion(m.Extrusion)
	if m.XAxis != (model.Coord{}) {
		o.point(11, m.XAxis)
	}
	if m.LineSpacingStyle != 0 {
		o.integer(73, m.LineSpacingStyle)
	}
	o.float(44, m.LineSpacingFactor)
	if m.BackgroundFlags != 0 && e.opts.Version >= model.AC1018 {
		o.integer(90, m.BackgroundFlags)
	}
}

func (e *Encoder) viewport(vp *model.Viewport, owner model.Handle) {
	o := e.out
	e.common(vp, "VIEWPORT", "AcDbViewport", owner)
	o.point(10, vp.Center)
	o.float(40, vp.Width)
	o.float(41, vp.Height)
	o.integer(68, vp.Status)
	o.integer(69, vp.ID)
	if !e.handles() {
		return
	}
	o.point2(12, vp.ViewCenter)
	o.point(16, vp.ViewDir)
	o.point(17, vp.Target)
	o.float(42, vp.LensLength)
	o.float(43, vp.FrontClip)
	o.float(44, vp.BackClip)
	o.float(45, vp.ViewHeight)
	o.float(50, degrees(vp.SnapAngle))
	o.float(51, degrees(vp.TwistAngle))
}

// hatch writes every boundary as a polyline path.
func (e *Encoder) hatch(h *model.Hatch, owner model.Handle) {
	o := e.out
	e.common(h, "HATCH", "AcDbHatch", owner)
	o.point(10, h.Elevation)
	ext := h.Extrusion
	if ext == (model.Coord{}) {
		ext = model.ZAxis
	}
	o.point(210, ext)
	o.text(2, h.Pattern)
	o.integer(70, boolInt(h.Solid))
	o.integer(71, boolInt(h.Associative))
	o.integer(91, len(h.Loops))
	for _, l := range h.Loops {
		o.integer(92, l.Type|2)
		bulges := false
		for _, v := range l.Vertices {
			if v.Bulge != 0 {
				bulges = true
				break
			}
		}
		o.integer(72, boolInt(bulges))
		o.integer(73, boolInt(l.Closed))
		o.integer(93, len(l.Vertices))
		for _, v := range l.Vertices {
			o.float(10, v.X)
			o.float(20, v.Y)
			if bulges {
				o.float(42, v.Bulge)
			}
		}
		o.integer(97, 0)
	}
	o.integer(75, h.Style)
	o.integer(76, h.PatternType)
	if !h.Solid {
		o.float(52, h.Angle)
		o.float(41, h.Scale)
		o.integer(77, 0)
		o.integer(78, 0)
	}
	o.integer(98, 0)
}

func (e *Encoder) spline(s *model.Spline, owner model.Handle) {
	o := e.out
	e.common(s, "SPLINE", "AcDbSpline", owner)
	if s.Normal != (model.Coord{}) {
		o.point(210, s.Normal)
	}
	o.integer(70, s.Flags)
	o.integer(71, s.Degree)
	o.integer(72, len(s.Knots))
	o.integer(73, len(s.ControlPoints))
	o.integer(74, len(s.FitPoints))
	o.float(42, s.KnotTolerance)
	o.float(43, s.ControlTolerance)
	if len(s.FitPoints) > 0 {
		o.float(44, s.FitTolerance)
	}
	if s.StartTangent != (model.Coord{}) {
		o.point(12, s.StartTangent)
	}
	if s.EndTangent != (model.Coord{}) {
		o.point(13, s.EndTangent)
	}
	for _, k := range s.Knots {
		o.float(40, k)
	}
	for _, w := range s.Weights {
		o.float(41, w)
	}
	for _, c := range s.ControlPoints {
		o.point(10, c)
	}
	for _, c := range s.FitPoints {
		o.point(11, c)
	}
}

func (e *Encoder) leader(l *model.Leader, owner model.Handle) {
	o := e.out
	e.common(l, "LEADER", "AcDbLeader", owner)
	style := l.Style
	if style == "" {
		style = "STANDARD"
	}
	o.text(3, SanitizeName(style))
	o.integer(71, l.Arrow)
	o.integer(72, l.PathType)
	o.integer(73, l.Creation)
	o.integer(74, l.HookLine)
	o.float(40, l.TextHeight)
	o.float(41, l.TextWidth)
	o.integer(76, len(l.Vertices))
	for _, v := range l.Vertices {
		o.point(10, v)
	}
	e.extrusion(l.Extrusion)
}

func (e *Encoder) dimension(d *model.Dimension, owner model.Handle) {
	o := e.out
	e.common(d, "DIMENSION", "AcDbDimension", owner)
	o.text(2, SanitizeName(d.BlockName))
	o.point(10, d.DefPoint)
	o.point(11, d.TextPoint)
	o.integer(70, int(d.DimKind))
	if d.Attachment != 0 && e.opts.Version >= model.AC1015 {
		o.integer(71, d.Attachment)
	}
	if d.Text != "" {
		o.text(1, d.Text)
	}
	style := d.Style
	if style == "" {
		style = "STANDARD"
	}
	o.text(3, SanitizeName(style))
	e.extrusion(d.Extrusion)

	sub := func(name string) {
		if e.handles() {
			o.str(100, name)
		}
	}
	switch d.DimKind {
	case model.DimLinear, model.DimAligned:
		sub("AcDbAlignedDimension")
		o.point(13, d.Def1)
		o.point(14, d.Def2)
		if d.DimKind == model.DimLinear {
			if d.Angle != 0 {
				o.float(50, d.Angle)
			}
			if d.Oblique != 0 {
				o.float(52, d.Oblique)
			}
			sub("AcDbRotatedDimension")
		}
	case model.DimAngular:
		sub("AcDb2LineAngularDimension")
		o.point(13, d.Def1)
		o.point(14, d.Def2)
		o.point(15, d.Def3)
		o.point(16, d.Def4)
	case model.DimDiameter:
		sub("AcDbDiametricDimension")
		o.point(15, d.Def3)
		o.float(40, d.Leader)
	case model.DimRadius:
		sub("AcDbRadialDimension")
		o.point(15, d.Def3)
		o.float(40, d.Leader)
	case model.DimAngular3P:
		sub("AcDb3PointAngularDimension")
		o.point(13, d.Def1)
		o.point(14, d.Def2)
		o.point(15, d.Def3)
	case model.DimOrdinate:
		sub("AcDbOrdinateDimension")
		o.point(13, d.Def1)
		o.point(14, d.Def2)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
