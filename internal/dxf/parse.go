package dxf

import (
	"math"
	"strings"

	"github.com/dyuri/dwgconv/internal/model"
)

// setPoint stores a coordinate group into the point registered for its
// base code: groups 10, 20 and 30 all land in pts[10].
func setPoint(pts map[int]*model.Coord, t Tag) bool {
	axis := (t.Code / 10) % 10
	if axis < 1 || axis > 3 {
		return false
	}
	c, ok := pts[t.Code-(axis-1)*10]
	if !ok {
		return false
	}
	v := t.Float()
	switch axis {
	case 1:
		c.X = v
	case 2:
		c.Y = v
	default:
		c.Z = v
	}
	return true
}

// appendPoint handles list valued coordinates: the X group starts a new
// point, Y and Z complete the last one.
func appendPoint(list *[]model.Coord, base int, t Tag) bool {
	switch t.Code {
	case base:
		*list = append(*list, model.Coord{X: t.Float()})
	case base + 10:
		if n := len(*list); n > 0 {
			(*list)[n-1].Y = t.Float()
		}
	case base + 20:
		if n := len(*list); n > 0 {
			(*list)[n-1].Z = t.Float()
		}
	default:
		return false
	}
	return true
}

// split separates the entity prologue from the type specific groups.
// Application groups ({...} under code 102) and extended data are
// dropped.
func (r *Reader) split(tags []Tag) (model.EntityCommon, []Tag) {
	c := model.NewEntityCommon()
	rest := make([]Tag, 0, len(tags))
	inApp := false
	ownerSeen := false
	for _, t := range tags {
		if inApp {
			if t.Code == 102 && strings.HasPrefix(t.Value, "}") {
				inApp = false
			}
			continue
		}
		if t.Code >= 1000 {
			break
		}
		switch t.Code {
		case 102:
			inApp = strings.HasPrefix(t.Value, "{")
		case 100:
		case 5:
			c.Handle = model.Handle(t.Handle())
		case 330:
			if !ownerSeen {
				c.Owner = model.Handle(t.Handle())
				ownerSeen = true
			}
		case 67:
			if t.Int() == 1 {
				c.Space = model.PaperSpace
			}
		case 8:
			c.Layer = r.text(t.Value)
		case 6:
			c.LineType = r.text(t.Value)
		case 62:
			c.Color = t.Int()
		case 370:
			c.LineWeight = model.LineWidthFromDXF(t.Int())
		case 48:
			c.LineTypeScale = t.Float()
		case 60:
			c.Visible = t.Int() == 0
		default:
			rest = append(rest, t)
		}
	}
	return c, rest
}

// entity builds the entity of a record, or nil for types the model does
// not cover.
func (r *Reader) entity(rec record) model.Entity {
	c, tags := r.split(rec.tags)
	switch rec.typ {
	case "POINT":
		e := &model.Point{EntityCommon: c, Extrusion: model.ZAxis}
		pts := map[int]*model.Coord{10: &e.Position, 210: &e.Extrusion}
		for _, t := range tags {
			switch {
			case setPoint(pts, t):
			case t.Code == 39:
				e.Thickness = t.Float()
			case t.Code == 50:
				e.XAxisAngle = radians(t.Float())
			}
		}
		return e
	case "LINE":
		e := &model.Line{EntityCommon: c, Extrusion: model.ZAxis}
		pts := map[int]*model.Coord{10: &e.Start, 11: &e.End, 210: &e.Extrusion}
		for _, t := range tags {
			if !setPoint(pts, t) && t.Code == 39 {
				e.Thickness = t.Float()
			}
		}
		return e
	case "RAY":
		e := &model.Ray{EntityCommon: c}
		pts := map[int]*model.Coord{10: &e.Origin, 11: &e.Direction}
		for _, t := range tags {
			setPoint(pts, t)
		}
		return e
	case "XLINE":
		e := &model.XLine{EntityCommon: c}
		pts := map[int]*model.Coord{10: &e.Origin, 11: &e.Direction}
		for _, t := range tags {
			setPoint(pts, t)
		}
		return e
	case "CIRCLE":
		e := &model.Circle{EntityCommon: c, Extrusion: model.ZAxis}
		pts := map[int]*model.Coord{10: &e.Center, 210: &e.Extrusion}
		for _, t := range tags {
			switch {
			case setPoint(pts, t):
			case t.Code == 40:
				e.Radius = t.Float()
			case t.Code == 39:
				e.Thickness = t.Float()
			}
		}
		return e
	case "ARC":
		e := &model.Arc{EntityCommon: c, Extrusion: model.ZAxis}
		pts := map[int]*model.Coord{10: &e.Center, 210: &e.Extrusion}
		for _, t := range tags {
			switch {
			case setPoint(pts, t):
			case t.Code == 40:
				e.Radius = t.Float()
			case t.Code == 39:
				e.Thickness = t.Float()
			case t.Code == 50:
				e.StartAngle = radians(t.Float())
			case t.Code == 51:
				e.EndAngle = radians(t.Float())
			}
		}
		return e
	case "ELLIPSE":
		e := &model.Ellipse{EntityCommon: c, Extrusion: model.ZAxis, Ratio: 1, EndParam: 2 * math.Pi}
		pts := map[int]*model.Coord{10: &e.Center, 11: &e.MajorAxis, 210: &e.Extrusion}
		for _, t := range tags {
			switch {
			case setPoint(pts, t):
			case t.Code == 40:
				e.Ratio = t.Float()
			case t.Code == 41:
				e.StartParam = t.Float()
			case t.Code == 42:
				e.EndParam = t.Float()
			}
		}
		return e
	case "TRACE":
		e := &model.Trace{EntityCommon: c}
		r.quad(e, tags)
		return e
	case "SOLID":
		e := &model.Solid{Trace: model.Trace{EntityCommon: c}}
		r.quad(&e.Trace, tags)
		return e
	case "3DFACE":
		e := &model.Face3D{EntityCommon: c}
		pts := map[int]*model.Coord{10: &e.Corners[0], 11: &e.Corners[1], 12: &e.Corners[2], 13: &e.Corners[3]}
		for _, t := range tags {
			if !setPoint(pts, t) && t.Code == 70 {
				e.InvisibleEdges = t.Int()
			}
		}
		return e
	case "INSERT":
		return r.insert(c, tags)
	case "LWPOLYLINE":
		return r.lwpolyline(c, tags)
	case "TEXT":
		return r.textEntity(c, tags)
	case "MTEXT":
		return r.mtext(c, tags)
	case "VIEWPORT":
		return r.viewport(c, tags)
	case "HATCH":
		return r.hatch(c, tags)
	case "SPLINE":
		return r.spline(c, tags)
	case "LEADER":
		return r.leader(c, tags)
	case "DIMENSION":
		return r.dimension(c, tags)
	}
	return nil
}

func (r *Reader) quad(e *model.Trace, tags []Tag) {
	e.Extrusion = model.ZAxis
	pts := map[int]*model.Coord{
		10: &e.Corners[0], 11: &e.Corners[1], 12: &e.Corners[2], 13: &e.Corners[3],
		210: &e.Extrusion,
	}
	for _, t := range tags {
		if !setPoint(pts, t) && t.Code == 39 {
			e.Thickness = t.Float()
		}
	}
}

func (r *Reader) insert(c model.EntityCommon, tags []Tag) *model.Insert {
	e := &model.Insert{
		EntityCommon: c,
		Scale:        model.Coord{X: 1, Y: 1, Z: 1},
		Extrusion:    model.ZAxis,
		ColCount:     1,
		RowCount:     1,
	}
	pts := map[int]*model.Coord{10: &e.Position, 210: &e.Extrusion}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 66:
			e.HasAttribs = t.Bool()
		case 2:
			e.BlockName = r.text(t.Value)
		case 41:
			e.Scale.X = t.Float()
		case 42:
			e.Scale.Y = t.Float()
		case 43:
			e.Scale.Z = t.Float()
		case 50:
			e.Angle = radians(t.Float())
		case 70:
			e.ColCount = t.Int()
		case 71:
			e.RowCount = t.Int()
		case 44:
			e.ColSpacing = t.Float()
		case 45:
			e.RowSpacing = t.Float()
		}
	}
	return e
}

func (r *Reader) lwpolyline(c model.EntityCommon, tags []Tag) *model.LWPolyline {
	e := &model.LWPolyline{EntityCommon: c, Extrusion: model.ZAxis}
	pts := map[int]*model.Coord{210: &e.Extrusion}
	last := func() *model.LWVertex {
		if len(e.Vertices) == 0 {
			return nil
		}
		return &e.Vertices[len(e.Vertices)-1]
	}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 70:
			e.Flags = t.Int()
		case 43:
			e.Width = t.Float()
		case 38:
			e.Elevation = t.Float()
		case 39:
			e.Thickness = t.Float()
		case 10:
			e.Vertices = append(e.Vertices, model.LWVertex{X: t.Float(), StartWidth: e.Width, EndWidth: e.Width})
		case 20:
			if v := last(); v != nil {
				v.Y = t.Float()
			}
		case 40:
			if v := last(); v != nil {
				v.StartWidth = t.Float()
			}
		case 41:
			if v := last(); v != nil {
				v.EndWidth = t.Float()
			}
		case 42:
			if v := last(); v != nil {
				v.Bulge = t.Float()
			}
		case 91:
			if v := last(); v != nil {
				v.ID = t.Int()
			}
		}
	}
	return e
}

func (r *Reader) polyline(tags []Tag) *model.Polyline {
	c, tags := r.split(tags)
	e := &model.Polyline{EntityCommon: c, Extrusion: model.ZAxis}
	pts := map[int]*model.Coord{210: &e.Extrusion}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 30:
			e.Elevation = t.Float()
		case 39:
			e.Thickness = t.Float()
		case 70:
			e.Flags = t.Int()
		case 40:
			e.StartWidth = t.Float()
		case 41:
			e.EndWidth = t.Float()
		case 75:
			e.CurveType = t.Int()
		}
	}
	return e
}

func (r *Reader) vertex(tags []Tag) *model.Vertex {
	c, tags := r.split(tags)
	e := &model.Vertex{EntityCommon: c}
	pts := map[int]*model.Coord{10: &e.Position}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 40:
			e.StartWidth = t.Float()
		case 41:
			e.EndWidth = t.Float()
		case 42:
			e.Bulge = t.Float()
		case 70:
			e.Flags = t.Int()
		case 50:
			e.TangentDir = radians(t.Float())
		case 91:
			e.ID = t.Int()
		}
	}
	return e
}

func (r *Reader) textEntity(c model.EntityCommon, tags []Tag) *model.Text {
	e := &model.Text{EntityCommon: c, WidthScale: 1, Style: "STANDARD", Extrusion: model.ZAxis}
	pts := map[int]*model.Coord{10: &e.Position, 11: &e.AlignPoint, 210: &e.Extrusion}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 1:
			e.Value = r.text(t.Value)
		case 7:
			e.Style = r.text(t.Value)
		case 39:
			e.Thickness = t.Float()
		case 40:
			e.Height = t.Float()
		case 41:
			e.WidthScale = t.Float()
		case 50:
			e.Rotation = t.Float()
		case 51:
			e.Oblique = t.Float()
		case 71:
			e.Generation = t.Int()
		case 72:
			e.HAlign = t.Int()
		case 73:
			e.VAlign = t.Int()
		}
	}
	return e
}

func (r *Reader) mtext(c model.EntityCommon, tags []Tag) *model.MText {
	e := &model.MText{EntityCommon: c, Style: "STANDARD", Extrusion: model.ZAxis, LineSpacingFactor: 1}
	pts := map[int]*model.Coord{10: &e.Position, 11: &e.XAxis, 210: &e.Extrusion}
	var sb strings.Builder
	rotation, hasRotation, hasAxis := 0.0, false, false
	for _, t := range tags {
		if setPoint(pts, t) {
			if t.Code == 11 {
				hasAxis = true
			}
			continue
		}
		switch t.Code {
		case 1, 3:
			sb.WriteString(t.Value)
		case 7:
			e.Style = r.text(t.Value)
		case 40:
			e.Height = t.Float()
		case 41:
			e.RectWidth = t.Float()
		case 46:
			e.RectHeight = t.Float()
		case 71:
			e.Attachment = t.Int()
		case 72:
			e.DrawingDir = t.Int()
		case 73:
			e.LineSpacingStyle = t.Int()
		case 44:
			e.LineSpacingFactor = t.Float()
		case 90:
			e.BackgroundFlags = t.Int()
		case 50:
			rotation, hasRotation = radians(t.Float()), true
		}
	}
	// chunks are joined before decoding so that a split multibyte
	// character survives
	e.Value = r.text(sb.String())
	if hasRotation && !hasAxis {
		e.XAxis = model.Coord{X: math.Cos(rotation), Y: math.Sin(rotation)}
	}
	return e
}

func (r *Reader) viewport(c model.EntityCommon, tags []Tag) *model.Viewport {
	e := &model.Viewport{EntityCommon: c}
	pts := map[int]*model.Coord{10: &e.Center, 12: &e.ViewCenter, 16: &e.ViewDir, 17: &e.Target}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 40:
			e.Width = t.Float()
		case 41:
			e.Height = t.Float()
		case 68:
			e.Status = t.Int()
		case 69:
			e.ID = t.Int()
		case 42:
			e.LensLength = t.Float()
		case 43:
			e.FrontClip = t.Float()
		case 44:
			e.BackClip = t.Float()
		case 45:
			e.ViewHeight = t.Float()
		case 50:
			e.SnapAngle = radians(t.Float())
		case 51:
			e.TwistAngle = radians(t.Float())
		}
	}
	return e
}

// hatch reads polyline boundary paths. Edge paths keep the start point of
// every edge, which is exact for line edges.
func (r *Reader) hatch(c model.EntityCommon, tags []Tag) *model.Hatch {
	e := &model.Hatch{EntityCommon: c, Extrusion: model.ZAxis}
	pts := map[int]*model.Coord{10: &e.Elevation, 210: &e.Extrusion}
	const (
		head = iota
		paths
		tail
	)
	state := head
	var loop *model.HatchLoop
	for _, t := range tags {
		switch state {
		case head:
			if setPoint(pts, t) {
				continue
			}
			switch t.Code {
			case 2:
				e.Pattern = r.text(t.Value)
			case 70:
				e.Solid = t.Bool()
			case 71:
				e.Associative = t.Bool()
			case 91:
				state = paths
			}
		case paths:
			switch t.Code {
			case 92:
				e.Loops = append(e.Loops, model.HatchLoop{Type: t.Int()})
				loop = &e.Loops[len(e.Loops)-1]
			case 73:
				if loop != nil && loop.Type&2 != 0 {
					loop.Closed = t.Bool()
				}
			case 10:
				if loop != nil {
					loop.Vertices = append(loop.Vertices, model.LWVertex{X: t.Float()})
				}
			case 20:
				if loop != nil && len(loop.Vertices) > 0 {
					loop.Vertices[len(loop.Vertices)-1].Y = t.Float()
				}
			case 42:
				if loop != nil && loop.Type&2 != 0 && len(loop.Vertices) > 0 {
					loop.Vertices[len(loop.Vertices)-1].Bulge = t.Float()
				}
			case 75:
				e.Style = t.Int()
				state = tail
			}
		case tail:
			switch t.Code {
			case 76:
				e.PatternType = t.Int()
			case 52:
				e.Angle = t.Float()
			case 41:
				e.Scale = t.Float()
			}
		}
	}
	return e
}

func (r *Reader) spline(c model.EntityCommon, tags []Tag) *model.Spline {
	e := &model.Spline{EntityCommon: c}
	pts := map[int]*model.Coord{12: &e.StartTangent, 13: &e.EndTangent, 210: &e.Normal}
	for _, t := range tags {
		switch {
		case appendPoint(&e.ControlPoints, 10, t):
		case appendPoint(&e.FitPoints, 11, t):
		case setPoint(pts, t):
		case t.Code == 70:
			e.Flags = t.Int()
		case t.Code == 71:
			e.Degree = t.Int()
		case t.Code == 42:
			e.KnotTolerance = t.Float()
		case t.Code == 43:
			e.ControlTolerance = t.Float()
		case t.Code == 44:
			e.FitTolerance = t.Float()
		case t.Code == 40:
			e.Knots = append(e.Knots, t.Float())
		case t.Code == 41:
			e.Weights = append(e.Weights, t.Float())
		}
	}
	return e
}

func (r *Reader) leader(c model.EntityCommon, tags []Tag) *model.Leader {
	e := &model.Leader{EntityCommon: c, Style: "STANDARD", Extrusion: model.ZAxis}
	pts := map[int]*model.Coord{210: &e.Extrusion}
	for _, t := range tags {
		switch {
		case appendPoint(&e.Vertices, 10, t):
		case setPoint(pts, t):
		case t.Code == 3:
			e.Style = r.text(t.Value)
		case t.Code == 71:
			e.Arrow = t.Int()
		case t.Code == 72:
			e.PathType = t.Int()
		case t.Code == 73:
			e.Creation = t.Int()
		case t.Code == 74:
			e.HookLine = t.Int()
		case t.Code == 40:
			e.TextHeight = t.Float()
		case t.Code == 41:
			e.TextWidth = t.Float()
		}
	}
	return e
}

func (r *Reader) dimension(c model.EntityCommon, tags []Tag) *model.Dimension {
	e := &model.Dimension{EntityCommon: c, Style: "STANDARD", Extrusion: model.ZAxis}
	pts := map[int]*model.Coord{
		10: &e.DefPoint, 11: &e.TextPoint,
		13: &e.Def1, 14: &e.Def2, 15: &e.Def3, 16: &e.Def4,
		210: &e.Extrusion,
	}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 2:
			e.BlockName = r.text(t.Value)
		case 3:
			e.Style = r.text(t.Value)
		case 1:
			e.Text = r.text(t.Value)
		case 70:
			e.DimKind = model.DimKind(t.Int() & 7)
		case 71:
			e.Attachment = t.Int()
		case 50:
			e.Angle = t.Float()
		case 52:
			e.Oblique = t.Float()
		case 40:
			e.Leader = t.Float()
		}
	}
	return e
}

func (r *Reader) block(tags []Tag) *model.Block {
	c, tags := r.split(tags)
	b := &model.Block{EntityCommon: c, Record: c.Owner}
	pts := map[int]*model.Coord{10: &b.BasePoint}
	for _, t := range tags {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 2:
			b.Name = r.text(t.Value)
		case 70:
			b.Flags = t.Int()
		case 1:
			b.XRefPath = r.text(t.Value)
		case 4:
			b.Description = r.text(t.Value)
		}
	}
	return b
}

// entry fills the table record prologue and returns the other groups.
func (r *Reader) entry(te *model.TableEntry, handleCode int, tags []Tag) []Tag {
	rest := make([]Tag, 0, len(tags))
	inApp := false
	for _, t := range tags {
		if inApp {
			if t.Code == 102 && strings.HasPrefix(t.Value, "}") {
				inApp = false
			}
			continue
		}
		if t.Code >= 1000 {
			break
		}
		switch t.Code {
		case 102:
			inApp = strings.HasPrefix(t.Value, "{")
		case 100:
		case handleCode:
			te.Handle = model.Handle(t.Handle())
		case 330:
			te.Owner = model.Handle(t.Handle())
		case 2:
			te.Name = r.text(t.Value)
		case 70:
			te.Flags = t.Int()
		default:
			rest = append(rest, t)
		}
	}
	return rest
}

func (r *Reader) lineType(tags []Tag) *model.LineType {
	lt := &model.LineType{Alignment: 'A'}
	var dash *model.Dash
	for _, t := range r.entry(&lt.TableEntry, 5, tags) {
		switch t.Code {
		case 3:
			lt.Description = r.text(t.Value)
		case 72:
			lt.Alignment = t.Int()
		case 40:
			lt.Length = t.Float()
		case 49:
			lt.Dashes = append(lt.Dashes, model.Dash{Length: t.Float()})
			dash = &lt.Dashes[len(lt.Dashes)-1]
		case 74:
			if dash != nil {
				dash.ShapeFlag = t.Int()
			}
		case 75:
			if dash != nil {
				dash.ShapeNumber = t.Int()
			}
		case 46:
			if dash != nil {
				dash.Scale = t.Float()
			}
		case 50:
			if dash != nil {
				dash.Rotation = t.Float()
			}
		case 44:
			if dash != nil {
				dash.OffsetX = t.Float()
			}
		case 45:
			if dash != nil {
				dash.OffsetY = t.Float()
			}
		}
	}
	return lt
}

func (r *Reader) layer(tags []Tag) *model.Layer {
	l := &model.Layer{Color: 7, LineType: "CONTINUOUS", LineWeight: model.WidthDefault, Plot: true}
	for _, t := range r.entry(&l.TableEntry, 5, tags) {
		switch t.Code {
		case 62:
			l.Color = t.Int()
		case 6:
			l.LineType = r.text(t.Value)
		case 370:
			l.LineWeight = model.LineWidthFromDXF(t.Int())
		case 290:
			l.Plot = t.Bool()
		case 390:
			l.PlotStyle = model.Handle(t.Handle())
		}
	}
	return l
}

func (r *Reader) textStyle(tags []Tag) *model.TextStyle {
	s := &model.TextStyle{Width: 1}
	for _, t := range r.entry(&s.TableEntry, 5, tags) {
		switch t.Code {
		case 40:
			s.Height = t.Float()
		case 41:
			s.Width = t.Float()
		case 50:
			s.Oblique = t.Float()
		case 71:
			s.GenFlag = t.Int()
		case 42:
			s.LastHeight = t.Float()
		case 3:
			s.Font = r.text(t.Value)
		case 4:
			s.BigFont = r.text(t.Value)
		}
	}
	return s
}

func (r *Reader) dimStyle(tags []Tag) *model.DimStyle {
	ds := &model.DimStyle{Scale: 1}
	for _, t := range r.entry(&ds.TableEntry, 105, tags) {
		switch t.Code {
		case 40:
			ds.Scale = t.Float()
		case 41:
			ds.ArrowSize = t.Float()
		case 140:
			ds.TextHeight = t.Float()
		case 147:
			ds.Gap = t.Float()
		}
	}
	return ds
}

func (r *Reader) vport(tags []Tag) *model.Vport {
	vp := &model.Vport{}
	pts := map[int]*model.Coord{
		10: &vp.LowerLeft, 11: &vp.UpperRight, 12: &vp.Center,
		16: &vp.ViewDir, 17: &vp.Target,
	}
	for _, t := range r.entry(&vp.TableEntry, 5, tags) {
		if setPoint(pts, t) {
			continue
		}
		switch t.Code {
		case 40:
			vp.Height = t.Float()
		case 41:
			vp.Ratio = t.Float()
		case 42:
			vp.LensLength = t.Float()
		}
	}
	return vp
}

func (r *Reader) appID(tags []Tag) *model.AppID {
	a := &model.AppID{}
	r.entry(&a.TableEntry, 5, tags)
	return a
}
