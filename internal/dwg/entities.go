package dwg

import (
	"errors"
	"fmt"
	"math"

	"github.com/dyuri/dwgconv/internal/binary"
	"github.com/dyuri/dwgconv/internal/model"
)

// Fixed entity object types.
const (
	typeText       = 1
	typeAttrib     = 2
	typeAttDef     = 3
	typeBlock      = 4
	typeEndBlk     = 5
	typeSeqEnd     = 6
	typeInsert     = 7
	typeMInsert    = 8
	typeVertex2D   = 10
	typeVertex3D   = 11
	typeVertexMesh = 12
	typeVertexPF   = 13
	typeVertexPFF  = 14
	typePolyline2D = 15
	typePolyline3D = 16
	typeArc        = 17
	typeCircle     = 18
	typeLine       = 19
	typePoint      = 27
	type3DFace     = 28
	typeSolid      = 31
	typeTrace      = 32
	typeViewport   = 34
	typeEllipse    = 35
	typeRay        = 40
	typeXLine      = 41
	typeMText      = 44
	typeLWPolyline = 77
)

// isEntityType reports whether a fixed type code is a graphical entity.
func isEntityType(t int) bool {
	switch {
	case t >= typeText && t <= typeLine:
		return t != 9
	case t >= 20 && t <= 47:
		return t != 42 && t != 43 // dictionaries
	case t == typeLWPolyline, t == 78, t == 101:
		return true
	}
	return false
}

// decodedEntity is an entity together with the references that the
// orchestrator follows after decoding it.
type decodedEntity struct {
	entity model.Entity
	header *entityHeader

	name  string // BLOCK name
	style model.Handle

	// polyline vertices: a first/last range before R2004, a list after
	first, last model.Handle
	owned       []model.Handle
	seqEnd      model.Handle
}

// parseEntity decodes one entity record of fixed type typ. For types
// without a decoder it returns errUnsupportedType together with whatever
// links could be read.
func parseEntity(v model.Version, r *binary.Reader, typ int) (*decodedEntity, error) {
	e, err := parseEntityPrologue(v, r)
	if err != nil {
		return nil, err
	}
	d := &decodedEntity{header: e}
	var tail func()
	switch typ {
	case typePoint:
		d.entity = parsePoint(v, r)
	case typeLine:
		d.entity = parseLine(v, r)
	case typeCircle:
		d.entity = parseCircle(v, r)
	case typeArc:
		c := parseCircle(v, r)
		d.entity = &model.Arc{
			Center:     c.Center,
			Radius:     c.Radius,
			Thickness:  c.Thickness,
			Extrusion:  c.Extrusion,
			StartAngle: r.BitDouble(),
			EndAngle:   r.BitDouble(),
		}
	case typeEllipse:
		d.entity = parseEllipse(r)
	case typeSolid:
		d.entity = &model.Solid{Trace: *parseTrace(v, r)}
	case typeTrace:
		d.entity = parseTrace(v, r)
	case type3DFace:
		d.entity = parseFace(v, r)
	case typeRay:
		d.entity = &model.Ray{Origin: r.Point3BD(), Direction: r.Point3BD()}
	case typeXLine:
		d.entity = &model.XLine{Origin: r.Point3BD(), Direction: r.Point3BD()}
	case typeBlock:
		d.name = readText(v, r)
		d.entity = &model.Block{Name: d.name}
	case typeEndBlk, typeSeqEnd:
		d.entity = nil
	case typeInsert, typeMInsert:
		ins := parseInsert(v, r, typ == typeMInsert)
		d.entity = ins
		tail = func() { ins.BlockRecord = r.Handle().Resolve(e.Handle) }
	case typeLWPolyline:
		p, err := parseLWPolyline(v, r)
		if err != nil {
			return nil, err
		}
		d.entity = p
	case typePolyline2D, typePolyline3D:
		var n int
		if typ == typePolyline2D {
			d.entity, n = parsePolyline2D(v, r)
		} else {
			d.entity, n = parsePolyline3D(v, r)
		}
		tail = func() { readVertexHandles(v, r, d, n) }
	case typeVertex2D:
		d.entity = parseVertex2D(v, r)
	case typeVertex3D, typeVertexMesh, typeVertexPF:
		d.entity = &model.Vertex{Flags: int(r.RawChar()), Position: r.Point3BD()}
	case typeText:
		t := parseText(v, r)
		d.entity = t
		tail = func() { d.style = r.Handle().Resolve(e.Handle) }
	case typeMText:
		t := parseMText(v, r)
		d.entity = t
		tail = func() { d.style = r.Handle().Resolve(e.Handle) }
	case typeViewport:
		d.entity = parseViewport(v, r)
	default:
		// keep the chain links so that block traversal can step over it
		switch {
		case v < model.AC1015 && e.noLinks:
			e.common.NextEntity = e.Handle + 1
		case v < model.AC1015 && r.SeekBit(e.handleStart) != nil,
			parseEntityHandles(v, r, e) != nil:
			return nil, fmt.Errorf("entity type %d: %w", typ, errUnsupportedType)
		}
		return d, fmt.Errorf("entity type %d: %w", typ, errUnsupportedType)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("entity %d data: %w", typ, err)
	}
	if err := parseEntityHandles(v, r, e); err != nil {
		return nil, err
	}
	if tail != nil {
		tail()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("entity %d handles: %w", typ, err)
		}
	}
	if d.entity == nil {
		return d, nil
	}
	c := d.entity.Common()
	*c = e.common
	if v >= model.AC1015 {
		c.LineType = lineTypeFlagName(e.ltFlags)
	} else if e.byLayerLT {
		c.LineType = "BYLAYER"
	}
	if t, ok := d.entity.(*model.Text); ok {
		t.StyleHandle = d.style
	}
	if t, ok := d.entity.(*model.MText); ok {
		t.StyleHandle = d.style
	}
	return d, nil
}

var errUnsupportedType = errors.New("unsupported object type")

func parsePoint(v model.Version, r *binary.Reader) *model.Point {
	p := &model.Point{}
	p.Position = r.Point3BD()
	p.Thickness = readThickness(v, r)
	p.Extrusion = readExtrusion(v, r)
	p.XAxisAngle = r.BitDouble()
	return p
}

func parseLine(v model.Version, r *binary.Reader) *model.Line {
	l := &model.Line{}
	if v < model.AC1015 {
		l.Start = r.Point3BD()
		l.End = r.Point3BD()
	} else {
		zIsZero := r.Bit()
		l.Start.X = r.RawDouble()
		l.End.X = r.DefaultDouble(l.Start.X)
		l.Start.Y = r.RawDouble()
		l.End.Y = r.DefaultDouble(l.Start.Y)
		if !zIsZero {
			l.Start.Z = r.RawDouble()
			l.End.Z = r.DefaultDouble(l.Start.Z)
		}
	}
	l.Thickness = readThickness(v, r)
	l.Extrusion = readExtrusion(v, r)
	return l
}

func parseCircle(v model.Version, r *binary.Reader) *model.Circle {
	c := &model.Circle{}
	c.Center = r.Point3BD()
	c.Radius = r.BitDouble()
	c.Thickness = readThickness(v, r)
	c.Extrusion = readExtrusion(v, r)
	return c
}

func parseEllipse(r *binary.Reader) *model.Ellipse {
	e := &model.Ellipse{}
	e.Center = r.Point3BD()
	e.MajorAxis = r.Point3BD()
	e.Extrusion = r.Point3BD()
	e.Ratio = r.BitDouble()
	e.StartParam = r.BitDouble()
	e.EndParam = r.BitDouble()
	e.CorrectAxis()
	return e
}

func parseTrace(v model.Version, r *binary.Reader) *model.Trace {
	t := &model.Trace{}
	t.Thickness = readThickness(v, r)
	elevation := r.BitDouble()
	for i := range t.Corners {
		t.Corners[i] = r.Point2RD()
		t.Corners[i].Z = elevation
	}
	t.Extrusion = readExtrusion(v, r)
	return t
}

func parseFace(v model.Version, r *binary.Reader) *model.Face3D {
	f := &model.Face3D{}
	if v < model.AC1015 {
		for i := range f.Corners {
			f.Corners[i] = r.Point3BD()
		}
		f.InvisibleEdges = int(r.BitShort())
		return f
	}
	hasNoFlags := r.Bit()
	zIsZero := r.Bit()
	f.Corners[0].X = r.RawDouble()
	f.Corners[0].Y = r.RawDouble()
	if !zIsZero {
		f.Corners[0].Z = r.RawDouble()
	}
	for i := 1; i < len(f.Corners); i++ {
		prev := f.Corners[i-1]
		f.Corners[i].X = r.DefaultDouble(prev.X)
		f.Corners[i].Y = r.DefaultDouble(prev.Y)
		f.Corners[i].Z = r.DefaultDouble(prev.Z)
	}
	if !hasNoFlags {
		f.InvisibleEdges = int(r.BitShort())
	}
	return f
}

func parseInsert(v model.Version, r *binary.Reader, minsert bool) *model.Insert {
	ins := &model.Insert{ColCount: 1, RowCount: 1}
	ins.Position = r.Point3BD()
	if v < model.AC1015 {
		ins.Scale = r.Point3BD()
	} else {
		switch r.Bits2() {
		case 3:
			ins.Scale = model.Coord{X: 1, Y: 1, Z: 1}
		case 1:
			ins.Scale.X = 1
			ins.Scale.Y = r.DefaultDouble(1)
			ins.Scale.Z = r.DefaultDouble(1)
		case 2:
			x := r.RawDouble()
			ins.Scale = model.Coord{X: x, Y: x, Z: x}
		default:
			x := r.RawDouble()
			ins.Scale = model.Coord{X: x, Y: r.DefaultDouble(x), Z: r.DefaultDouble(x)}
		}
	}
	ins.Angle = r.BitDouble()
	ins.Extrusion = r.Point3BD()
	ins.HasAttribs = r.Bit()
	if v >= model.AC1018 && ins.HasAttribs {
		r.BitLong() // owned attributes, not followed
	}
	if minsert {
		ins.ColCount = int(r.BitShort())
		ins.RowCount = int(r.BitShort())
		ins.ColSpacing = r.BitDouble()
		ins.RowSpacing = r.BitDouble()
	}
	return ins
}

// DWG flag bits of LWPOLYLINE
const (
	lwExtrusion = 1
	lwThickness = 2
	lwConstant  = 4
	lwElevation = 8
	lwBulges    = 16
	lwWidths    = 32
	lwPlinegen  = 256
	lwClosed    = 512
	lwIDs       = 1024
)

func parseLWPolyline(v model.Version, r *binary.Reader) (*model.LWPolyline, error) {
	p := &model.LWPolyline{Extrusion: model.ZAxis}
	flags := int(r.BitShort())
	if flags&lwClosed != 0 {
		p.Flags |= model.PolylineClosed
	}
	if flags&lwPlinegen != 0 {
		p.Flags |= model.PolylinePlinegen
	}
	if flags&lwConstant != 0 {
		p.Width = r.BitDouble()
	}
	if flags&lwElevation != 0 {
		p.Elevation = r.BitDouble()
	}
	if flags&lwThickness != 0 {
		p.Thickness = r.BitDouble()
	}
	if flags&lwExtrusion != 0 {
		p.Extrusion = r.Point3BD()
	}
	points := int(r.BitLong())
	bulges, ids, widths := 0, 0, 0
	if flags&lwBulges != 0 {
		bulges = int(r.BitLong())
	}
	if v >= model.AC1024 && flags&lwIDs != 0 {
		ids = int(r.BitLong())
	}
	if flags&lwWidths != 0 {
		widths = int(r.BitLong())
	}
	if !r.Good() {
		return nil, fmt.Errorf("lwpolyline counts: %w", r.Err())
	}
	// a point takes at least 2 bits, every other item at least 2
	if !enough(r, points+bulges+ids+widths, 2) {
		return nil, fmt.Errorf("lwpolyline claims %d points: %w", points, binary.ErrShortRead)
	}
	p.Vertices = make([]model.LWVertex, 0, points)
	for i := 0; i < points && r.Good(); i++ {
		var x, y float64
		if i == 0 || v < model.AC1015 {
			x = r.RawDouble()
			y = r.RawDouble()
		} else {
			prev := p.Vertices[i-1]
			x = r.DefaultDouble(prev.X)
			y = r.DefaultDouble(prev.Y)
		}
		p.Vertices = append(p.Vertices, model.LWVertex{X: x, Y: y, StartWidth: p.Width, EndWidth: p.Width})
	}
	for i := 0; i < bulges; i++ {
		b := r.BitDouble()
		if i < len(p.Vertices) {
			p.Vertices[i].Bulge = b
		}
	}
	for i := 0; i < ids; i++ {
		id := int(r.BitLong())
		if i < len(p.Vertices) {
			p.Vertices[i].ID = id
		}
	}
	for i := 0; i < widths; i++ {
		s, e := r.BitDouble(), r.BitDouble()
		if i < len(p.Vertices) {
			p.Vertices[i].StartWidth = s
			p.Vertices[i].EndWidth = e
		}
	}
	return p, nil
}

func parsePolyline2D(v model.Version, r *binary.Reader) (*model.Polyline, int) {
	p := &model.Polyline{}
	p.Flags = int(r.BitShort())
	p.CurveType = int(r.BitShort())
	p.StartWidth = r.BitDouble()
	p.EndWidth = r.BitDouble()
	p.Thickness = readThickness(v, r)
	p.Elevation = r.BitDouble()
	p.Extrusion = readExtrusion(v, r)
	n := 0
	if v >= model.AC1018 {
		n = int(r.BitLong())
	}
	return p, n
}

func parsePolyline3D(v model.Version, r *binary.Reader) (*model.Polyline, int) {
	p := &model.Polyline{Extrusion: model.ZAxis}
	switch r.RawChar() {
	case 1:
		p.Flags |= 4
		p.CurveType = 5
	case 2:
		p.Flags |= 4
		p.CurveType = 6
	}
	p.Flags |= model.Polyline3D | int(r.RawChar()&1)
	n := 0
	if v >= model.AC1018 {
		n = int(r.BitLong())
	}
	return p, n
}

// readVertexHandles reads the vertex references and the SEQEND handle
// of a heavy polyline.
func readVertexHandles(v model.Version, r *binary.Reader, d *decodedEntity, n int) {
	h := d.header.Handle
	if v < model.AC1018 {
		d.first = r.Handle().Resolve(h)
		d.last = r.Handle().Resolve(h)
	} else {
		if !enough(r, n, 8) {
			r.Fail(fmt.Errorf("polyline claims %d vertices: %w", n, binary.ErrShortRead))
			return
		}
		for i := 0; i < n; i++ {
			d.owned = append(d.owned, r.Handle().Resolve(h))
		}
	}
	d.seqEnd = r.Handle().Resolve(h)
}

func parseVertex2D(v model.Version, r *binary.Reader) *model.Vertex {
	vx := &model.Vertex{}
	vx.Flags = int(r.RawChar())
	vx.Position = r.Point3BD()
	vx.StartWidth = r.BitDouble()
	if vx.StartWidth < 0 {
		vx.StartWidth = -vx.StartWidth
		vx.EndWidth = vx.StartWidth
	} else {
		vx.EndWidth = r.BitDouble()
	}
	vx.Bulge = r.BitDouble()
	if v >= model.AC1024 {
		vx.ID = int(r.BitLong())
	}
	vx.TangentDir = r.BitDouble()
	return vx
}

// DWG stores text angles in radians.
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// R2000+ TEXT data flags; a set bit means the field is absent
const (
	textNoElevation = 0x01
	textNoAlign     = 0x02
	textNoOblique   = 0x04
	textNoRotation  = 0x08
	textNoWidth     = 0x10
	textNoGen       = 0x20
	textNoHAlign    = 0x40
	textNoVAlign    = 0x80
)

func parseText(v model.Version, r *binary.Reader) *model.Text {
	t := &model.Text{WidthScale: 1}
	if v < model.AC1015 {
		elevation := r.BitDouble()
		t.Position = r.Point2RD()
		t.AlignPoint = r.Point2RD()
		t.Position.Z, t.AlignPoint.Z = elevation, elevation
		t.Extrusion = r.Point3BD()
		t.Thickness = r.BitDouble()
		t.Oblique = degrees(r.BitDouble())
		t.Rotation = degrees(r.BitDouble())
		t.Height = r.BitDouble()
		t.WidthScale = r.BitDouble()
		t.Value = readText(v, r)
		t.Generation = int(r.BitShort())
		t.HAlign = int(r.BitShort())
		t.VAlign = int(r.BitShort())
		return t
	}
	flags := r.RawChar()
	var elevation float64
	if flags&textNoElevation == 0 {
		elevation = r.RawDouble()
	}
	t.Position = r.Point2RD()
	t.Position.Z = elevation
	if flags&textNoAlign == 0 {
		t.AlignPoint.X = r.DefaultDouble(t.Position.X)
		t.AlignPoint.Y = r.DefaultDouble(t.Position.Y)
		t.AlignPoint.Z = elevation
	} else {
		t.AlignPoint = t.Position
	}
	t.Extrusion = readExtrusion(v, r)
	t.Thickness = readThickness(v, r)
	if flags&textNoOblique == 0 {
		t.Oblique = degrees(r.RawDouble())
	}
	if flags&textNoRotation == 0 {
		t.Rotation = degrees(r.RawDouble())
	}
	t.Height = r.RawDouble()
	if flags&textNoWidth == 0 {
		t.WidthScale = r.RawDouble()
	}
	t.Value = readText(v, r)
	if flags&textNoGen == 0 {
		t.Generation = int(r.BitShort())
	}
	if flags&textNoHAlign == 0 {
		t.HAlign = int(r.BitShort())
	}
	if flags&textNoVAlign == 0 {
		t.VAlign = int(r.BitShort())
	}
	return t
}

func parseMText(v model.Version, r *binary.Reader) *model.MText {
	t := &model.MText{LineSpacingFactor: 1}
	t.Position = r.Point3BD()
	t.Extrusion = r.Point3BD()
	t.XAxis = r.Point3BD()
	t.RectWidth = r.BitDouble()
	if v >= model.AC1021 {
		t.RectHeight = r.BitDouble()
	}
	t.Height = r.BitDouble()
	t.Attachment = int(r.BitShort())
	t.DrawingDir = int(r.BitShort())
	r.BitDouble() // extents height
	r.BitDouble() // extents width
	t.Value = readText(v, r)
	if v >= model.AC1015 {
		t.LineSpacingStyle = int(r.BitShort())
		t.LineSpacingFactor = r.BitDouble()
		r.Bit()
	}
	if v >= model.AC1018 {
		t.BackgroundFlags = int(r.BitLong())
		if t.BackgroundFlags == 1 {
			r.BitDouble() // fill scale
			readColor(v, r)
			r.BitLong() // transparency
		}
	}
	return t
}

// parseViewport reads the view placement. From R2000 on the fields after
// the view center are skipped by the handle stream seek.
func parseViewport(v model.Version, r *binary.Reader) *model.Viewport {
	vp := &model.Viewport{}
	vp.Center = r.Point3BD()
	vp.Width = r.BitDouble()
	vp.Height = r.BitDouble()
	if v >= model.AC1015 {
		vp.Target = r.Point3BD()
		vp.ViewDir = r.Point3BD()
		vp.TwistAngle = r.BitDouble()
		vp.ViewHeight = r.BitDouble()
		vp.LensLength = r.BitDouble()
		vp.FrontClip = r.BitDouble()
		vp.BackClip = r.BitDouble()
		vp.SnapAngle = r.BitDouble()
		vp.ViewCenter = r.Point2RD()
	}
	return vp
}
