package model

// Kind tags the concrete type of an Entity.
type Kind int

const (
	KindUnknown Kind = iota
	KindPoint
	KindLine
	KindRay
	KindXLine
	KindCircle
	KindArc
	KindEllipse
	KindTrace
	KindSolid
	Kind3DFace
	KindBlock
	KindInsert
	KindLWPolyline
	KindPolyline
	KindVertex
	KindText
	KindMText
	KindViewport
	KindHatch
	KindSpline
	KindLeader
	KindDimension
)

var kindNames = [...]string{
	KindUnknown:    "UNKNOWN",
	KindPoint:      "POINT",
	KindLine:       "LINE",
	KindRay:        "RAY",
	KindXLine:      "XLINE",
	KindCircle:     "CIRCLE",
	KindArc:        "ARC",
	KindEllipse:    "ELLIPSE",
	KindTrace:      "TRACE",
	KindSolid:      "SOLID",
	Kind3DFace:     "3DFACE",
	KindBlock:      "BLOCK",
	KindInsert:     "INSERT",
	KindLWPolyline: "LWPOLYLINE",
	KindPolyline:   "POLYLINE",
	KindVertex:     "VERTEX",
	KindText:       "TEXT",
	KindMText:      "MTEXT",
	KindViewport:   "VIEWPORT",
	KindHatch:      "HATCH",
	KindSpline:     "SPLINE",
	KindLeader:     "LEADER",
	KindDimension:  "DIMENSION",
}

// String returns the DXF entity name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Entity is implemented by every graphical entity.
type Entity interface {
	Common() *EntityCommon
	Kind() Kind
}

// EntityCommon is the prologue shared by all entities. Layer and LineType
// hold resolved names; the raw handles are kept so that dangling
// references stay detectable.
type EntityCommon struct {
	Handle         Handle
	Owner          Handle // owning block record
	Space          Space
	Layer          string
	LayerHandle    Handle
	LineType       string
	LineTypeHandle Handle
	Color          int
	LineWeight     LineWidth
	LineTypeScale  float64
	Visible        bool
	Material       int // 2007+ material flags
	Shadow         int // 2007+ shadow flags
	PlotStyle      Handle
	XDict          Handle
	NumReactors    int
	ExtData        []XData

	// pre-2000 linked list between entities of one block
	PrevEntity Handle
	NextEntity Handle
}

// Common returns the shared prologue.
func (c *EntityCommon) Common() *EntityCommon { return c }

// NewEntityCommon returns the prologue defaults used when a field is
// absent from the input.
func NewEntityCommon() EntityCommon {
	return EntityCommon{
		Layer:         "0",
		LineType:      "BYLAYER",
		Color:         ColorByLayer,
		LineWeight:    WidthByLayer,
		LineTypeScale: 1,
		Visible:       true,
	}
}

type Point struct {
	EntityCommon
	Position   Coord
	Thickness  float64
	Extrusion  Coord
	XAxisAngle float64
}

func (*Point) Kind() Kind { return KindPoint }

type Line struct {
	EntityCommon
	Start     Coord
	End       Coord
	Thickness float64
	Extrusion Coord
}

func (*Line) Kind() Kind { return KindLine }

// Ray is a semi-infinite line.
type Ray struct {
	EntityCommon
	Origin    Coord
	Direction Coord
}

func (*Ray) Kind() Kind { return KindRay }

// XLine is an infinite construction line.
type XLine struct {
	EntityCommon
	Origin    Coord
	Direction Coord
}

func (*XLine) Kind() Kind { return KindXLine }

type Circle struct {
	EntityCommon
	Center    Coord
	Radius    float64
	Thickness float64
	Extrusion Coord
}

func (*Circle) Kind() Kind { return KindCircle }

// Arc angles are in radians, counter-clockwise around Extrusion.
type Arc struct {
	EntityCommon
	Center     Coord
	Radius     float64
	Thickness  float64
	Extrusion  Coord
	StartAngle float64
	EndAngle   float64
}

func (*Arc) Kind() Kind { return KindArc }

type Ellipse struct {
	EntityCommon
	Center     Coord
	MajorAxis  Coord // endpoint of the major axis relative to Center
	Extrusion  Coord
	Ratio      float64
	StartParam float64
	EndParam   float64
}

func (*Ellipse) Kind() Kind { return KindEllipse }

// Trace is a filled quadrilateral in the OCS plane.
type Trace struct {
	EntityCommon
	Corners   [4]Coord
	Thickness float64
	Extrusion Coord
}

func (*Trace) Kind() Kind { return KindTrace }

// Solid shares the layout of Trace.
type Solid struct {
	Trace
}

func (*Solid) Kind() Kind { return KindSolid }

// Face3D is a three or four sided face. InvisibleEdges is the DXF group 70
// bit set.
type Face3D struct {
	EntityCommon
	Corners        [4]Coord
	InvisibleEdges int
}

func (*Face3D) Kind() Kind { return Kind3DFace }

// Block is the BLOCK entity opening a block definition.
type Block struct {
	EntityCommon
	Name        string
	BasePoint   Coord
	Flags       int
	Description string
	XRefPath    string
	Record      Handle // block record owning this definition
}

func (*Block) Kind() Kind { return KindBlock }

// Insert references a block definition. MINSERT arrays use the column and
// row fields; a plain INSERT has one of each.
type Insert struct {
	EntityCommon
	BlockName   string
	BlockRecord Handle
	Position    Coord
	Scale       Coord
	Angle       float64
	Extrusion   Coord
	HasAttribs  bool
	ColCount    int
	RowCount    int
	ColSpacing  float64
	RowSpacing  float64
}

func (*Insert) Kind() Kind { return KindInsert }

// LWVertex is a vertex of a lightweight polyline.
type LWVertex struct {
	X, Y       float64
	StartWidth float64
	EndWidth   float64
	Bulge      float64
	ID         int
}

// LWPolyline flag bits (DXF group 70).
const (
	PolylineClosed   = 1
	PolylinePlinegen = 128
)

type LWPolyline struct {
	EntityCommon
	Flags     int
	Width     float64
	Elevation float64
	Thickness float64
	Extrusion Coord
	Vertices  []LWVertex
}

func (*LWPolyline) Kind() Kind { return KindLWPolyline }

// Closed reports whether the last vertex connects back to the first.
func (p *LWPolyline) Closed() bool { return p.Flags&PolylineClosed != 0 }

// Polyline flag bits (DXF group 70) beyond PolylineClosed.
const (
	Polyline3D       = 8
	PolylinePolyMesh = 16
)

// Polyline is a heavy polyline with separate vertex objects.
type Polyline struct {
	EntityCommon
	Flags      int
	CurveType  int
	StartWidth float64
	EndWidth   float64
	Elevation  float64
	Thickness  float64
	Extrusion  Coord
	Vertices   []*Vertex
}

func (*Polyline) Kind() Kind { return KindPolyline }

type Vertex struct {
	EntityCommon
	Position   Coord
	StartWidth float64
	EndWidth   float64
	Bulge      float64
	Flags      int
	TangentDir float64
	ID         int
}

func (*Vertex) Kind() Kind { return KindVertex }

// Text alignment values (DXF groups 72 and 73).
const (
	HAlignLeft   = 0
	HAlignCenter = 1
	HAlignRight  = 2
	VAlignBase   = 0
	VAlignBottom = 1
	VAlignMiddle = 2
	VAlignTop    = 3
)

type Text struct {
	EntityCommon
	Position    Coord
	AlignPoint  Coord
	Height      float64
	Rotation    float64 // degrees
	WidthScale  float64
	Oblique     float64 // degrees
	Style       string
	StyleHandle Handle
	Generation  int
	HAlign      int
	VAlign      int
	Value       string
	Thickness   float64
	Extrusion   Coord
}

func (*Text) Kind() Kind { return KindText }

type MText struct {
	EntityCommon
	Position          Coord
	XAxis             Coord
	Extrusion         Coord
	RectWidth         float64
	RectHeight        float64
	Height            float64
	Attachment        int
	DrawingDir        int
	Value             string
	Style             string
	StyleHandle       Handle
	LineSpacingStyle  int
	LineSpacingFactor float64
	BackgroundFlags   int
}

func (*MText) Kind() Kind { return KindMText }

type Viewport struct {
	EntityCommon
	Center     Coord
	Width      float64
	Height     float64
	Target     Coord
	ViewDir    Coord
	TwistAngle float64
	ViewHeight float64
	LensLength float64
	FrontClip  float64
	BackClip   float64
	SnapAngle  float64
	ViewCenter Coord
	Status     int
	ID         int
}

func (*Viewport) Kind() Kind { return KindViewport }

// HatchLoop is a boundary path of a hatch, stored as a polyline.
type HatchLoop struct {
	Type     int
	Closed   bool
	Vertices []LWVertex
}

type Hatch struct {
	EntityCommon
	Pattern     string
	Solid       bool
	Associative bool
	Style       int
	PatternType int
	Angle       float64
	Scale       float64
	Elevation   Coord
	Extrusion   Coord
	Loops       []HatchLoop
}

func (*Hatch) Kind() Kind { return KindHatch }

type Spline struct {
	EntityCommon
	Normal           Coord
	Flags            int
	Degree           int
	KnotTolerance    float64
	ControlTolerance float64
	FitTolerance     float64
	StartTangent     Coord
	EndTangent       Coord
	Knots            []float64
	ControlPoints    []Coord
	Weights          []float64
	FitPoints        []Coord
}

func (*Spline) Kind() Kind { return KindSpline }

type Leader struct {
	EntityCommon
	Style      string
	Arrow      int
	PathType   int
	Creation   int
	HookLine   int
	TextHeight float64
	TextWidth  float64
	Vertices   []Coord
	Extrusion  Coord
}

func (*Leader) Kind() Kind { return KindLeader }

// DimKind selects the dimension variant (low bits of DXF group 70).
type DimKind int

const (
	DimLinear DimKind = iota
	DimAligned
	DimAngular
	DimDiameter
	DimRadius
	DimAngular3P
	DimOrdinate
)

// Dimension covers all dimension variants. The meaning of Def1..Def4
// follows DXF groups 13, 14, 15 and 16.
type Dimension struct {
	EntityCommon
	DimKind    DimKind
	Style      string
	BlockName  string
	DefPoint   Coord // group 10
	TextPoint  Coord // group 11
	Def1       Coord
	Def2       Coord
	Def3       Coord
	Def4       Coord
	Angle      float64 // group 50, rotation of linear dimensions
	Oblique    float64 // group 52
	Leader     float64 // group 40, leader length of radial dimensions
	Text       string
	Attachment int
	Extrusion  Coord
}

func (*Dimension) Kind() Kind { return KindDimension }
