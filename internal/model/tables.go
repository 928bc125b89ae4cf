package model

// TableEntry is the prologue shared by all symbol table records.
type TableEntry struct {
	Handle      Handle
	Owner       Handle // the table's control object
	Name        string
	Flags       int // DXF group 70
	XRefIndex   int
	NumReactors int
	XDict       Handle
	ExtData     []XData
}

// Table flag bits (DXF group 70).
const (
	FlagFrozen        = 1
	FlagFrozenNew     = 2
	FlagLocked        = 4
	FlagXRefDependent = 16
	FlagXRefResolved  = 32
	FlagReferenced    = 64
)

// Dash is one element of a line type pattern.
type Dash struct {
	Length      float64
	ShapeNumber int
	OffsetX     float64
	OffsetY     float64
	Scale       float64
	Rotation    float64
	ShapeFlag   int
}

// LineType describes a dash pattern.
type LineType struct {
	TableEntry
	Description string
	Alignment   int // always 'A'
	Length      float64
	Dashes      []Dash
}

// Layer is a named drawing layer.
type Layer struct {
	TableEntry
	Color          int // negative means "off"
	LineType       string
	LineTypeHandle Handle
	LineWeight     LineWidth
	Plot           bool
	PlotStyle      Handle
}

// Frozen reports the frozen bit.
func (l *Layer) Frozen() bool { return l.Flags&FlagFrozen != 0 }

// Locked reports the locked bit.
func (l *Layer) Locked() bool { return l.Flags&FlagLocked != 0 }

// On reports whether the layer is displayed.
func (l *Layer) On() bool { return l.Color >= 0 }

// TextStyle is a text font definition.
type TextStyle struct {
	TableEntry
	Height     float64
	Width      float64
	Oblique    float64
	GenFlag    int
	LastHeight float64
	Font       string
	BigFont    string
}

// DimStyle is a dimension style. Only the name and flags are decoded from
// DWG; the DXF path keeps the common scale settings as well.
type DimStyle struct {
	TableEntry
	Scale      float64 // DIMSCALE
	ArrowSize  float64 // DIMASZ
	TextHeight float64 // DIMTXT
	Gap        float64 // DIMGAP
}

// Vport is a viewport table record.
type Vport struct {
	TableEntry
	LowerLeft  Coord
	UpperRight Coord
	Center     Coord
	ViewDir    Coord
	Target     Coord
	Height     float64
	Ratio      float64
	LensLength float64
}

// AppID is a registered application name.
type AppID struct {
	TableEntry
}

// BlockRecord is the table record behind each block definition.
type BlockRecord struct {
	TableEntry
	BasePoint   Coord
	Description string
	XRefPath    string
	Block       Handle // the BLOCK entity
	EndBlock    Handle // the ENDBLK entity
	FirstEntity Handle // pre-2004 linked list
	LastEntity  Handle
	Entities    []Handle // 2004+ owned entity list
	Inserts     []Handle
	Layout      Handle
	Units       int
	Explodable  bool
	Scaling     int
}

// Class describes a custom object class stored in the drawing.
type Class struct {
	Number     int
	ProxyFlags int
	AppName    string
	ClassName  string
	RecordName string
	WasAZombie bool
	IsEntity   bool
	DWGType    int // fixed type code this class maps to, 0 if none
}
