// Package model holds the version-independent representation of a CAD
// drawing. It is shared by the DWG decoder, the DXF reader and the DXF
// writer.
package model

import (
	"math"

	"github.com/elliotwutingfeng/asciiset"
)

// Handle identifies an object within a drawing. The zero handle means
// "no object".
type Handle uint64

// Coord is a point or a vector in 3D space.
type Coord struct {
	X, Y, Z float64
}

// ZAxis is the default extrusion direction.
var ZAxis = Coord{0, 0, 1}

// Add returns c+o.
func (c Coord) Add(o Coord) Coord { return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z} }

// Sub returns c-o.
func (c Coord) Sub(o Coord) Coord { return Coord{c.X - o.X, c.Y - o.Y, c.Z - o.Z} }

// Scale multiplies every component by f.
func (c Coord) Scale(f float64) Coord { return Coord{c.X * f, c.Y * f, c.Z * f} }

// Cross returns the cross product c×o.
func (c Coord) Cross(o Coord) Coord {
	return Coord{
		c.Y*o.Z - c.Z*o.Y,
		c.Z*o.X - c.X*o.Z,
		c.X*o.Y - c.Y*o.X,
	}
}

// Length returns the euclidean norm.
func (c Coord) Length() float64 { return math.Sqrt(c.X*c.X + c.Y*c.Y + c.Z*c.Z) }

// Unit returns c scaled to length 1. The zero vector is returned unchanged.
func (c Coord) Unit() Coord {
	l := c.Length()
	if l == 0 {
		return c
	}
	return c.Scale(1 / l)
}

// Version is a drawing format revision, identified in files by a six
// character ASCII signature.
type Version int

const (
	VersionUnknown Version = iota
	AC1006                 // R10
	AC1009                 // R11 and R12
	AC1012                 // R13
	AC1014                 // R14
	AC1015                 // R2000
	AC1018                 // R2004
	AC1021                 // R2007
	AC1024                 // R2010
	AC1027                 // R2013
	AC1032                 // R2018
)

var versionNames = [...]struct{ sig, release string }{
	VersionUnknown: {"", "unknown"},
	AC1006:         {"AC1006", "R10"},
	AC1009:         {"AC1009", "R12"},
	AC1012:         {"AC1012", "R13"},
	AC1014:         {"AC1014", "R14"},
	AC1015:         {"AC1015", "R2000"},
	AC1018:         {"AC1018", "R2004"},
	AC1021:         {"AC1021", "R2007"},
	AC1024:         {"AC1024", "R2010"},
	AC1027:         {"AC1027", "R2013"},
	AC1032:         {"AC1032", "R2018"},
}

// String returns the file signature, e.g. "AC1015".
func (v Version) String() string {
	if v < 0 || int(v) >= len(versionNames) {
		return ""
	}
	return versionNames[v].sig
}

// Release returns the marketing name, e.g. "R2000".
func (v Version) Release() string {
	if v < 0 || int(v) >= len(versionNames) {
		return "unknown"
	}
	return versionNames[v].release
}

var signatureChars, _ = asciiset.MakeASCIISet("AC0123456789")

// ParseVersion maps a file signature to a Version. Anything that is not
// one of the known signatures yields VersionUnknown.
func ParseVersion(sig string) Version {
	if len(sig) != 6 {
		return VersionUnknown
	}
	for i := 0; i < len(sig); i++ {
		if !signatureChars.Contains(sig[i]) {
			return VersionUnknown
		}
	}
	for v := AC1006; v <= AC1032; v++ {
		if versionNames[v].sig == sig {
			return v
		}
	}
	return VersionUnknown
}

// Space tells which layout an entity lives in.
type Space int

const (
	ModelSpace Space = 0
	PaperSpace Space = 1
)

// Standard color numbers.
const (
	ColorByBlock = 0
	ColorByLayer = 256
)

// LineWidth is the enumerated line weight shared by DWG and DXF.
// Values 0 to 23 are widths, the remaining values are the special
// ByLayer/ByBlock/Default markers.
type LineWidth int

const (
	WidthByLayer LineWidth = 29
	WidthByBlock LineWidth = 30
	WidthDefault LineWidth = 31
)

// hundredths of a millimetre for widths 0..23
var lineWidthDXF = [...]int{0, 5, 9, 13, 15, 18, 20, 25, 30, 35, 40, 50, 53, 60, 70, 80, 90, 100, 106, 120, 140, 158, 200, 211}

// LineWidthFromDWG converts the DWG line weight index.
func LineWidthFromDWG(i int) LineWidth {
	if (i >= 0 && i < len(lineWidthDXF)) || (i > 28 && i < 32) {
		return LineWidth(i)
	}
	return WidthDefault
}

// LineWidthFromDXF converts a DXF group 370 value. Widths between the
// standard steps round down.
func LineWidthFromDXF(v int) LineWidth {
	switch {
	case v == -1:
		return WidthByLayer
	case v == -2:
		return WidthByBlock
	case v < 0:
		return WidthDefault
	}
	w := LineWidth(0)
	for i, step := range lineWidthDXF {
		if v >= step {
			w = LineWidth(i)
		}
	}
	return w
}

// DXF returns the DXF group 370 value.
func (w LineWidth) DXF() int {
	switch w {
	case WidthByLayer:
		return -1
	case WidthByBlock:
		return -2
	case WidthDefault:
		return -3
	}
	if w >= 0 && int(w) < len(lineWidthDXF) {
		return lineWidthDXF[w]
	}
	return -3
}

// XData is one interpreted extended-data chunk.
type XData struct {
	App   Handle // registered application
	Code  int    // DXF group code of the value
	Value string
}
