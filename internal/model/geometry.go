package model

import "math"

// arbitrary axis algorithm threshold
const axisLimit = 1.0 / 64

// ArbitraryAxis computes the OCS X and Y axes for the extrusion
// direction n.
func ArbitraryAxis(n Coord) (ax, ay Coord) {
	n = n.Unit()
	if math.Abs(n.X) < axisLimit && math.Abs(n.Y) < axisLimit {
		ax = Coord{n.Z, 0, -n.X}
	} else {
		ax = Coord{-n.Y, n.X, 0}
	}
	ax = ax.Unit()
	ay = n.Cross(ax).Unit()
	return ax, ay
}

// ExtrudePoint converts p from the OCS of extrusion n to world
// coordinates.
func ExtrudePoint(n, p Coord) Coord {
	ax, ay := ArbitraryAxis(n)
	n = n.Unit()
	return Coord{
		ax.X*p.X + ay.X*p.Y + n.X*p.Z,
		ax.Y*p.X + ay.Y*p.Y + n.Y*p.Z,
		ax.Z*p.X + ay.Z*p.Y + n.Z*p.Z,
	}
}

// HasExtrusion reports whether n differs from the default Z axis.
func HasExtrusion(n Coord) bool {
	return n != ZAxis && n != (Coord{})
}

// ApplyExtrusion moves the center to world coordinates.
func (c *Circle) ApplyExtrusion() {
	if HasExtrusion(c.Extrusion) {
		c.Center = ExtrudePoint(c.Extrusion, c.Center)
	}
}

// ApplyExtrusion moves the center to world coordinates. Arcs seen from
// below (extrusion close to -Z) have their angles mirrored so that they
// stay counter-clockwise in the world XY plane.
func (a *Arc) ApplyExtrusion() {
	if !HasExtrusion(a.Extrusion) {
		return
	}
	a.Center = ExtrudePoint(a.Extrusion, a.Center)
	n := a.Extrusion
	if math.Abs(n.X) < axisLimit && math.Abs(n.Y) < axisLimit && n.Z < 0 {
		start := math.Pi - a.StartAngle
		end := math.Pi - a.EndAngle
		a.StartAngle, a.EndAngle = end, start
	}
}

// ApplyExtrusion converts every vertex to world coordinates. The vertices
// keep only X and Y, so this is meaningful for extrusions that map the
// OCS plane onto a plane parallel to world XY.
func (p *LWPolyline) ApplyExtrusion() {
	if !HasExtrusion(p.Extrusion) {
		return
	}
	for i := range p.Vertices {
		v := ExtrudePoint(p.Extrusion, Coord{p.Vertices[i].X, p.Vertices[i].Y, p.Elevation})
		p.Vertices[i].X = v.X
		p.Vertices[i].Y = v.Y
	}
}

// ApplyExtrusion converts the corner points to world coordinates.
func (t *Trace) ApplyExtrusion() {
	if !HasExtrusion(t.Extrusion) {
		return
	}
	for i := range t.Corners {
		t.Corners[i] = ExtrudePoint(t.Extrusion, t.Corners[i])
	}
}

// CorrectAxis canonicalizes an ellipse whose ratio exceeds 1 by swapping
// the roles of the major and minor axes. Equal start and end parameters
// are normalized to a full ellipse.
func (e *Ellipse) CorrectAxis() {
	complete := false
	if e.StartParam == e.EndParam {
		e.StartParam = 0
		e.EndParam = 2 * math.Pi
		complete = true
	}
	if e.Ratio <= 1 {
		return
	}
	if math.Abs(e.EndParam-e.StartParam-2*math.Pi) < 1.0e-10 {
		complete = true
	}
	e.MajorAxis = Coord{-e.MajorAxis.Y * e.Ratio, e.MajorAxis.X * e.Ratio, e.MajorAxis.Z}
	e.Ratio = 1 / e.Ratio
	if !complete {
		if e.StartParam < math.Pi/2 {
			e.StartParam += 2 * math.Pi
		}
		if e.EndParam < math.Pi/2 {
			e.EndParam += 2 * math.Pi
		}
		e.EndParam -= math.Pi / 2
		e.StartParam -= math.Pi / 2
	}
}

// BulgeArc returns the center, radius and the start and end angles of the
// arc segment between two vertices with the given bulge. ok is false for
// straight segments.
func BulgeArc(x1, y1, x2, y2, bulge float64) (center Coord, radius, start, end float64, ok bool) {
	if bulge == 0 {
		return Coord{}, 0, 0, 0, false
	}
	dx, dy := x2-x1, y2-y1
	chord := math.Hypot(dx, dy)
	if chord == 0 {
		return Coord{}, 0, 0, 0, false
	}
	theta := 4 * math.Atan(bulge)
	radius = chord / (2 * math.Sin(theta/2))
	// distance from chord midpoint to the center
	h := radius * math.Cos(theta/2)
	mx, my := (x1+x2)/2, (y1+y2)/2
	center = Coord{mx - h*dy/chord, my + h*dx/chord, 0}
	radius = math.Abs(radius)
	start = math.Atan2(y1-center.Y, x1-center.X)
	end = math.Atan2(y2-center.Y, x2-center.X)
	if bulge < 0 {
		start, end = end, start
	}
	return center, radius, start, end, true
}
