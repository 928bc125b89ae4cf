package model

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEllipseCorrectAxis(t *testing.T) {
	e := &Ellipse{
		MajorAxis:  Coord{10, 0, 0},
		Ratio:      2,
		StartParam: 0,
		EndParam:   math.Pi,
	}
	e.CorrectAxis()

	if !near(e.Ratio, 0.5) {
		t.Errorf("Ratio = %v, want 0.5", e.Ratio)
	}
	if !near(e.MajorAxis.X, 0) || !near(e.MajorAxis.Y, 20) {
		t.Errorf("MajorAxis = %+v, want (0,20)", e.MajorAxis)
	}
	if !near(e.StartParam, 3*math.Pi/2) {
		t.Errorf("StartParam = %v, want 3π/2", e.StartParam)
	}
	if !near(e.EndParam, math.Pi/2) {
		t.Errorf("EndParam = %v, want π/2", e.EndParam)
	}
}

func TestEllipseCorrectAxisFull(t *testing.T) {
	e := &Ellipse{MajorAxis: Coord{5, 0, 0}, Ratio: 0.5, StartParam: 1, EndParam: 1}
	e.CorrectAxis()
	if e.StartParam != 0 || !near(e.EndParam, 2*math.Pi) {
		t.Errorf("params = (%v,%v), want (0,2π)", e.StartParam, e.EndParam)
	}
	if e.Ratio != 0.5 || e.MajorAxis != (Coord{5, 0, 0}) {
		t.Errorf("axis changed for ratio <= 1: %+v %v", e.MajorAxis, e.Ratio)
	}

	// a complete ellipse keeps its parameters while the axes swap
	e = &Ellipse{MajorAxis: Coord{1, 0, 0}, Ratio: 4, StartParam: 0, EndParam: 2 * math.Pi}
	e.CorrectAxis()
	if !near(e.Ratio, 0.25) || e.StartParam != 0 || !near(e.EndParam, 2*math.Pi) {
		t.Errorf("complete ellipse = ratio %v params (%v,%v)", e.Ratio, e.StartParam, e.EndParam)
	}
}

func TestArbitraryAxis(t *testing.T) {
	ax, ay := ArbitraryAxis(ZAxis)
	if ax != (Coord{1, 0, 0}) {
		t.Errorf("ax = %+v, want (1,0,0)", ax)
	}
	if ay != (Coord{0, 1, 0}) {
		t.Errorf("ay = %+v, want (0,1,0)", ay)
	}

	// extrusion along -Z mirrors X
	p := ExtrudePoint(Coord{0, 0, -1}, Coord{2, 3, 0})
	if !near(p.X, -2) || !near(p.Y, 3) || !near(p.Z, 0) {
		t.Errorf("ExtrudePoint = %+v, want (-2,3,0)", p)
	}

	// extrusion along +X: OCS x maps to world y
	p = ExtrudePoint(Coord{1, 0, 0}, Coord{1, 0, 0})
	if !near(p.X, 0) || !near(p.Y, 1) || !near(p.Z, 0) {
		t.Errorf("ExtrudePoint = %+v, want (0,1,0)", p)
	}
}

func TestArcApplyExtrusionMirrorsAngles(t *testing.T) {
	a := &Arc{Center: Coord{1, 1, 0}, Radius: 1, Extrusion: Coord{0, 0, -1}, StartAngle: 0, EndAngle: math.Pi / 2}
	a.ApplyExtrusion()
	if !near(a.Center.X, -1) || !near(a.Center.Y, 1) {
		t.Errorf("Center = %+v, want (-1,1)", a.Center)
	}
	if !near(a.StartAngle, math.Pi/2) || !near(a.EndAngle, math.Pi) {
		t.Errorf("angles = (%v,%v), want (π/2,π)", a.StartAngle, a.EndAngle)
	}
}

func TestBulgeArc(t *testing.T) {
	// half circle from (0,0) to (2,0), counter-clockwise
	c, r, start, end, ok := BulgeArc(0, 0, 2, 0, 1)
	if !ok {
		t.Fatal("BulgeArc reported a straight segment")
	}
	if !near(c.X, 1) || !near(c.Y, 0) || !near(r, 1) {
		t.Errorf("center %+v radius %v, want (1,0) 1", c, r)
	}
	if !near(math.Abs(start), math.Pi) || !near(end, 0) {
		t.Errorf("angles = (%v,%v), want (π,0)", start, end)
	}

	if _, _, _, _, ok := BulgeArc(0, 0, 1, 1, 0); ok {
		t.Error("zero bulge should be straight")
	}
}
