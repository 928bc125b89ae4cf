package dwgconv

import (
	"fmt"
	"math"

	ydxf "github.com/yofu/dxf"
	"github.com/yofu/dxf/drawing"

	"github.com/dyuri/dwgconv/internal/model"
)

// ExportDXF writes a flattened copy of the drawing through the yofu/dxf
// library. Only model space lines, circles, arcs, points, polylines and
// text survive; polyline bulges become straight segments and everything
// lands on the default layer. Use WriteDXF for a faithful conversion.
func ExportDXF(path string, d *model.Drawing) error {
	out := ydxf.NewDrawing()
	for _, e := range d.Entities {
		if err := exportEntity(out, e); err != nil {
			return fmt.Errorf("export %s: %w", e.Kind(), err)
		}
	}
	if err := out.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func exportEntity(out *drawing.Drawing, e model.Entity) error {
	var err error
	switch t := e.(type) {
	case *model.Line:
		_, err = out.Line(t.Start.X, t.Start.Y, t.Start.Z, t.End.X, t.End.Y, t.End.Z)
	case *model.Circle:
		_, err = out.Circle(t.Center.X, t.Center.Y, t.Center.Z, t.Radius)
	case *model.Arc:
		_, err = out.Arc(t.Center.X, t.Center.Y, t.Center.Z, t.Radius,
			t.StartAngle*180/math.Pi, t.EndAngle*180/math.Pi)
	case *model.Point:
		_, err = out.Point(t.Position.X, t.Position.Y, t.Position.Z)
	case *model.Text:
		_, err = out.Text(t.Value, t.Position.X, t.Position.Y, t.Position.Z, t.Height)
	case *model.MText:
		_, err = out.Text(t.Value, t.Position.X, t.Position.Y, t.Position.Z, t.Height)
	case *model.LWPolyline:
		pts := make([]model.Coord, len(t.Vertices))
		for i, v := range t.Vertices {
			pts[i] = model.Coord{X: v.X, Y: v.Y, Z: t.Elevation}
		}
		err = segments(out, pts, t.Closed())
	case *model.Polyline:
		if t.Flags&model.PolylinePolyMesh != 0 {
			return nil
		}
		pts := make([]model.Coord, len(t.Vertices))
		for i, v := range t.Vertices {
			pts[i] = v.Position
		}
		err = segments(out, pts, t.Flags&model.PolylineClosed != 0)
	}
	return err
}

func segments(out *drawing.Drawing, pts []model.Coord, closed bool) error {
	if len(pts) < 2 {
		return nil
	}
	n := len(pts) - 1
	if closed {
		n++
	}
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%len(pts)]
		if _, err := out.Line(a.X, a.Y, a.Z, b.X, b.Y, b.Z); err != nil {
			return err
		}
	}
	return nil
}
