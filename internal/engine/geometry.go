package engine

import (
	"math"

	"github.com/lewtec/anotador/internal/domain"
)

const (
	// minShapeSize is the smallest drag, in both axes, that becomes a shape
	minShapeSize = 10.0
	// hitTolerance expands shape bounds when selecting
	hitTolerance = 10.0
	// selectionPadding expands shape bounds when drawing the selection outline
	selectionPadding = 5.0

	arrowHeadLength = 15.0
	arrowHeadAngle  = math.Pi / 6
	labelOffset     = 10.0
	textPadding     = 4.0
)

// box is an axis aligned rectangle with Min <= Max on both axes
type box struct {
	MinX, MinY, MaxX, MaxY float64
}

func normalizedBox(a, b domain.Point) box {
	return box{
		MinX: math.Min(a.X, b.X),
		MinY: math.Min(a.Y, b.Y),
		MaxX: math.Max(a.X, b.X),
		MaxY: math.Max(a.Y, b.Y),
	}
}

func (b box) Width() float64  { return b.MaxX - b.MinX }
func (b box) Height() float64 { return b.MaxY - b.MinY }

func (b box) expand(d float64) box {
	return box{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// contains is inclusive on every edge
func (b box) contains(p domain.Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// isDegenerate reports whether a drag from a to b is too small to keep.
// A drag counts only when it spans at least minShapeSize on one axis, so a
// perfectly horizontal arrow survives.
func isDegenerate(a, b domain.Point) bool {
	bx := normalizedBox(a, b)
	return bx.Width() < minShapeSize && bx.Height() < minShapeSize
}

// fitScale returns the factor that fits a native image into the viewport
// without ever upscaling.
func fitScale(nativeW, nativeH, viewportW, viewportH int) float64 {
	s := 1.0
	if viewportW > 0 {
		s = math.Min(s, float64(viewportW)/float64(nativeW))
	}
	if viewportH > 0 {
		s = math.Min(s, float64(viewportH)/float64(nativeH))
	}
	return s
}

func scaledSize(native int, scale float64) int {
	v := int(math.Round(float64(native) * scale))
	if v < 1 {
		return 1
	}
	return v
}

// clampPoint moves p to the nearest pixel inside a w x h canvas
func clampPoint(p domain.Point, w, h int) domain.Point {
	return domain.Point{
		X: math.Max(0, math.Min(p.X, float64(w-1))),
		Y: math.Max(0, math.Min(p.Y, float64(h-1))),
	}
}

// arrowHead returns the two barb ends of the head drawn at extent. The apex
// of the head is extent itself.
func arrowHead(anchor, extent domain.Point) (domain.Point, domain.Point) {
	angle := math.Atan2(extent.Y-anchor.Y, extent.X-anchor.X)
	left := domain.Point{
		X: extent.X - arrowHeadLength*math.Cos(angle-arrowHeadAngle),
		Y: extent.Y - arrowHeadLength*math.Sin(angle-arrowHeadAngle),
	}
	right := domain.Point{
		X: extent.X - arrowHeadLength*math.Cos(angle+arrowHeadAngle),
		Y: extent.Y - arrowHeadLength*math.Sin(angle+arrowHeadAngle),
	}
	return left, right
}

// bounds returns the bounding box used for hit-testing and the selection
// outline. Text shapes are measured with the session font.
func (e *Engine) bounds(s domain.Shape) box {
	if s.Extent != nil {
		return normalizedBox(s.Anchor, *s.Extent)
	}
	w, ascent, descent := e.render.measure(s.LabelText())
	return box{
		MinX: s.Anchor.X - textPadding,
		MinY: s.Anchor.Y - ascent - textPadding,
		MaxX: s.Anchor.X + w + textPadding,
		MaxY: s.Anchor.Y + descent + textPadding,
	}
}

// hitTest returns the id of the topmost shape whose tolerance box holds p
func (e *Engine) hitTest(p domain.Point) string {
	for i := len(e.shapes) - 1; i >= 0; i-- {
		if e.bounds(e.shapes[i]).expand(hitTolerance).contains(p) {
			return e.shapes[i].ID
		}
	}
	return ""
}
