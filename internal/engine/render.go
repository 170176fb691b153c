package engine

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/lewtec/anotador/internal/domain"
)

const (
	strokeWidth      = 3.0
	pillPaddingX     = 8.0
	pillPaddingY     = 4.0
	selectionDash    = 6.0
	selectionStroke  = 1.5
	blurOverlayAlpha = 0.8
	pillOpacity      = 0.95
	textBoxOpacity   = 0.7
)

var (
	selectionColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	pillTextColor  = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
)

var parseRegular = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

// renderer draws shapes with a single font face. A face is not safe for
// concurrent use, so each Engine owns its renderer.
type renderer struct {
	face font.Face
}

func newRenderer(size float64) (*renderer, error) {
	f, err := parseRegular()
	if err != nil {
		return nil, err
	}
	return &renderer{face: truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})}, nil
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

// measure returns the advance width, ascent and descent of s
func (r *renderer) measure(s string) (float64, float64, float64) {
	m := r.face.Metrics()
	return fixedToFloat(font.MeasureString(r.face, s)), fixedToFloat(m.Ascent), fixedToFloat(m.Descent)
}

// composite draws onto a copy of base. The base image is never modified.
func (r *renderer) composite(base *image.RGBA, shapes []domain.Shape, provisional *domain.Shape, selection *box, fallback string) *image.RGBA {
	dst := image.NewRGBA(base.Bounds())
	xdraw.Draw(dst, dst.Bounds(), base, base.Bounds().Min, xdraw.Src)

	dc := gg.NewContextForRGBA(dst)
	dc.SetFontFace(r.face)
	for _, s := range shapes {
		r.drawShape(dc, s, fallback)
	}
	if provisional != nil {
		r.drawShape(dc, *provisional, fallback)
	}
	if selection != nil {
		drawSelection(dc, selection.expand(selectionPadding))
	}
	return dst
}

func (r *renderer) drawShape(dc *gg.Context, s domain.Shape, fallback string) {
	col, err := domain.ParseHexColor(s.Color)
	if err != nil {
		col, _ = domain.ParseHexColor(fallback)
	}
	switch s.Kind {
	case domain.KindArrow:
		if s.Extent == nil {
			return
		}
		drawArrow(dc, s.Anchor, *s.Extent, col)
		if s.Label != nil {
			r.drawPill(dc, *s.Label, s.Anchor.X, s.Anchor.Y-labelOffset)
		}
	case domain.KindRectangle:
		if s.Extent == nil {
			return
		}
		b := normalizedBox(s.Anchor, *s.Extent)
		dc.SetColor(col)
		dc.SetLineWidth(strokeWidth)
		dc.DrawRectangle(b.MinX, b.MinY, b.Width(), b.Height())
		dc.Stroke()
		if s.Label != nil {
			r.drawPill(dc, *s.Label, b.MinX+b.Width()/2, b.MinY-labelOffset)
		}
	case domain.KindText:
		r.drawText(dc, s.LabelText(), s.Anchor, col)
	case domain.KindBlur:
		if s.Extent == nil {
			return
		}
		// a flat overlay: the pixels underneath are hidden, not convolved
		b := normalizedBox(s.Anchor, *s.Extent)
		dc.SetRGBA(0.5, 0.5, 0.5, blurOverlayAlpha)
		dc.DrawRectangle(b.MinX, b.MinY, b.Width(), b.Height())
		dc.Fill()
	}
}

// drawArrow strokes the shaft up to the base of the head and fills the head
// so that its apex lands exactly on extent.
func drawArrow(dc *gg.Context, anchor, extent domain.Point, col color.Color) {
	left, right := arrowHead(anchor, extent)
	baseX, baseY := (left.X+right.X)/2, (left.Y+right.Y)/2

	dc.SetColor(col)
	dc.SetLineWidth(strokeWidth)
	dc.SetLineCap(gg.LineCapButt)
	if math.Hypot(extent.X-anchor.X, extent.Y-anchor.Y) > arrowHeadLength*math.Cos(arrowHeadAngle) {
		dc.DrawLine(anchor.X, anchor.Y, baseX, baseY)
		dc.Stroke()
	}
	dc.MoveTo(extent.X, extent.Y)
	dc.LineTo(left.X, left.Y)
	dc.LineTo(right.X, right.Y)
	dc.ClosePath()
	dc.Fill()
}

// drawPill renders text on a rounded white badge whose bottom edge sits at
// bottom, centered on cx.
func (r *renderer) drawPill(dc *gg.Context, text string, cx, bottom float64) {
	w, ascent, descent := r.measure(text)
	pw := w + 2*pillPaddingX
	ph := ascent + descent + 2*pillPaddingY
	x, y := cx-pw/2, bottom-ph
	radius := ph / 2

	for i, alpha := range []float64{0.05, 0.08, 0.12} {
		spread := float64(3 - i)
		dc.SetRGBA(0, 0, 0, alpha)
		dc.DrawRoundedRectangle(x-spread, y-spread+2, pw+2*spread, ph+2*spread, radius+spread)
		dc.Fill()
	}
	dc.SetRGBA(1, 1, 1, pillOpacity)
	dc.DrawRoundedRectangle(x, y, pw, ph, radius)
	dc.Fill()

	dc.SetColor(pillTextColor)
	dc.DrawString(text, cx-w/2, y+pillPaddingY+ascent)
}

// drawText renders a text shape with its baseline at anchor
func (r *renderer) drawText(dc *gg.Context, text string, anchor domain.Point, col color.Color) {
	if text == "" {
		return
	}
	w, ascent, descent := r.measure(text)
	dc.SetRGBA(0, 0, 0, textBoxOpacity)
	dc.DrawRectangle(anchor.X-textPadding, anchor.Y-ascent-textPadding, w+2*textPadding, ascent+descent+2*textPadding)
	dc.Fill()
	dc.SetColor(col)
	dc.DrawString(text, anchor.X, anchor.Y)
}

func drawSelection(dc *gg.Context, b box) {
	dc.Push()
	defer dc.Pop()
	dc.SetColor(selectionColor)
	dc.SetLineWidth(selectionStroke)
	dc.SetDash(selectionDash, selectionDash)
	dc.DrawRectangle(b.MinX, b.MinY, b.Width(), b.Height())
	dc.Stroke()
}
