// Package engine implements the annotation canvas: an ordered list of markup
// shapes layered over a fixed base screenshot, the pointer interaction state
// machine that edits it, an undo/redo history of atomic batches and the
// compositor that flattens everything into a raster image.
//
// An Engine is not safe for concurrent use. Every operation runs to
// completion on the calling goroutine; hosts that receive input from several
// goroutines must serialize calls themselves.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"slices"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/lewtec/anotador/internal/domain"
)

var (
	ErrImageLoad         = errors.New("image load error")
	ErrInvalidShapeKind  = errors.New("invalid shape kind")
	ErrMalformedShape    = errors.New("malformed shape")
	ErrDuplicateShapeID  = errors.New("duplicate shape id")
	ErrNoSession         = errors.New("no image loaded")
	ErrShapeNotFound     = errors.New("shape not found")
	ErrUnknownColor      = errors.New("color is not in the palette")
	ErrLabelNotSupported = errors.New("shape kind does not take a label")
)

// Tool is the active markup tool
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolArrow     Tool = "arrow"
	ToolRectangle Tool = "rectangle"
	ToolText      Tool = "text"
	ToolBlur      Tool = "blur"
)

// Valid reports whether t is a known tool
func (t Tool) Valid() bool {
	switch t {
	case ToolSelect, ToolArrow, ToolRectangle, ToolText, ToolBlur:
		return true
	}
	return false
}

func (t Tool) dragKind() (domain.Kind, bool) {
	switch t {
	case ToolArrow:
		return domain.KindArrow, true
	case ToolRectangle:
		return domain.KindRectangle, true
	case ToolBlur:
		return domain.KindBlur, true
	}
	return "", false
}

// Mode is the pointer mode of the interaction state machine
type Mode string

const (
	ModeIdle         Mode = "idle"
	ModeDragging     Mode = "dragging"
	ModeTextEntry    Mode = "text-entry"
	ModeCommentEntry Mode = "comment-entry"
)

// LabelPrompt asks the host to offer an optional comment for a freshly
// committed shape. The text comes back through SetShapeLabel.
type LabelPrompt struct {
	ShapeID string       `json:"shape_id" yaml:"shape_id"`
	At      domain.Point `json:"at" yaml:"at"`
}

// State is a read-only view of the interaction state
type State struct {
	Tool        Tool          `json:"tool"`
	Color       string        `json:"color"`
	Mode        Mode          `json:"mode"`
	Selected    string        `json:"selected,omitempty"`
	Provisional *domain.Shape `json:"provisional,omitempty"`
	TextAt      *domain.Point `json:"text_at,omitempty"`
	Prompt      *LabelPrompt  `json:"prompt,omitempty"`
	UndoDepth   int           `json:"undo_depth"`
	RedoDepth   int           `json:"redo_depth"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
}

const defaultFontSize = 14

// Option modifies an Engine during creation
type Option func(*Engine)

// WithViewport sets the box the base image is downscaled to fit. A zero
// dimension leaves that axis unconstrained.
func WithViewport(width, height int) Option {
	return func(e *Engine) { e.viewportW, e.viewportH = width, height }
}

// WithCanvasSize forces the display size of the next Load, overriding the
// viewport fit. Resumed sessions use it so stored coordinates keep their
// meaning when the viewport changes.
func WithCanvasSize(width, height int) Option {
	return func(e *Engine) { e.canvasW, e.canvasH = width, height }
}

// WithPalette replaces the default color palette
func WithPalette(palette []string) Option {
	return func(e *Engine) {
		if len(palette) == 0 {
			return
		}
		e.palette = make([]string, len(palette))
		for i, c := range palette {
			e.palette[i] = domain.NormalizeColor(c)
		}
	}
}

// WithIDGenerator sets the function used to mint shape IDs
func WithIDGenerator(fn func() string) Option { return func(e *Engine) { e.newID = fn } }

// WithSnapshotListener registers a callback receiving a copy of the
// annotation list after every committed mutation.
func WithSnapshotListener(fn func([]domain.Shape)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithFontSize sets the point size used for labels and text shapes
func WithFontSize(size float64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.fontSize = size
		}
	}
}

// Engine owns the annotation list and interaction state of one base image
type Engine struct {
	viewportW, viewportH int
	canvasW, canvasH     int
	palette              []string
	newID                func() string
	onChange             func([]domain.Shape)
	fontSize             float64

	base             *image.RGBA
	nativeW, nativeH int
	scale            float64
	render           *renderer

	shapes  []domain.Shape
	history history

	tool        Tool
	color       string
	mode        Mode
	provisional *domain.Shape
	textAt      domain.Point
	prompt      *LabelPrompt
	selected    string
}

// New creates an Engine with no image loaded
func New(opts ...Option) *Engine {
	e := &Engine{
		palette:  slices.Clone(domain.DefaultPalette),
		newID:    uuid.NewString,
		fontSize: defaultFontSize,
		tool:     ToolArrow,
		mode:     ModeIdle,
	}
	for _, o := range opts {
		o(e)
	}
	e.color = e.palette[0]
	return e
}

// Load starts a session over the encoded image in buf, optionally resuming
// a previously stored annotation list. On failure the previous session, if
// any, is left untouched.
func (e *Engine) Load(buf []byte, existing []domain.Shape) error {
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImageLoad, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: image has invalid dimensions %dx%d", ErrImageLoad, b.Dx(), b.Dy())
	}
	if err := validateShapes(existing); err != nil {
		return err
	}
	r := e.render
	if r == nil {
		r, err = newRenderer(e.fontSize)
		if err != nil {
			return fmt.Errorf("while preparing font face: %w", err)
		}
	}

	scale := fitScale(b.Dx(), b.Dy(), e.viewportW, e.viewportH)
	w, h := scaledSize(b.Dx(), scale), scaledSize(b.Dy(), scale)
	if e.canvasW > 0 && e.canvasH > 0 {
		w, h = e.canvasW, e.canvasH
		scale = float64(w) / float64(b.Dx())
	}
	base := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(base, base.Bounds(), img, b.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(base, base.Bounds(), img, b, xdraw.Src, nil)
	}

	e.render = r
	e.base = base
	e.nativeW, e.nativeH = b.Dx(), b.Dy()
	e.scale = scale
	e.shapes = domain.CloneShapes(existing)
	e.history = history{}
	e.resetInteraction()
	e.selected = ""
	return nil
}

func validateShapes(shapes []domain.Shape) error {
	seen := make(map[string]struct{}, len(shapes))
	for i, s := range shapes {
		if !s.Kind.Valid() {
			return fmt.Errorf("%w: shape %d has kind %q", ErrInvalidShapeKind, i, s.Kind)
		}
		if s.ID == "" {
			return fmt.Errorf("%w: shape %d has no id", ErrMalformedShape, i)
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateShapeID, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Kind.NeedsExtent() && s.Extent == nil {
			return fmt.Errorf("%w: %s shape %s has no extent", ErrMalformedShape, s.Kind, s.ID)
		}
		if !s.Kind.NeedsExtent() && s.Extent != nil {
			return fmt.Errorf("%w: %s shape %s has an extent", ErrMalformedShape, s.Kind, s.ID)
		}
	}
	return nil
}

// Ready reports whether an image has been loaded
func (e *Engine) Ready() bool { return e.base != nil }

// Size returns the fixed display size of the session
func (e *Engine) Size() (int, int) {
	if e.base == nil {
		return 0, 0
	}
	b := e.base.Bounds()
	return b.Dx(), b.Dy()
}

// NativeSize returns the dimensions of the image before scaling
func (e *Engine) NativeSize() (int, int) { return e.nativeW, e.nativeH }

// Scale returns the factor applied to the native image at load time
func (e *Engine) Scale() float64 { return e.scale }

// Palette returns the colors accepted by SelectColor
func (e *Engine) Palette() []string { return slices.Clone(e.palette) }

// SelectTool sets the active tool. An in-progress drag or open text/comment
// input is abandoned without committing.
func (e *Engine) SelectTool(t Tool) {
	if !t.Valid() {
		return
	}
	e.tool = t
	e.resetInteraction()
}

// Tool returns the active tool
func (e *Engine) Tool() Tool { return e.tool }

// SelectColor sets the color of shapes created from now on
func (e *Engine) SelectColor(c string) error {
	c = domain.NormalizeColor(c)
	if !slices.Contains(e.palette, c) {
		return fmt.Errorf("%w: %s", ErrUnknownColor, c)
	}
	e.color = c
	return nil
}

// Shapes returns a copy of the annotation list in z-order
func (e *Engine) Shapes() []domain.Shape {
	ret := domain.CloneShapes(e.shapes)
	if ret == nil {
		ret = []domain.Shape{}
	}
	return ret
}

// Selected returns the selected shape id or an empty string
func (e *Engine) Selected() string { return e.selected }

// State returns a copy of the interaction state
func (e *Engine) State() State {
	w, h := e.Size()
	st := State{
		Tool:      e.tool,
		Color:     e.color,
		Mode:      e.mode,
		Selected:  e.selected,
		UndoDepth: len(e.history.undo),
		RedoDepth: len(e.history.redo),
		Width:     w,
		Height:    h,
	}
	if e.provisional != nil {
		p := e.provisional.Clone()
		st.Provisional = &p
	}
	if e.mode == ModeTextEntry {
		at := e.textAt
		st.TextAt = &at
	}
	if e.prompt != nil {
		p := *e.prompt
		st.Prompt = &p
	}
	return st
}

// RenderComposite draws the base image, every shape, the provisional shape
// and the selection outline onto a fresh buffer at the session size.
func (e *Engine) RenderComposite() (*image.RGBA, error) {
	if e.base == nil {
		return nil, ErrNoSession
	}
	var sel *box
	if e.selected != "" {
		if i := e.indexOf(e.selected); i >= 0 {
			b := e.bounds(e.shapes[i])
			sel = &b
		}
	}
	return e.render.composite(e.base, e.shapes, e.provisional, sel, e.palette[0]), nil
}

// EncodePNG writes the flattened composite as PNG
func (e *Engine) EncodePNG(w io.Writer) error {
	img, err := e.RenderComposite()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func (e *Engine) indexOf(id string) int {
	return slices.IndexFunc(e.shapes, func(s domain.Shape) bool { return s.ID == id })
}

func (e *Engine) resetInteraction() {
	e.provisional = nil
	e.prompt = nil
	e.mode = ModeIdle
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange(e.Shapes())
	}
}
