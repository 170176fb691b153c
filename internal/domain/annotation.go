package domain

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Kind identifies what an annotation shape draws
type Kind string

const (
	KindArrow     Kind = "arrow"
	KindRectangle Kind = "rectangle"
	KindText      Kind = "text"
	KindBlur      Kind = "blur"
)

// Valid reports whether k is one of the known shape kinds
func (k Kind) Valid() bool {
	switch k {
	case KindArrow, KindRectangle, KindText, KindBlur:
		return true
	}
	return false
}

// NeedsExtent reports whether shapes of this kind are defined by two points
func (k Kind) NeedsExtent() bool {
	return k == KindArrow || k == KindRectangle || k == KindBlur
}

// Labelable reports whether the label field is rendered for this kind
func (k Kind) Labelable() bool {
	return k == KindArrow || k == KindRectangle || k == KindText
}

// Point is a position in the display coordinate space of a session
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Shape is a single annotation placed over the base image.
// Extent and Label are always serialized, as null when unset.
type Shape struct {
	ID     string  `json:"id" yaml:"id"`
	Kind   Kind    `json:"kind" yaml:"kind"`
	Anchor Point   `json:"anchor" yaml:"anchor"`
	Extent *Point  `json:"extent" yaml:"extent"`
	Color  string  `json:"color" yaml:"color"`
	Label  *string `json:"label" yaml:"label"`
}

// Clone returns a deep copy of the shape
func (s Shape) Clone() Shape {
	c := s
	if s.Extent != nil {
		e := *s.Extent
		c.Extent = &e
	}
	if s.Label != nil {
		l := *s.Label
		c.Label = &l
	}
	return c
}

// LabelText returns the label or an empty string
func (s Shape) LabelText() string {
	if s.Label == nil {
		return ""
	}
	return *s.Label
}

// CloneShapes deep copies a shape list preserving order
func CloneShapes(shapes []Shape) []Shape {
	if shapes == nil {
		return nil
	}
	ret := make([]Shape, len(shapes))
	for i, s := range shapes {
		ret[i] = s.Clone()
	}
	return ret
}

// DefaultPalette is the fixed set of colors offered by the markup tools
var DefaultPalette = []string{
	"#ef4444", // red
	"#f97316", // orange
	"#eab308", // yellow
	"#22c55e", // green
	"#3b82f6", // blue
	"#a855f7", // purple
	"#000000",
	"#ffffff",
}

// ParseHexColor parses a #rrggbb string
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid color %q: expected #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// NormalizeColor lowercases a hex color so palette lookups are case insensitive
func NormalizeColor(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
