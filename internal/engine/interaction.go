package engine

import (
	"fmt"
	"strings"

	"github.com/lewtec/anotador/internal/domain"
)

// PointerDown starts the gesture of the active tool at p. Select hit-tests,
// Text opens a text entry and the drag tools begin a provisional shape. An
// open text or comment input is dismissed first without committing.
func (e *Engine) PointerDown(p domain.Point) {
	if e.base == nil {
		return
	}
	if e.mode == ModeTextEntry || e.mode == ModeCommentEntry {
		e.resetInteraction()
	}
	p = e.clamp(p)

	switch e.tool {
	case ToolSelect:
		e.selected = e.hitTest(p)
	case ToolText:
		e.selected = ""
		e.provisional = nil
		e.textAt = p
		e.mode = ModeTextEntry
	default:
		kind, ok := e.tool.dragKind()
		if !ok {
			return
		}
		extent := p
		e.selected = ""
		e.provisional = &domain.Shape{
			Kind:   kind,
			Anchor: p,
			Extent: &extent,
			Color:  e.color,
		}
		e.mode = ModeDragging
	}
}

// PointerMove drags the extent of the provisional shape. It is a no-op
// unless a drag is in progress.
func (e *Engine) PointerMove(p domain.Point) {
	if e.mode != ModeDragging || e.provisional == nil {
		return
	}
	p = e.clamp(p)
	e.provisional.Extent = &p
}

// PointerUp finalizes a drag. Drags smaller than the minimum size are
// dropped without a history entry. Arrows and rectangles return a prompt
// for an optional label.
func (e *Engine) PointerUp() (*LabelPrompt, error) {
	if e.mode != ModeDragging || e.provisional == nil {
		return nil, nil
	}
	s := e.provisional.Clone()
	if s.Extent == nil || isDegenerate(s.Anchor, *s.Extent) {
		e.provisional = nil
		e.mode = ModeIdle
		return nil, nil
	}
	// a failed add keeps the drag open
	if err := e.add(s); err != nil {
		return nil, err
	}
	e.provisional = nil
	e.mode = ModeIdle
	if s.Kind != domain.KindArrow && s.Kind != domain.KindRectangle {
		return nil, nil
	}
	id := e.shapes[len(e.shapes)-1].ID
	e.prompt = &LabelPrompt{ShapeID: id, At: s.Anchor}
	e.mode = ModeCommentEntry
	p := *e.prompt
	return &p, nil
}

// PointerLeave cancels a drag in progress without committing it
func (e *Engine) PointerLeave() {
	if e.mode != ModeDragging {
		return
	}
	e.provisional = nil
	e.mode = ModeIdle
}

// CommitText completes an open text entry. Blank text discards the entry.
func (e *Engine) CommitText(text string) error {
	if e.mode != ModeTextEntry {
		return nil
	}
	at := e.textAt
	text = strings.TrimSpace(text)
	if text == "" {
		e.mode = ModeIdle
		return nil
	}
	if err := e.add(domain.Shape{
		Kind:   domain.KindText,
		Anchor: at,
		Color:  e.color,
		Label:  &text,
	}); err != nil {
		return err
	}
	e.mode = ModeIdle
	return nil
}

// SetShapeLabel attaches a comment to an arrow or rectangle, or replaces the
// content of a text shape. Blank text leaves the label as it was. The change
// rides along with the batch that created the shape.
func (e *Engine) SetShapeLabel(id, text string) error {
	idx := e.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrShapeNotFound, id)
	}
	if !e.shapes[idx].Kind.Labelable() {
		return fmt.Errorf("%w: %s", ErrLabelNotSupported, e.shapes[idx].Kind)
	}
	if e.prompt != nil && e.prompt.ShapeID == id {
		e.prompt = nil
		e.mode = ModeIdle
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	e.shapes[idx].Label = &text
	e.history.amendLabel(id, text)
	e.notify()
	return nil
}

// DeleteSelected removes the selected shape as one undoable batch
func (e *Engine) DeleteSelected() bool {
	if e.selected == "" {
		return false
	}
	idx := e.indexOf(e.selected)
	if idx < 0 {
		e.selected = ""
		return false
	}
	b := batch{
		kind:    batchDelete,
		shapes:  []domain.Shape{e.shapes[idx].Clone()},
		indices: []int{idx},
	}
	e.shapes = apply(e.shapes, b)
	e.history.commit(b)
	e.selected = ""
	e.dropStaleRefs()
	e.notify()
	return true
}

// ClearAll empties the list as a single batch so one undo restores it
func (e *Engine) ClearAll() bool {
	e.resetInteraction()
	e.selected = ""
	if len(e.shapes) == 0 {
		return false
	}
	b := batch{kind: batchClear, shapes: domain.CloneShapes(e.shapes)}
	e.shapes = apply(e.shapes, b)
	e.history.commit(b)
	e.notify()
	return true
}

// Undo reverts the most recent batch
func (e *Engine) Undo() bool {
	b, ok := e.history.popUndo()
	if !ok {
		return false
	}
	e.shapes = revert(e.shapes, b)
	e.dropStaleRefs()
	e.notify()
	return true
}

// Redo reapplies the most recently undone batch
func (e *Engine) Redo() bool {
	b, ok := e.history.popRedo()
	if !ok {
		return false
	}
	e.shapes = apply(e.shapes, b)
	e.dropStaleRefs()
	e.notify()
	return true
}

// Cancel abandons any drag or open input, clears the selection and returns
// to idle. The annotation list and history are untouched.
func (e *Engine) Cancel() {
	e.resetInteraction()
	e.selected = ""
}

// add commits s as a new shape, minting its id
func (e *Engine) add(s domain.Shape) error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidShapeKind, s.Kind)
	}
	s.ID = e.newID()
	if s.ID == "" {
		return fmt.Errorf("%w: generated an empty id", ErrMalformedShape)
	}
	if e.indexOf(s.ID) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateShapeID, s.ID)
	}
	b := batch{kind: batchAdd, shapes: []domain.Shape{s}}
	e.shapes = apply(e.shapes, b)
	e.history.commit(b)
	e.notify()
	return nil
}

// dropStaleRefs forgets the selection or prompt of shapes no longer listed
func (e *Engine) dropStaleRefs() {
	if e.selected != "" && e.indexOf(e.selected) < 0 {
		e.selected = ""
	}
	if e.prompt != nil && e.indexOf(e.prompt.ShapeID) < 0 {
		e.prompt = nil
		if e.mode == ModeCommentEntry {
			e.mode = ModeIdle
		}
	}
}

func (e *Engine) clamp(p domain.Point) domain.Point {
	w, h := e.Size()
	return clampPoint(p, w, h)
}
