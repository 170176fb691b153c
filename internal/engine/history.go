package engine

import (
	"slices"

	"github.com/lewtec/anotador/internal/domain"
)

type batchKind int

const (
	batchAdd batchKind = iota
	batchDelete
	batchClear
)

func (k batchKind) String() string {
	switch k {
	case batchAdd:
		return "add"
	case batchDelete:
		return "delete"
	case batchClear:
		return "clear"
	}
	return "unknown"
}

// batch is one atomic, reversible change to the annotation list.
//
//   - add:    shapes were appended on top
//   - delete: shapes were removed from the z-positions in indices (ascending)
//   - clear:  the whole list, held in shapes, was removed
type batch struct {
	kind    batchKind
	shapes  []domain.Shape
	indices []int
}

// apply returns the list produced by performing b on list. list is not modified.
func apply(list []domain.Shape, b batch) []domain.Shape {
	switch b.kind {
	case batchAdd:
		return append(slices.Clone(list), domain.CloneShapes(b.shapes)...)
	case batchDelete:
		return removeIDs(list, b.shapes)
	case batchClear:
		return nil
	}
	return list
}

// revert returns the list that existed before b was applied to it
func revert(list []domain.Shape, b batch) []domain.Shape {
	switch b.kind {
	case batchAdd:
		return removeIDs(list, b.shapes)
	case batchDelete:
		ret := slices.Clone(list)
		for i, idx := range b.indices {
			if idx > len(ret) {
				idx = len(ret)
			}
			ret = slices.Insert(ret, idx, b.shapes[i].Clone())
		}
		return ret
	case batchClear:
		return domain.CloneShapes(b.shapes)
	}
	return list
}

func removeIDs(list []domain.Shape, shapes []domain.Shape) []domain.Shape {
	ids := make(map[string]struct{}, len(shapes))
	for _, s := range shapes {
		ids[s.ID] = struct{}{}
	}
	ret := make([]domain.Shape, 0, len(list))
	for _, s := range list {
		if _, ok := ids[s.ID]; !ok {
			ret = append(ret, s)
		}
	}
	return ret
}

// history holds the undo and redo stacks. Batches are stored as performed;
// undo reverts the top of undo and moves it to redo, redo applies it again.
type history struct {
	undo []batch
	redo []batch
}

// commit records a new mutation and discards the redo branch
func (h *history) commit(b batch) {
	h.undo = append(h.undo, b)
	h.redo = nil
}

func (h *history) popUndo() (batch, bool) {
	if len(h.undo) == 0 {
		return batch{}, false
	}
	b := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, b)
	return b, true
}

func (h *history) popRedo() (batch, bool) {
	if len(h.redo) == 0 {
		return batch{}, false
	}
	b := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, b)
	return b, true
}

// amendLabel rewrites the label of every recorded copy of shape id so the
// label travels with the shape through undo and redo.
func (h *history) amendLabel(id, label string) {
	for _, stack := range [][]batch{h.undo, h.redo} {
		for i := range stack {
			for j := range stack[i].shapes {
				if stack[i].shapes[j].ID == id {
					l := label
					stack[i].shapes[j].Label = &l
				}
			}
		}
	}
}

func (h history) clone() history {
	copyStack := func(stack []batch) []batch {
		if stack == nil {
			return nil
		}
		ret := make([]batch, len(stack))
		for i, b := range stack {
			ret[i] = batch{kind: b.kind, shapes: domain.CloneShapes(b.shapes), indices: slices.Clone(b.indices)}
		}
		return ret
	}
	return history{undo: copyStack(h.undo), redo: copyStack(h.redo)}
}

// History is a detached copy of the undo and redo stacks of an engine. It
// lets a session dropped from memory get its history back once resumed.
type History struct {
	h history
}

// Depths returns how many steps can be undone and redone
func (h History) Depths() (undo, redo int) {
	return len(h.h.undo), len(h.h.redo)
}

// History returns a copy of the undo and redo stacks
func (e *Engine) History() History {
	return History{h: e.history.clone()}
}

// RestoreHistory replaces the undo and redo stacks with h. It is meant to
// follow Load with the annotation list h was taken alongside.
func (e *Engine) RestoreHistory(h History) error {
	if e.base == nil {
		return ErrNoSession
	}
	e.history = h.h.clone()
	e.resetInteraction()
	return nil
}
