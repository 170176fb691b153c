package annotation

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lewtec/anotador/internal/domain"
	"github.com/lewtec/anotador/internal/engine"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalidEvent = errors.New("invalid event")
)

type EventType string

const (
	EventTool   EventType = "tool"
	EventColor  EventType = "color"
	EventDown   EventType = "down"
	EventMove   EventType = "move"
	EventUp     EventType = "up"
	EventLeave  EventType = "leave"
	EventDrag   EventType = "drag"
	EventText   EventType = "text"
	EventLabel  EventType = "label"
	EventDelete EventType = "delete"
	EventUndo   EventType = "undo"
	EventRedo   EventType = "redo"
	EventClear  EventType = "clear"
	EventCancel EventType = "cancel"
)

// Event is one input for an engine, as received over HTTP or read from a
// script. Only the fields its type needs are read.
//
//   - tool: Tool
//   - color: Color
//   - down, move: At
//   - drag: At and To, a full down/move/up gesture with the active tool
//   - text: Text, placed at At without changing the active tool, or committed
//     to the open entry
//   - label: Text, on ShapeID or the shape of the open prompt
type Event struct {
	Type    EventType     `json:"type" yaml:"type"`
	Tool    engine.Tool   `json:"tool,omitempty" yaml:"tool,omitempty"`
	Color   string        `json:"color,omitempty" yaml:"color,omitempty"`
	At      *domain.Point `json:"at,omitempty" yaml:"at,omitempty"`
	To      *domain.Point `json:"to,omitempty" yaml:"to,omitempty"`
	Text    string        `json:"text,omitempty" yaml:"text,omitempty"`
	ShapeID string        `json:"shape_id,omitempty" yaml:"shape_id,omitempty"`
}

type EventResult struct {
	Changed bool                `json:"changed"`
	Prompt  *engine.LabelPrompt `json:"prompt,omitempty"`
}

func (ev Event) point(name string, p *domain.Point) (domain.Point, error) {
	if p == nil {
		return domain.Point{}, fmt.Errorf("%w: %s event needs '%s'", ErrInvalidEvent, ev.Type, name)
	}
	return *p, nil
}

// ApplyEvent feeds ev to e
func ApplyEvent(e *engine.Engine, ev Event) (*EventResult, error) {
	ret := &EventResult{}
	before := e.State()

	switch ev.Type {
	case EventTool:
		if !ev.Tool.Valid() {
			return nil, fmt.Errorf("%w: unknown tool %q", ErrInvalidEvent, ev.Tool)
		}
		e.SelectTool(ev.Tool)
	case EventColor:
		if err := e.SelectColor(ev.Color); err != nil {
			return nil, err
		}
	case EventDown:
		at, err := ev.point("at", ev.At)
		if err != nil {
			return nil, err
		}
		e.PointerDown(at)
	case EventMove:
		at, err := ev.point("at", ev.At)
		if err != nil {
			return nil, err
		}
		e.PointerMove(at)
	case EventUp:
		prompt, err := e.PointerUp()
		if err != nil {
			return nil, err
		}
		ret.Prompt = prompt
	case EventLeave:
		e.PointerLeave()
	case EventDrag:
		from, err := ev.point("at", ev.At)
		if err != nil {
			return nil, err
		}
		to, err := ev.point("to", ev.To)
		if err != nil {
			return nil, err
		}
		e.PointerDown(from)
		e.PointerMove(to)
		prompt, err := e.PointerUp()
		if err != nil {
			return nil, err
		}
		ret.Prompt = prompt
	case EventText:
		if ev.At == nil {
			if e.State().Mode != engine.ModeTextEntry {
				return nil, fmt.Errorf("%w: no text entry is open", ErrInvalidEvent)
			}
			if err := e.CommitText(ev.Text); err != nil {
				return nil, err
			}
			break
		}
		prev := e.Tool()
		e.SelectTool(engine.ToolText)
		e.PointerDown(*ev.At)
		err := e.CommitText(ev.Text)
		e.SelectTool(prev)
		if err != nil {
			return nil, err
		}
	case EventLabel:
		id := ev.ShapeID
		if id == "" && before.Prompt != nil {
			id = before.Prompt.ShapeID
		}
		if id == "" {
			return nil, fmt.Errorf("%w: label event needs 'shape_id' when no prompt is open", ErrInvalidEvent)
		}
		shapes := e.Shapes()
		if err := e.SetShapeLabel(id, ev.Text); err != nil {
			return nil, err
		}
		i := shapeIndex(shapes, id)
		prev, next := shapes[i].Label, e.Shapes()[i].Label
		ret.Changed = next != nil && (prev == nil || *prev != *next)
		return ret, nil
	case EventDelete:
		ret.Changed = e.DeleteSelected()
		return ret, nil
	case EventUndo:
		ret.Changed = e.Undo()
		return ret, nil
	case EventRedo:
		ret.Changed = e.Redo()
		return ret, nil
	case EventClear:
		ret.Changed = e.ClearAll()
		return ret, nil
	case EventCancel:
		e.Cancel()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	after := e.State()
	ret.Changed = after.UndoDepth != before.UndoDepth || after.RedoDepth != before.RedoDepth
	return ret, nil
}

func shapeIndex(shapes []domain.Shape, id string) int {
	for i, s := range shapes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// LoadScript reads a YAML list of events
func LoadScript(filename string) ([]Event, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var ret []Event
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("while parsing script '%s': %w", filename, err)
	}
	for i, ev := range ret {
		if ev.Type == "" {
			return nil, fmt.Errorf("while parsing script '%s': event %d: %w: missing type", filename, i+1, ErrInvalidEvent)
		}
	}
	return ret, nil
}

// ReplayScript applies events in order, stopping at the first failure
func ReplayScript(e *engine.Engine, events []Event) error {
	for i, ev := range events {
		if _, err := ApplyEvent(e, ev); err != nil {
			return fmt.Errorf("while applying event %d (%s): %w", i+1, ev.Type, err)
		}
	}
	return nil
}
