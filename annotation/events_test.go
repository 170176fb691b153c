package annotation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lewtec/anotador/internal/domain"
	"github.com/lewtec/anotador/internal/engine"
)

func loadedEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(engine.WithViewport(800, 600))
	if err := e.Load(testPNG(t, 400, 300), nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return e
}

func at(x, y float64) *domain.Point { return &domain.Point{X: x, Y: y} }

func TestApplyEvent(t *testing.T) {
	t.Run("drag returns a label prompt", func(t *testing.T) {
		e := loadedEngine(t)
		res, err := ApplyEvent(e, Event{Type: EventDrag, At: at(10, 10), To: at(100, 50)})
		if err != nil {
			t.Fatalf("ApplyEvent() error = %v", err)
		}
		if !res.Changed {
			t.Error("Changed = false, want true")
		}
		if res.Prompt == nil {
			t.Fatal("Expected a label prompt for an arrow")
		}

		res, err = ApplyEvent(e, Event{Type: EventLabel, Text: "look here"})
		if err != nil {
			t.Fatalf("ApplyEvent(label) error = %v", err)
		}
		if !res.Changed {
			t.Error("label Changed = false, want true")
		}
		if got := e.Shapes()[0].LabelText(); got != "look here" {
			t.Errorf("label = %q, want %q", got, "look here")
		}
	})

	t.Run("step by step gesture", func(t *testing.T) {
		e := loadedEngine(t)
		events := []Event{
			{Type: EventTool, Tool: engine.ToolBlur},
			{Type: EventDown, At: at(10, 10)},
			{Type: EventMove, At: at(60, 60)},
			{Type: EventUp},
		}
		for _, ev := range events {
			if _, err := ApplyEvent(e, ev); err != nil {
				t.Fatalf("ApplyEvent(%s) error = %v", ev.Type, err)
			}
		}
		if len(e.Shapes()) != 1 || e.Shapes()[0].Kind != domain.KindBlur {
			t.Errorf("Shapes() = %+v, want one blur", e.Shapes())
		}
	})

	t.Run("text at a point", func(t *testing.T) {
		e := loadedEngine(t)
		if _, err := ApplyEvent(e, Event{Type: EventText, At: at(20, 40), Text: "note"}); err != nil {
			t.Fatalf("ApplyEvent() error = %v", err)
		}
		if got := e.Shapes()[0].LabelText(); got != "note" {
			t.Errorf("text = %q, want note", got)
		}
		if _, err := ApplyEvent(e, Event{Type: EventText, Text: "orphan"}); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("ApplyEvent() error = %v, want ErrInvalidEvent", err)
		}
	})

	t.Run("text at a point keeps the active tool", func(t *testing.T) {
		e := loadedEngine(t)
		if _, err := ApplyEvent(e, Event{Type: EventTool, Tool: engine.ToolRectangle}); err != nil {
			t.Fatalf("ApplyEvent(tool) error = %v", err)
		}
		res, err := ApplyEvent(e, Event{Type: EventText, At: at(20, 40), Text: "note"})
		if err != nil {
			t.Fatalf("ApplyEvent(text) error = %v", err)
		}
		if !res.Changed {
			t.Error("Changed = false, want true")
		}
		if got := e.Tool(); got != engine.ToolRectangle {
			t.Errorf("tool after text = %s, want %s", got, engine.ToolRectangle)
		}
		if _, err := ApplyEvent(e, Event{Type: EventDrag, At: at(100, 100), To: at(200, 150)}); err != nil {
			t.Fatalf("ApplyEvent(drag) error = %v", err)
		}
		shapes := e.Shapes()
		if len(shapes) != 2 {
			t.Fatalf("got %d shapes, want 2", len(shapes))
		}
		if shapes[1].Kind != domain.KindRectangle {
			t.Errorf("drag after text drew %s, want %s", shapes[1].Kind, domain.KindRectangle)
		}
	})

	t.Run("undo redo clear report changes", func(t *testing.T) {
		e := loadedEngine(t)
		if res, _ := ApplyEvent(e, Event{Type: EventUndo}); res.Changed {
			t.Error("undo on empty history reported a change")
		}
		ApplyEvent(e, Event{Type: EventDrag, At: at(10, 10), To: at(100, 50)})
		if res, _ := ApplyEvent(e, Event{Type: EventClear}); !res.Changed {
			t.Error("clear did not report a change")
		}
		if res, _ := ApplyEvent(e, Event{Type: EventUndo}); !res.Changed {
			t.Error("undo did not report a change")
		}
		if res, _ := ApplyEvent(e, Event{Type: EventRedo}); !res.Changed {
			t.Error("redo did not report a change")
		}
		if len(e.Shapes()) != 0 {
			t.Errorf("len(Shapes()) = %d, want 0", len(e.Shapes()))
		}
	})

	errorCases := []struct {
		name string
		ev   Event
		want error
	}{
		{"unknown type", Event{Type: "explode"}, ErrUnknownEvent},
		{"unknown tool", Event{Type: EventTool, Tool: "lasso"}, ErrInvalidEvent},
		{"down without point", Event{Type: EventDown}, ErrInvalidEvent},
		{"drag without end", Event{Type: EventDrag, At: at(1, 1)}, ErrInvalidEvent},
		{"label without target", Event{Type: EventLabel, Text: "x"}, ErrInvalidEvent},
		{"label on missing shape", Event{Type: EventLabel, ShapeID: "nope", Text: "x"}, engine.ErrShapeNotFound},
		{"color outside palette", Event{Type: EventColor, Color: "#123456"}, engine.ErrUnknownColor},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplyEvent(loadedEngine(t), tc.ev)
			if !errors.Is(err, tc.want) {
				t.Errorf("ApplyEvent() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoadScript(t *testing.T) {
	script := `
- type: tool
  tool: rectangle
- type: color
  color: "#3b82f6"
- type: drag
  at: {x: 20, y: 20}
  to: {x: 120, y: 80}
- type: label
  text: broken layout
- type: text
  at: {x: 30, y: 150}
  text: see console
`
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	events, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript() error = %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("len(events) = %d, want 5", len(events))
	}
	if events[2].To == nil || events[2].To.X != 120 {
		t.Errorf("events[2].To = %v, want x=120", events[2].To)
	}

	e := loadedEngine(t)
	if err := ReplayScript(e, events); err != nil {
		t.Fatalf("ReplayScript() error = %v", err)
	}
	shapes := e.Shapes()
	if len(shapes) != 2 {
		t.Fatalf("len(Shapes()) = %d, want 2", len(shapes))
	}
	if shapes[0].Kind != domain.KindRectangle || shapes[0].Color != "#3b82f6" || shapes[0].LabelText() != "broken layout" {
		t.Errorf("shapes[0] = %+v", shapes[0])
	}
	if shapes[1].Kind != domain.KindText || shapes[1].LabelText() != "see console" {
		t.Errorf("shapes[1] = %+v", shapes[1])
	}

	t.Run("rejects events without a type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		os.WriteFile(path, []byte("- tool: arrow\n"), 0644)
		if _, err := LoadScript(path); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("LoadScript() error = %v, want ErrInvalidEvent", err)
		}
	})

	t.Run("replay stops at the first failure", func(t *testing.T) {
		err := ReplayScript(loadedEngine(t), []Event{{Type: EventUndo}, {Type: "bogus"}})
		if !errors.Is(err, ErrUnknownEvent) {
			t.Errorf("ReplayScript() error = %v, want ErrUnknownEvent", err)
		}
	})
}
