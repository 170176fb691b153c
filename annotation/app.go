package annotation

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/lewtec/anotador/internal/capture"
	"github.com/lewtec/anotador/internal/repository"
)

// maxUploadBytes caps screenshot uploads and JSON bodies
const maxUploadBytes = 32 << 20

type AnnotatorApp struct {
	Config   *Config
	Sessions *SessionManager
}

// NewAnnotatorApp wires the stores named by config around db
func NewAnnotatorApp(config *Config, db *sql.DB) (*AnnotatorApp, error) {
	images, err := OpenImageStore(config.Storage.Images)
	if err != nil {
		return nil, err
	}
	exports, err := OpenExportStore(config.Storage.Exports)
	if err != nil {
		return nil, err
	}
	repo := repository.NewSessionRepository(db)
	return &AnnotatorApp{
		Config:   config,
		Sessions: NewSessionManager(config, repo, images, exports),
	}, nil
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	} else {
		return or
	}
}

func quote(text string) string {
	return "> " + strings.ReplaceAll(strings.TrimSpace(text), "\n", "\n> ") + "\n\n"
}

// ContextPush is the body of POST /sessions/{id}/context
type ContextPush struct {
	Console     []capture.Entry   `json:"console"`
	Network     []capture.Entry   `json:"network"`
	Environment map[string]string `json:"environment"`
}

// EventResponse is the body answered to POST /sessions/{id}/events
type EventResponse struct {
	Result  *EventResult `json:"result"`
	Session SessionView  `json:"session"`
}

func (a *AnnotatorApp) helpMarkdown() string {
	var markdownBuilder strings.Builder
	fmt.Fprintf(&markdownBuilder, "# [<](/) Help\n")
	fmt.Fprintf(&markdownBuilder, "## Description\n")
	markdownBuilder.WriteString(quote(stringOr(a.Config.Meta.Description, "(No description provided)")))
	fmt.Fprintf(&markdownBuilder, "## Sessions\n\n")
	fmt.Fprintf(&markdownBuilder, "Upload a screenshot with `POST /sessions` (raw PNG, JPEG, GIF, WebP or BMP body). ")
	fmt.Fprintf(&markdownBuilder, "Screenshots larger than %dx%d are downscaled once; every coordinate refers to the downscaled size.\n\n", a.Config.Viewport.Width, a.Config.Viewport.Height)
	fmt.Fprintf(&markdownBuilder, "| Method | Path | |\n|---|---|---|\n")
	fmt.Fprintf(&markdownBuilder, "| GET | `/sessions` | list sessions |\n")
	fmt.Fprintf(&markdownBuilder, "| GET | `/sessions/{id}` | state and annotations |\n")
	fmt.Fprintf(&markdownBuilder, "| POST | `/sessions/{id}/events` | apply one event |\n")
	fmt.Fprintf(&markdownBuilder, "| GET | `/sessions/{id}/composite.png` | flattened image |\n")
	fmt.Fprintf(&markdownBuilder, "| GET, POST | `/sessions/{id}/context` | console, network and environment capture |\n")
	fmt.Fprintf(&markdownBuilder, "| DELETE | `/sessions/{id}` | forget the session |\n\n")
	fmt.Fprintf(&markdownBuilder, "## Events\n\n")
	fmt.Fprintf(&markdownBuilder, "- `{\"type\":\"tool\",\"tool\":\"arrow\"}`: one of select, arrow, rectangle, text, blur\n")
	fmt.Fprintf(&markdownBuilder, "- `{\"type\":\"drag\",\"at\":{\"x\":10,\"y\":10},\"to\":{\"x\":90,\"y\":40}}`: draw with the active tool\n")
	fmt.Fprintf(&markdownBuilder, "- `down`, `move` with `at`, then `up`; `leave` cancels a drag\n")
	fmt.Fprintf(&markdownBuilder, "- `{\"type\":\"label\",\"text\":\"...\"}`: comment the arrow or rectangle just drawn\n")
	fmt.Fprintf(&markdownBuilder, "- `{\"type\":\"text\",\"at\":{...},\"text\":\"...\"}`: place a text note; the active tool is kept\n")
	fmt.Fprintf(&markdownBuilder, "- `delete`, `undo`, `redo`, `clear`, `cancel`\n\n")
	fmt.Fprintf(&markdownBuilder, "Drags smaller than 10px on both axes are ignored.\n\n")
	fmt.Fprintf(&markdownBuilder, "## Palette\n\n")
	for _, color := range a.Config.Palette {
		fmt.Fprintf(&markdownBuilder, "- `%s`\n", color)
	}
	return markdownBuilder.String()
}

func (a *AnnotatorApp) GetHTTPHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /help", func(w http.ResponseWriter, r *http.Request) {
		if err := ExecTemplate(w, TemplateContent{Title: "Help", Content: a.helpMarkdown()}); err != nil {
			log.Printf("error: http: while rendering help: %s", err)
		}
	})

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		if err != nil {
			writeError(w, err)
			return
		}
		s, err := a.Sessions.Create(r.Context(), data)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	})

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := a.Sessions.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		var view SessionView
		err := a.Sessions.WithSession(r.Context(), r.PathValue("id"), func(s *LiveSession) error {
			view = s.View()
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})

	mux.HandleFunc("POST /sessions/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		var ev Event
		if err := decodeJSON(r, &ev); err != nil {
			writeError(w, err)
			return
		}
		var resp EventResponse
		err := a.Sessions.WithSession(r.Context(), r.PathValue("id"), func(s *LiveSession) error {
			result, err := ApplyEvent(s.Engine, ev)
			if err != nil {
				return err
			}
			resp = EventResponse{Result: result, Session: s.View()}
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /sessions/{id}/composite.png", func(w http.ResponseWriter, r *http.Request) {
		data, err := a.Sessions.Export(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	})

	mux.HandleFunc("GET /sessions/{id}/context", func(w http.ResponseWriter, r *http.Request) {
		var snap capture.Snapshot
		err := a.Sessions.WithSession(r.Context(), r.PathValue("id"), func(s *LiveSession) error {
			snap = s.Context.Snapshot()
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("POST /sessions/{id}/context", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		var push ContextPush
		if err := decodeJSON(r, &push); err != nil {
			writeError(w, err)
			return
		}
		var snap capture.Snapshot
		err := a.Sessions.WithSession(r.Context(), r.PathValue("id"), func(s *LiveSession) error {
			for _, e := range push.Console {
				s.Context.Console(e)
			}
			for _, e := range push.Network {
				s.Context.Network(e)
			}
			for k, v := range push.Environment {
				s.Context.SetEnvironment(k, v)
			}
			snap = s.Context.Snapshot()
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := a.Sessions.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		var markdownBuilder strings.Builder
		fmt.Fprintf(&markdownBuilder, "# Welcome to anotador\n")
		markdownBuilder.WriteString(quote(stringOr(a.Config.Meta.Description, "(No description provided)")))
		fmt.Fprintf(&markdownBuilder, "[Instructions](/help)\n\n")
		fmt.Fprintf(&markdownBuilder, "## Sessions\n\n")
		if len(sessions) == 0 {
			fmt.Fprintf(&markdownBuilder, "No sessions yet.\n")
		}
		for _, s := range sessions {
			fmt.Fprintf(&markdownBuilder, "- [%s](/sessions/%s/composite.png) %dx%d, updated %s\n", s.ID, s.ID, s.Width, s.Height, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		if err := ExecTemplate(w, TemplateContent{Title: "Welcome", Content: markdownBuilder.String()}); err != nil {
			log.Printf("error: http: while rendering welcome page: %s", err)
		}
	})

	var handler http.Handler = mux
	handler = HTTPLogger(handler)
	return handler
}
