package annotation

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/abiosoft/mold"
)

const baseLayout = "layouts/base.html"

// TemplateManager renders pages inside the base layout using mold
type TemplateManager struct {
	mold mold.Engine
}

// NewTemplateManagerWithFuncMap parses every template under fsys. Pages are
// addressed by their path relative to fsys, e.g. "pages/markdown.html".
func NewTemplateManagerWithFuncMap(fsys fs.FS, funcMap template.FuncMap) (*TemplateManager, error) {
	engine, err := mold.New(fsys,
		mold.WithLayout(baseLayout),
		mold.WithFuncMap(funcMap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &TemplateManager{mold: engine}, nil
}

// Render renders pageName with data, wrapped in the base layout
func (tm *TemplateManager) Render(w io.Writer, pageName string, data any) error {
	if err := tm.mold.Render(w, pageName, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", pageName, err)
	}
	return nil
}
