package annotation

import (
	"embed"
	"html/template"
	"io"
	"io/fs"

	"github.com/russross/blackfriday/v2"
)

var (
	//go:embed templates/*
	templateFS embed.FS

	templateManager *TemplateManager = nil

	// TemplateFuncMap contains custom template functions available to pages
	TemplateFuncMap = template.FuncMap{
		"markdown": func(text string) template.HTML {
			return template.HTML(blackfriday.Run([]byte(text)))
		},
	}
)

func init() {
	root, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	templateManager, err = NewTemplateManagerWithFuncMap(root, TemplateFuncMap)
	if err != nil {
		panic(err)
	}
}

// TemplateContent is a page whose Content is markdown
type TemplateContent struct {
	Title   string
	Content string
}

func ExecTemplate(w io.Writer, content TemplateContent) error {
	return templateManager.Render(w, "pages/markdown.html", content)
}
