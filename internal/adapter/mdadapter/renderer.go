package mdadapter

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

type FileDirectiveRenderer struct{}

func NewFileDirectiveRenderer() renderer.NodeRenderer {
	return &FileDirectiveRenderer{}
}

func (r *FileDirectiveRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindFileDirective, r.renderFileDirective)
}

func (r *FileDirectiveRenderer) renderFileDirective(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	node, ok := n.(*FileDirective)
	if !ok {
		return ast.WalkStop, fmt.Errorf("unexpected node %T, expected *FileDirective", n)
	}

	if node.Error != nil {
		return ast.WalkStop, fmt.Errorf("cannot render file %s: %w", node.Filename, node.Error)
	}

	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(node.URL), false)))
	_, _ = w.WriteString(`">`)
	_, _ = w.Write(util.EscapeHTML([]byte(node.Filename)))
	_, _ = w.WriteString(`</a>`)

	return ast.WalkContinue, nil
}

// Renderer converts entry bodies to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Footnote,
				extension.Table,
				NewFilesExtension(),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
	}
}

// Render converts markdown to HTML. files resolves {{ file: name }} directives and may be nil
// when the entry has no associated files.
func (r *Renderer) Render(markdown string, files FileResolver) (string, error) {
	pc := parser.NewContext()
	if files != nil {
		pc.Set(FileResolverKey, files)
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf, parser.WithContext(pc)); err != nil {
		return "", fmt.Errorf("cannot convert markdown: %w", err)
	}

	return buf.String(), nil
}
