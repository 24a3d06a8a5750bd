package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var KindFileDirective = ast.NewNodeKind("FileDirective")

// FileDirective is an inline reference to one of the entry's associated files.
type FileDirective struct {
	ast.BaseInline
	Filename string
	URL      string
	Error    error
}

func (n *FileDirective) Kind() ast.NodeKind {
	return KindFileDirective
}

func (n *FileDirective) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Filename": n.Filename,
		"URL":      n.URL,
	}, nil)
}
