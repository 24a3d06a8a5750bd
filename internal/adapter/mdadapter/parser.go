package mdadapter

import (
	"fmt"
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	FileResolverKey = parser.NewContextKey()

	fileDirectiveRegexp = regexp.MustCompile(`^\{\{\s*file:\s*([^\s}]+)\s*\}\}`)
)

// FileResolver maps a file name used in a directive to the URL it is served from.
type FileResolver interface {
	ResolveFile(name string) (string, error)
}

// FileDirectiveParser parses {{ file: name }}.
type FileDirectiveParser struct{}

func NewFileDirectiveParser() parser.InlineParser {
	return &FileDirectiveParser{}
}

func (s *FileDirectiveParser) Trigger() []byte {
	return []byte{'{'}
}

func (s *FileDirectiveParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()

	matches := fileDirectiveRegexp.FindSubmatch(line)
	if matches == nil {
		return nil
	}

	block.Advance(len(matches[0]))

	node := &FileDirective{
		Filename: string(matches[1]),
	}

	resolver, ok := pc.Get(FileResolverKey).(FileResolver)
	if !ok || resolver == nil {
		node.Error = fmt.Errorf("no associated files available for %s", node.Filename)

		return node
	}

	node.URL, node.Error = resolver.ResolveFile(node.Filename)

	return node
}
