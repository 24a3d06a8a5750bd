package mdadapter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type mapResolver map[string]string

func (m mapResolver) ResolveFile(name string) (string, error) {
	if url, ok := m[name]; ok {
		return url, nil
	}

	return "", fmt.Errorf("cannot find file: %s", name)
}

func TestRenderExtensions(t *testing.T) {
	r := NewRenderer()

	testCases := []struct {
		name     string
		markdown string
		contains []string
	}{
		{
			name:     "heading and emphasis",
			markdown: "# Title\n\nSome *text*.",
			contains: []string{"<h1>Title</h1>", "<em>text</em>"},
		},
		{
			name:     "strikethrough",
			markdown: "~~gone~~",
			contains: []string{"<del>gone</del>"},
		},
		{
			name:     "table",
			markdown: "| a | b |\n|---|---|\n| 1 | 2 |\n",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "footnote",
			markdown: "Text[^1].\n\n[^1]: The note.\n",
			contains: []string{`class="footnotes"`, "The note."},
		},
		{
			name:     "raw html passes through",
			markdown: "<div class=\"x\">hi</div>\n",
			contains: []string{`<div class="x">hi</div>`},
		},
		{
			name:     "braces without directive",
			markdown: "a {b} {{c}}",
			contains: []string{"a {b} {{c}}"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := r.Render(tc.markdown, nil)
			require.NoError(t, err)

			for _, s := range tc.contains {
				require.Contains(t, out, s)
			}
		})
	}
}

func TestRenderFileDirective(t *testing.T) {
	r := NewRenderer()
	files := mapResolver{"images/cat.png": "/blog/post/images/cat.png"}

	out, err := r.Render("See {{ file: images/cat.png }} here.", files)
	require.NoError(t, err)
	require.Contains(t, out, `<a href="/blog/post/images/cat.png">images/cat.png</a>`)
	require.True(t, strings.HasPrefix(out, "<p>See "))
	require.Contains(t, out, " here.</p>")

	out, err = r.Render("{{file:images/cat.png}}", files)
	require.NoError(t, err)
	require.Contains(t, out, `href="/blog/post/images/cat.png"`)
}

func TestRenderFileDirectiveUnknownFile(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render("{{ file: missing.zip }}", mapResolver{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing.zip")

	_, err = r.Render("{{ file: missing.zip }}", nil)
	require.Error(t, err)
}
