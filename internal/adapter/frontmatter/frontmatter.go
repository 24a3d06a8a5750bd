package frontmatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/jgivc/livesite/internal/common"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	fm "go.abhg.dev/goldmark/frontmatter"
)

// Delimiter opens and closes the front matter block. It must be alone on its line.
const Delimiter = "+++"

// FrontMatter holds the optional metadata of a content file. Zero values mean "not set".
type FrontMatter struct {
	Slug                string                      `toml:"slug"`
	Title               string                      `toml:"title"`
	Description         string                      `toml:"description"`
	Template            string                      `toml:"template"`
	Tags                []string                    `toml:"tags"`
	CreatedAt           *time.Time                  `toml:"created_at"`
	UpdatedAt           *time.Time                  `toml:"updated_at"`
	CommentsEnabled     *bool                       `toml:"comments_enabled"`
	ExternalDiscussions []entity.ExternalDiscussion `toml:"external_discussions"`
}

var md = goldmark.New(
	goldmark.WithExtensions(
		&fm.Extender{Formats: []fm.Format{fm.TOML}},
	),
)

// Parse splits content into front matter and body and decodes the front matter.
func Parse(content []byte) (*FrontMatter, string, error) {
	header, body, err := Split(string(content))
	if err != nil {
		return nil, "", err
	}

	meta, err := Decode(header)
	if err != nil {
		return nil, "", err
	}

	return meta, body, nil
}

// Split returns the raw front matter block and the body. The first line must be the
// delimiter and a closing delimiter line is required; anything else is malformed content.
// Body lines are joined with "\n" and the delimiter lines are dropped.
func Split(content string) (string, string, error) {
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	if len(lines) == 0 || lines[0] != Delimiter {
		return "", "", fmt.Errorf("%w: first line must be %s", common.ErrMalformedContent, Delimiter)
	}

	var header strings.Builder
	for i := 1; i < len(lines); i++ {
		if lines[i] == Delimiter {
			return header.String(), strings.Join(lines[i+1:], "\n"), nil
		}

		header.WriteString(lines[i])
		header.WriteString("\n")
	}

	return "", "", fmt.Errorf("%w: closing %s not found", common.ErrMalformedContent, Delimiter)
}

// Decode parses a TOML front matter block (without delimiters).
func Decode(header string) (*FrontMatter, error) {
	src := Delimiter + "\n" + header + Delimiter + "\n"

	pc := parser.NewContext()
	md.Parser().Parse(text.NewReader([]byte(src)), parser.WithContext(pc))

	var meta FrontMatter

	data := fm.Get(pc)
	if data == nil {
		return &meta, nil
	}

	if err := data.Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidFrontMatter, err)
	}

	return &meta, nil
}
