package entity

import "time"

// Entry represents one blog post. It is never modified after the builder returns it.
type Entry struct {
	Slug                string // Unique, used in URLs
	Title               string
	Description         string
	Tags                []string // Front matter order, not deduplicated
	CreatedAt           time.Time
	UpdatedAt           *time.Time
	CommentsEnabled     bool
	ExternalDiscussions []ExternalDiscussion
	TemplateName        string
	HTMLFile            string // Materialized body, read lazily at render time
	SourcePath          string // Content unit on disk (directory or legacy file)
	AssociatedFiles     []AssociatedFile
}

type ExternalDiscussion struct {
	Name string `toml:"name" json:"name"`
	URL  string `toml:"url" json:"url"`
}

// AssociatedFile is a non-content file living under the entry directory.
type AssociatedFile struct {
	RelativePath string // Relative to the entry root, slash separated
	FullPath     string
}

func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

func (e *Entry) AssociatedFile(relPath string) (AssociatedFile, bool) {
	for _, f := range e.AssociatedFiles {
		if f.RelativePath == relPath {
			return f, true
		}
	}

	return AssociatedFile{}, false
}
