package common

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedContent   = fmt.Errorf("malformed content")
	ErrInvalidFrontMatter = fmt.Errorf("invalid front matter")
	ErrDuplicateSlug      = fmt.Errorf("duplicate slug")
	ErrFilesystem         = fmt.Errorf("filesystem error")
	ErrRenderIO           = fmt.Errorf("cannot materialize html")

	ErrEntryNotFound = fmt.Errorf("entry not found")
	ErrTagNotFound   = fmt.Errorf("tag not found")
	ErrPageNotFound  = fmt.Errorf("page not found")
	ErrFileNotFound  = fmt.Errorf("file not found")
	ErrSiteNotBuilt  = fmt.Errorf("site has not been built yet")
)

// PathError ties one of the sentinel kinds above to the file or directory that caused it.
type PathError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func NewPathError(kind error, op, path string, err error) *PathError {
	return &PathError{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *PathError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Op, e.Path)
	}

	return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func (e *PathError) Is(target error) bool {
	return e.Kind == target
}

type DuplicateSlugError struct {
	Slug      string
	Path      string
	FirstPath string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("%s %q: %s (already used by %s)", ErrDuplicateSlug, e.Slug, e.Path, e.FirstPath)
}

func (e *DuplicateSlugError) Is(target error) bool {
	return target == ErrDuplicateSlug
}

// Kind reports which sentinel category err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{
		ErrMalformedContent,
		ErrInvalidFrontMatter,
		ErrDuplicateSlug,
		ErrRenderIO,
		ErrFilesystem,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
