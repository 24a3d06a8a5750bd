package page

import (
	"fmt"
	"path"
	"time"

	"github.com/jgivc/livesite/internal/config"
	"github.com/jgivc/livesite/internal/entity"
)

type BaseContext struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
}

// BlogEntryStub is the short form of an entry used in lists and as a neighbor link.
type BlogEntryStub struct {
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
	URL       string   `json:"url"`
	CreatedAt string   `json:"created_at"`
}

type IndexContext struct {
	Base              BaseContext     `json:"base"`
	RecentBlogEntries []BlogEntryStub `json:"recent_blog_entries"`
}

type AboutContext struct {
	Base BaseContext `json:"base"`
}

type BlogIndexContext struct {
	Base         BaseContext     `json:"base"`
	Entries      []BlogEntryStub `json:"entries"`
	PreviousPage *int            `json:"previous_page"`
	NextPage     *int            `json:"next_page"`
}

type BlogTagContext struct {
	Base         BaseContext     `json:"base"`
	Tag          string          `json:"tag"`
	Entries      []BlogEntryStub `json:"entries"`
	PreviousPage *int            `json:"previous_page"`
	NextPage     *int            `json:"next_page"`
}

type TagsContext struct {
	Base BaseContext `json:"base"`
	Tags []string    `json:"tags"`
}

type BlogEntryContext struct {
	Base                BaseContext                 `json:"base"`
	Slug                string                      `json:"slug"`
	Tags                []string                    `json:"tags"`
	CreatedAt           string                      `json:"created_at"`
	UpdatedAt           *string                     `json:"updated_at"`
	EntryContent        string                      `json:"entry_content"`
	PreviousEntry       *BlogEntryStub              `json:"previous_entry"`
	NextEntry           *BlogEntryStub              `json:"next_entry"`
	CommentsEnabled     bool                        `json:"comments_enabled"`
	ExternalDiscussions []entity.ExternalDiscussion `json:"external_discussions"`
	TemplateName        string                      `json:"template_name"`
}

type ErrorContext struct {
	Base    BaseContext `json:"base"`
	Header  string      `json:"header"`
	Message string      `json:"message"`
}

func NewBlogEntryStub(e *entity.Entry) BlogEntryStub {
	return BlogEntryStub{
		Title:     e.Title,
		Tags:      e.Tags,
		URL:       EntryURL(e.Slug),
		CreatedAt: FormatDate(e.CreatedAt),
	}
}

func EntryURL(slug string) string {
	return path.Join(config.BlogURLPrefix, slug)
}

func stubs(entries []*entity.Entry) []BlogEntryStub {
	res := make([]BlogEntryStub, 0, len(entries))
	for _, e := range entries {
		res = append(res, NewBlogEntryStub(e))
	}

	return res
}

/*
Paginate returns the 1-based page of entries and the neighbor page numbers.
 1. A page past the end is empty, not an error.
 2. previous is nil on page 1, next is nil when nothing follows the page.

page must be positive.
*/
func Paginate(entries []*entity.Entry, page, size int) (items []*entity.Entry, previous, next *int) {
	if page > 1 {
		p := page - 1
		previous = &p
	}

	// pages past the end are checked before multiplying so huge page numbers cannot overflow
	if pages := (len(entries) + size - 1) / size; page > pages {
		return nil, previous, nil
	}

	start := (page - 1) * size
	items = entries[start:min(start+size, len(entries))]

	if len(entries) > start+size {
		n := page + 1
		next = &n
	}

	return items, previous, next
}

// FormatDate renders t as "March 5th, 2021" in UTC.
func FormatDate(t time.Time) string {
	t = t.UTC()

	return fmt.Sprintf("%s %s, %d", t.Month(), ordinal(t.Day()), t.Year())
}

func ordinal(n int) string {
	suffix := "th"

	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}

	return fmt.Sprintf("%d%s", n, suffix)
}
