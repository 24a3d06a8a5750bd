package page

import (
	"fmt"
	"log/slog"

	"github.com/jgivc/livesite/internal/common"
	"github.com/jgivc/livesite/internal/config"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/spf13/afero"
)

const (
	serviceName = "page"
)

type SiteReader interface {
	Read() *entity.Site
}

// pageService builds view contexts. Every call works on the single snapshot it read first.
type pageService struct {
	sites SiteReader
	fs    afero.Fs
	cfg   *config.ViewConfig
	log   *slog.Logger
}

func NewPageService(sites SiteReader, cfg *config.ViewConfig, log *slog.Logger) *pageService {
	return NewPageServiceWithFS(afero.NewOsFs(), sites, cfg, log)
}

func NewPageServiceWithFS(fs afero.Fs, sites SiteReader, cfg *config.ViewConfig, log *slog.Logger) *pageService {
	return &pageService{
		sites: sites,
		fs:    fs,
		cfg:   cfg,
		log:   log.With(slog.String("service", serviceName)),
	}
}

func (p *pageService) site() (*entity.Site, error) {
	site := p.sites.Read()
	if site == nil {
		return nil, common.ErrSiteNotBuilt
	}

	return site, nil
}

func (p *pageService) siteBase() BaseContext {
	return BaseContext{Title: p.cfg.SiteTitle, MetaDescription: p.cfg.SiteDescription}
}

func (p *pageService) blogBase() BaseContext {
	return BaseContext{Title: p.cfg.BlogTitle, MetaDescription: p.cfg.BlogDescription}
}

func (p *pageService) IndexContext() (*IndexContext, error) {
	site, err := p.site()
	if err != nil {
		return nil, err
	}

	recent := site.Entries[:min(p.cfg.RecentEntries, len(site.Entries))]

	return &IndexContext{
		Base:              p.siteBase(),
		RecentBlogEntries: stubs(recent),
	}, nil
}

func (p *pageService) AboutContext() *AboutContext {
	return &AboutContext{
		Base: BaseContext{Title: p.cfg.AboutTitle, MetaDescription: p.cfg.SiteDescription},
	}
}

func (p *pageService) BlogIndexContext(page int) (*BlogIndexContext, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: %d", common.ErrPageNotFound, page)
	}

	site, err := p.site()
	if err != nil {
		return nil, err
	}

	entries, prev, next := Paginate(site.Entries, page, p.cfg.PageSize)

	return &BlogIndexContext{
		Base:         p.blogBase(),
		Entries:      stubs(entries),
		PreviousPage: prev,
		NextPage:     next,
	}, nil
}

// BlogTagContext returns common.ErrTagNotFound when no entry has tag. A known tag paged past
// the end gives an empty list.
func (p *pageService) BlogTagContext(tag string, page int) (*BlogTagContext, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: %d", common.ErrPageNotFound, page)
	}

	site, err := p.site()
	if err != nil {
		return nil, err
	}

	tagged := site.EntriesWithTag(tag)
	if len(tagged) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrTagNotFound, tag)
	}

	entries, prev, next := Paginate(tagged, page, p.cfg.PageSize)

	return &BlogTagContext{
		Base: BaseContext{
			Title:           fmt.Sprintf("Entries tagged %q", tag),
			MetaDescription: p.cfg.BlogDescription,
		},
		Tag:          tag,
		Entries:      stubs(entries),
		PreviousPage: prev,
		NextPage:     next,
	}, nil
}

func (p *pageService) TagsContext() (*TagsContext, error) {
	site, err := p.site()
	if err != nil {
		return nil, err
	}

	return &TagsContext{
		Base: BaseContext{Title: "Tags", MetaDescription: p.cfg.BlogDescription},
		Tags: site.Tags(),
	}, nil
}

/*
BlogEntryContext reads the rendered body of the entry with slug. The previous entry is the
next older one and the next entry the next newer one.
*/
func (p *pageService) BlogEntryContext(slug string) (*BlogEntryContext, error) {
	site, err := p.site()
	if err != nil {
		return nil, err
	}

	idx, ok := site.Position(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrEntryNotFound, slug)
	}
	entry := site.Entries[idx]

	content, err := afero.ReadFile(p.fs, entry.HTMLFile)
	if err != nil {
		p.log.Error("Cannot read entry content", slog.String("slug", slug), slog.String("path", entry.HTMLFile),
			slog.Any("error", err))

		return nil, common.NewPathError(common.ErrFilesystem, "read", entry.HTMLFile, err)
	}

	description := entry.Description
	if description == "" {
		description = entry.Title
	}

	res := &BlogEntryContext{
		Base:                BaseContext{Title: entry.Title, MetaDescription: description},
		Slug:                entry.Slug,
		Tags:                entry.Tags,
		CreatedAt:           FormatDate(entry.CreatedAt),
		EntryContent:        string(content),
		CommentsEnabled:     entry.CommentsEnabled,
		ExternalDiscussions: entry.ExternalDiscussions,
		TemplateName:        entry.TemplateName,
	}

	if entry.UpdatedAt != nil {
		updated := FormatDate(*entry.UpdatedAt)
		res.UpdatedAt = &updated
	}

	if idx+1 < len(site.Entries) {
		stub := NewBlogEntryStub(site.Entries[idx+1])
		res.PreviousEntry = &stub
	}

	if idx > 0 {
		stub := NewBlogEntryStub(site.Entries[idx-1])
		res.NextEntry = &stub
	}

	return res, nil
}

// EntryFile returns the path on disk of an associated file of the entry with slug.
func (p *pageService) EntryFile(slug, relPath string) (string, error) {
	site, err := p.site()
	if err != nil {
		return "", err
	}

	entry, ok := site.Entry(slug)
	if !ok {
		return "", fmt.Errorf("%w: %s", common.ErrEntryNotFound, slug)
	}

	file, ok := entry.AssociatedFile(relPath)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", common.ErrFileNotFound, slug, relPath)
	}

	return file.FullPath, nil
}

func (p *pageService) ErrorContext(header, message string) *ErrorContext {
	return &ErrorContext{
		Base:    BaseContext{Title: header, MetaDescription: p.cfg.SiteDescription},
		Header:  header,
		Message: message,
	}
}
