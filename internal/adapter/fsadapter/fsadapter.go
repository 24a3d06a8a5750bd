package fsadapter

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jgivc/livesite/internal/adapter/frontmatter"
	"github.com/jgivc/livesite/internal/adapter/mdadapter"
	"github.com/jgivc/livesite/internal/common"
	"github.com/jgivc/livesite/internal/config"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/spf13/afero"
)

const (
	// DefaultTemplateName is used for entries whose front matter has no template.
	DefaultTemplateName = "blog_entry"

	// DefaultCommentsEnabled is used for entries whose front matter has no comments_enabled.
	DefaultCommentsEnabled = false
)

type fsAdapter struct {
	fs   afero.Fs
	cfg  *config.FSAdapterConfig
	md   *mdadapter.Renderer
	html *htmlMaterializer

	log *slog.Logger
}

func NewFSAdapter(cfg *config.FSAdapterConfig, log *slog.Logger) (*fsAdapter, error) {
	return NewFSAdapterWithFS(afero.NewOsFs(), cfg, log)
}

func NewFSAdapterWithFS(fs afero.Fs, cfg *config.FSAdapterConfig, log *slog.Logger) (*fsAdapter, error) {
	if cfg.ContentFileName == "" {
		return nil, fmt.Errorf("content file name must be set")
	}

	fsa := &fsAdapter{
		fs:   fs,
		cfg:  cfg,
		md:   mdadapter.NewRenderer(),
		html: newHTMLMaterializer(fs),
		log:  log.With(slog.String("item", "FSAdapter")),
	}

	return fsa, nil
}

// IsContentUnit reports whether unitPath has the layout of an entry: a directory holding
// the content file, or (legacy) a markdown file.
func (a *fsAdapter) IsContentUnit(unitPath string, legacyFiles bool) bool {
	stat, err := a.fs.Stat(unitPath)
	if err != nil {
		return false
	}

	if stat.IsDir() {
		return a.fileExists(filepath.Join(unitPath, a.cfg.ContentFileName))
	}

	return legacyFiles && strings.EqualFold(filepath.Ext(unitPath), ".md")
}

/*
ToEntry builds one entry from unitPath.
 1. A directory must contain cfg.ContentFileName; every other file below it becomes an associated file.
 2. A plain file is a legacy entry without associated files.

The body is rendered and written to htmlDir as <unit name>.html.
*/
func (a *fsAdapter) ToEntry(unitPath, htmlDir string) (*entity.Entry, error) {
	if strings.Contains(unitPath, "..") {
		return nil, common.NewPathError(common.ErrFilesystem, "open", unitPath, fmt.Errorf("invalid unit path"))
	}

	stat, err := a.fs.Stat(unitPath)
	if err != nil {
		return nil, common.NewPathError(common.ErrFilesystem, "stat", unitPath, err)
	}

	unitName := filepath.Base(unitPath)
	contentPath := unitPath

	var files []entity.AssociatedFile
	if stat.IsDir() {
		contentPath = filepath.Join(unitPath, a.cfg.ContentFileName)

		files, err = a.readFiles(unitPath, contentPath)
		if err != nil {
			return nil, err
		}
	}

	content, err := afero.ReadFile(a.fs, contentPath)
	if err != nil {
		return nil, common.NewPathError(common.ErrFilesystem, "read", contentPath, err)
	}

	meta, body, err := frontmatter.Parse(content)
	if err != nil {
		return nil, common.NewPathError(common.Kind(err), "parse", contentPath, err)
	}

	entry := &entity.Entry{
		Slug:                meta.Slug,
		Title:               meta.Title,
		Description:         meta.Description,
		Tags:                meta.Tags,
		UpdatedAt:           meta.UpdatedAt,
		CommentsEnabled:     DefaultCommentsEnabled,
		ExternalDiscussions: meta.ExternalDiscussions,
		TemplateName:        meta.Template,
		SourcePath:          unitPath,
		AssociatedFiles:     files,
	}

	if entry.Slug == "" {
		entry.Slug = defaultSlug(unitName)
	}

	if entry.TemplateName == "" {
		entry.TemplateName = DefaultTemplateName
	}

	if meta.CommentsEnabled != nil {
		entry.CommentsEnabled = *meta.CommentsEnabled
	}

	if entry.Tags == nil {
		entry.Tags = []string{}
	}

	if entry.ExternalDiscussions == nil {
		entry.ExternalDiscussions = []entity.ExternalDiscussion{}
	}

	if meta.CreatedAt != nil {
		entry.CreatedAt = *meta.CreatedAt
	} else {
		contentStat, err := a.fs.Stat(contentPath)
		if err != nil {
			return nil, common.NewPathError(common.ErrFilesystem, "stat", contentPath, err)
		}

		entry.CreatedAt = contentStat.ModTime()
	}

	resolver := newFileResolver(path.Join(a.cfg.URLPrefix, entry.Slug), files)

	html, err := a.md.Render(body, resolver)
	if err != nil {
		return nil, common.NewPathError(common.ErrRenderIO, "render", contentPath, err)
	}

	entry.HTMLFile, err = a.html.Materialize(htmlDir, unitName, html)
	if err != nil {
		return nil, common.NewPathError(common.ErrRenderIO, "write", contentPath, err)
	}

	a.log.Debug("Build entry", slog.String("slug", entry.Slug), slog.String("path", unitPath),
		slog.Int("files", len(files)))

	return entry, nil
}

// readFiles walks the entry directory and returns every file but the content file.
// Hidden files and directories are skipped.
func (a *fsAdapter) readFiles(unitPath, contentPath string) ([]entity.AssociatedFile, error) {
	var files []entity.AssociatedFile

	err := afero.Walk(a.fs, unitPath, func(fullPath string, info os.FileInfo, err error) error {
		if err != nil {
			return common.NewPathError(common.ErrFilesystem, "walk", fullPath, err)
		}

		if fullPath != unitPath && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if info.IsDir() || fullPath == contentPath {
			return nil
		}

		rel, err := filepath.Rel(unitPath, fullPath)
		if err != nil {
			return common.NewPathError(common.ErrFilesystem, "walk", fullPath, err)
		}

		files = append(files, entity.AssociatedFile{
			RelativePath: filepath.ToSlash(rel),
			FullPath:     fullPath,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelativePath < files[j].RelativePath
	})

	return files, nil
}

func (a *fsAdapter) fileExists(path string) bool {
	if path == "" {
		return false
	}

	stat, err := a.fs.Stat(path)

	return err == nil && !stat.IsDir()
}

func defaultSlug(unitName string) string {
	if stem := strings.TrimSuffix(unitName, filepath.Ext(unitName)); stem != "" {
		return stem
	}

	return unitName
}
