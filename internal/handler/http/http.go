package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/jgivc/livesite/internal/common"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/jgivc/livesite/internal/service/page"
	"github.com/jgivc/livesite/internal/service/site"
	"github.com/jgivc/livesite/internal/util"
	"github.com/spf13/afero"
)

const (
	contentTypeJSON = "application/json"
)

type PageService interface {
	IndexContext() (*page.IndexContext, error)
	AboutContext() *page.AboutContext
	BlogIndexContext(page int) (*page.BlogIndexContext, error)
	BlogTagContext(tag string, page int) (*page.BlogTagContext, error)
	TagsContext() (*page.TagsContext, error)
	BlogEntryContext(slug string) (*page.BlogEntryContext, error)
	EntryFile(slug, relPath string) (string, error)
	ErrorContext(header, message string) *page.ErrorContext
}

type SiteService interface {
	Rebuild(ctx context.Context) (*entity.Site, error)
	Status() *site.Status
}

func NewIndexHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "IndexHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		res, err := srv.IndexContext()
		if err != nil {
			writeError(w, srv, err, log)

			return
		}

		writeJSON(w, r, http.StatusOK, res, log)
	}
}

func NewAboutHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "AboutHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, srv.AboutContext(), log)
	}
}

// NewBlogIndexHandler serves /blog/ and /blog/page/{page}.
func NewBlogIndexHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "BlogIndexHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		pageNum, ok := pageValue(r)
		if !ok {
			writeStatus(w, srv, http.StatusBadRequest, "Bad request", "Page must be a positive number", log)

			return
		}

		res, err := srv.BlogIndexContext(pageNum)
		if err != nil {
			writeError(w, srv, err, log)

			return
		}

		writeJSON(w, r, http.StatusOK, res, log)
	}
}

func NewTagsHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "TagsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		res, err := srv.TagsContext()
		if err != nil {
			writeError(w, srv, err, log)

			return
		}

		writeJSON(w, r, http.StatusOK, res, log)
	}
}

// NewBlogTagHandler serves /blog/tags/{tag} and /blog/tags/{tag}/page/{page}.
func NewBlogTagHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "BlogTagHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		pageNum, ok := pageValue(r)
		if !ok {
			writeStatus(w, srv, http.StatusBadRequest, "Bad request", "Page must be a positive number", log)

			return
		}

		res, err := srv.BlogTagContext(r.PathValue("tag"), pageNum)
		if err != nil {
			writeError(w, srv, err, log)

			return
		}

		writeJSON(w, r, http.StatusOK, res, log)
	}
}

func NewBlogEntryHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "BlogEntryHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		res, err := srv.BlogEntryContext(r.PathValue("slug"))
		if err != nil {
			writeError(w, srv, err, log)

			return
		}

		writeJSON(w, r, http.StatusOK, res, log)
	}
}

// NewEntryFileHandler serves the associated files of an entry from fs.
func NewEntryFileHandler(fs afero.Fs, srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "EntryFileHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		relPath := r.PathValue("file")

		fullPath, err := srv.EntryFile(slug, relPath)
		if err != nil {
			writeError(w, srv, err, log)

			return
		}

		f, err := fs.Open(fullPath)
		if err != nil {
			log.Error("Cannot open file", slog.String("path", fullPath), slog.Any("error", err))
			writeStatus(w, srv, http.StatusNotFound, "Not found", "Cannot find file", log)

			return
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			log.Error("Cannot stat file", slog.String("path", fullPath), slog.Any("error", err))
			writeStatus(w, srv, http.StatusInternalServerError, "Error", "Cannot get file", log)

			return
		}

		http.ServeContent(w, r, path.Base(relPath), stat.ModTime(), f)
	}
}

func NewRebuildHandler(srv SiteService, pages PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "RebuildHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := srv.Rebuild(r.Context()); err != nil {
			writeStatus(w, pages, http.StatusInternalServerError, "Cannot rebuild site", err.Error(), log)

			return
		}

		writeJSON(w, r, http.StatusOK, srv.Status(), log)
	}
}

func NewStatusHandler(srv SiteService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatusHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, srv.Status(), log)
	}
}

// pageValue reads the optional {page} path value. A missing value is page 1.
func pageValue(r *http.Request) (int, bool) {
	raw := r.PathValue("page")
	if raw == "" {
		return 1, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}

	return n, true
}

func writeError(w http.ResponseWriter, srv PageService, err error, log *slog.Logger) {
	switch {
	case errors.Is(err, common.ErrEntryNotFound),
		errors.Is(err, common.ErrTagNotFound),
		errors.Is(err, common.ErrFileNotFound),
		errors.Is(err, common.ErrPageNotFound):
		writeStatus(w, srv, http.StatusNotFound, "Not found", "There is nothing here", log)
	case errors.Is(err, common.ErrSiteNotBuilt):
		writeStatus(w, srv, http.StatusServiceUnavailable, "Unavailable", "The site is not built yet", log)
	default:
		log.Error("Cannot serve request", slog.Any("error", err))
		writeStatus(w, srv, http.StatusInternalServerError, "Error", "Something went wrong", log)
	}
}

func writeStatus(w http.ResponseWriter, srv PageService, status int, header, message string, log *slog.Logger) {
	writeJSON(w, nil, status, srv.ErrorContext(header, message), log)
}

// writeJSON encodes v and, for successful GET requests, answers If-None-Match with 304.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any, log *slog.Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("Cannot marshal response", slog.Any("error", err))
		http.Error(w, "Cannot marshal response", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)

	if status == http.StatusOK && r != nil && r.Method == http.MethodGet {
		etag := `"` + util.GetIDFromBytes(data) + `"`
		w.Header().Set("ETag", etag)

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)

			return
		}
	}

	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Register adds every site route to mux.
func Register(mux *http.ServeMux, fs afero.Fs, pages PageService, sites SiteService, log *slog.Logger) {
	blog := NewBlogIndexHandler(pages, log)
	tag := NewBlogTagHandler(pages, log)

	mux.Handle("GET /{$}", NewIndexHandler(pages, log))
	mux.Handle("GET /about", NewAboutHandler(pages, log))
	mux.Handle("GET /blog/{$}", blog)
	mux.Handle("GET /blog/page/{page}", blog)
	mux.Handle("GET /blog/tags/{$}", NewTagsHandler(pages, log))
	mux.Handle("GET /blog/tags/{tag}", tag)
	mux.Handle("GET /blog/tags/{tag}/page/{page}", tag)
	mux.Handle("GET /blog/{slug}", NewBlogEntryHandler(pages, log))
	mux.Handle("GET /blog/{slug}/{file...}", NewEntryFileHandler(fs, pages, log))
	mux.Handle("GET /status", NewStatusHandler(sites, log))
	mux.Handle("POST /rebuild", NewRebuildHandler(sites, pages, log))
}
