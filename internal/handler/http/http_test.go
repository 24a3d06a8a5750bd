package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jgivc/livesite/internal/config"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/jgivc/livesite/internal/service/page"
	"github.com/jgivc/livesite/internal/service/site"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type staticSite struct {
	site *entity.Site
}

func (s *staticSite) Read() *entity.Site {
	return s.site
}

type fakeSiteService struct {
	err      error
	rebuilds int
}

func (s *fakeSiteService) Rebuild(context.Context) (*entity.Site, error) {
	s.rebuilds++

	return nil, s.err
}

func (s *fakeSiteService) Status() *site.Status {
	return &site.Status{SiteID: "id", Rebuilds: uint64(s.rebuilds)}
}

func newTestMux(t *testing.T) (*http.ServeMux, *fakeSiteService) {
	t.Helper()

	fs := afero.NewMemMapFs()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var entries []*entity.Entry
	for i := 1; i <= 12; i++ {
		e := &entity.Entry{
			Slug:      fmt.Sprintf("post-%02d", i),
			Title:     fmt.Sprintf("Post %d", i),
			Tags:      []string{},
			CreatedAt: time.Date(2021, time.March, i, 0, 0, 0, 0, time.UTC),
			HTMLFile:  fmt.Sprintf("/html/blog/post-%02d.html", i),
		}
		if i%2 == 0 {
			e.Tags = []string{"even"}
		}
		require.NoError(t, afero.WriteFile(fs, e.HTMLFile, []byte(fmt.Sprintf("<p>%d</p>", i)), 0o644))
		entries = append(entries, e)
	}

	entries[0].AssociatedFiles = []entity.AssociatedFile{{RelativePath: "img/a.txt", FullPath: "/content/blog/post-01/img/a.txt"}}
	require.NoError(t, afero.WriteFile(fs, "/content/blog/post-01/img/a.txt", []byte("hello"), 0o644))

	cfg := &config.Config{}
	cfg.SetDefaults()

	pages := page.NewPageServiceWithFS(fs, &staticSite{site: entity.NewSite("id", time.Now(), entries)}, &cfg.View, log)
	sites := &fakeSiteService{}

	mux := http.NewServeMux()
	Register(mux, fs, pages, sites, log)

	return mux, sites
}

func do(t *testing.T, mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func TestRoutes(t *testing.T) {
	mux, _ := newTestMux(t)

	testCases := []struct {
		name       string
		target     string
		wantStatus int
		contains   string
	}{
		{name: "index", target: "/", wantStatus: http.StatusOK, contains: `"recent_blog_entries"`},
		{name: "about", target: "/about", wantStatus: http.StatusOK, contains: "About The Rotoclone Zone"},
		{name: "blog", target: "/blog/", wantStatus: http.StatusOK, contains: `"next_page":2`},
		{name: "blog page", target: "/blog/page/2", wantStatus: http.StatusOK, contains: `"previous_page":1`},
		{name: "blog page past end", target: "/blog/page/9", wantStatus: http.StatusOK, contains: `"entries":[]`},
		{name: "blog page huge", target: "/blog/page/922337203685477582", wantStatus: http.StatusOK, contains: `"entries":[]`},
		{name: "blog page zero", target: "/blog/page/0", wantStatus: http.StatusBadRequest},
		{name: "blog page not a number", target: "/blog/page/x", wantStatus: http.StatusBadRequest},
		{name: "tags", target: "/blog/tags/", wantStatus: http.StatusOK, contains: `"tags":["even"]`},
		{name: "tag", target: "/blog/tags/even", wantStatus: http.StatusOK, contains: "/blog/post-12"},
		{name: "tag page", target: "/blog/tags/even/page/1", wantStatus: http.StatusOK, contains: `"next_page":null`},
		{name: "unknown tag", target: "/blog/tags/odd", wantStatus: http.StatusNotFound},
		{name: "entry", target: "/blog/post-03", wantStatus: http.StatusOK, contains: `<p>3</p>`},
		{name: "unknown entry", target: "/blog/nope", wantStatus: http.StatusNotFound},
		{name: "entry file", target: "/blog/post-01/img/a.txt", wantStatus: http.StatusOK, contains: "hello"},
		{name: "unknown entry file", target: "/blog/post-01/img/b.txt", wantStatus: http.StatusNotFound},
		{name: "status", target: "/status", wantStatus: http.StatusOK, contains: `"site_id":"id"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodGet, tc.target)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.contains != "" {
				require.Contains(t, rec.Body.String(), tc.contains)
			}
		})
	}
}

func TestErrorBody(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/blog/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))

	var body page.ErrorContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Not found", body.Header)
}

func TestETag(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/blog/post-03")
	require.Equal(t, http.StatusOK, rec.Code)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/blog/post-03", nil)
	req.Header.Set("If-None-Match", etag)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestRebuild(t *testing.T) {
	mux, sites := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/rebuild")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, sites.rebuilds)

	sites.err = errors.New("duplicate slug")
	rec = do(t, mux, http.MethodPost, "/rebuild")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "duplicate slug")

	rec = do(t, mux, http.MethodGet, "/rebuild")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
