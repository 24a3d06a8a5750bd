package site

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jgivc/livesite/internal/adapter/fsadapter"
	"github.com/jgivc/livesite/internal/config"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/jgivc/livesite/internal/metrics"
	"github.com/jgivc/livesite/internal/repository/notify"
	rsite "github.com/jgivc/livesite/internal/repository/site"
	sindex "github.com/jgivc/livesite/internal/service/index"
	"github.com/jgivc/livesite/internal/storage/index"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	mu      sync.RWMutex
	site    *entity.Site
	version uint64
}

func (r *fakeRepository) Read() *entity.Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.site
}

func (r *fakeRepository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.version
}

func (r *fakeRepository) replace(site *entity.Site) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.site = site
	r.version++
}

// fakeIndexer fails when fail is set and blocks every call while block is non nil.
type fakeIndexer struct {
	repo    *fakeRepository
	calls   atomic.Int32
	fail    atomic.Bool
	started chan struct{}
	block   chan struct{}
}

func (i *fakeIndexer) Index(_ context.Context, _ metrics.Trigger) (*entity.Site, error) {
	i.calls.Add(1)

	if i.started != nil {
		i.started <- struct{}{}
	}

	if i.block != nil {
		<-i.block
	}

	if i.fail.Load() {
		return nil, errors.New("broken content")
	}

	site := entity.NewSite(time.Now().String(), time.Now(), []*entity.Entry{{Slug: "a"}})
	i.repo.replace(site)

	return site, nil
}

func newTestConfig(t *testing.T, watch bool) *config.Config {
	t.Helper()

	root := t.TempDir()

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.IndexerConfig.ContentDir = filepath.Join(root, "content")
	cfg.IndexerConfig.OutputDir = filepath.Join(root, "html")
	cfg.Watcher.Enabled = watch
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.IndexerConfig.ContentDir, "blog"), 0o755))

	return cfg
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitialBuildFailureIsReturned(t *testing.T) {
	repo := &fakeRepository{}
	idx := &fakeIndexer{repo: repo}
	idx.fail.Store(true)

	_, err := New(context.Background(), idx, repo, newTestConfig(t, true), metrics.NoopRecorder{}, newLogger())
	require.Error(t, err)
	require.Nil(t, repo.Read())
}

func TestRebuildFailureKeepsSite(t *testing.T) {
	repo := &fakeRepository{}
	idx := &fakeIndexer{repo: repo}

	s, err := New(context.Background(), idx, repo, newTestConfig(t, false), metrics.NoopRecorder{}, newLogger())
	require.NoError(t, err)
	defer s.Close()

	first := s.Read()
	require.NotNil(t, first)

	idx.fail.Store(true)
	_, err = s.Rebuild(context.Background())
	require.Error(t, err)
	require.Same(t, first, s.Read())

	st := s.Status()
	require.Equal(t, uint64(1), st.Rebuilds)
	require.Equal(t, uint64(1), st.Failures)
	require.Equal(t, "broken content", st.LastError)
	require.NotNil(t, st.LastErrorAt)
	require.Equal(t, first.ID, st.SiteID)

	idx.fail.Store(false)
	_, err = s.Rebuild(context.Background())
	require.NoError(t, err)
	require.NotSame(t, first, s.Read())
	require.Empty(t, s.Status().LastError)
}

func TestRequestsCoalesceWhileRebuilding(t *testing.T) {
	repo := &fakeRepository{}
	idx := &fakeIndexer{repo: repo}

	s, err := New(context.Background(), idx, repo, newTestConfig(t, false), metrics.NoopRecorder{}, newLogger())
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, int32(1), idx.calls.Load())

	idx.started = make(chan struct{}, 10)
	idx.block = make(chan struct{})

	s.Request(metrics.TriggerWatcher)
	<-idx.started

	// arrive while the rebuild above is running
	for n := 0; n < 5; n++ {
		s.Request(metrics.TriggerWatcher)
	}

	close(idx.block)

	require.Eventually(t, func() bool { return idx.calls.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Never(t, func() bool { return idx.calls.Load() > 3 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestWatcherTriggersRebuild(t *testing.T) {
	repo := &fakeRepository{}
	idx := &fakeIndexer{repo: repo}
	cfg := newTestConfig(t, true)

	s, err := New(context.Background(), idx, repo, cfg, metrics.NoopRecorder{}, newLogger())
	require.NoError(t, err)
	defer s.Close()
	require.True(t, s.Status().Watching)

	unit := filepath.Join(cfg.IndexerConfig.ContentDir, "blog", "post")
	require.NoError(t, os.MkdirAll(unit, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(unit, "content.md"), []byte("+++\n+++\n"), 0o644))

	require.Eventually(t, func() bool { return repo.Version() > 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	repo := &fakeRepository{}
	idx := &fakeIndexer{repo: repo}

	s, err := New(context.Background(), idx, repo, newTestConfig(t, true), metrics.NoopRecorder{}, newLogger())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// requests after close are dropped without blocking
	s.Request(metrics.TriggerManual)
	s.Request(metrics.TriggerManual)
}

func TestBrokenEditKeepsServedSite(t *testing.T) {
	cfg := newTestConfig(t, true)
	log := newLogger()

	blog := filepath.Join(cfg.IndexerConfig.ContentDir, "blog")
	// new units are prepared in a hidden dir and renamed so no build sees them half written
	write := func(unit, content string) {
		t.Helper()

		dir := filepath.Join(blog, unit)
		if _, err := os.Stat(dir); err == nil {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "content.md"), []byte(content), 0o644))

			return
		}

		tmp := filepath.Join(blog, "."+unit)
		require.NoError(t, os.MkdirAll(tmp, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(tmp, "content.md"), []byte(content), 0o644))
		require.NoError(t, os.Rename(tmp, dir))
	}

	write("a", "+++\ntitle = \"A\"\n+++\nBody of a\n")

	fsa, err := fsadapter.NewFSAdapter(cfg.FSAdapterConfig(), log)
	require.NoError(t, err)

	repo := rsite.NewSiteRepository(log)
	indexer := sindex.NewIndexService(index.NewIndexStorage(fsa, &cfg.IndexerConfig, log), repo,
		notify.NewNoopNotifier(), metrics.NoopRecorder{}, log)

	s, err := New(context.Background(), indexer, repo, cfg, metrics.NoopRecorder{}, log)
	require.NoError(t, err)
	defer s.Close()

	first := s.Read()
	require.Len(t, first.Entries, 1)
	htmlFile := first.Entries[0].HTMLFile

	assertServed := func() {
		t.Helper()
		require.Same(t, first, s.Read())

		html, err := os.ReadFile(htmlFile)
		require.NoError(t, err)
		require.Equal(t, "<p>Body of a</p>\n", string(html))
	}

	// duplicate slug
	write("b", "+++\nslug = \"a\"\n+++\nBody of b\n")
	require.Eventually(t, func() bool { return s.Status().Failures >= 1 }, 3*time.Second, 20*time.Millisecond)
	assertServed()

	// malformed content
	failures := s.Status().Failures
	write("a", "no front matter\n")
	require.Eventually(t, func() bool { return s.Status().Failures > failures }, 3*time.Second, 20*time.Millisecond)
	assertServed()

	// fixing both makes the next build live
	require.NoError(t, os.RemoveAll(filepath.Join(blog, "b")))
	write("a", "+++\ntitle = \"A2\"\n+++\nBody of a\n")
	require.Eventually(t, func() bool {
		site := s.Read()

		return site != first && len(site.Entries) == 1 && site.Entries[0].Title == "A2"
	}, 3*time.Second, 20*time.Millisecond)
}
