package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/livesite/internal/common"
	"github.com/jgivc/livesite/internal/config"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/spf13/afero"
)

const (
	buildDirPrefix = ".build-"
	keepBuilds     = 2
)

type EntryBuilder interface {
	IsContentUnit(unitPath string, legacyFiles bool) bool
	ToEntry(unitPath, htmlDir string) (*entity.Entry, error)
}

type result struct {
	entry *entity.Entry
	err   error
	done  bool
}

/*
indexStorage builds a whole site from the blog directory.

Every build writes its HTML to its own directory <output>/.build-<id>/blog, so a failed build
never touches files of a site that is already served. The directory of a failed build is
removed. After a successful build only the newest keepBuilds build directories made by this
storage are kept: the new one and the one served until now.
*/
type indexStorage struct {
	mu      sync.Mutex
	fs      afero.Fs
	adapter EntryBuilder
	cfg     *config.IndexerConfig
	builds  []string
	log     *slog.Logger
}

func NewIndexStorage(adapter EntryBuilder, cfg *config.IndexerConfig, log *slog.Logger) *indexStorage {
	return NewIndexStorageWithFS(afero.NewOsFs(), adapter, cfg, log)
}

func NewIndexStorageWithFS(fs afero.Fs, adapter EntryBuilder, cfg *config.IndexerConfig, log *slog.Logger) *indexStorage {
	return &indexStorage{
		fs:      fs,
		adapter: adapter,
		cfg:     cfg,
		log:     log.With(slog.String("item", "IndexStorage")),
	}
}

// BlogDir is the directory whose immediate children are content units.
func (i *indexStorage) BlogDir() string {
	return filepath.Join(i.cfg.ContentDir, config.BlogDirName)
}

/*
Scan builds a new site. Any failing entry fails the whole build, and the first slug seen twice
(in directory order) is reported as a *common.DuplicateSlugError. Entries are built by
cfg.Workers workers; once one fails, the remaining units are not started.
*/
func (i *indexStorage) Scan(ctx context.Context) (*entity.Site, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := uuid.NewString()
	buildDir := filepath.Join(i.cfg.OutputDir, buildDirPrefix+id)

	site, err := i.scan(ctx, id, filepath.Join(buildDir, config.BlogDirName))
	if err != nil {
		if rerr := i.fs.RemoveAll(buildDir); rerr != nil {
			i.log.Error("Cannot remove failed build", slog.String("path", buildDir), slog.Any("error", rerr))
		}

		return nil, err
	}

	i.builds = append(i.builds, buildDir)
	for len(i.builds) > keepBuilds {
		old := i.builds[0]
		i.builds = i.builds[1:]

		if err := i.fs.RemoveAll(old); err != nil {
			i.log.Error("Cannot remove old build", slog.String("path", old), slog.Any("error", err))
		}
	}

	return site, nil
}

// RemoveStaleBuilds deletes build directories left in the output directory by earlier
// processes. It must run before the first Scan.
func (i *indexStorage) RemoveStaleBuilds() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	infos, err := afero.ReadDir(i.fs, i.cfg.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return common.NewPathError(common.ErrFilesystem, "read dir", i.cfg.OutputDir, err)
	}

	for _, info := range infos {
		if !info.IsDir() || !strings.HasPrefix(info.Name(), buildDirPrefix) {
			continue
		}

		p := filepath.Join(i.cfg.OutputDir, info.Name())
		if slices.Contains(i.builds, p) {
			continue
		}

		if err := i.fs.RemoveAll(p); err != nil {
			return common.NewPathError(common.ErrFilesystem, "remove", p, err)
		}

		i.log.Debug("Remove stale build", slog.String("path", p))
	}

	return nil
}

func (i *indexStorage) scan(ctx context.Context, id, htmlDir string) (*entity.Site, error) {
	started := time.Now()

	units, err := i.units()
	if err != nil {
		return nil, err
	}

	results := make([]result, len(units))

	if len(units) > 0 {
		i.build(ctx, units, htmlDir, results)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build interrupted: %w", err)
	}

	entries := make([]*entity.Entry, 0, len(units))
	seen := make(map[string]string, len(units))

	var skipped bool
	for n, res := range results {
		if res.err != nil {
			return nil, res.err
		}

		if !res.done {
			skipped = true

			continue
		}

		if skipped {
			continue
		}

		if first, ok := seen[res.entry.Slug]; ok {
			return nil, &common.DuplicateSlugError{
				Slug:      res.entry.Slug,
				Path:      units[n],
				FirstPath: first,
			}
		}

		seen[res.entry.Slug] = units[n]
		entries = append(entries, res.entry)
	}

	if skipped {
		// A worker stopped early, so some result above carries the error.
		return nil, fmt.Errorf("build stopped without an error")
	}

	site := entity.NewSite(id, time.Now(), entries)

	i.log.Info("Site built", slog.String("id", site.ID), slog.Int("entries", len(site.Entries)),
		slog.Duration("duration", time.Since(started)))

	return site, nil
}

// units lists the content units in lexical order.
func (i *indexStorage) units() ([]string, error) {
	blogDir := i.BlogDir()

	infos, err := afero.ReadDir(i.fs, blogDir)
	if err != nil {
		return nil, common.NewPathError(common.ErrFilesystem, "read dir", blogDir, err)
	}

	var units []string
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".") {
			continue
		}

		unitPath := filepath.Join(blogDir, info.Name())
		if !i.adapter.IsContentUnit(unitPath, i.cfg.LegacyFiles) {
			i.log.Debug("Skip path", slog.String("path", unitPath))

			continue
		}

		units = append(units, unitPath)
	}

	return units, nil
}

func (i *indexStorage) build(ctx context.Context, units []string, htmlDir string, results []result) {
	workers := min(max(i.cfg.Workers, 1), len(units))

	in := make(chan int, len(units))
	for n := range units {
		in <- n
	}
	close(in)

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)

	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go i.worker(ctx, n, units, htmlDir, in, results, &failed, &wg)
	}

	wg.Wait()
}

func (i *indexStorage) worker(ctx context.Context, n int, units []string, htmlDir string, in <-chan int, results []result,
	failed *atomic.Bool, wg *sync.WaitGroup) {
	defer wg.Done()

	log := i.log.With(slog.Int("worker_id", n))

	for idx := range in {
		if failed.Load() || ctx.Err() != nil {
			return
		}

		entry, err := i.adapter.ToEntry(units[idx], htmlDir)
		if err != nil {
			log.Error("Cannot build entry", slog.String("path", units[idx]), slog.Any("error", err))
			failed.Store(true)
			results[idx] = result{err: err}

			return
		}

		results[idx] = result{entry: entry, done: true}
	}
}
