package site

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/jgivc/livesite/internal/config"
	"github.com/jgivc/livesite/internal/entity"
	"github.com/jgivc/livesite/internal/metrics"
	"github.com/jgivc/livesite/internal/scheduler"
	"github.com/jgivc/livesite/internal/watcher"
)

const (
	serviceName = "site"
)

type Indexer interface {
	Index(ctx context.Context, trigger metrics.Trigger) (*entity.Site, error)
}

type SiteRepository interface {
	Read() *entity.Site
	Version() uint64
}

type Status struct {
	SiteID      string     `json:"site_id"`
	Version     uint64     `json:"version"`
	Entries     int        `json:"entries"`
	BuiltAt     time.Time  `json:"built_at"`
	Rebuilds    uint64     `json:"rebuilds"`
	Failures    uint64     `json:"failures"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
	Watching    bool       `json:"watching"`
}

/*
UpdatingSite keeps the site in the repository in sync with the content directory.

It owns the watcher and the resync scheduler. Both only request a rebuild; requests are
served one at a time by a single worker, and a request made while a rebuild is running
queues exactly one more rebuild. A failed rebuild is logged and recorded in Status, the
served site stays as it was.
*/
type UpdatingSite struct {
	indexer Indexer
	repo    SiteRepository
	watcher *watcher.Watcher
	sched   *scheduler.Scheduler

	requests chan metrics.Trigger
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	mu          sync.Mutex
	rebuilds    uint64
	failures    uint64
	lastErr     error
	lastErrorAt time.Time

	log *slog.Logger
}

/*
New builds the site once and starts watching for changes. An error from this first build is
returned to the caller, who has no site to serve and should exit.
*/
func New(ctx context.Context, indexer Indexer, repo SiteRepository, cfg *config.Config, rec metrics.Recorder, log *slog.Logger) (*UpdatingSite, error) {
	s := &UpdatingSite{
		indexer:  indexer,
		repo:     repo,
		requests: make(chan metrics.Trigger, 1),
		done:     make(chan struct{}),
		log:      log.With(slog.String("service", serviceName)),
	}

	// Watch before the first build so edits made while it runs are not lost.
	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.IndexerConfig.ContentDir,
			[]string{cfg.IndexerConfig.OutputDir}, cfg.Watcher.Debounce,
			func() { s.Request(metrics.TriggerWatcher) }, rec, log)
		if err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", cfg.IndexerConfig.ContentDir, err)
		}
		s.watcher = w
	}

	if _, err := s.indexer.Index(ctx, metrics.TriggerStartup); err != nil {
		s.closeWatcher()

		return nil, fmt.Errorf("cannot build initial site from %s: %w",
			filepath.Join(cfg.IndexerConfig.ContentDir, config.BlogDirName), err)
	}

	if cfg.Watcher.ResyncInterval > 0 {
		sched, err := scheduler.New(log)
		if err != nil {
			s.closeWatcher()

			return nil, err
		}

		if _, err := sched.ScheduleResync(cfg.Watcher.ResyncInterval, func() { s.Request(metrics.TriggerResync) }); err != nil {
			s.closeWatcher()
			_ = sched.Stop()

			return nil, err
		}

		s.sched = sched
	}

	s.wg.Add(1)
	go s.worker()

	if s.watcher != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.watcher.Run(context.Background())
		}()
	}

	if s.sched != nil {
		s.sched.Start()
	}

	return s, nil
}

// Read returns the site currently served.
func (s *UpdatingSite) Read() *entity.Site {
	return s.repo.Read()
}

// Request asks for a rebuild without waiting for it. It never blocks.
func (s *UpdatingSite) Request(trigger metrics.Trigger) {
	select {
	case s.requests <- trigger:
		s.log.Debug("Rebuild requested", slog.String("trigger", string(trigger)))
	default:
		// a rebuild is already queued and will see this change too
	}
}

// Rebuild runs a rebuild and waits for it. Canceling ctx does not stop the rebuild.
func (s *UpdatingSite) Rebuild(ctx context.Context) (*entity.Site, error) {
	return s.rebuild(context.WithoutCancel(ctx), metrics.TriggerManual)
}

func (s *UpdatingSite) Status() *Status {
	st := &Status{
		Version:  s.repo.Version(),
		Watching: s.watcher != nil,
	}

	if site := s.repo.Read(); site != nil {
		st.SiteID = site.ID
		st.Entries = len(site.Entries)
		st.BuiltAt = site.BuiltAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st.Rebuilds = s.rebuilds
	st.Failures = s.failures
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
		at := s.lastErrorAt
		st.LastErrorAt = &at
	}

	return st
}

// Close stops watching and waits for a running rebuild to finish.
func (s *UpdatingSite) Close() error {
	var err error

	s.once.Do(func() {
		if s.sched != nil {
			if serr := s.sched.Stop(); serr != nil {
				err = serr
			}
		}

		s.closeWatcher()
		close(s.done)
		s.wg.Wait()

		s.log.Info("Stopped")
	})

	return err
}

func (s *UpdatingSite) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case trigger := <-s.requests:
			// rebuilds are not cancelled, Close waits for them
			_, _ = s.rebuild(context.Background(), trigger)
		}
	}
}

func (s *UpdatingSite) rebuild(ctx context.Context, trigger metrics.Trigger) (*entity.Site, error) {
	site, err := s.indexer.Index(ctx, trigger)

	s.mu.Lock()
	s.rebuilds++
	if err != nil {
		s.failures++
		s.lastErr = err
		s.lastErrorAt = time.Now()
	} else {
		s.lastErr = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Cannot rebuild site, keep serving the previous one", slog.String("trigger", string(trigger)),
			slog.Any("error", err))

		return nil, err
	}

	return site, nil
}

func (s *UpdatingSite) closeWatcher() {
	if s.watcher == nil {
		return
	}

	if err := s.watcher.Close(); err != nil {
		s.log.Error("Cannot close watcher", slog.Any("error", err))
	}
}
