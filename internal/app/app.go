package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/livesite/internal/adapter/fsadapter"
	"github.com/jgivc/livesite/internal/config"
	httphandler "github.com/jgivc/livesite/internal/handler/http"
	"github.com/jgivc/livesite/internal/metrics"
	"github.com/jgivc/livesite/internal/repository/notify"
	"github.com/jgivc/livesite/internal/repository/site"
	sindex "github.com/jgivc/livesite/internal/service/index"
	"github.com/jgivc/livesite/internal/service/page"
	ssite "github.com/jgivc/livesite/internal/service/site"
	"github.com/jgivc/livesite/internal/storage/index"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	buildTimeout    = 5 * time.Minute
	shutdownTimeout = 5 * time.Second
)

type siteStorage interface {
	sindex.SiteStorage
	RemoveStaleBuilds() error
}

type notifier interface {
	sindex.Notifier
	Close() error
}

type App struct {
	cfgPath string
	verbose bool

	cfg      *config.Config
	srv      *http.Server
	site     *ssite.UpdatingSite
	notifier notifier
	log      *slog.Logger
}

func New(cfgPath string, verbose bool) *App {
	return &App{
		cfgPath: cfgPath,
		verbose: verbose,
	}
}

func (a *App) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.verbose {
		a.cfg.LogLevel = config.LogLevelDebug
	}

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return fmt.Errorf("unknown log level: %s", a.cfg.LogLevel)
	}
	a.log = slog.New(slog.NewTextHandler(os.Stderr, lo))

	return nil
}

func (a *App) newNotifier() (notifier, error) {
	if a.cfg.Redis.URL == "" {
		return notify.NewNoopNotifier(), nil
	}

	opt, err := redis.ParseURL(a.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Redis.PingTimeout)
	defer cancel()

	n := notify.NewRedisNotifier(rdb, a.cfg.Redis.Channel, a.cfg.Redis.KeyPrefix, a.log)

	// Notifications are optional: an unreachable redis is reported, not fatal.
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		a.log.Warn("Cannot ping redis", slog.String("addr", opt.Addr), slog.Any("error", err))

		return n, nil
	}

	last, err := n.LastBuild(ctx)
	switch {
	case err != nil:
		a.log.Warn("Cannot get previous build", slog.Any("error", err))
	case last != nil:
		a.log.Info("Previous build", slog.String("id", last.SiteID), slog.Uint64("version", last.Version),
			slog.Time("built_at", last.BuiltAt), slog.Int("entries", last.Entries))
	}

	return n, nil
}

func (a *App) newStorage() (siteStorage, error) {
	fsa, err := fsadapter.NewFSAdapter(a.cfg.FSAdapterConfig(), a.log)
	if err != nil {
		return nil, fmt.Errorf("cannot create entry builder: %w", err)
	}

	return index.NewIndexStorage(fsa, &a.cfg.IndexerConfig, a.log), nil
}

// Start builds the site, starts watching the content directory and serves it. An error
// means nothing could be served.
func (a *App) Start() error {
	if err := a.init(); err != nil {
		return err
	}

	store, err := a.newStorage()
	if err != nil {
		return err
	}

	if err := store.RemoveStaleBuilds(); err != nil {
		a.log.Warn("Cannot remove stale builds", slog.Any("error", err))
	}

	a.notifier, err = a.newNotifier()
	if err != nil {
		return err
	}

	reg := prom.NewRegistry()
	var rec metrics.Recorder = metrics.NoopRecorder{}
	if a.cfg.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.NewPrometheusRecorder(reg)
	}

	repo := site.NewSiteRepository(a.log)
	indexer := sindex.NewIndexService(store, repo, a.notifier, rec, a.log)

	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	a.site, err = ssite.New(ctx, indexer, repo, a.cfg, rec, a.log)
	if err != nil {
		a.log.Error("Cannot build site", slog.Any("error", err))

		return err
	}

	pages := page.NewPageService(a.site, &a.cfg.View, a.log)

	mux := http.NewServeMux()
	httphandler.Register(mux, afero.NewOsFs(), pages, a.site, a.log)
	if a.cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.HTTPHandler(reg))
	}

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	go func() {
		a.log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()

	return nil
}

// Rebuild queues a rebuild of the running site.
func (a *App) Rebuild() {
	if a.site == nil {
		return
	}

	a.site.Request(metrics.TriggerManual)
}

// Build runs one build and exits, without serving.
func (a *App) Build() error {
	if err := a.init(); err != nil {
		return err
	}

	store, err := a.newStorage()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	s, err := store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("cannot build site: %w", err)
	}

	for i, e := range s.Entries {
		fmt.Printf("%d. %s -> %s (%s)\n", i+1, e.SourcePath, page.EntryURL(e.Slug), e.HTMLFile)
	}

	return nil
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Error("Cannot stop server", slog.Any("error", err))
		}
	}

	if a.site != nil {
		if err := a.site.Close(); err != nil {
			a.log.Error("Cannot stop site", slog.Any("error", err))
		}
	}

	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.log.Error("Cannot close notifier", slog.Any("error", err))
		}
	}
}
