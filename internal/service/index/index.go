package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jgivc/livesite/internal/entity"
	"github.com/jgivc/livesite/internal/metrics"
	"github.com/jgivc/livesite/internal/repository/notify"
)

type SiteStorage interface {
	Scan(ctx context.Context) (*entity.Site, error)
}

type SiteRepository interface {
	Replace(site *entity.Site) uint64
}

type Notifier interface {
	Notify(ctx context.Context, event *notify.BuildEvent) error
}

// IndexerService runs one build and, when it succeeds, makes the result live.
// A failed build leaves the repository untouched. Builds run one at a time, a build is
// live before the next one starts scanning.
type IndexerService struct {
	mu       sync.Mutex
	store    SiteStorage
	repo     SiteRepository
	notifier Notifier
	rec      metrics.Recorder
	log      *slog.Logger
}

func NewIndexService(store SiteStorage, repo SiteRepository, notifier Notifier, rec metrics.Recorder, log *slog.Logger) *IndexerService {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &IndexerService{
		store:    store,
		repo:     repo,
		notifier: notifier,
		rec:      rec,
		log:      log.With(slog.String("item", "IndexService")),
	}
}

func (i *IndexerService) Index(ctx context.Context, trigger metrics.Trigger) (*entity.Site, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	log := i.log.With(slog.String("trigger", string(trigger)))
	started := time.Now()

	site, err := i.store.Scan(ctx)
	i.rec.ObserveBuildDuration(time.Since(started))

	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeCanceled
		}
		i.rec.IncBuildOutcome(trigger, outcome)

		log.Error("Cannot build site", slog.Any("error", err))

		return nil, fmt.Errorf("cannot build site: %w", err)
	}

	ver := i.repo.Replace(site)

	i.rec.IncBuildOutcome(trigger, metrics.OutcomeSuccess)
	i.rec.SetEntries(len(site.Entries))
	i.rec.SetSiteVersion(ver)

	log.Info("Site is live", slog.String("id", site.ID), slog.Int("entries", len(site.Entries)),
		slog.Uint64("version", ver))

	if i.notifier != nil {
		if err := i.notifier.Notify(ctx, notify.NewBuildEvent(site, ver)); err != nil {
			log.Warn("Cannot notify about new site", slog.Any("error", err))
		}
	}

	return site, nil
}
