package site

import (
	"log/slog"
	"sync"

	"github.com/jgivc/livesite/internal/entity"
)

// siteRepository holds the current site snapshot. Snapshots are immutable, so a reader keeps
// using the one it got for as long as it needs while newer ones are swapped in.
type siteRepository struct {
	mu      sync.RWMutex
	site    *entity.Site
	version uint64

	log *slog.Logger
}

func NewSiteRepository(log *slog.Logger) *siteRepository {
	return &siteRepository{
		log: log.With(slog.String("item", "SiteRepository")),
	}
}

// Read returns the current snapshot or nil before the first Replace.
func (r *siteRepository) Read() *entity.Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.site
}

// Replace makes site current and returns the new version. Nil is ignored.
func (r *siteRepository) Replace(site *entity.Site) uint64 {
	if site == nil {
		r.log.Error("Cannot replace site with nil")

		return r.Version()
	}

	r.mu.Lock()
	old := r.site
	r.site = site
	r.version++
	ver := r.version
	r.mu.Unlock()

	if old != nil {
		r.log.Info("Site replaced", slog.String("old_id", old.ID), slog.String("new_id", site.ID),
			slog.Uint64("version", ver))
	} else {
		r.log.Info("Site loaded", slog.String("id", site.ID), slog.Uint64("version", ver))
	}

	return ver
}

// Version counts successful replacements.
func (r *siteRepository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.version
}
