package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jgivc/livesite/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyActiveSite = "active"     // STRING. ID of the site currently served
	KeyLastBuild  = "last_build" // STRING. JSON encoded BuildEvent of the last published build

	KeySeparator = ":"
)

// BuildEvent is published every time a new site goes live.
type BuildEvent struct {
	SiteID  string    `json:"site_id"`
	Version uint64    `json:"version"`
	BuiltAt time.Time `json:"built_at"`
	Entries int       `json:"entries"`
}

func NewBuildEvent(site *entity.Site, version uint64) *BuildEvent {
	return &BuildEvent{
		SiteID:  site.ID,
		Version: version,
		BuiltAt: site.BuiltAt,
		Entries: len(site.Entries),
	}
}

// redisNotifier tells other processes (caches, CDN purgers) that a new site is live.
type redisNotifier struct {
	cl      *redis.Client
	channel string
	prefix  string
	log     *slog.Logger
}

func NewRedisNotifier(cl *redis.Client, channel, prefix string, log *slog.Logger) *redisNotifier {
	return &redisNotifier{
		cl:      cl,
		channel: channel,
		prefix:  prefix,
		log:     log.With(slog.String("item", "RedisNotifier")),
	}
}

func (n *redisNotifier) Notify(ctx context.Context, event *BuildEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("cannot marshal build event: %w", err)
	}

	pipe := n.cl.TxPipeline()
	pipe.Set(ctx, n.key(KeyActiveSite), event.SiteID, 0)
	pipe.Set(ctx, n.key(KeyLastBuild), data, 0)
	pipe.Publish(ctx, n.channel, data)

	if _, err := pipe.Exec(ctx); err != nil {
		n.log.Error("Cannot publish build", slog.String("site_id", event.SiteID), slog.Any("error", err))

		return fmt.Errorf("cannot publish build %s: %w", event.SiteID, err)
	}

	n.log.Debug("Build published", slog.String("site_id", event.SiteID), slog.String("channel", n.channel))

	return nil
}

// LastBuild returns the last published event or nil if nothing was published yet.
func (n *redisNotifier) LastBuild(ctx context.Context) (*BuildEvent, error) {
	data, err := n.cl.Get(ctx, n.key(KeyLastBuild)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("cannot get last build: %w", err)
	}

	var event BuildEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("cannot unmarshal last build: %w", err)
	}

	return &event, nil
}

func (n *redisNotifier) Close() error {
	return n.cl.Close()
}

func (n *redisNotifier) key(keys ...string) string {
	return strings.Join(append([]string{n.prefix}, keys...), KeySeparator)
}

type noopNotifier struct{}

// NewNoopNotifier is used when no redis url is configured.
func NewNoopNotifier() *noopNotifier {
	return &noopNotifier{}
}

func (noopNotifier) Notify(context.Context, *BuildEvent) error {
	return nil
}

func (noopNotifier) LastBuild(context.Context) (*BuildEvent, error) {
	return nil, nil
}

func (noopNotifier) Close() error {
	return nil
}
