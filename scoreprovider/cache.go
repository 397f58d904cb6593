package scoreprovider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sportsbook/models"
	"sportsbook/service"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// snapshotStore persists final score snapshots keyed by external id
type snapshotStore interface {
	Get(ctx context.Context, externalID string) (*models.ScoreSnapshot, bool, error)
	Set(ctx context.Context, snapshot *models.ScoreSnapshot, ttl time.Duration) error
}

// RedisStore keeps final snapshots in redis as JSON
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new redis-backed snapshot store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func snapshotKey(externalID string) string { return "score:final:" + externalID }

// Get loads a cached snapshot, reporting false on a miss
func (s *RedisStore) Get(ctx context.Context, externalID string) (*models.ScoreSnapshot, bool, error) {
	b, err := s.client.Get(ctx, snapshotKey(externalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snapshot models.ScoreSnapshot
	if err := json.Unmarshal(b, &snapshot); err != nil {
		return nil, false, err
	}
	return &snapshot, true, nil
}

// Set stores a snapshot under its external id for ttl
func (s *RedisStore) Set(ctx context.Context, snapshot *models.ScoreSnapshot, ttl time.Duration) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, snapshotKey(snapshot.ExternalID), b, ttl).Err()
}

// CachedProvider serves final scores from a store before asking upstream.
// Only terminal snapshots are ever stored; an in-progress score is always refetched.
type CachedProvider struct {
	upstream service.ScoreProvider
	store    snapshotStore
	ttl      time.Duration
}

// NewCachedProvider creates a new provider that consults store before upstream
func NewCachedProvider(upstream service.ScoreProvider, store snapshotStore, ttl time.Duration) *CachedProvider {
	return &CachedProvider{upstream: upstream, store: store, ttl: ttl}
}

// Fetch returns a cached terminal snapshot, or fetches upstream and caches it once final
func (p *CachedProvider) Fetch(ctx context.Context, externalID string) (*models.ScoreSnapshot, error) {
	cached, ok, err := p.store.Get(ctx, externalID)
	if err != nil {
		log.WithFields(log.Fields{
			"externalID": externalID,
			"error":      err,
		}).Warn("Score cache read failed, falling back to provider")
	}
	if ok && cached.Terminal {
		log.WithField("externalID", externalID).Debug("Score cache hit")
		return cached, nil
	}

	snapshot, err := p.upstream.Fetch(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if snapshot.Terminal {
		if err := p.store.Set(ctx, snapshot, p.ttl); err != nil {
			log.WithFields(log.Fields{
				"externalID": externalID,
				"error":      err,
			}).Warn("Failed to cache final score")
		}
	}

	return snapshot, nil
}
