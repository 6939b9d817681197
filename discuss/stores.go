package discuss

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

const DefaultStoreTTL = 30 * time.Minute

// Stores keeps one Store per viewer and post so that every request of a
// browser session works on the same tree until it expires.
type Stores struct {
	cache   *ristretto.Cache[string, *Store]
	loads   singleflight.Group
	api     CommentAPI
	access  AccessChecker
	ttl     time.Duration
	options []StoreOption
}

func NewStores(api CommentAPI, access AccessChecker, ttl time.Duration, opts ...StoreOption) (*Stores, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *Store]{
		NumCounters:        100_000,
		MaxCost:            10_000,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store cache: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultStoreTTL
	}

	return &Stores{
		cache:   cache,
		api:     api,
		access:  access,
		ttl:     ttl,
		options: opts,
	}, nil
}

func storeKey(viewerKey, postID string) string {
	return viewerKey + "/" + postID
}

// Open returns the store of viewerKey for postID, loading the comments from
// the API when there is none yet.
func (ss *Stores) Open(ctx context.Context, viewerKey, postID string) (*Store, error) {
	key := storeKey(viewerKey, postID)

	if s, ok := ss.cache.Get(key); ok {
		return s, nil
	}

	// concurrent misses on one key share a single load and end up with the
	// same store.
	v, err, _ := ss.loads.Do(key, func() (any, error) {
		if s, ok := ss.cache.Get(key); ok {
			return s, nil
		}

		s, err := LoadStore(ctx, postID, ss.api, ss.access, ss.options...)
		if err != nil {
			return nil, err
		}

		ss.cache.SetWithTTL(key, s, 1, ss.ttl)
		ss.cache.Wait()

		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load comment store: %w", err)
	}

	return v.(*Store), nil
}

// Refresh returns the store of viewerKey for postID with the latest comments.
func (ss *Stores) Refresh(ctx context.Context, viewerKey, postID string) (*Store, error) {
	key := storeKey(viewerKey, postID)

	s, ok := ss.cache.Get(key)
	if !ok {
		return ss.Open(ctx, viewerKey, postID)
	}

	err := s.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload comment store: %w", err)
	}

	ss.cache.SetWithTTL(key, s, 1, ss.ttl)
	ss.cache.Wait()

	return s, nil
}

// Forget drops the store of viewerKey for postID.
func (ss *Stores) Forget(viewerKey, postID string) {
	ss.cache.Del(storeKey(viewerKey, postID))
}

func (ss *Stores) Close() {
	ss.cache.Close()
}
