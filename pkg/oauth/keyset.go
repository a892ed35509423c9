package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// defaultMinKeyRefreshInterval is the minimum time between two on-demand key set refreshes.
const defaultMinKeyRefreshInterval = time.Minute

// ErrKeyRefreshThrottled is returned when an on-demand key set refresh is attempted too soon after the previous one.
var ErrKeyRefreshThrottled = errors.New("key set refresh throttled")

// KeySource supplies the keys used to verify identity tokens.
type KeySource interface {
	// Keys returns the current key set.
	Keys(ctx context.Context) (jwk.Set, error)
	// Refresh re-fetches the key set. It is called when a token's key ID is not found in the current set.
	Refresh(ctx context.Context) (jwk.Set, error)
}

// RemoteKeySet is a KeySource backed by a provider's JWKS endpoint.
//
// Keys are cached and periodically re-fetched in the background. On-demand refreshes are
// collapsed into a single fetch when concurrent, and rate limited.
type RemoteKeySet struct {
	url     string
	cache   *jwk.Cache
	group   singleflight.Group
	limiter *rate.Limiter
}

// NewRemoteKeySet creates a RemoteKeySet for the given JWKS URL.
//
// It accepts a context because the underlying cache refreshes the keys in a goroutine that runs until the
// context is cancelled.
func NewRemoteKeySet(ctx context.Context, jwksURL string, minRefreshInterval time.Duration) (*RemoteKeySet, error) {
	if minRefreshInterval <= 0 {
		minRefreshInterval = defaultMinKeyRefreshInterval
	}

	// This allows auto-refresh of the JWK as providers keep rotating them.
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("error in jwk.NewCache call: %w", err)
	}

	if err := cache.Register(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("error in cache.Register call: %w", err)
	}

	return &RemoteKeySet{
		url:     jwksURL,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(minRefreshInterval), 1),
	}, nil
}

func (r *RemoteKeySet) Keys(ctx context.Context) (jwk.Set, error) {
	set, err := r.cache.Lookup(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("error in cache.Lookup call: %w", err)
	}
	return set, nil
}

func (r *RemoteKeySet) Refresh(ctx context.Context) (jwk.Set, error) {
	// Concurrent misses share one fetch.
	result, err, _ := r.group.Do(r.url, func() (any, error) {
		if !r.limiter.Allow() {
			return nil, ErrKeyRefreshThrottled
		}

		slog.InfoContext(ctx, "refreshing key set", "url", r.url)
		set, err := r.cache.Refresh(ctx, r.url)
		if err != nil {
			return nil, errors.Join(ErrTransport, fmt.Errorf("error in cache.Refresh call: %w", err))
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}

	set, _ := result.(jwk.Set)
	return set, nil
}

// StaticKeySet is a KeySource with a fixed key set.
type StaticKeySet struct {
	set jwk.Set
}

// NewStaticKeySet returns a KeySource that always serves the given set.
func NewStaticKeySet(set jwk.Set) *StaticKeySet {
	return &StaticKeySet{set: set}
}

func (s *StaticKeySet) Keys(context.Context) (jwk.Set, error) {
	return s.set, nil
}

func (s *StaticKeySet) Refresh(context.Context) (jwk.Set, error) {
	return s.set, nil
}
