package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facturalink/dte-backend/pkg/hacienda"
	"github.com/facturalink/dte-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// CredentialProvider looks up a tenant's authority API credentials. The
// actual storage lives with the tenant service; the token store only needs
// this one call.
type CredentialProvider interface {
	AuthorityCredentials(ctx context.Context, tenantID uint, env hacienda.Environment) (hacienda.Credentials, error)
}

// Authenticator is the slice of the Hacienda client the store depends on.
type Authenticator interface {
	Authenticate(ctx context.Context, env hacienda.Environment, creds hacienda.Credentials) (string, error)
}

// Store caches one authority token per (tenant, environment) and refreshes it
// on miss or expiry.
type Store interface {
	GetToken(ctx context.Context, tenantID uint, env hacienda.Environment) (string, error)
	Invalidate(tenantID uint, env hacienda.Environment)
}

// TTLs are the fixed validity windows per environment. They are configuration
// constants, never derived from the auth response.
type TTLs struct {
	Test       time.Duration
	Production time.Duration
}

type cachedToken struct {
	value      string
	obtainedAt time.Time
}

type store struct {
	mu    sync.RWMutex
	cache map[string]cachedToken

	group singleflight.Group

	auth  Authenticator
	creds CredentialProvider
	ttls  TTLs

	now func() time.Time
}

// New creates a token store backed by the given authenticator and credential
// provider.
func New(auth Authenticator, creds CredentialProvider, ttls TTLs) Store {
	return &store{
		cache: make(map[string]cachedToken),
		auth:  auth,
		creds: creds,
		ttls:  ttls,
		now:   time.Now,
	}
}

func (s *store) GetToken(ctx context.Context, tenantID uint, env hacienda.Environment) (string, error) {
	key := cacheKey(tenantID, env)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Before(cached.obtainedAt.Add(s.ttl(env))) {
		return cached.value, nil
	}

	// Concurrent expirations for the same key collapse into a single
	// authenticate call; everyone shares the result.
	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && s.now().Before(cached.obtainedAt.Add(s.ttl(env))) {
			return cached.value, nil
		}
		return s.refresh(ctx, tenantID, env, key)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Invalidate evicts a cached token so the next use re-authenticates. Used
// when the authority rejects a request specifically because the token is
// stale, distinct from normal TTL expiry.
func (s *store) Invalidate(tenantID uint, env hacienda.Environment) {
	key := cacheKey(tenantID, env)
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	logger.Debug("Authority token invalidated", map[string]interface{}{
		"tenant_id":   tenantID,
		"environment": string(env),
	})
}

func (s *store) refresh(ctx context.Context, tenantID uint, env hacienda.Environment, key string) (interface{}, error) {
	creds, err := s.creds.AuthorityCredentials(ctx, tenantID, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load authority credentials: %w", err)
	}

	token, err := s.auth.Authenticate(ctx, env, creds)
	if err != nil {
		// Failures are never cached; the caller decides whether the
		// enclosing job retries.
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cachedToken{value: token, obtainedAt: s.now()}
	s.mu.Unlock()

	logger.Info("Authority token refreshed", map[string]interface{}{
		"tenant_id":   tenantID,
		"environment": string(env),
	})
	return token, nil
}

func (s *store) ttl(env hacienda.Environment) time.Duration {
	if env == hacienda.EnvironmentProduction {
		return s.ttls.Production
	}
	return s.ttls.Test
}

func cacheKey(tenantID uint, env hacienda.Environment) string {
	return fmt.Sprintf("%d|%s", tenantID, env)
}
