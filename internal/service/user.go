package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
	"github.com/Strob0t/TuneForge/internal/port/cache"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

const userCachePrefix = "user:ip:"

// UserService registers users and resolves callers from their IP address.
type UserService struct {
	store  database.Store
	cache  cache.Cache
	ttl    time.Duration
	events broadcast.Broadcaster
}

// NewUserService creates a UserService. Resolved users are cached for ttl;
// a nil cache disables caching.
func NewUserService(store database.Store, c cache.Cache, ttl time.Duration, events broadcast.Broadcaster) *UserService {
	if c == nil {
		c = nopCache{}
	}
	return &UserService{store: store, cache: c, ttl: ttl, events: orNop(events)}
}

// Register creates a user bound to ip.
func (s *UserService) Register(ctx context.Context, ip string, req user.RegisterRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, req.Username, ip)
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", req.Username, err)
	}
	if err := s.cache.Delete(ctx, userCachePrefix+ip); err != nil {
		slog.Warn("user cache invalidation failed", "ip", ip, "error", err)
	}
	emit(ctx, s.events, event.TypeUserRegistered, u.ID, "", u.ID)
	return u, nil
}

// Resolve returns the user registered from ip. An unknown IP fails with
// ErrUnauthorized.
func (s *UserService) Resolve(ctx context.Context, ip string) (*user.User, error) {
	key := userCachePrefix + ip
	if u, ok, err := cache.GetJSON[user.User](ctx, s.cache, key); err != nil {
		slog.Warn("user cache lookup failed", "ip", ip, "error", err)
	} else if ok {
		return &u, nil
	}

	u, err := s.store.GetUserByIP(ctx, ip)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no user registered for this address: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, key, u, s.ttl); err != nil {
		slog.Warn("user cache store failed", "ip", ip, "error", err)
	}
	return u, nil
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (nopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (nopCache) Delete(context.Context, string) error { return nil }
