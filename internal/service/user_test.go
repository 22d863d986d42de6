package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/port/database/databasetest"
)

func TestUserService_Register(t *testing.T) {
	store := databasetest.NewMemStore()
	rec := &recorder{}
	svc := NewUserService(store, newMapCache(), time.Minute, rec)
	ctx := context.Background()

	u, err := svc.Register(ctx, "10.0.0.9", user.RegisterRequest{Username: "  carol  "})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "carol" || u.IPAddress != "10.0.0.9" {
		t.Errorf("got %+v", u)
	}
	if ev := rec.last(t); ev.Type != event.TypeUserRegistered || ev.OwnerID != u.ID {
		t.Errorf("event = %+v", ev)
	}

	if _, err := svc.Register(ctx, "10.0.0.10", user.RegisterRequest{Username: "carol"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate: expected ErrConflict, got %v", err)
	}
	if _, err := svc.Register(ctx, "10.0.0.10", user.RegisterRequest{Username: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank: expected ErrValidation, got %v", err)
	}
}

func TestUserService_ResolveCachesLookups(t *testing.T) {
	store := databasetest.NewMemStore()
	c := newMapCache()
	svc := NewUserService(store, c, time.Minute, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "10.0.0.1", user.RegisterRequest{Username: "alice"}); err != nil {
		t.Fatal(err)
	}

	for range 3 {
		u, err := svc.Resolve(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if u.Username != "alice" {
			t.Errorf("expected alice, got %s", u.Username)
		}
	}
	if n := store.CallCount("GetUserByIP"); n != 1 {
		t.Errorf("expected 1 store lookup, got %d", n)
	}
	if c.hits != 2 {
		t.Errorf("expected 2 cache hits, got %d", c.hits)
	}
}

func TestUserService_ResolveUnknownIP(t *testing.T) {
	svc := NewUserService(databasetest.NewMemStore(), newMapCache(), time.Minute, nil)

	_, err := svc.Resolve(context.Background(), "192.0.2.1")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUserService_ResolveSurvivesCacheFailure(t *testing.T) {
	store := databasetest.NewMemStore()
	c := newMapCache()
	svc := NewUserService(store, c, time.Minute, nil)
	ctx := context.Background()
	if _, err := store.CreateUser(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	c.err = errors.New("cache down")

	u, err := svc.Resolve(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("expected alice, got %s", u.Username)
	}
}

func TestUserService_RegisterInvalidatesNegativeLookup(t *testing.T) {
	store := databasetest.NewMemStore()
	svc := NewUserService(store, newMapCache(), time.Minute, nil)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, "10.0.0.5"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Register(ctx, "10.0.0.5", user.RegisterRequest{Username: "dave"}); err != nil {
		t.Fatal(err)
	}
	u, err := svc.Resolve(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("Resolve after register: %v", err)
	}
	if u.Username != "dave" {
		t.Errorf("expected dave, got %s", u.Username)
	}
}
