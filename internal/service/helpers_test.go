package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/domain/workspace"
	"github.com/Strob0t/TuneForge/internal/port/database/databasetest"
	"github.com/Strob0t/TuneForge/internal/port/messagequeue"
)

// recorder is a broadcast.Broadcaster that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Broadcast(_ context.Context, ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) last(t *testing.T) event.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no events broadcast")
	}
	return r.events[len(r.events)-1]
}

// mapCache is an in-memory cache.Cache counting hits.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	err  error
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// fakeQueue delivers published messages synchronously to matching handlers.
type fakeQueue struct {
	mu         sync.Mutex
	published  []string
	handlers   map[string]messagequeue.Handler
	publishErr error
}

func newFakeQueue() *fakeQueue { return &fakeQueue{handlers: map[string]messagequeue.Handler{}} }

func (q *fakeQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	if q.publishErr != nil {
		q.mu.Unlock()
		return q.publishErr
	}
	q.published = append(q.published, subject)
	h := q.handlers[event.SubjectAll]
	q.mu.Unlock()
	if h != nil {
		return h(ctx, subject, data)
	}
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = h
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.handlers, subject)
	}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

// fixture is a store holding two users, each with one workspace.
type fixture struct {
	store   *databasetest.MemStore
	alice   *user.User
	bob     *user.User
	aliceWS *workspace.Workspace
	bobWS   *workspace.Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := databasetest.NewMemStore()

	alice, err := store.CreateUser(ctx, "alice", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	bob, err := store.CreateUser(ctx, "bob", "10.0.0.2")
	if err != nil {
		t.Fatal(err)
	}
	aliceWS, err := store.CreateWorkspace(ctx, alice.ID, "wsAlice", "Alice WS")
	if err != nil {
		t.Fatal(err)
	}
	bobWS, err := store.CreateWorkspace(ctx, bob.ID, "wsBob", "Bob WS")
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{store: store, alice: alice, bob: bob, aliceWS: aliceWS, bobWS: bobWS}
}

func ptr[T any](v T) *T { return &v }
