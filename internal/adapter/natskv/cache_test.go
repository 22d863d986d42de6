package natskv_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TuneForge/internal/adapter/natskv"
	"github.com/Strob0t/TuneForge/internal/port/cache/cachetest"
)

func openTestCache(t *testing.T) *natskv.Cache {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	bucket := "TEST_" + uuid.NewString()[:8]
	ctx := context.Background()
	c, err := natskv.Open(ctx, js, bucket, time.Minute)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = js.DeleteKeyValue(context.Background(), bucket) })
	return c
}

func TestCacheCompliance(t *testing.T) {
	cachetest.Run(t, openTestCache(t))
}

func TestCreateOnlyOnce(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	created, err := c.Create(ctx, "idem:abc", []byte("1"))
	if err != nil || !created {
		t.Fatalf("first Create: created=%v err=%v", created, err)
	}
	created, err = c.Create(ctx, "idem:abc", []byte("2"))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second Create should report existing key")
	}
}
