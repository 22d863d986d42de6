package ristretto_test

import (
	"testing"
	"time"

	"github.com/Strob0t/TuneForge/internal/adapter/ristretto"
	"github.com/Strob0t/TuneForge/internal/config"
	"github.com/Strob0t/TuneForge/internal/port/cache/cachetest"
)

func TestCacheCompliance(t *testing.T) {
	c, err := ristretto.New(config.Cache{L1MaxSizeMB: 1, L1TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	cachetest.Run(t, c)
}

func TestNewWithZeroSize(t *testing.T) {
	c, err := ristretto.New(config.Cache{})
	if err != nil {
		t.Fatalf("zero size should fall back to a minimum, got %v", err)
	}
	c.Close()
}
