// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"testing"

	"vidpress/internal/catalog"
	"vidpress/internal/config"
)

// NewConfig returns a validated config rooted in a per-test temp directory
// with placeholder storage credentials.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = base + "/data"
	cfg.Paths.LogDir = base + "/logs"
	cfg.Storage.Endpoint = "localhost:9000"
	cfg.Storage.AccessKey = "test-access"
	cfg.Storage.SecretKey = "test-secret"
	cfg.Storage.Bucket = "test-bucket"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a read-write catalog store against a fresh temp
// database and closes it when the test finishes.
func MustOpenStore(t *testing.T) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(NewConfig(t))
	if err != nil {
		t.Fatalf("open catalog store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close catalog store: %v", err)
		}
	})
	return store
}
