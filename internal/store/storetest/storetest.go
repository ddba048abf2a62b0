// Package storetest opens throwaway SQLite stores for package tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"interview-insights-go/internal/config"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/store"
)

// New returns a migrated store backed by a private in-memory database that is
// closed when the test ends.
func New(tb testing.TB) *store.Store {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := store.Open(config.Database{Driver: "sqlite", DSN: dsn}, logger.Discard())
	if err != nil {
		tb.Fatalf("open test store: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		tb.Fatalf("migrate test store: %v", err)
	}
	return s
}
