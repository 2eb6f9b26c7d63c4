// Package storetest opens throwaway sqlite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Open returns a migrated sqlite store in a temporary directory, closed at
// the end of the test.
func Open(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "placealign.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Authority creates an authority with one index entry and returns its id.
func Authority(t testing.TB, s *store.Store, label, dpt string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateAuthority(ctx, store.Authority{Label: label})
	if err != nil {
		t.Fatalf("Failed to create authority: %v", err)
	}
	if _, err := s.CreateIndexEntry(ctx, store.IndexEntry{AuthorityID: id, Label: label, ServiceDptCode: dpt}); err != nil {
		t.Fatalf("Failed to create index entry: %v", err)
	}
	return id
}
