package kvstore

import (
	"context"
	"path/filepath"
	"testing"
)

// exerciseStore runs the shared behaviour checks against any Store.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want not found", ok, err)
	}

	if err := store.SetMany(ctx, map[string]string{"userToken": "t1", "loggedInUserEmail": "a@b.c"}); err != nil {
		t.Fatalf("SetMany: %v", err)
	}

	if v, ok, err := store.Get(ctx, "userToken"); err != nil || !ok || v != "t1" {
		t.Fatalf("Get(userToken) = %q, %v, %v", v, ok, err)
	}

	if err := store.SetMany(ctx, map[string]string{"userToken": "t2"}); err != nil {
		t.Fatalf("SetMany overwrite: %v", err)
	}
	if v, _, _ := store.Get(ctx, "userToken"); v != "t2" {
		t.Errorf("overwritten userToken = %q, want t2", v)
	}

	if err := store.Delete(ctx, "userToken", "never-set"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "userToken"); ok {
		t.Error("userToken still present after Delete")
	}
	if v, ok, _ := store.Get(ctx, "loggedInUserEmail"); !ok || v != "a@b.c" {
		t.Error("Delete removed an unrelated key")
	}
}

func TestMemory(t *testing.T) {
	store := NewMemory()
	exerciseStore(t, store)

	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestSQLite_InMemory(t *testing.T) {
	store, err := OpenSQLite(InMemoryPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLite_InMemoryStoresAreIsolated(t *testing.T) {
	ctx := context.Background()

	first, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite first: %v", err)
	}
	defer first.Close()

	second, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite second: %v", err)
	}
	defer second.Close()

	if err := first.SetMany(ctx, map[string]string{"token": "abc"}); err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	if _, found, err := second.Get(ctx, "token"); err != nil || found {
		t.Errorf("second store sees first store's key: found=%v err=%v", found, err)
	}
	if v, found, err := first.Get(ctx, "token"); err != nil || !found || v != "abc" {
		t.Errorf("first Get = %q, %v, %v", v, found, err)
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.SetMany(ctx, map[string]string{"joinedLocations": "[2,5]"}); err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "joinedLocations")
	if err != nil || !ok || v != "[2,5]" {
		t.Fatalf("after reopen Get = %q, %v, %v", v, ok, err)
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
