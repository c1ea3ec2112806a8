package session

import (
	"context"
	"errors"
	"slices"
	"testing"

	"matchup/internal/app/kvstore"
)

var alice = Identity{UserID: 7, UserName: "alice", UserNickName: "Ali", Email: "alice@example.com"}

// failingKV rejects every write so tests can check that memory is untouched.
type failingKV struct {
	*kvstore.Memory
}

func (failingKV) SetMany(context.Context, map[string]string) error { return errors.New("disk full") }
func (failingKV) Delete(context.Context, ...string) error           { return errors.New("disk full") }

func TestSetAuthenticated_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()

	store := New(kv)
	if err := store.SetAuthenticated(ctx, alice, "tok"); err != nil {
		t.Fatalf("SetAuthenticated: %v", err)
	}
	if err := store.ReplaceJoined(ctx, []int{5, 2}); err != nil {
		t.Fatalf("ReplaceJoined: %v", err)
	}

	if v, _, _ := kv.Get(ctx, KeyJoinedLocation); v != "[2,5]" {
		t.Errorf("persisted joinedLocations = %q, want [2,5]", v)
	}
	if v, _, _ := kv.Get(ctx, KeyUserID); v != "7" {
		t.Errorf("persisted loggedInUserId = %q, want 7", v)
	}

	restored := New(kv)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := restored.Snapshot()
	if !snap.Authenticated() || snap.Token != "tok" {
		t.Errorf("restored token = %q", snap.Token)
	}
	if snap.Identity != alice {
		t.Errorf("restored identity = %+v, want %+v", snap.Identity, alice)
	}
	if !slices.Equal(snap.JoinedLocationIDs, []int{2, 5}) {
		t.Errorf("restored joined = %v, want [2 5]", snap.JoinedLocationIDs)
	}
}

func TestReplaceJoined_Replaces(t *testing.T) {
	ctx := context.Background()
	store := New(kvstore.NewMemory())

	_ = store.ReplaceJoined(ctx, []int{1, 2, 3})
	_ = store.ReplaceJoined(ctx, []int{4})

	if got := store.Snapshot().JoinedLocationIDs; !slices.Equal(got, []int{4}) {
		t.Errorf("joined = %v, want [4]", got)
	}
}

func TestPendingLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New(kvstore.NewMemory())
	_ = store.ReplaceJoined(ctx, []int{2})

	if store.MarkPending(2) {
		t.Error("MarkPending accepted an already joined id")
	}
	if !store.MarkPending(9) {
		t.Fatal("MarkPending(9) = false")
	}
	if store.MarkPending(9) {
		t.Error("MarkPending accepted a duplicate pending id")
	}

	if got := store.Snapshot().PendingLocationIDs; !slices.Equal(got, []int{9}) {
		t.Errorf("pending = %v, want [9]", got)
	}

	if err := store.ConfirmJoin(ctx, 9); err != nil {
		t.Fatalf("ConfirmJoin: %v", err)
	}
	snap := store.Snapshot()
	if !slices.Equal(snap.JoinedLocationIDs, []int{2, 9}) || len(snap.PendingLocationIDs) != 0 {
		t.Errorf("after confirm joined=%v pending=%v", snap.JoinedLocationIDs, snap.PendingLocationIDs)
	}

	store.MarkPending(11)
	store.DropPending(11)
	if got := store.Snapshot().PendingLocationIDs; len(got) != 0 {
		t.Errorf("pending after drop = %v", got)
	}
}

func TestReplaceJoined_ResolvesPending(t *testing.T) {
	ctx := context.Background()
	store := New(kvstore.NewMemory())

	store.MarkPending(3)
	store.MarkPending(4)
	_ = store.ReplaceJoined(ctx, []int{3})

	snap := store.Snapshot()
	if !slices.Equal(snap.PendingLocationIDs, []int{4}) {
		t.Errorf("pending = %v, want [4]", snap.PendingLocationIDs)
	}
}

func TestSetAuthenticated_DifferentAccountResetsMemberships(t *testing.T) {
	ctx := context.Background()
	store := New(kvstore.NewMemory())

	_ = store.SetAuthenticated(ctx, alice, "a")
	_ = store.ReplaceJoined(ctx, []int{1})

	// same account logging in again keeps its memberships
	_ = store.SetAuthenticated(ctx, alice, "a2")
	if got := store.Snapshot().JoinedLocationIDs; !slices.Equal(got, []int{1}) {
		t.Errorf("re-login joined = %v, want [1]", got)
	}

	bob := Identity{UserID: 8, UserName: "bob", Email: "bob@example.com"}
	_ = store.SetAuthenticated(ctx, bob, "b")
	if got := store.Snapshot().JoinedLocationIDs; len(got) != 0 {
		t.Errorf("joined after account switch = %v, want empty", got)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	store := New(kv)

	_ = store.SetAuthenticated(ctx, alice, "tok")
	_ = store.ReplaceJoined(ctx, []int{2})

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if store.Snapshot().Authenticated() {
		t.Error("still authenticated after Clear")
	}
	if _, ok := store.UserID(); ok {
		t.Error("UserID reported after Clear")
	}
	if kv.Len() != 0 {
		t.Errorf("%d persisted keys remain after Clear", kv.Len())
	}
}

func TestFailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	store := New(kvstore.NewMemory())
	_ = store.SetAuthenticated(ctx, alice, "tok")

	store.kv = failingKV{kvstore.NewMemory()}

	bob := Identity{UserID: 8, Email: "bob@example.com"}
	if err := store.SetAuthenticated(ctx, bob, "b"); err == nil {
		t.Fatal("expected error from failing persistence")
	}
	if err := store.Clear(ctx); err == nil {
		t.Fatal("expected error from failing Clear")
	}

	snap := store.Snapshot()
	if snap.Identity != alice || snap.Token != "tok" {
		t.Errorf("state changed after failed writes: %+v", snap)
	}
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	_ = kv.SetMany(ctx, map[string]string{
		KeyToken:          "tok",
		KeyUserID:         "not-a-number",
		KeyJoinedLocation: "{",
	})

	store := New(kv)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := store.UserID(); ok {
		t.Error("malformed user id accepted")
	}
	if store.Token() != "tok" {
		t.Errorf("Token = %q", store.Token())
	}
	if got := store.Snapshot().JoinedLocationIDs; len(got) != 0 {
		t.Errorf("joined = %v", got)
	}
}

func TestLoad_DiscardsPartlyDecodedJoinedLocations(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	_ = kv.SetMany(ctx, map[string]string{
		KeyToken:          "tok",
		KeyJoinedLocation: `[1,"x",3]`,
	})

	store := New(kv)
	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := store.Snapshot().JoinedLocationIDs; len(got) != 0 {
		t.Errorf("joined = %v, want none", got)
	}
}
