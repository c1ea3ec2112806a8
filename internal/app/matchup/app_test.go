package matchup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"matchup/internal/app/kvstore"
	"matchup/internal/app/membership"
	"matchup/internal/app/model"
	"matchup/internal/app/session"
	"matchup/internal/configs"
	"matchup/internal/pkg/errs"
)

// fakeBackend serves one user who has joined location 2.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.User{
			{UserID: 4, UserName: "curry", UserNickName: "Chef", Email: "steph@example.com", UserPassword: "splash"},
		})
	})
	mux.HandleFunc("GET /api/v1/locations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.Location{
			{LocationID: 2, LocationName: "GymA"},
			{LocationID: 5, LocationName: "GymB"},
		})
	})
	mux.HandleFunc("GET /api/user-locations/user/4", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.UserLocation{{ID: 1, UserID: 4, LocationID: 2}})
	})
	mux.HandleFunc("POST /api/user-locations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newApp(t *testing.T, baseURL string) *App {
	t.Helper()

	cfg := &configs.AppConfig{
		APIBaseURL:              baseURL,
		WSURL:                   "ws://127.0.0.1:1/ws",
		RequestTimeout:          2 * time.Second,
		AllowPlaintextPasswords: true,
		TokenSigningKey:         configs.DevTokenSigningKey,
		Admin:                   configs.AdminIdentity{Name: "sudo", Email: "sudo@localhost", Secret: "supersecret", NickName: "sudoman"},
	}

	app, err := New(context.Background(), cfg, kvstore.NewMemory(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go app.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-app.Loop.Done()
	})
	return app
}

// await waits for a completion posted by an Async call.
func await[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("completion not delivered")
		var zero T
		return zero
	}
}

func TestLoginAsync_SyncsMemberships(t *testing.T) {
	app := newApp(t, fakeBackend(t).URL)

	type result struct {
		snap session.Snapshot
		err  error
	}
	done := make(chan result, 1)
	app.LoginAsync(context.Background(), "curry", "splash", func(snap session.Snapshot, err error) {
		done <- result{snap, err}
	})

	r := await(t, done)
	if r.err != nil {
		t.Fatalf("login: %v", r.err)
	}
	if r.snap.Identity.UserID != 4 {
		t.Errorf("userId = %d", r.snap.Identity.UserID)
	}
	if !slices.Equal(r.snap.JoinedLocationIDs, []int{2}) {
		t.Errorf("joined = %v, want [2]", r.snap.JoinedLocationIDs)
	}

	chats := app.Membership.Chats()
	if len(chats) != 1 || chats[0].Name != "GymA" {
		t.Errorf("chats = %+v", chats)
	}
}

func TestJoinAsync(t *testing.T) {
	app := newApp(t, fakeBackend(t).URL)
	ctx := context.Background()

	loggedIn := make(chan error, 1)
	app.LoginAsync(ctx, "steph@example.com", "splash", func(_ session.Snapshot, err error) { loggedIn <- err })
	if err := await(t, loggedIn); err != nil {
		t.Fatalf("login: %v", err)
	}

	joined := make(chan []membership.Chat, 1)
	app.JoinAsync(ctx, 5, func(chats []membership.Chat, err error) {
		if err != nil {
			t.Errorf("join: %v", err)
		}
		joined <- chats
	})

	chats := await(t, joined)
	var names []string
	for _, c := range chats {
		names = append(names, c.Name)
	}
	if !slices.Equal(names, []string{"GymA", "GymB"}) {
		t.Errorf("chats = %v", names)
	}
}

func TestUpdateProfileAsync_Unauthenticated(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	app := newApp(t, server.URL)

	done := make(chan error, 1)
	app.UpdateProfileAsync(context.Background(), 1, "a", "b", "c", func(err error) { done <- err })

	if err := await(t, done); !errs.HasCode(err, errs.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if requests != 0 {
		t.Errorf("requests = %d, want 0", requests)
	}
}

func TestCompletionsRunOnLoop(t *testing.T) {
	app := newApp(t, fakeBackend(t).URL)

	release := make(chan struct{})
	app.Loop.Post(func() { <-release })

	done := make(chan error, 1)
	app.LogoutAsync(context.Background(), func(err error) { done <- err })

	select {
	case <-done:
		t.Fatal("completion ran while the loop was busy")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := await(t, done); err != nil {
		t.Fatalf("logout: %v", err)
	}
}

func TestChatChannelURL(t *testing.T) {
	app := newApp(t, fakeBackend(t).URL)

	ch := app.ChatChannel(membership.Chat{ID: membership.ChatID(2), LocationID: 2})
	if ch.State().String() != "disconnected" {
		t.Errorf("new channel state = %s", ch.State())
	}
}
