package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"matchup/internal/app/backend"
	"matchup/internal/app/chat"
	"matchup/internal/app/model"
	"matchup/internal/configs"
	"matchup/internal/pkg/auth/token"
	"matchup/internal/pkg/metrics"
	"matchup/internal/pkg/resp"
)

func newTestDeps(t *testing.T) *AppDeps {
	t.Helper()

	svc := backend.NewService(backend.NewMemoryRepository())
	if err := svc.Seed(t.Context(), backend.DefaultLocations); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	manager := chat.NewManager(0, collector)
	t.Cleanup(manager.Shutdown)

	return &AppDeps{
		Config: &configs.AppConfig{
			Environment:     "development",
			TokenSigningKey: configs.DevTokenSigningKey,
		},
		Service:  svc,
		Manager:  manager,
		Metrics:  collector,
		Registry: reg,
	}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(method, target, reader)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		r.Header[k] = v
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + tok}}
}

func signup(t *testing.T, h http.Handler, name, email, password string) model.User {
	t.Helper()

	w := doJSON(t, h, http.MethodPost, "/api/v1/users", model.CreateUserRequest{
		UserName: name, UserNickName: name, Email: email, UserPassword: password,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", name, w.Code, w.Body.String())
	}
	return decode[model.User](t, w)
}

func TestHealth(t *testing.T) {
	h := Router(newTestDeps(t))

	w := doJSON(t, h, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestUsers_SignupAndLookup(t *testing.T) {
	deps := newTestDeps(t)
	h := Router(deps)

	created := signup(t, h, "jordan", "mj@bulls.com", "sixrings")
	if created.UserID == 0 || created.UserPassword == "sixrings" {
		t.Fatalf("created = %+v", created)
	}

	w := doJSON(t, h, http.MethodGet, "/api/v1/users?identifier=jordan", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("identifier lookup: %d", w.Code)
	}
	users := decode[[]model.User](t, w)
	if len(users) != 1 || users[0].Email != "mj@bulls.com" {
		t.Errorf("users = %+v", users)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/users?identifier=nobody", nil, nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("unknown identifier: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/users", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no filter: got %d, want 400", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/users", model.CreateUserRequest{
		UserName: "other", Email: "mj@bulls.com", UserPassword: "x",
	}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup: got %d, want 409", w.Code)
	}
}

func TestUsers_EmailLookupRequiresToken(t *testing.T) {
	deps := newTestDeps(t)
	h := Router(deps)

	created := signup(t, h, "bird", "larry@celtics.com", "threepeat")

	w := doJSON(t, h, http.MethodGet, "/api/v1/users?email=larry@celtics.com", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token: got %d, want 401", w.Code)
	}

	forged, _ := token.Issue(created.Email, created.UserPassword, "another_key")
	w = doJSON(t, h, http.MethodGet, "/api/v1/users?email=larry@celtics.com", nil, bearer(forged))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("forged token: got %d, want 401", w.Code)
	}

	tok, _ := token.Issue(created.Email, created.UserPassword, configs.DevTokenSigningKey)
	w = doJSON(t, h, http.MethodGet, "/api/v1/users?email=larry@celtics.com", nil, bearer(tok))
	if w.Code != http.StatusOK {
		t.Fatalf("with token: got %d", w.Code)
	}
	if users := decode[[]model.User](t, w); len(users) != 1 || users[0].UserID != created.UserID {
		t.Errorf("users = %+v", users)
	}
}

func TestUsers_EmailLookupRejectsOtherAccountsToken(t *testing.T) {
	deps := newTestDeps(t)
	h := Router(deps)

	signup(t, h, "jordan", "mj@bulls.com", "sixrings")
	bird := signup(t, h, "bird", "larry@celtics.com", "threepeat")

	tok, _ := token.Issue(bird.Email, bird.UserPassword, configs.DevTokenSigningKey)
	w := doJSON(t, h, http.MethodGet, "/api/v1/users?email=mj@bulls.com", nil, bearer(tok))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("lookup of another account: got %d, want 401", w.Code)
	}
}

func TestUsers_UpdateProfile(t *testing.T) {
	deps := newTestDeps(t)
	h := Router(deps)

	jordan := signup(t, h, "jordan", "mj@bulls.com", "sixrings")
	bird := signup(t, h, "bird", "larry@celtics.com", "threepeat")

	update := model.UpdateUserRequest{UserName: "mj23", UserNickName: "Air", Email: "mj@bulls.com"}
	path := "/api/v1/users/" + strconv.Itoa(jordan.UserID)

	w := doJSON(t, h, http.MethodPut, path, update, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated PUT: got %d, want 401", w.Code)
	}

	birdToken, _ := token.Issue(bird.Email, bird.UserPassword, configs.DevTokenSigningKey)
	w = doJSON(t, h, http.MethodPut, path, update, bearer(birdToken))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("PUT with another account's token: got %d, want 401", w.Code)
	}

	tok, _ := token.Issue(jordan.Email, jordan.UserPassword, configs.DevTokenSigningKey)
	w = doJSON(t, h, http.MethodPut, path, update, bearer(tok))
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: got %d body %s", w.Code, w.Body.String())
	}
	updated := decode[model.User](t, w)
	if updated.UserID != jordan.UserID || updated.UserName != "mj23" || updated.UserNickName != "Air" {
		t.Errorf("updated = %+v", updated)
	}

	w = doJSON(t, h, http.MethodPut, "/api/v1/users/abc", update, bearer(tok))
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: got %d, want 400", w.Code)
	}
}

func TestLocations_JoinAndList(t *testing.T) {
	deps := newTestDeps(t)
	h := Router(deps)

	user := signup(t, h, "magic", "magic@lakers.com", "showtime")

	w := doJSON(t, h, http.MethodGet, "/api/v1/locations", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("locations: %d", w.Code)
	}
	locations := decode[[]model.Location](t, w)
	if len(locations) != len(backend.DefaultLocations) {
		t.Fatalf("got %d locations", len(locations))
	}

	join := model.JoinLocationRequest{UserID: user.UserID, LocationID: locations[1].LocationID}

	w = doJSON(t, h, http.MethodPost, "/api/user-locations", join, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("join: got %d body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/api/user-locations", join, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second join: got %d, want 409", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/user-locations", model.JoinLocationRequest{UserID: user.UserID, LocationID: 999}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown location: got %d, want 404", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/user-locations/user/"+strconv.Itoa(user.UserID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("user locations: %d", w.Code)
	}
	memberships := decode[[]model.UserLocation](t, w)
	if len(memberships) != 1 || memberships[0].LocationID != locations[1].LocationID {
		t.Errorf("memberships = %+v", memberships)
	}
}

func TestJoinLocation_RejectsWrongContentType(t *testing.T) {
	h := Router(newTestDeps(t))

	r := httptest.NewRequest(http.MethodPost, "/api/user-locations", strings.NewReader(`{"userId":1,"locationId":1}`))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("got %d, want 415", w.Code)
	}
	if body := decode[resp.ErrorBody](t, w); body.Code == 0 || body.Message == "" {
		t.Errorf("error body = %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := Router(newTestDeps(t))

	doJSON(t, h, http.MethodGet, "/api/v1/locations", nil, nil)

	w := doJSON(t, h, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="/api/v1/locations"`) {
		t.Errorf("metrics output lacks the locations route")
	}
}

