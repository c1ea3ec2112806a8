package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"matchup/internal/app/model"
	"matchup/internal/pkg/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.Client(), server.URL+"/", 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListUsersByIdentifier(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/users" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("identifier"); got != "a+b@example.com" {
			t.Errorf("identifier = %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login lookup must not send a bearer token")
		}
		writeJSON(w, http.StatusOK, []model.User{{UserID: 3, Email: "a+b@example.com"}})
	})

	users, err := c.ListUsersByIdentifier(context.Background(), "a+b@example.com")
	if err != nil {
		t.Fatalf("ListUsersByIdentifier: %v", err)
	}
	if len(users) != 1 || users[0].UserID != 3 {
		t.Errorf("users = %+v", users)
	}
}

func TestListUsersByEmail_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("email"); got != "x@example.com" {
			t.Errorf("email = %q", got)
		}
		writeJSON(w, http.StatusOK, []model.User{})
	})

	if _, err := c.ListUsersByEmail(context.Background(), "x@example.com", "tok"); err != nil {
		t.Fatalf("ListUsersByEmail: %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/users/12" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body model.UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, model.User{UserID: 12, UserName: body.UserName})
	})

	updated, err := c.UpdateUser(context.Background(), "tok", 12, model.UpdateUserRequest{UserName: "new"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.UserID != 12 || updated.UserName != "new" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestListUserLocations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user-locations/user/4" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, []model.UserLocation{{ID: 1, UserID: 4, LocationID: 2}})
	})

	memberships, err := c.ListUserLocations(context.Background(), 4)
	if err != nil || len(memberships) != 1 || memberships[0].LocationID != 2 {
		t.Fatalf("ListUserLocations = %+v, %v", memberships, err)
	}
}

func TestCreateUserLocation_ReturnsStatus(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusConflict, http.StatusInternalServerError} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body model.JoinLocationRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.LocationID != 5 || body.UserID != 1 {
				t.Errorf("body = %+v", body)
			}
			w.WriteHeader(status)
		})

		got, err := c.CreateUserLocation(context.Background(), model.JoinLocationRequest{LocationID: 5, UserID: 1})
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", status, err)
		}
		if got != status {
			t.Errorf("status = %d, want %d", got, status)
		}
	}
}

func TestErrorStatusIsNetwork(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ListLocations(context.Background())
	if !errs.HasCode(err, errs.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("missing StatusError cause: %v", err)
	}
	if statusErr != nil && statusErr.Endpoint != "/api/v1/locations" {
		t.Errorf("endpoint = %q", statusErr.Endpoint)
	}
}

func TestMalformedBodyIsDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"locationId": "not a list"`))
	})

	_, err := c.ListLocations(context.Background())
	if !errs.HasCode(err, errs.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(server.Client(), server.URL, 50*time.Millisecond)

	_, err := c.ListLocations(context.Background())
	if !errs.HasCode(err, errs.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestUnreachableIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(nil, url, time.Second)
	_, err := c.ListLocations(context.Background())
	if !errs.HasCode(err, errs.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}
