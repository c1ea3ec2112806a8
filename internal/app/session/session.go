/*
Package session holds the locally cached authenticated identity, its bearer token and the
set of joined location ids.

A *Store is created empty at process start, restored from persistence with Load,
populated by the auth service, read by membership sync and the UI, and cleared on logout.
Every component that needs session state receives the same *Store handle; there is no
package-level state. Mutations are serialized by the store's mutex and written through
to the key/value persistence before the in-memory copy changes, so a failed write leaves
the previous session intact.
*/
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"matchup/internal/app/kvstore"
	"matchup/internal/pkg/logx"
)

// Persistence keys.
const (
	KeyToken          = "userToken"
	KeyEmail          = "loggedInUserEmail"
	KeyUserName       = "loggedInUserName"
	KeyUserNickName   = "loggedInUserNickName"
	KeyUserID         = "loggedInUserId"
	KeyJoinedLocation = "joinedLocations"
)

var allKeys = []string{KeyToken, KeyEmail, KeyUserName, KeyUserNickName, KeyUserID, KeyJoinedLocation}

// Identity is the cached copy of the authenticated account.
type Identity struct {
	UserID       int
	UserName     string
	UserNickName string
	Email        string
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Identity Identity
	Token    string

	// JoinedLocationIDs are the server-confirmed memberships, ascending.
	JoinedLocationIDs []int

	// PendingLocationIDs are joins sent but not yet confirmed, ascending.
	PendingLocationIDs []int
}

// Authenticated reports whether the snapshot carries a bearer token.
func (s Snapshot) Authenticated() bool {
	return s.Token != ""
}

// Store owns the single active session of the process.
type Store struct {
	mu sync.RWMutex

	kv       kvstore.Store
	identity Identity
	token    string
	joined   map[int]struct{}
	pending  map[int]struct{}

	logger zerolog.Logger
}

// New returns an empty store persisting through kv.
func New(kv kvstore.Store) *Store {
	return &Store{
		kv:      kv,
		joined:  make(map[int]struct{}),
		pending: make(map[int]struct{}),
		logger:  logx.Component("session"),
	}
}

// Load restores the persisted session, replacing any in-memory state.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]string, len(allKeys))
	for _, key := range allKeys {
		v, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("session: loading %s: %w", key, err)
		}
		if ok {
			values[key] = v
		}
	}

	identity := Identity{
		UserName:     values[KeyUserName],
		UserNickName: values[KeyUserNickName],
		Email:        values[KeyEmail],
	}
	if raw := values[KeyUserID]; raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			s.logger.Warn().Str("value", raw).Msg("Ignoring malformed persisted user id.")
		} else {
			identity.UserID = id
		}
	}

	joined := make(map[int]struct{})
	if raw := values[KeyJoinedLocation]; raw != "" {
		var ids []int
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			s.logger.Warn().Err(err).Msg("Ignoring malformed persisted joined locations.")
			ids = nil
		}
		for _, id := range ids {
			joined[id] = struct{}{}
		}
	}

	s.identity = identity
	s.token = values[KeyToken]
	s.joined = joined
	s.pending = make(map[int]struct{})

	s.logger.Debug().
		Bool("authenticated", s.token != "").
		Int("joined_locations", len(joined)).
		Msg("Session restored.")

	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Identity:           s.identity,
		Token:              s.token,
		JoinedLocationIDs:  sortedKeys(s.joined),
		PendingLocationIDs: sortedKeys(s.pending),
	}
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Email returns the cached email, or "".
func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Email
}

// UserID returns the cached user id. Sessions without a backend account (the
// administrative login) report false.
func (s *Store) UserID() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.UserID, s.identity.UserID != 0
}

// SetAuthenticated overwrites the identity and token wholesale. Memberships cached for a
// different account are discarded.
func (s *Store) SetAuthenticated(ctx context.Context, identity Identity, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := identityValues(identity)
	values[KeyToken] = token

	switchedAccount := identity.UserID != s.identity.UserID || identity.Email != s.identity.Email
	if switchedAccount {
		values[KeyJoinedLocation] = "[]"
	}

	if err := s.kv.SetMany(ctx, values); err != nil {
		return fmt.Errorf("session: persisting login: %w", err)
	}

	s.identity = identity
	s.token = token
	if switchedAccount {
		s.joined = make(map[int]struct{})
		s.pending = make(map[int]struct{})
	}

	s.logger.Info().
		Int("user_id", identity.UserID).
		Str("user_name", identity.UserName).
		Msg("Session established.")

	return nil
}

// UpdateIdentity replaces the cached identity, keeping token and memberships.
func (s *Store) UpdateIdentity(ctx context.Context, identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.SetMany(ctx, identityValues(identity)); err != nil {
		return fmt.Errorf("session: persisting identity: %w", err)
	}

	s.identity = identity
	return nil
}

// ReplaceJoined replaces the confirmed memberships with ids. It does not merge.
// Pending joins that the server now reports are considered confirmed.
func (s *Store) ReplaceJoined(ctx context.Context, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	joined := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		joined[id] = struct{}{}
	}

	if err := s.persistJoined(ctx, joined); err != nil {
		return err
	}

	s.joined = joined
	for id := range s.pending {
		if _, ok := joined[id]; ok {
			delete(s.pending, id)
		}
	}

	return nil
}

// MarkPending records an unconfirmed join. It returns false when id is already joined
// or pending, in which case nothing changes.
func (s *Store) MarkPending(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.joined[id]; ok {
		return false
	}
	if _, ok := s.pending[id]; ok {
		return false
	}

	s.pending[id] = struct{}{}
	return true
}

// ConfirmJoin moves id from pending to joined and persists the joined set.
func (s *Store) ConfirmJoin(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	joined := make(map[int]struct{}, len(s.joined)+1)
	for k := range s.joined {
		joined[k] = struct{}{}
	}
	joined[id] = struct{}{}

	if err := s.persistJoined(ctx, joined); err != nil {
		return err
	}

	s.joined = joined
	delete(s.pending, id)
	return nil
}

// DropPending forgets an unconfirmed join.
func (s *Store) DropPending(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Clear logs out: all state is removed from memory and persistence.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, allKeys...); err != nil {
		return fmt.Errorf("session: clearing: %w", err)
	}

	s.identity = Identity{}
	s.token = ""
	s.joined = make(map[int]struct{})
	s.pending = make(map[int]struct{})

	s.logger.Info().Msg("Session cleared.")
	return nil
}

// persistJoined writes the joined set. Callers hold s.mu.
func (s *Store) persistJoined(ctx context.Context, joined map[int]struct{}) error {
	encoded, err := json.Marshal(sortedKeys(joined))
	if err != nil {
		return fmt.Errorf("session: encoding joined locations: %w", err)
	}

	if err := s.kv.SetMany(ctx, map[string]string{KeyJoinedLocation: string(encoded)}); err != nil {
		return fmt.Errorf("session: persisting joined locations: %w", err)
	}
	return nil
}

func identityValues(identity Identity) map[string]string {
	return map[string]string{
		KeyEmail:        identity.Email,
		KeyUserName:     identity.UserName,
		KeyUserNickName: identity.UserNickName,
		KeyUserID:       strconv.Itoa(identity.UserID),
	}
}

func sortedKeys(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
