/*
Package auth orchestrates login, account creation and profile management against the
matchup backend and keeps the session store in step with the outcome.

Calls that mutate the session (Login, UpdateProfile, Logout) are serialized by the
service: overlapping calls never interleave, and the session reflects whichever call
acquired the lock last.
*/
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"matchup/internal/app/model"
	"matchup/internal/app/session"
	"matchup/internal/configs"
	"matchup/internal/pkg/auth/token"
	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
)

// Backend is the subset of the API client the service needs.
type Backend interface {
	ListUsersByIdentifier(ctx context.Context, identifier string) ([]model.User, error)
	ListUsersByEmail(ctx context.Context, email, token string) ([]model.User, error)
	CreateUser(ctx context.Context, body model.CreateUserRequest) (model.User, error)
	UpdateUser(ctx context.Context, token string, userID int, body model.UpdateUserRequest) (model.User, error)
}

// Config holds the credential settings of the service.
type Config struct {
	// SigningKey signs every issued session token.
	SigningKey string

	// Admin is the privileged identity. An empty Secret disables the privileged path.
	Admin configs.AdminIdentity

	// AllowPlaintextPasswords accepts stored passwords that are not bcrypt hashes.
	AllowPlaintextPasswords bool
}

// ConfigFrom extracts the service settings from the application config.
func ConfigFrom(cfg *configs.AppConfig) Config {
	return Config{
		SigningKey:              cfg.TokenSigningKey,
		Admin:                   cfg.Admin,
		AllowPlaintextPasswords: cfg.AllowPlaintextPasswords,
	}
}

// Profile is the display subset of an account.
type Profile struct {
	UserID       int
	UserName     string
	UserNickName string
	Email        string
}

// LoginHook runs after a successful standard login, while the session still belongs to
// the user who just logged in. Its error is logged and does not fail the login.
type LoginHook func(ctx context.Context, snap session.Snapshot) error

// Service implements the auth operations.
type Service struct {
	mu sync.Mutex

	backend Backend
	store   *session.Store
	cfg     Config
	onLogin LoginHook

	logger zerolog.Logger
}

// NewService creates a service that records outcomes in store.
func NewService(backend Backend, store *session.Store, cfg Config) *Service {
	logger := logx.Component("auth")
	if cfg.AllowPlaintextPasswords {
		logger.Warn().Msg("Plaintext password comparison is enabled; stored passwords that are not bcrypt hashes will be accepted.")
	}

	return &Service{
		backend: backend,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// OnLogin registers the hook run after every successful standard login.
func (s *Service) OnLogin(hook LoginHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogin = hook
}

// Login authenticates identifier (an email or user name) with password and establishes
// the session. The privileged identity is resolved locally without a network call.
func (s *Service) Login(ctx context.Context, identifier, password string) (session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isAdmin(identifier, password) {
		return s.loginAdmin(ctx)
	}

	users, err := s.backend.ListUsersByIdentifier(ctx, identifier)
	if err != nil {
		return session.Snapshot{}, err
	}

	record, ok := s.findAccount(users, identifier, password)
	if !ok {
		s.logger.Info().Int("candidates", len(users)).Msg("Login rejected.")
		return session.Snapshot{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	tok, err := token.Issue(record.Email, record.UserPassword, s.cfg.SigningKey)
	if err != nil {
		return session.Snapshot{}, err
	}

	identity := session.Identity{
		UserID:       record.UserID,
		UserName:     record.UserName,
		UserNickName: record.UserNickName,
		Email:        record.Email,
	}
	if err := s.store.SetAuthenticated(ctx, identity, tok); err != nil {
		return session.Snapshot{}, errs.Wrap(errs.ErrUnknown, err)
	}

	snap := s.store.Snapshot()
	if s.onLogin != nil {
		if err := s.onLogin(ctx, snap); err != nil {
			s.logger.Warn().Err(err).Int("user_id", identity.UserID).Msg("Post-login sync failed.")
		}
		snap = s.store.Snapshot()
	}

	return snap, nil
}

func (s *Service) isAdmin(identifier, password string) bool {
	admin := s.cfg.Admin
	if admin.Secret == "" {
		return false
	}
	if identifier != admin.Name && identifier != admin.Email {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(admin.Secret)) == 1
}

func (s *Service) loginAdmin(ctx context.Context) (session.Snapshot, error) {
	admin := s.cfg.Admin

	tok, err := token.Issue(admin.Name, admin.Secret, s.cfg.SigningKey)
	if err != nil {
		return session.Snapshot{}, err
	}

	identity := session.Identity{
		UserName:     admin.Name,
		UserNickName: admin.NickName,
		Email:        admin.Email,
	}
	if err := s.store.SetAuthenticated(ctx, identity, tok); err != nil {
		return session.Snapshot{}, errs.Wrap(errs.ErrUnknown, err)
	}

	s.logger.Info().Str("user_name", admin.Name).Msg("Privileged login.")
	return s.store.Snapshot(), nil
}

// findAccount returns the first record whose email or user name is identifier and whose
// stored password accepts password.
func (s *Service) findAccount(users []model.User, identifier, password string) (model.User, bool) {
	for _, u := range users {
		if u.Email != identifier && u.UserName != identifier {
			continue
		}
		if s.passwordMatches(u.UserPassword, password) {
			return u, true
		}
	}
	return model.User{}, false
}

func (s *Service) passwordMatches(stored, supplied string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	if !s.cfg.AllowPlaintextPasswords || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// CreateAccount registers a new account. The session is not changed; callers log in
// afterwards. It fails with ErrAccountCreationFailed unless the backend echoes the email.
func (s *Service) CreateAccount(ctx context.Context, userName, userNickName, email, password string) error {
	created, err := s.backend.CreateUser(ctx, model.CreateUserRequest{
		UserName:     userName,
		UserNickName: userNickName,
		Email:        email,
		UserPassword: password,
	})
	if err != nil {
		return err
	}

	if created.Email != email {
		s.logger.Warn().Str("returned_email", created.Email).Msg("Account creation response does not match the request.")
		return errs.NewError(errs.ErrAccountCreationFailed)
	}

	s.logger.Info().Int("user_id", created.UserID).Msg("Account created.")
	return nil
}

// UpdateProfile replaces the profile fields of userID. Without a session token it fails
// with ErrUnauthenticated before any network call.
func (s *Service) UpdateProfile(ctx context.Context, userID int, userName, userNickName, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	if !snap.Authenticated() {
		return errs.NewError(errs.ErrUnauthenticated)
	}

	updated, err := s.backend.UpdateUser(ctx, snap.Token, userID, model.UpdateUserRequest{
		UserName:     userName,
		UserNickName: userNickName,
		Email:        email,
	})
	if err != nil {
		return err
	}

	if updated.UserID != userID {
		s.logger.Warn().Int("user_id", userID).Int("returned_user_id", updated.UserID).Msg("Profile update response does not match the request.")
		return errs.NewError(errs.ErrProfileUpdateFailed)
	}

	if snap.Identity.UserID == userID {
		identity := session.Identity{
			UserID:       updated.UserID,
			UserName:     updated.UserName,
			UserNickName: updated.UserNickName,
			Email:        updated.Email,
		}
		if err := s.store.UpdateIdentity(ctx, identity); err != nil {
			return errs.Wrap(errs.ErrUnknown, err)
		}
	}

	return nil
}

// GetProfile fetches the profile of the logged in account by its email.
func (s *Service) GetProfile(ctx context.Context) (Profile, error) {
	snap := s.store.Snapshot()
	if snap.Token == "" || snap.Identity.Email == "" {
		return Profile{}, errs.NewError(errs.ErrUnauthenticated)
	}

	users, err := s.backend.ListUsersByEmail(ctx, snap.Identity.Email, snap.Token)
	if err != nil {
		return Profile{}, err
	}

	for _, u := range users {
		if u.Email == snap.Identity.Email {
			return Profile{
				UserID:       u.UserID,
				UserName:     u.UserName,
				UserNickName: u.UserNickName,
				Email:        u.Email,
			}, nil
		}
	}

	return Profile{}, errs.NewError(errs.ErrNotFound)
}

// Logout clears the session.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	return nil
}

// IsAuthError reports whether err is one of the credential failures a user can fix by
// logging in again.
func IsAuthError(err error) bool {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		return false
	}
	switch customErr.Code {
	case errs.ErrInvalidCredentials, errs.ErrUnauthenticated:
		return true
	}
	return false
}
