package backend

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"matchup/internal/app/model"
	"matchup/internal/pkg/auth/token"
	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
)

const (
	maxNameLength     = 64
	maxPasswordLength = 72 // bcrypt input limit
)

// Service applies validation and hashing on top of a Repository. Every returned error
// is a *errs.CustomError ready to be sent to the client.
type Service struct {
	repo       Repository
	bcryptCost int
	logger     zerolog.Logger
}

// NewService returns a service over repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logx.Component("backend"),
	}
}

// FindUsers lists the users matching filter.
func (s *Service) FindUsers(ctx context.Context, filter UserFilter) ([]model.User, error) {
	users, err := s.repo.FindUsers(ctx, filter)
	if err != nil {
		return nil, s.internal(err, "find users")
	}
	return users, nil
}

// Register creates an account, storing the password as a bcrypt hash.
func (s *Service) Register(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	req.UserName = strings.TrimSpace(req.UserName)
	req.UserNickName = strings.TrimSpace(req.UserNickName)
	req.Email = strings.TrimSpace(req.Email)

	if err := validateProfile(req.UserName, req.UserNickName, req.Email); err != nil {
		return model.User{}, err
	}
	if req.UserPassword == "" || len(req.UserPassword) > maxPasswordLength {
		return model.User{}, errs.NewError(errs.ErrInvalidParams)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.UserPassword), s.bcryptCost)
	if err != nil {
		return model.User{}, s.internal(err, "hash password")
	}

	created, err := s.repo.CreateUser(ctx, model.User{
		UserName:     req.UserName,
		UserNickName: req.UserNickName,
		Email:        req.Email,
		UserPassword: string(hash),
	})
	if errors.Is(err, ErrDuplicate) {
		return model.User{}, errs.NewError(errs.ErrConflict)
	}
	if err != nil {
		return model.User{}, s.internal(err, "create user")
	}

	s.logger.Info().Int("user_id", created.UserID).Msg("User registered.")
	return created, nil
}

// UpdateProfile replaces the profile fields of userID.
func (s *Service) UpdateProfile(ctx context.Context, userID int, req model.UpdateUserRequest) (model.User, error) {
	req.UserName = strings.TrimSpace(req.UserName)
	req.UserNickName = strings.TrimSpace(req.UserNickName)
	req.Email = strings.TrimSpace(req.Email)

	if err := validateProfile(req.UserName, req.UserNickName, req.Email); err != nil {
		return model.User{}, err
	}

	updated, err := s.repo.UpdateUser(ctx, userID, req)
	switch {
	case errors.Is(err, ErrNotFound):
		return model.User{}, errs.NewError(errs.ErrResourceNotFound)
	case errors.Is(err, ErrDuplicate):
		return model.User{}, errs.NewError(errs.ErrConflict)
	case err != nil:
		return model.User{}, s.internal(err, "update user")
	}
	return updated, nil
}

// Authorize reports whether claims belong to the account userID. The token must name
// the account's email and carry either its stored credential or the password it hashes.
func (s *Service) Authorize(ctx context.Context, claims *token.Claims, userID int) error {
	if claims == nil {
		return errs.NewError(errs.ErrUnauthorized)
	}

	users, err := s.repo.FindUsers(ctx, UserFilter{Email: claims.Identifier})
	if err != nil {
		return s.internal(err, "authorize")
	}

	for _, u := range users {
		if u.UserID != userID {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(claims.Password), []byte(u.UserPassword)) == 1 {
			return nil
		}
		if bcrypt.CompareHashAndPassword([]byte(u.UserPassword), []byte(claims.Password)) == nil {
			return nil
		}
	}

	s.logger.Warn().Int("user_id", userID).Msg("Token does not match account.")
	return errs.NewError(errs.ErrUnauthorized)
}

// ListLocations returns the catalog.
func (s *Service) ListLocations(ctx context.Context) ([]model.Location, error) {
	locations, err := s.repo.ListLocations(ctx)
	if err != nil {
		return nil, s.internal(err, "list locations")
	}
	return locations, nil
}

// ListUserLocations returns the memberships of userID.
func (s *Service) ListUserLocations(ctx context.Context, userID int) ([]model.UserLocation, error) {
	memberships, err := s.repo.ListUserLocations(ctx, userID)
	if err != nil {
		return nil, s.internal(err, "list user locations")
	}
	return memberships, nil
}

// Join records a membership. An existing membership is a conflict.
func (s *Service) Join(ctx context.Context, req model.JoinLocationRequest) (model.UserLocation, error) {
	if req.UserID <= 0 || req.LocationID <= 0 {
		return model.UserLocation{}, errs.NewError(errs.ErrInvalidParams)
	}

	ul, err := s.repo.CreateUserLocation(ctx, req.UserID, req.LocationID)
	switch {
	case errors.Is(err, ErrDuplicate):
		return model.UserLocation{}, errs.NewError(errs.ErrConflict)
	case errors.Is(err, ErrNotFound):
		return model.UserLocation{}, errs.NewError(errs.ErrResourceNotFound)
	case err != nil:
		return model.UserLocation{}, s.internal(err, "create user location")
	}
	return ul, nil
}

// Seed adds the given locations to the catalog.
func (s *Service) Seed(ctx context.Context, locations []model.Location) error {
	if err := s.repo.SeedLocations(ctx, locations); err != nil {
		return s.internal(err, "seed locations")
	}
	return nil
}

func (s *Service) internal(err error, op string) *errs.CustomError {
	s.logger.Error().Err(err).Str("op", op).Msg("Repository failure.")
	return errs.Wrap(errs.ErrUnknown, err)
}

func validateProfile(userName, userNickName, email string) *errs.CustomError {
	if userName == "" || len(userName) > maxNameLength || len(userNickName) > maxNameLength {
		return errs.NewError(errs.ErrInvalidParams)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}
