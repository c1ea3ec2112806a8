/*
Package matchup wires the client components together.

An App owns one session store, one API client, the auth and membership services and the
dispatch loop. The Async methods run their network work off the loop and deliver every
completion on it, so UI code that lives on the loop sees session changes in order.
*/
package matchup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"matchup/internal/app/api"
	"matchup/internal/app/auth"
	"matchup/internal/app/dispatch"
	"matchup/internal/app/kvstore"
	"matchup/internal/app/membership"
	"matchup/internal/app/model"
	"matchup/internal/app/realtime"
	"matchup/internal/app/session"
	"matchup/internal/configs"
	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
)

// App is the client application.
type App struct {
	Session    *session.Store
	API        *api.Client
	Auth       *auth.Service
	Membership *membership.Service
	Loop       *dispatch.Loop

	wsURL  string
	logger zerolog.Logger
}

// New builds an App persisting its session in kv and restores the previous session.
// httpClient may be nil.
func New(ctx context.Context, cfg *configs.AppConfig, kv kvstore.Store, httpClient *http.Client) (*App, error) {
	store := session.New(kv)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}

	client := api.NewClient(httpClient, cfg.APIBaseURL, cfg.RequestTimeout)
	members := membership.NewService(client, store)

	authService := auth.NewService(client, store, auth.ConfigFrom(cfg))
	authService.OnLogin(func(ctx context.Context, _ session.Snapshot) error {
		_, err := members.Sync(ctx)
		return err
	})

	return &App{
		Session:    store,
		API:        client,
		Auth:       authService,
		Membership: members,
		Loop:       dispatch.NewLoop(),
		wsURL:      cfg.WSURL,
		logger:     logx.Component("app"),
	}, nil
}

// Run executes the dispatch loop until ctx is done or Stop is called.
func (a *App) Run(ctx context.Context) {
	a.Loop.Run(ctx)
}

// Stop ends the dispatch loop.
func (a *App) Stop() {
	a.Loop.Stop()
}

// LoginAsync logs in and delivers the resulting session on the loop.
func (a *App) LoginAsync(ctx context.Context, identifier, password string, done func(session.Snapshot, error)) {
	dispatch.Go(a.Loop, ctx, func(ctx context.Context) (session.Snapshot, error) {
		return a.Auth.Login(ctx, identifier, password)
	}, done)
}

// CreateAccountAsync registers an account.
func (a *App) CreateAccountAsync(ctx context.Context, userName, userNickName, email, password string, done func(error)) {
	dispatch.Go(a.Loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.Auth.CreateAccount(ctx, userName, userNickName, email, password)
	}, func(_ struct{}, err error) { done(err) })
}

// UpdateProfileAsync updates the profile of userID.
func (a *App) UpdateProfileAsync(ctx context.Context, userID int, userName, userNickName, email string, done func(error)) {
	dispatch.Go(a.Loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.Auth.UpdateProfile(ctx, userID, userName, userNickName, email)
	}, func(_ struct{}, err error) { done(err) })
}

// GetProfileAsync fetches the profile of the logged in account.
func (a *App) GetProfileAsync(ctx context.Context, done func(auth.Profile, error)) {
	dispatch.Go(a.Loop, ctx, a.Auth.GetProfile, done)
}

// LogoutAsync clears the session.
func (a *App) LogoutAsync(ctx context.Context, done func(error)) {
	dispatch.Go(a.Loop, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.Auth.Logout(ctx)
	}, func(_ struct{}, err error) { done(err) })
}

// SyncAsync refreshes memberships and catalog and delivers the chats.
func (a *App) SyncAsync(ctx context.Context, done func([]membership.Chat, error)) {
	dispatch.Go(a.Loop, ctx, a.Membership.Sync, done)
}

// LocationsAsync fetches the location catalog.
func (a *App) LocationsAsync(ctx context.Context, done func([]model.Location, error)) {
	dispatch.Go(a.Loop, ctx, a.Membership.FetchAllLocations, done)
}

// JoinAsync joins the logged in user to locationID and delivers the updated chats.
func (a *App) JoinAsync(ctx context.Context, locationID int, done func([]membership.Chat, error)) {
	dispatch.Go(a.Loop, ctx, func(ctx context.Context) ([]membership.Chat, error) {
		userID, ok := a.Session.UserID()
		if !ok {
			return nil, errs.NewError(errs.ErrUnauthenticated)
		}
		if err := a.Membership.JoinLocation(ctx, userID, locationID); err != nil {
			return nil, err
		}
		return a.Membership.Chats(), nil
	}, done)
}

// Channel returns a disconnected channel for the shared /ws endpoint.
func (a *App) Channel() *realtime.Channel {
	return realtime.NewChannel(a.wsURL, a.handshakeHeader())
}

// ChatChannel returns a disconnected channel dedicated to chat.
func (a *App) ChatChannel(chat membership.Chat) *realtime.Channel {
	a.logger.Debug().Int("location_id", chat.LocationID).Str("chat_id", chat.ID.String()).Msg("Opening chat channel.")
	return realtime.NewChannel(realtime.RoomURL(a.wsURL, chat.ID.String()), a.handshakeHeader())
}

func (a *App) handshakeHeader() http.Header {
	header := http.Header{}
	if tok := a.Session.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	return header
}
