/*
Package api is the HTTP client for the matchup backend.

Every call takes a context and is additionally bounded by the client's request timeout.
Failures are returned as *errs.CustomError values: transport failures and unexpected
statuses carry errs.ErrNetwork, deadline expiry carries errs.ErrTimeout and malformed
bodies carry errs.ErrDecode. Nothing is retried.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"matchup/internal/app/model"
	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
)

const (
	usersPath         = "/api/v1/users"
	locationsPath     = "/api/v1/locations"
	userLocationsPath = "/api/user-locations"

	// maxResponseSize caps how much of a response body is decoded.
	maxResponseSize = 4 << 20
)

// StatusError records an unexpected HTTP status. It is the cause attached to
// errs.ErrNetwork failures produced by a non-2xx response.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Endpoint, e.StatusCode)
}

// Client talks to one backend base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewClient returns a client for baseURL. A zero timeout leaves calls bounded only by
// the caller's context.
func NewClient(httpClient *http.Client, baseURL string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		logger:     logx.Component("api"),
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListUsersByIdentifier performs the login lookup: GET /api/v1/users?identifier=.
func (c *Client) ListUsersByIdentifier(ctx context.Context, identifier string) ([]model.User, error) {
	var users []model.User
	q := url.Values{"identifier": {identifier}}
	if _, err := c.do(ctx, http.MethodGet, usersPath, q, "", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListUsersByEmail performs the authenticated profile lookup: GET /api/v1/users?email=.
func (c *Client) ListUsersByEmail(ctx context.Context, email, token string) ([]model.User, error) {
	var users []model.User
	q := url.Values{"email": {email}}
	if _, err := c.do(ctx, http.MethodGet, usersPath, q, token, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser registers an account and returns the record the backend created.
func (c *Client) CreateUser(ctx context.Context, body model.CreateUserRequest) (model.User, error) {
	var created model.User
	if _, err := c.do(ctx, http.MethodPost, usersPath, nil, "", body, &created); err != nil {
		return model.User{}, err
	}
	return created, nil
}

// UpdateUser replaces the profile fields of userID. token is sent as a bearer token.
func (c *Client) UpdateUser(ctx context.Context, token string, userID int, body model.UpdateUserRequest) (model.User, error) {
	var updated model.User
	path := usersPath + "/" + strconv.Itoa(userID)
	if _, err := c.do(ctx, http.MethodPut, path, nil, token, body, &updated); err != nil {
		return model.User{}, err
	}
	return updated, nil
}

// ListLocations returns the full location catalog in backend order.
func (c *Client) ListLocations(ctx context.Context) ([]model.Location, error) {
	var locations []model.Location
	if _, err := c.do(ctx, http.MethodGet, locationsPath, nil, "", nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// ListUserLocations returns the membership records of userID.
func (c *Client) ListUserLocations(ctx context.Context, userID int) ([]model.UserLocation, error) {
	var memberships []model.UserLocation
	path := userLocationsPath + "/user/" + strconv.Itoa(userID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, "", nil, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// CreateUserLocation posts a membership record and returns the response status.
// Any status is returned without error; only transport failures and timeouts fail.
func (c *Client) CreateUserLocation(ctx context.Context, body model.JoinLocationRequest) (int, error) {
	return c.do(ctx, http.MethodPost, userLocationsPath, nil, "", body, nil)
}

// do sends one request. When out is nil the status is returned as is and the body is
// discarded; otherwise a non-2xx status is an error and the body is decoded into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) (int, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	log := c.logger.With().Str("method", method).Str("endpoint", path).Logger()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, errs.Wrap(errs.ErrInvalidParams, fmt.Errorf("encoding request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, errs.Wrap(errs.ErrNetwork, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyTransportError(err)
		log.Error().Err(err).Int("code", classified.Code).Msg("Backend request failed.")
		return 0, classified
	}
	defer resp.Body.Close()

	log = log.With().Int("status", resp.StatusCode).Logger()
	log.Debug().Dur("latency", time.Since(start)).Msg("Backend responded.")

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return resp.StatusCode, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Method: method, Endpoint: path, StatusCode: resp.StatusCode}
		log.Warn().Msg("Backend returned an error status.")
		return resp.StatusCode, errs.Wrap(errs.ErrNetwork, statusErr)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		if isTimeout(err) {
			log.Error().Err(err).Msg("Backend response timed out.")
			return resp.StatusCode, errs.Wrap(errs.ErrTimeout, err)
		}
		log.Error().Err(err).Msg("Backend response could not be decoded.")
		return resp.StatusCode, errs.Wrap(errs.ErrDecode, err)
	}

	return resp.StatusCode, nil
}

// classifyTransportError maps a failed round trip to Timeout or Network.
func classifyTransportError(err error) *errs.CustomError {
	if isTimeout(err) {
		return errs.Wrap(errs.ErrTimeout, err)
	}
	return errs.Wrap(errs.ErrNetwork, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
