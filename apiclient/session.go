package apiclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
)

// State is what the client knows of the logged in user.
type State struct {
	User       user.User        `json:"user"`
	Portal     user.Portal      `json:"portal"`
	Home       string           `json:"home"`
	Navigation []access.NavItem `json:"navigation"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// Session tracks the authenticated user of a Client. It is created once at start;
// Logout tears down the user and the cache.
// A Session is safe for concurrent use.
type Session struct {
	client *Client

	mu    sync.RWMutex
	state *State
}

func NewSession(c *Client) *Session {
	return &Session{client: c}
}

func (s *Session) Client() *Client { return s.client }

// Current returns a copy of the session state, nil when logged out.
func (s *Session) Current() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	state := *s.state
	state.Navigation = append([]access.NavItem(nil), s.state.Navigation...)
	return &state
}

func (s *Session) setState(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// start replaces the state with the user of a session answer. The cache of the previous user is dropped.
func (s *Session) start(state State) *State {
	s.client.Reset()
	s.setState(&state)
	return s.Current()
}

// Restore loads the session of an existing cookie. It returns nil without error when there is none.
func (s *Session) Restore(ctx context.Context) (*State, error) {
	var state State
	if _, err := s.client.send(ctx, http.MethodGet, "/api/auth/me", nil, &state); err != nil {
		if IsUnauthorized(err) {
			s.setState(nil)
			return nil, nil
		}
		return nil, errors.Wrap(err, "restoring session")
	}
	s.setState(&state)
	return s.Current(), nil
}

func (s *Session) Login(ctx context.Context, username, password string) (*State, error) {
	data := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	var state State
	if _, err := s.client.send(ctx, http.MethodPost, "/api/auth/login", data, &state); err != nil {
		return nil, errors.Wrap(err, "logging in")
	}
	return s.start(state), nil
}

// Register signs up a student and logs them in.
func (s *Session) Register(ctx context.Context, data user.NewUser) (*State, error) {
	var state State
	if _, err := s.client.send(ctx, http.MethodPost, "/api/auth/register", data, &state); err != nil {
		return nil, errors.Wrap(err, "registering")
	}
	return s.start(state), nil
}

// Logout ends the session. The local state and cache are torn down even if the request fails.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.client.send(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	s.setState(nil)
	s.client.Reset()
	if err != nil {
		return errors.Wrap(err, "logging out")
	}
	return nil
}

// Refresh extends the session. An expired session logs the user out locally.
func (s *Session) Refresh(ctx context.Context) (*State, error) {
	var state State
	if _, err := s.client.send(ctx, http.MethodPost, "/api/auth/refresh", nil, &state); err != nil {
		if apiErr, ok := AsError(err); ok && (apiErr.IsUnauthorized() || apiErr.IsForbidden()) {
			s.setState(nil)
			s.client.Reset()
		}
		return nil, errors.Wrap(err, "refreshing session")
	}
	s.setState(&state)
	return s.Current(), nil
}

// UpdateProfile saves changes to the current user.
func (s *Session) UpdateProfile(ctx context.Context, data user.UpdateUser) (user.User, error) {
	current := s.Current()
	if current == nil {
		return user.User{}, &Error{Status: http.StatusUnauthorized, Message: "user not authenticated"}
	}

	usr, err := s.client.Users().Update(ctx, current.User.ID, data)
	if err != nil {
		return usr, errors.Wrap(err, "updating profile")
	}

	s.mu.Lock()
	if s.state != nil && s.state.User.ID == usr.ID {
		s.state.User = usr
		s.state.Portal = usr.Portal()
		s.state.Home = access.Home(s.state.Portal)
		s.state.Navigation = access.Navigation(s.state.Portal)
	}
	s.mu.Unlock()
	return usr, nil
}

// Decide tells whether path may be rendered for the current user, or where to redirect.
func (s *Session) Decide(path string) access.Decision {
	var usr *user.User
	if state := s.Current(); state != nil {
		usr = &state.User
	}
	return access.Resolve(usr, path)
}
