package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/vaughan-dsouza/taskboard/internal/models"
)

// State is a snapshot of what a front end knows about the current session.
type State struct {
	User     *models.UserSummary
	LoggedIn bool
	// AllUsers is only populated for roles allowed to list users.
	AllUsers []models.UserSummary
	Loading  bool
}

// Session owns the client-side session state. Every change is pushed to
// subscribers as a fresh snapshot.
type Session struct {
	api *Client

	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func NewSession(api *Client) *Session {
	return &Session{api: api, listeners: make(map[int]func(State))}
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the Session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

func (s *Session) Client() *Client { return s.api }

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) snapshot() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	st.AllUsers = append([]models.UserSummary(nil), st.AllUsers...)
	return st
}

// update applies fn under the lock and notifies listeners outside it.
func (s *Session) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.snapshot()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Session) setLoading(v bool) {
	s.update(func(st *State) { st.Loading = v })
}

func canListUsers(u *models.UserSummary) bool {
	return u != nil && u.Role.In(models.RoleCreator, models.RoleAdmin)
}

// Hydrate restores state from the stored credential: it asks the server
// whether the session is still valid and, if so, loads the user.
func (s *Session) Hydrate(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	ok, err := s.api.LoginStatus(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_ = s.api.tokens.Clear()
		s.reset()
		return nil
	}

	u, err := s.api.GetUser(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
			_ = s.api.tokens.Clear()
			s.reset()
			return nil
		}
		return err
	}
	return s.signedIn(ctx, u)
}

func (s *Session) signedIn(ctx context.Context, u *models.UserSummary) error {
	var all []models.UserSummary
	if canListUsers(u) {
		var err error
		if all, err = s.api.ListUsers(ctx); err != nil {
			return err
		}
	}
	s.update(func(st *State) {
		st.User = u
		st.LoggedIn = true
		st.AllUsers = all
	})
	return nil
}

func (s *Session) reset() {
	s.update(func(st *State) {
		st.User = nil
		st.LoggedIn = false
		st.AllUsers = nil
	})
}

func (s *Session) Register(ctx context.Context, name, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	res, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	return s.signedIn(ctx, &res.UserSummary)
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.signedIn(ctx, &res.UserSummary)
}

// Logout tears the session down. Local state is cleared even when the
// server cannot be reached.
func (s *Session) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.reset()
	return err
}

func (s *Session) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	u, err := s.api.UpdateUser(ctx, upd)
	if err != nil {
		return err
	}
	s.update(func(st *State) { st.User = u })
	return nil
}

func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	return s.api.ChangePassword(ctx, current, next)
}

func (s *Session) RequestVerification(ctx context.Context) error {
	return s.api.RequestVerification(ctx)
}

// VerifyUser redeems a verification token. The signed-in user, if it is
// the one verified, is refreshed.
func (s *Session) VerifyUser(ctx context.Context, token string) error {
	u, err := s.api.VerifyUser(ctx, token)
	if err != nil {
		return err
	}
	s.update(func(st *State) {
		if st.User != nil && st.User.ID == u.ID {
			st.User = u
		}
	})
	return nil
}

func (s *Session) ForgotPassword(ctx context.Context, email string) error {
	return s.api.ForgotPassword(ctx, email)
}

func (s *Session) ResetPassword(ctx context.Context, token, password string) error {
	return s.api.ResetPassword(ctx, token, password)
}

// RefreshUsers reloads the user list for roles allowed to see it.
func (s *Session) RefreshUsers(ctx context.Context) error {
	all, err := s.api.ListUsers(ctx)
	if err != nil {
		return err
	}
	s.update(func(st *State) { st.AllUsers = all })
	return nil
}

func (s *Session) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.update(func(st *State) {
		kept := st.AllUsers[:0:0]
		for _, u := range st.AllUsers {
			if u.ID != id {
				kept = append(kept, u)
			}
		}
		st.AllUsers = kept
	})
	return nil
}
