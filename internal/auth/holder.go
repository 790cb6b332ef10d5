package auth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/uofuseismo/cct-review/pkg/models"
)

// Authenticator exchanges user credentials for a login response.
type Authenticator interface {
	Login(ctx context.Context, user, password string) (*models.LoginResponse, error)
}

// Holder owns the session of one running process. Logout hooks fire once per
// session, whether the logout was requested or forced by an expired token.
type Holder struct {
	mu      sync.RWMutex
	session *models.Session
	hooks   []func()
	now     func() time.Time
}

func NewHolder() *Holder {
	return &Holder{now: time.Now}
}

// Restore installs a previously persisted session.
func (h *Holder) Restore(s models.Session) {
	if s.Expiry.IsZero() && s.Token != "" {
		if exp, err := TokenExpiry(s.Token); err == nil {
			s.Expiry = exp
		}
	}
	h.mu.Lock()
	h.session = &s
	h.mu.Unlock()
}

// Login authenticates and replaces the held session. Any failure, including a
// response whose status is not "success", is reported as ErrAuthFailed.
func (h *Holder) Login(ctx context.Context, a Authenticator, user, password string) (*models.Session, error) {
	resp, err := a.Login(ctx, user, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	s, err := SessionFromResponse(user, resp)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
	out := *s
	return &out, nil
}

// SessionFromResponse validates a login response and builds a Session from it.
func SessionFromResponse(user string, resp *models.LoginResponse) (*models.Session, error) {
	if resp == nil || !strings.EqualFold(resp.Status, "success") {
		return nil, fmt.Errorf("%w: could not validate your credentials", ErrAuthFailed)
	}
	if resp.JSONWebToken == "" {
		return nil, fmt.Errorf("%w: no token returned", ErrAuthFailed)
	}
	if resp.Permissions == "" {
		log.Printf("login: permissions not returned for %s, assuming read-only", user)
	}
	s := &models.Session{
		User:        user,
		Token:       resp.JSONWebToken,
		Permissions: models.ParsePermission(resp.Permissions),
	}
	if exp, err := TokenExpiry(resp.JSONWebToken); err == nil {
		s.Expiry = exp
	} else {
		log.Printf("login: %v", err)
	}
	return s, nil
}

// OnLogout registers fn to run whenever the session is cleared.
func (h *Holder) OnLogout(fn func()) {
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

// Logout clears the session. It is a no-op when nobody is logged in.
func (h *Holder) Logout() {
	h.mu.Lock()
	if h.session == nil {
		h.mu.Unlock()
		return
	}
	h.session = nil
	hooks := append([]func(){}, h.hooks...)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Session returns a copy of the current session, or nil.
func (h *Holder) Session() *models.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil
	}
	s := *h.session
	return &s
}

// Token returns the bearer token, or "" when logged out.
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return ""
	}
	return h.session.Token
}

func (h *Holder) IsWritable() bool {
	return h.Session().IsWritable()
}

// CheckToken returns the bearer token when it can still be sent. An expired
// token forces a logout before ErrAuthExpired is returned.
func (h *Holder) CheckToken() (string, error) {
	token := h.Token()
	if token == "" {
		return "", ErrNotLoggedIn
	}
	if Expired(token, h.now()) {
		log.Println("Token expired, logging out")
		h.Logout()
		return "", ErrAuthExpired
	}
	return token, nil
}
