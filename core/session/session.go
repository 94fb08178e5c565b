// Package session holds the authenticated session context: the bearer token,
// the current user and the panels their roles grant.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/user"
)

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrTokenExpired    = errors.New("session expired")
	ErrForbidden       = errors.New("permission denied")
	ErrUnknownPanel    = errors.New("unknown panel")
)

// Panel is a top-level role-scoped area of the portal.
type Panel string

const (
	PanelAdmin      Panel = "admin"
	PanelInstructor Panel = "instructor"
	PanelStudent    Panel = "student"
)

// Panels in landing priority order.
var Panels = []Panel{PanelAdmin, PanelInstructor, PanelStudent}

func ParsePanel(s string) (Panel, error) {
	switch p := Panel(strings.ToLower(strings.TrimSpace(s))); p {
	case PanelAdmin, PanelInstructor, PanelStudent:
		return p, nil
	}
	return "", errors.Wrap(ErrUnknownPanel, s)
}

func (p Panel) rolePrefix() string {
	switch p {
	case PanelAdmin:
		return user.RoleAdmin
	case PanelInstructor:
		return user.RoleInstructor
	case PanelStudent:
		return user.RoleStudent
	}
	return ""
}

// Session is one signed-in user.
type Session struct {
	Token     string
	User      user.Me
	ExpiresAt time.Time // zero when the token carries no expiry
}

func (s *Session) Roles() []string { return s.User.Roles }

func (s *Session) IsAuthenticated() bool { return s != nil && s.Token != "" }

// CanAccess reports whether the session's role claims grant panel p.
func (s *Session) CanAccess(p Panel) bool {
	if !s.IsAuthenticated() {
		return false
	}
	prefix := p.rolePrefix()
	return prefix != "" && user.RolesStartWith(s.User.Roles, prefix)
}

// Panels lists the panels the session may access.
func (s *Session) Panels() []Panel {
	panels := make([]Panel, 0, len(Panels))
	for _, p := range Panels {
		if s.CanAccess(p) {
			panels = append(panels, p)
		}
	}
	return panels
}

// DefaultPanel is the landing panel of the session.
func (s *Session) DefaultPanel() (Panel, bool) {
	if panels := s.Panels(); len(panels) > 0 {
		return panels[0], true
	}
	return "", false
}

// Authenticator is the backend's auth surface.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (token string, err error)
	Me(ctx context.Context, token string) (user.Me, error)
}

type cached struct {
	sess     *Session
	cachedAt time.Time
}

// Manager creates, resolves and tears down sessions. Resolved sessions are
// cached per token for CacheTTL so that `/users/me` is not hit on every request.
type Manager struct {
	auth     Authenticator
	CacheTTL time.Duration
	Now      func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

func NewManager(auth Authenticator, cacheTTL time.Duration) *Manager {
	return &Manager{
		auth:     auth,
		CacheTTL: cacheTTL,
		Now:      time.Now,
		cache:    make(map[string]cached),
	}
}

// Login authenticates the credentials and builds the session.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	username = core.CleanString(username, true /* lower */)
	var flds []core.FieldError
	if username == "" {
		flds = append(flds, core.FieldError{Field: "username", Error: "this field is required"})
	}
	if password == "" {
		flds = append(flds, core.FieldError{Field: "password", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(nil, flds...)
	}

	token, err := m.auth.Login(ctx, username, password)
	if err != nil {
		if core.IsAPIStatus(err, 403) {
			return nil, core.NewValidationError(errors.New(errors.Cause(err).Error()))
		}
		if errors.Cause(err) == ErrUnauthenticated || isAuthStatus(err) {
			return nil, core.NewValidationError(errors.New("invalid credentials"))
		}
		return nil, errors.Wrap(err, "logging in")
	}
	return m.Resolve(ctx, token)
}

// Resolve rebuilds the session of a cookie token. Expired tokens are
// rejected without calling the backend.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	now := m.Now()
	exp, err := expiry(token)
	if err != nil {
		return nil, err
	}
	if !exp.IsZero() && !now.Before(exp) {
		m.forget(token)
		return nil, ErrTokenExpired
	}

	if sess := m.lookup(token, now); sess != nil {
		return sess, nil
	}

	me, err := m.auth.Me(ctx, token)
	if err != nil {
		if isAuthStatus(err) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, "loading current user")
	}
	sess := &Session{Token: token, User: me, ExpiresAt: exp}

	m.mu.Lock()
	m.cache[token] = cached{sess: sess, cachedAt: now}
	m.mu.Unlock()
	return sess, nil
}

// Logout tears the session down. Later Resolve calls with its token hit the backend again.
func (m *Manager) Logout(s *Session) {
	if s == nil {
		return
	}
	m.forget(s.Token)
	s.Token = ""
	s.User = user.Me{}
	s.ExpiresAt = time.Time{}
}

func (m *Manager) lookup(token string, now time.Time) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cache[token]
	if !ok {
		return nil
	}
	if now.Sub(c.cachedAt) >= m.CacheTTL {
		delete(m.cache, token)
		return nil
	}
	cp := *c.sess
	return &cp
}

func (m *Manager) forget(token string) {
	m.mu.Lock()
	delete(m.cache, token)
	m.mu.Unlock()
}

// expiry reads the `exp` claim of a JWT without verifying it; the backend
// verifies signatures. Opaque tokens have no known expiry.
func expiry(token string) (time.Time, error) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, nil
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, ErrUnauthenticated
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

func isAuthStatus(err error) bool {
	return core.IsAPIStatus(err, 401) || core.IsAPIStatus(err, 403)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session carried by ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s.IsAuthenticated()
}
