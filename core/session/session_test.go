package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/user"
)

type fakeAuth struct {
	users    map[string]user.Me // by token
	creds    map[string]string  // username -> token
	meCalls  int
	loginErr error
}

func (a *fakeAuth) Login(_ context.Context, username, password string) (string, error) {
	if a.loginErr != nil {
		return "", a.loginErr
	}
	if token, ok := a.creds[username]; ok && password == "secret" {
		return token, nil
	}
	return "", &core.APIError{Status: http.StatusUnauthorized, Message: "bad credentials"}
}

func (a *fakeAuth) Me(_ context.Context, token string) (user.Me, error) {
	a.meCalls++
	if me, ok := a.users[token]; ok {
		return me, nil
	}
	return user.Me{}, &core.APIError{Status: http.StatusUnauthorized}
}

func signed(t *testing.T, exp time.Time) string {
	claims := jwt.RegisteredClaims{Subject: "u1"}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func setup(t *testing.T) (*Manager, *fakeAuth, string) {
	valid := signed(t, time.Now().Add(time.Hour))
	auth := &fakeAuth{
		users: map[string]user.Me{
			valid:    {ID: "u1", FirstName: "Ada", Roles: []string{user.RoleInstructor, user.RoleStudent}},
			"opaque": {ID: "u2", Roles: []string{user.RoleAdminOwner}},
		},
		creds: map[string]string{"ada@test.cd": valid},
	}
	return NewManager(auth, time.Minute), auth, valid
}

func TestManager_Login(t *testing.T) {
	m, _, valid := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		username  string
		password  string
		wantToken string
		wantErr   string
	}{
		{name: "missing fields", wantErr: "username: this field is required"},
		{name: "bad credentials", username: "ada@test.cd", password: "nope", wantErr: "invalid credentials"},
		{name: "unknown user", username: "bob@test.cd", password: "secret", wantErr: "invalid credentials"},
		{name: "email is cleaned", username: "  ADA@test.cd ", password: "secret", wantToken: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := m.Login(ctx, tt.username, tt.password)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.IsType(t, &core.ValidationError{}, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, sess.Token)
			assert.Equal(t, "u1", sess.User.ID)
			assert.False(t, sess.ExpiresAt.IsZero())
		})
	}
}

func TestManager_Resolve(t *testing.T) {
	m, auth, valid := setup(t)
	ctx := context.Background()

	_, err := m.Resolve(ctx, "")
	assert.Equal(t, ErrUnauthenticated, err)

	expired := signed(t, time.Now().Add(-time.Minute))
	_, err = m.Resolve(ctx, expired)
	assert.Equal(t, ErrTokenExpired, err)
	assert.Zero(t, auth.meCalls, "expired tokens never reach the backend")

	_, err = m.Resolve(ctx, "bad.jwt.token")
	assert.Equal(t, ErrUnauthenticated, err)

	sess, err := m.Resolve(ctx, "opaque")
	require.NoError(t, err)
	assert.True(t, sess.ExpiresAt.IsZero())

	_, err = m.Resolve(ctx, valid)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, 2, auth.meCalls, "resolved sessions are cached")

	// the cache expires
	m.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Resolve(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, 3, auth.meCalls)

	// revoked on the backend
	delete(auth.users, "opaque")
	m.Now = func() time.Time { return time.Now().Add(4 * time.Minute) }
	_, err = m.Resolve(ctx, "opaque")
	assert.Equal(t, ErrUnauthenticated, err)
}

func TestManager_Logout(t *testing.T) {
	m, auth, valid := setup(t)
	ctx := context.Background()

	sess, err := m.Resolve(ctx, valid)
	require.NoError(t, err)
	m.Logout(sess)
	assert.False(t, sess.IsAuthenticated())
	assert.False(t, sess.CanAccess(PanelStudent))

	_, err = m.Resolve(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, 2, auth.meCalls)

	m.Logout(nil)
}

func TestSession_panels(t *testing.T) {
	tests := []struct {
		name        string
		roles       []string
		wantPanels  []Panel
		wantDefault Panel
	}{
		{name: "admin owner", roles: []string{user.RoleAdminOwner}, wantPanels: []Panel{PanelAdmin}, wantDefault: PanelAdmin},
		{
			name:        "instructor and student",
			roles:       []string{user.RoleStudent, user.RoleInstructor},
			wantPanels:  []Panel{PanelInstructor, PanelStudent},
			wantDefault: PanelInstructor,
		},
		{name: "no roles", wantPanels: []Panel{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &Session{Token: "t", User: user.Me{Roles: tt.roles}}
			assert.Equal(t, tt.wantPanels, sess.Panels())
			p, ok := sess.DefaultPanel()
			assert.Equal(t, tt.wantDefault != "", ok)
			assert.Equal(t, tt.wantDefault, p)
		})
	}
}

func TestParsePanel(t *testing.T) {
	p, err := ParsePanel(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, PanelAdmin, p)

	_, err = ParsePanel("teacher")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	sess := &Session{Token: "t"}
	got, ok := FromContext(NewContext(context.Background(), sess))
	assert.True(t, ok)
	assert.Same(t, sess, got)
}
