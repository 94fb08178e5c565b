package logsvc

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
)

func TestRollbarLogger_prepare(t *testing.T) {
	l := NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), &core.Config{Env: "TEST", TestMode: true})
	apiErr := errors.Wrap(&core.APIError{Status: http.StatusConflict, Message: "taken"}, "enrolling")
	sess := &session.Session{Token: "secret", User: user.Me{ID: "u1", FirstName: "Ada", LastName: "Lovelace"}}

	args := l.prepare("enroll failed", []interface{}{apiErr, sess, map[string]interface{}{"course": "c1"}})

	require.Len(t, args, 4)
	assert.Equal(t, "enroll failed", args[0])
	assert.Equal(t, apiErr, args[1])
	assert.Equal(t, map[string]interface{}{"course": "c1", "backendStatus": http.StatusConflict}, args[2])
	ctx, ok := args[3].(context.Context)
	require.True(t, ok)
	p, ok := rollbar.PersonFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, &rollbar.Person{Id: "u1", Username: "Ada Lovelace"}, p)
	for _, arg := range args {
		assert.NotEqual(t, sess, arg, "the session is never forwarded")
	}
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", TestMode: true})

	l.Warn("capture failed", errors.New("declined"), user.Me{ID: "u1", Email: "ada@test.cd"})

	assert.Contains(t, buf.String(), "WARN: capture failed")
	assert.Contains(t, buf.String(), "declined")
	assert.NotContains(t, buf.String(), "ada@test.cd")
}
