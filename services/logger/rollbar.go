// Package logsvc reports portal events to Rollbar and mirrors them to a std logger.
package logsvc

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(rollbarerrors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Flush waits for queued reports to be sent.
func (l *RollbarLogger) Flush() {
	rollbar.Wait()
}

// prepare turns the session user (if any) into a person context and tags
// backend errors with their status.
// expected args: error, map[string]interface{}, *http.Request, user.Me, *session.Session
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		person *rollbar.Person
		extras map[string]interface{}
	)
	out := make([]interface{}, 0, len(args)+2)
	out = append(out, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.Me:
			if person == nil {
				person = personOf(a)
			}
		case *session.Session:
			if person == nil && a != nil {
				person = personOf(a.User)
			}
		case map[string]interface{}:
			if extras == nil {
				extras = make(map[string]interface{}, len(a)+1)
			}
			for k, v := range a {
				extras[k] = v
			}
		case error:
			var apiErr *core.APIError
			if errors.As(a, &apiErr) {
				if extras == nil {
					extras = make(map[string]interface{}, 1)
				}
				extras["backendStatus"] = apiErr.Status
			}
			out = append(out, a)
		default:
			out = append(out, a)
		}
	}
	if extras != nil {
		out = append(out, extras)
	}
	if person != nil {
		out = append(out, rollbar.NewPersonContext(context.Background(), person))
	}
	return out
}

func personOf(me user.Me) *rollbar.Person {
	return &rollbar.Person{Id: me.ID, Username: me.FirstName + " " + me.LastName, Email: me.Email}
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.Me, *session.Session:
			// never print credentials
		case error:
			l.std.Printf("\t%+v", a)
		default:
			l.std.Printf("\t%v", a)
		}
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
