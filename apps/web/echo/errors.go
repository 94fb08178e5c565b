package echoweb

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/form"
	"github.com/trezcool/masomo/portal/core/quiz"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/table"
)

// conflicts are the errors of requests that raced with the user's own
// earlier requests; they are reported as 409.
var conflicts = []error{
	enrollment.ErrBusy,
	enrollment.ErrInvalidTransition,
	enrollment.ErrOrderMismatch,
	enrollment.ErrCheckoutExpired,
	table.ErrNotDisplayed,
	form.ErrSubmitted,
	quiz.ErrNotInProgress,
	quiz.ErrSubmitted,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler rendering errors as toasts:
// JSON {toast, fields} for XHR requests, an error page otherwise.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code   int
			msg    string
			fields map[string]string
		)
		sess, _ := session.FromContext(ctx.Request().Context())

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			msg = http.StatusText(code)
			if m, ok := origErr.Message.(string); ok {
				msg = m
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fields[vErr.Field()] = vErr.Error()
			}
			msg = "Please correct the errors below."
		case *core.ValidationError:
			code = http.StatusBadRequest
			fields = fieldMap(origErr)
			msg = origErr.Error()
		case *core.APIError:
			// backend 4xx are the user's; anything else is a bad gateway
			code = origErr.Status
			if code < http.StatusBadRequest || code >= http.StatusInternalServerError {
				code = http.StatusBadGateway
				logger.Error("backend error", err, sess)
			}
			msg = origErr.Error()
		default:
			switch {
			case cause == table.ErrSuperseded:
				// a newer request already answered; nothing to show
				if !ctx.Response().Committed {
					_ = ctx.NoContent(http.StatusNoContent)
				}
				return
			case cause == session.ErrUnauthenticated, cause == session.ErrTokenExpired:
				if !isXHR(ctx) && !ctx.Response().Committed {
					if cause == session.ErrTokenExpired {
						setFlash(ctx, "info", "Your session has expired, please log in again.")
					}
					_ = ctx.Redirect(http.StatusSeeOther, "/login")
					return
				}
				code = http.StatusUnauthorized
				msg = cause.Error()
			case cause == quiz.ErrNoCredentials:
				code = http.StatusUnauthorized
				msg = cause.Error()
			case cause == session.ErrForbidden:
				code = http.StatusForbidden
				msg = cause.Error()
			case cause == enrollment.ErrCashNotAccepted, cause == table.ErrUnknownOption, cause == table.ErrInvalidPage,
				cause == quiz.ErrUnknownQuestion, cause == quiz.ErrInvalidChoice:
				code = http.StatusBadRequest
				msg = cause.Error()
			case cause == table.ErrBrokenPage:
				code = http.StatusBadGateway
				msg = cause.Error()
				logger.Error("backend error", err, sess)
			case isConflict(cause):
				code = http.StatusConflict
				msg = cause.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg = http.StatusText(code)
				logger.Error(msg, errors.Wrap(err, msg), sess)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			msg = err.Error()
		}

		if ctx.Response().Committed {
			return
		}
		toast := Toast{Kind: "error", Message: msg}
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else if isXHR(ctx) {
			err = ctx.JSON(code, echo.Map{"toast": toast, "fields": fields})
		} else {
			p := newPage(ctx, http.StatusText(code), msg)
			p.Toast = &toast
			p.Fields = fields
			err = ctx.Render(code, "error", p)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func isConflict(cause error) bool {
	for _, c := range conflicts {
		if cause == c {
			return true
		}
	}
	return false
}
