package middleware // middleware provides shared request processing for handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-forum/internal/auth"
)

// subjectKey is the context key the authenticated subject is stored under.
const subjectKey = "subject"

// tokenKey is the context key the raw bearer token is stored under, so
// logout can revoke the exact token that authenticated the request.
const tokenKey = "token"

// Identity is the interceptor every request passes before handler
// dispatch. When a bearer token is present it is validated through the
// Authority; the resolved subject lands in the request context. Semantic
// failures terminate the request, transient cache/store failures surface
// as 503 so clients retry instead of being logged out. Requests without a
// token pass through unauthenticated; RequireUser gates the routes that
// need one.
func Identity(authority *auth.Authority) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return next(c)
			}
			token := strings.TrimPrefix(header, "Bearer ")

			subj, err := authority.Validate(c.Request().Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrBlocked):
					return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
				case errors.Is(err, auth.ErrCacheUnavailable), errors.Is(err, auth.ErrStoreUnavailable):
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
				case errors.Is(err, auth.ErrExpiredToken):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
				default:
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
			}
			c.Set(subjectKey, subj)
			c.Set(tokenKey, token)
			return next(c)
		}
	}
}

// RequireUser rejects requests that carry no authenticated subject.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentSubject(c) == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			return next(c)
		}
	}
}

// RequireCapability enforces a capability bit on the authenticated
// subject; ownership overrides do not apply here, handlers call
// auth.Authorize themselves when a target is involved.
func RequireCapability(want auth.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			subj := CurrentSubject(c)
			if subj == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !subj.Capabilities().Has(want) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// CurrentSubject returns the authenticated subject, or nil.
func CurrentSubject(c echo.Context) auth.Subject {
	if s, ok := c.Get(subjectKey).(auth.Subject); ok {
		return s
	}
	return nil
}

// CurrentToken returns the bearer token that authenticated the request.
func CurrentToken(c echo.Context) string {
	if t, ok := c.Get(tokenKey).(string); ok {
		return t
	}
	return ""
}
