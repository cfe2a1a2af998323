package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/pkg/tokens"
)

const (
	HeaderAccessToken = "x-access-token"

	ctxUserID = "user_id"
	ctxRole   = "role"
)

type AuthMiddleware struct {
	JWTSecret []byte
}

func NewAuthMiddleware(secret []byte) *AuthMiddleware {
	return &AuthMiddleware{JWTSecret: secret}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireRole("admin")(next)
}

func (m *AuthMiddleware) RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
			if !slices.Contains(allowed, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return nil
		})
	}
}

// OptionalAuth sets the caller identity when a valid token is present and
// lets anonymous requests through untouched.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := TokenFromRequest(c.Request())
		if raw == "" {
			return next(c)
		}
		if claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret); err == nil {
			if id, err := claims.UserID(); err == nil {
				setUserContext(c, id, claims.Role)
			}
		}
		return next(c)
	}
}

func (m *AuthMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := TokenFromRequest(c.Request())
		if raw == "" {
			return echo.NewHTTPError(http.StatusForbidden, "no token provided")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		id, err := claims.UserID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		if validator != nil {
			if err := validator(claims); err != nil {
				return err
			}
		}

		setUserContext(c, id, claims.Role)
		return next(c)
	}
}

func TokenFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderAccessToken)); v != "" {
		return v
	}
	h := r.Header.Get(echo.HeaderAuthorization)
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(tok)
	}
	return ""
}

func setUserContext(c echo.Context, id uint, role string) {
	c.Set(ctxUserID, id)
	c.Set(ctxRole, role)
}

func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ctxUserID).(uint)
	return id, ok && id != 0
}

func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}
