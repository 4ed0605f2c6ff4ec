package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// adminMiddleware only lets admins having any of roles through (any admin when roles is empty).
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return claimsMiddleware(func(ctx echo.Context, claims Claims) bool {
		return claims.IsAdmin && contextHasAnyRole(ctx, roles)
	})
}

func teacherOrAdminMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(func(_ echo.Context, claims Claims) bool {
		return claims.IsTeacher || claims.IsAdmin
	})
}

func studentMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(func(_ echo.Context, claims Claims) bool {
		return claims.IsStudent
	})
}

func claimsMiddleware(allowed func(ctx echo.Context, claims Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(ctx, claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
