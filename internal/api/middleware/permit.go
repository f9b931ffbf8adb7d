package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projectsphere/identity-api/internal/core/domain"
)

// Permit enforces permission-based access control on the credential loaded
// by Fresh. A restriction always vetoes, even when the same id was somehow
// granted; absent either entry the permission is denied.
func Permit(permissionID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cred, _ := c.Get("credential").(*domain.Credential)
			if cred == nil {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			if cred.HasRestricted(permissionID) || !cred.HasGranted(permissionID) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
