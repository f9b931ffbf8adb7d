package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projectsphere/identity-api/internal/core/ports"
	"github.com/projectsphere/identity-api/internal/core/service"
)

// Fresh re-validates the authenticated credential against current store
// state. The access token embeds a fingerprint of the password hash current
// at issue time; a password change since then makes the fingerprint stale
// and the token is rejected without any revocation list. Locked and
// soft-deleted credentials are rejected the same way.
//
// Apply after Auth, on routes where freshness matters more than latency.
func Fresh(repo ports.CredentialRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get("user_id").(string)
			fp, _ := c.Get("pwd_fp").(string)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}

			cred, err := repo.FindByID(c.Request().Context(), userID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if cred.Locked || service.Fingerprint(cred.PasswordHash) != fp {
				return echo.NewHTTPError(http.StatusUnauthorized, "session no longer valid")
			}

			c.Set("credential", cred)
			return next(c)
		}
	}
}
