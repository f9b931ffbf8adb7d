package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projectsphere/identity-api/internal/api/metrics"
	"github.com/projectsphere/identity-api/internal/core/domain"
	"github.com/projectsphere/identity-api/internal/core/ports"
)

type PermissionHandler struct {
	permissionService ports.PermissionService
}

func NewPermissionHandler(permissionService ports.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissionService: permissionService}
}

// Grant adds permissions to the granted set.
//
// @Summary      Grant permissions
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Account id"
// @Param        body  body      permissionRequest  true  "Permission ids"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /accounts/{id}/permissions/grant [post]
func (h *PermissionHandler) Grant(c echo.Context) error {
	return h.mutate(c, "grant", h.permissionService.Grant)
}

// Restrict adds permissions to the restricted set.
//
// @Summary      Restrict permissions
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Account id"
// @Param        body  body      permissionRequest  true  "Permission ids"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /accounts/{id}/permissions/restrict [post]
func (h *PermissionHandler) Restrict(c echo.Context) error {
	return h.mutate(c, "restrict", h.permissionService.Restrict)
}

func (h *PermissionHandler) mutate(c echo.Context, op string, fn func(ctx context.Context, userID string, permissionIDs []string, grantedBy string) (*ports.PermissionDelta, error)) error {
	var req permissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	grantedBy, err := ctxUserID(c)
	if err != nil {
		return err
	}

	delta, err := fn(c.Request().Context(), c.Param("id"), req.PermissionIDs, grantedBy)
	if err != nil {
		metrics.PermissionMutationsTotal.WithLabelValues(op, mutationResult(err)).Inc()
		return err
	}
	metrics.PermissionMutationsTotal.WithLabelValues(op, "ok").Inc()

	return c.JSON(http.StatusOK, echo.Map{
		"applied": delta.Applied,
		"total":   delta.Total,
	})
}

// Revoke removes permissions from the granted or restricted set.
//
// @Summary      Revoke permissions
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                   true  "Account id"
// @Param        body  body      revokePermissionRequest  true  "Permission ids"
// @Success      200   {object}  map[string]any
// @Failure      404   {object}  map[string]string
// @Router       /accounts/{id}/permissions/revoke [post]
func (h *PermissionHandler) Revoke(c echo.Context) error {
	var req revokePermissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	grantedBy, err := ctxUserID(c)
	if err != nil {
		return err
	}

	result, err := h.permissionService.Revoke(c.Request().Context(), c.Param("id"), req.PermissionIDs, grantedBy, req.FromRestricted)
	if err != nil {
		metrics.PermissionMutationsTotal.WithLabelValues("revoke", mutationResult(err)).Inc()
		return err
	}
	metrics.PermissionMutationsTotal.WithLabelValues("revoke", "ok").Inc()

	return c.JSON(http.StatusOK, echo.Map{
		"revoked":   result.Revoked,
		"remaining": result.Remaining,
	})
}

func mutationResult(err error) string {
	if errors.Is(err, domain.ErrPermissionConflict) {
		return "conflict"
	}
	return "error"
}
