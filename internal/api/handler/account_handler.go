package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/projectsphere/identity-api/internal/core/ports"
)

type AccountHandler struct {
	accountService ports.AccountService
}

func NewAccountHandler(accountService ports.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// Provision creates an invited account (or re-activates a soft-deleted one)
// and emails a set-password link.
//
// @Summary      Provision an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      provisionRequest  true  "Account details"
// @Success      201   {object}  map[string]any
// @Failure      409   {object}  map[string]string
// @Router       /accounts [post]
func (h *AccountHandler) Provision(c echo.Context) error {
	var req provisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	createdBy, err := ctxUserID(c)
	if err != nil {
		return err
	}

	cred, err := h.accountService.Provision(c.Request().Context(), ports.ProvisionInput{
		Email:     req.Email,
		UserName:  req.Username,
		CreatedBy: createdBy,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":     cred.ID,
		"email":  cred.Email,
		"status": cred.Status,
	})
}

// Delete soft-deletes an account, freeing its email for reuse.
//
// @Summary      Delete an account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  messageResponse
// @Failure      404  {object}  map[string]string
// @Router       /accounts/{id} [delete]
func (h *AccountHandler) Delete(c echo.Context) error {
	userID := c.Param("id")
	if err := h.accountService.Delete(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "account deleted"})
}

// ChangeStatus flips an account between ACTIVE and INACTIVE.
//
// @Summary      Change account status
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Account id"
// @Param        body  body      changeStatusRequest  true  "New status"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /accounts/{id}/status [patch]
func (h *AccountHandler) ChangeStatus(c echo.Context) error {
	var req changeStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	userID := c.Param("id")
	if err := h.accountService.ChangeStatus(c.Request().Context(), userID, req.Status); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "status updated"})
}

// Unlock clears a lockout so the account can log in again.
//
// @Summary      Unlock a locked account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  messageResponse
// @Failure      404  {object}  map[string]string
// @Router       /accounts/{id}/unlock [post]
func (h *AccountHandler) Unlock(c echo.Context) error {
	userID := c.Param("id")
	if err := h.accountService.Unlock(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "account unlocked"})
}

// Get returns a single account.
//
// @Summary      Get an account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  domain.Credential
// @Failure      404  {object}  map[string]string
// @Router       /accounts/{id} [get]
func (h *AccountHandler) Get(c echo.Context) error {
	cred, err := h.accountService.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cred)
}
