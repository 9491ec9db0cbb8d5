package api

import (
	"net/http"

	"mediavault/internal/server/service"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

// HandleRegister handles POST /api/auth/register.
func (h *Handler) HandleRegister(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// HandleLogin handles POST /api/auth/login.
// The login field accepts a username or an email address.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.accounts.Login(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleMe handles GET /api/me.
func (h *Handler) HandleMe(c echo.Context) error {
	me, err := h.accounts.Me(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, me)
}

// HandleUpdateMe handles PATCH /api/me.
func (h *Handler) HandleUpdateMe(c echo.Context) error {
	var req service.ProfileUpdate
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	me, err := h.accounts.UpdateProfile(c.Request().Context(), viewerFrom(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, me)
}

// HandleDeleteMe handles DELETE /api/me.
func (h *Handler) HandleDeleteMe(c echo.Context) error {
	if err := h.accounts.DeleteAccount(c.Request().Context(), viewerFrom(c)); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleTogglePrivacy handles POST /api/me/privacy.
func (h *Handler) HandleTogglePrivacy(c echo.Context) error {
	var req passwordRequest
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	private, err := h.accounts.TogglePrivacy(c.Request().Context(), viewerFrom(c), req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"is_private": private})
}

// HandleUpdateUsername handles POST /api/me/username.
func (h *Handler) HandleUpdateUsername(c echo.Context) error {
	var req usernameRequest
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	me, err := h.accounts.UpdateUsername(c.Request().Context(), viewerFrom(c), req.Username)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, me)
}

// HandleSearchUsers handles GET /api/users/search?q=.
func (h *Handler) HandleSearchUsers(c echo.Context) error {
	users, err := h.accounts.SearchUsers(c.Request().Context(), viewerFrom(c), c.QueryParam("q"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// HandleProfile handles GET /api/users/:username.
func (h *Handler) HandleProfile(c echo.Context) error {
	p, err := h.accounts.Profile(c.Request().Context(), viewerFrom(c), c.Param("username"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
