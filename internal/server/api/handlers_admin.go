package api

import (
	"fmt"
	"net/http"

	"mediavault/internal/server/service"

	"github.com/labstack/echo/v4"
)

type messageRequest struct {
	Message string `json:"message"`
}

// HandleRequestUpload handles POST /api/upload-requests.
func (h *Handler) HandleRequestUpload(c echo.Context) error {
	var req messageRequest
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	if err := h.moderation.RequestUploadAccess(c.Request().Context(), viewerFrom(c), req.Message); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "upload request submitted"})
}

// HandleReportProblem handles POST /api/problems.
func (h *Handler) HandleReportProblem(c echo.Context) error {
	var req messageRequest
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	if err := h.moderation.ReportProblem(c.Request().Context(), viewerFrom(c), req.Message); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "problem reported"})
}

// HandleDashboard handles GET /api/admin/dashboard.
func (h *Handler) HandleDashboard(c echo.Context) error {
	d, err := h.moderation.Dashboard(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// HandleAdminUsers handles GET /api/admin/users.
func (h *Handler) HandleAdminUsers(c echo.Context) error {
	users, err := h.moderation.ListUsers(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// HandleAdminUpdateUser handles PATCH /api/admin/users/:id.
func (h *Handler) HandleAdminUpdateUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var req service.AdminUserUpdate
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	a, err := h.moderation.AdminUpdateUser(c.Request().Context(), viewerFrom(c), id, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// HandleAdminMedia handles GET /api/admin/media.
func (h *Handler) HandleAdminMedia(c echo.Context) error {
	media, err := h.moderation.ListAllMedia(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"media": media})
}

// HandleAdminUploadRequests handles GET /api/admin/upload-requests.
func (h *Handler) HandleAdminUploadRequests(c echo.Context) error {
	reqs, err := h.moderation.ListUploadRequests(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reqs)
}

// HandleProcessUploadRequest handles POST /api/admin/upload-requests/:id/:action.
// action is approve or reject.
func (h *Handler) HandleProcessUploadRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	var approve bool
	switch action := c.Param("action"); action {
	case "approve":
		approve = true
	case "reject":
	default:
		return mapServiceError(c, fmt.Errorf("%w: unknown action %q", service.ErrInvalidInput, action))
	}

	if err := h.moderation.ProcessUploadRequest(c.Request().Context(), viewerFrom(c), id, approve); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"approved": approve})
}

// HandleAdminProblems handles GET /api/admin/problems.
func (h *Handler) HandleAdminProblems(c echo.Context) error {
	problems, err := h.moderation.ListProblems(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"problems": problems})
}

// HandleResolveProblem handles POST /api/admin/problems/:id/resolve.
func (h *Handler) HandleResolveProblem(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := h.moderation.ResolveProblem(c.Request().Context(), viewerFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resolved": true})
}
