package api

import (
	"net/http"

	"mediavault/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HandleFollow handles POST /api/social/follow/:id.
// Toggles following; private accounts receive a request instead.
func (h *Handler) HandleFollow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	state, err := h.social.ToggleFollow(c.Request().Context(), viewerFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": state})
}

// HandleAcceptFollow handles POST /api/social/follow/accept/:id.
func (h *Handler) HandleAcceptFollow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := h.social.AcceptFollow(c.Request().Context(), viewerFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": service.FollowStateFollowing})
}

// HandleRejectFollow handles POST /api/social/follow/reject/:id.
func (h *Handler) HandleRejectFollow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := h.social.RejectFollow(c.Request().Context(), viewerFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleLike handles POST /api/social/like/:id.
func (h *Handler) HandleLike(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.social.ToggleLike(c.Request().Context(), viewerFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": res.Active, "likes_count": res.LikesCount})
}

// HandleFavorite handles POST /api/social/favorite/:id.
func (h *Handler) HandleFavorite(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.social.ToggleFavorite(c.Request().Context(), viewerFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"favorited": res.Active})
}

// HandleListReviews handles GET /api/social/reviews/:id.
func (h *Handler) HandleListReviews(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	reviews, err := h.social.ListReviews(c.Request().Context(), viewerFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": reviews})
}

// HandleCreateReview handles POST /api/social/reviews/:id.
func (h *Handler) HandleCreateReview(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var req service.ReviewInput
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	rv, err := h.social.CreateReview(c.Request().Context(), viewerFrom(c), id, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, rv)
}

// HandleNotifications handles GET /api/social/notifications?unread=true.
func (h *Handler) HandleNotifications(c echo.Context) error {
	notes, err := h.social.Notifications(c.Request().Context(), viewerFrom(c), c.QueryParam("unread") == "true")
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": notes})
}

// HandleReadAll handles POST /api/social/notifications/read-all.
func (h *Handler) HandleReadAll(c echo.Context) error {
	n, err := h.social.MarkAllRead(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n})
}
