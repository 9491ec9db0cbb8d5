package api

import (
	"fmt"
	"net/http"

	"mediavault/internal/server/access"
	"mediavault/internal/server/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HandleFeed handles GET /api/feed.
func (h *Handler) HandleFeed(c echo.Context) error {
	feed, err := h.content.Feed(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, feed)
}

// HandleSearch handles GET /api/search?q=.
func (h *Handler) HandleSearch(c echo.Context) error {
	res, err := h.content.Search(c.Request().Context(), viewerFrom(c), c.QueryParam("q"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleListMedia handles GET /api/media.
// Query params: type, sort, date, q, page.
func (h *Handler) HandleListMedia(c echo.Context) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.content.ListMedia(c.Request().Context(), viewerFrom(c), service.MediaQuery{
		Type:  access.MediaType(c.QueryParam("type")),
		Sort:  c.QueryParam("sort"),
		Date:  c.QueryParam("date"),
		Query: c.QueryParam("q"),
		Page:  page,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleUpload handles POST /api/media.
// Accepts a multipart form with a "file" field and optional title,
// description, folder_id, relative_path and is_private fields.
func (h *Handler) HandleUpload(c echo.Context) error {
	// Read the uploaded file from the multipart form
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	in := service.UploadInput{
		Filename:     fileHeader.Filename,
		Title:        c.FormValue("title"),
		Description:  c.FormValue("description"),
		RelativePath: c.FormValue("relative_path"),
		IsPrivate:    formBool(c, "is_private"),
		Size:         fileHeader.Size,
		Body:         src,
	}
	if raw := c.FormValue("folder_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return mapServiceError(c, fmt.Errorf("%w: invalid folder_id", service.ErrInvalidInput))
		}
		in.FolderID = &id
	}

	m, err := h.content.UploadMedia(c.Request().Context(), viewerFrom(c), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// HandleGetMedia handles GET /api/media/:id.
func (h *Handler) HandleGetMedia(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	d, err := h.content.GetMedia(c.Request().Context(), viewerFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// HandleUpdateMedia handles PATCH /api/media/:id.
func (h *Handler) HandleUpdateMedia(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var req service.MediaUpdate
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	m, err := h.content.UpdateMedia(c.Request().Context(), viewerFrom(c), id, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// HandleDeleteMedia handles DELETE /api/media/:id.
func (h *Handler) HandleDeleteMedia(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := h.content.DeleteMedia(c.Request().Context(), viewerFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleMediaVisibility handles POST /api/media/:id/visibility/:action.
func (h *Handler) HandleMediaVisibility(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	m, err := h.content.SetMediaVisibility(c.Request().Context(), viewerFrom(c), id, c.Param("action"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// HandleBulkDelete handles POST /api/media/bulk-delete.
func (h *Handler) HandleBulkDelete(c echo.Context) error {
	var req service.BulkDeleteInput
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.content.BulkDelete(c.Request().Context(), viewerFrom(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleListFolders handles GET /api/folders?q=.
func (h *Handler) HandleListFolders(c echo.Context) error {
	folders, err := h.content.ListFolders(c.Request().Context(), viewerFrom(c), c.QueryParam("q"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"folders": folders})
}

// HandleCreateFolder handles POST /api/folders.
func (h *Handler) HandleCreateFolder(c echo.Context) error {
	var req service.FolderInput
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	f, err := h.content.CreateFolder(c.Request().Context(), viewerFrom(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// HandleGetFolder handles GET /api/folders/:id.
func (h *Handler) HandleGetFolder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	d, err := h.content.FolderDetail(c.Request().Context(), viewerFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// HandleUpdateFolder handles PATCH /api/folders/:id.
func (h *Handler) HandleUpdateFolder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var req service.FolderUpdate
	if err := bind(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	f, err := h.content.UpdateFolder(c.Request().Context(), viewerFrom(c), id, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// HandleDeleteFolder handles DELETE /api/folders/:id.
func (h *Handler) HandleDeleteFolder(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := h.content.DeleteFolder(c.Request().Context(), viewerFrom(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleFolderVisibility handles POST /api/folders/:id/visibility/:action.
func (h *Handler) HandleFolderVisibility(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	f, err := h.content.SetFolderVisibility(c.Request().Context(), viewerFrom(c), id, c.Param("action"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// HandleFolderCover handles POST /api/folders/:id/cover/:mediaId.
func (h *Handler) HandleFolderCover(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	mediaID, err := paramID(c, "mediaId")
	if err != nil {
		return mapServiceError(c, err)
	}
	f, err := h.content.SetFolderCover(c.Request().Context(), viewerFrom(c), id, mediaID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}
