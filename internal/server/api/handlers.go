package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"mediavault/internal/server/access"
	"mediavault/internal/server/service"
	"mediavault/internal/server/storage"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LinkOpener resolves signed storage links to local files.
type LinkOpener interface {
	Open(key string, query url.Values) (filePath, filename string, err error)
}

// Services bundles the application services the handlers call.
type Services struct {
	Accounts   *service.AccountService
	Content    *service.ContentService
	Downloads  *service.DownloadService
	Social     *service.SocialService
	Moderation *service.ModerationService
}

// Handler contains the HTTP handlers for the media vault API.
type Handler struct {
	accounts   *service.AccountService
	content    *service.ContentService
	downloads  *service.DownloadService
	social     *service.SocialService
	moderation *service.ModerationService
	health     HealthChecker
	links      LinkOpener
}

// NewHandler creates a new handler. links may be nil when the storage
// backend serves its own URLs.
func NewHandler(svc Services, health HealthChecker, links LinkOpener) *Handler {
	return &Handler{
		accounts:   svc.Accounts,
		content:    svc.Content,
		downloads:  svc.Downloads,
		social:     svc.Social,
		moderation: svc.Moderation,
		health:     health,
		links:      links,
	}
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.health.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.content.Stats(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// HandleDownload handles POST /download/:id.
// Runs the download guard and returns a retrieval URL when allowed.
func (h *Handler) HandleDownload(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	res, err := h.downloads.AuthorizeDownload(c.Request().Context(), viewerFrom(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleQuota handles GET /api/downloads/quota.
func (h *Handler) HandleQuota(c echo.Context) error {
	q, err := h.downloads.Quota(c.Request().Context(), viewerFrom(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// HandleServeMedia handles GET /media/*.
// Serves a stored file behind a signed link as an attachment.
func (h *Handler) HandleServeMedia(c echo.Context) error {
	key, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	filePath, filename, err := h.links.Open(key, c.QueryParams())
	switch {
	case errors.Is(err, storage.ErrInvalidSignature), errors.Is(err, storage.ErrLinkExpired):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.Attachment(filePath, filename)
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var denial *access.Denial
	switch {
	case errors.As(err, &denial):
		return c.JSON(http.StatusForbidden, echo.Map{"error": denial.Reason})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	default:
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// paramID parses a UUID path parameter.
func paramID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", service.ErrInvalidInput, name)
	}
	return id, nil
}

// bind decodes the request body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: malformed request body", service.ErrInvalidInput)
	}
	return nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", service.ErrInvalidInput, name)
	}
	return n, nil
}

func formBool(c echo.Context, name string) bool {
	switch c.FormValue(name) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
