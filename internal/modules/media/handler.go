package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mediastore/internal/clients"
	"mediastore/internal/domain"
	"mediastore/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	g := protected.Group("/media")
	{
		g.POST("/upload", h.Upload)
		g.GET("", h.List)
		g.GET("/images", h.listByType(domain.CategoryImage))
		g.GET("/videos", h.listByType(domain.CategoryVideo))
		g.GET("/audio", h.listByType(domain.CategoryAudio))
		g.GET("/documents", h.listByType(domain.CategoryDocument))
		g.GET("/count", h.Count)
		g.GET("/public-url", h.PublicURL)
		g.GET("/content/*key", h.Content)
		g.GET("/:id", h.GetByID)
		g.DELETE("/:id", h.Delete)
		g.DELETE("/:id/purge", h.Purge)
	}
}

// Upload godoc
// @Summary Upload a media file
// @Description Stores the file, mirrors it to WhatsApp on a best-effort basis and persists the record
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Success 201 {object} map[string]interface{} "Uploaded media record"
// @Failure 400 {object} map[string]string "Missing file, bad filename or unsupported type"
// @Failure 413 {object} map[string]string "File exceeds the size or quota limit"
// @Failure 503 {object} map[string]string "Quota service unavailable"
// @Router /media/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	userID, orgID, ok := h.identity(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "NO_FILE", "File is required")
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "UNREADABLE_FILE", "Failed to open uploaded file")
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "READ_FAILED", "Failed to read uploaded file")
		return
	}

	resp, err := h.service.Upload(c.Request.Context(), UploadInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Content:     content,
		UserID:      userID,
		OrgID:       orgID,
	})
	if err != nil {
		h.uploadError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmptyFile):
		response.Error(c, http.StatusBadRequest, "EMPTY_FILE", "Uploaded file is empty")
	case errors.Is(err, ErrMissingContentType):
		response.Error(c, http.StatusBadRequest, "NO_CONTENT_TYPE", "Content type is required")
	case errors.Is(err, ErrInvalidFilename):
		response.Error(c, http.StatusBadRequest, "INVALID_FILENAME", "Filename contains forbidden characters")
	case errors.Is(err, ErrUnsupportedMediaType):
		response.Error(c, http.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE", "File type is not allowed")
	case errors.Is(err, ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the size limit for its type")
	case errors.Is(err, ErrQuotaExceeded):
		response.Error(c, http.StatusRequestEntityTooLarge, "QUOTA_EXCEEDED", "Organisation storage quota exceeded")
	case errors.Is(err, clients.ErrServiceUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "QUOTA_CHECK_UNAVAILABLE", "Storage quota could not be verified")
	default:
		response.Error(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store uploaded file")
	}
}

// List godoc
// @Summary List uploaded media
// @Description Returns one page of the caller's media, newest first
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number, starting at 1"
// @Param page_size query int false "Items per page, capped at 100"
// @Param type query string false "Filter by category (IMAGE, VIDEO, AUDIO, DOCUMENT)"
// @Success 200 {object} map[string]interface{} "Paged media list"
// @Router /media [get]
func (h *Handler) List(c *gin.Context) {
	userID, _, ok := h.identity(c)
	if !ok {
		return
	}

	var category *domain.MediaCategory
	if raw := c.Query("type"); raw != "" {
		cat, err := domain.ParseMediaCategory(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_TYPE", "Unknown media type filter")
			return
		}
		category = &cat
	}

	h.respondPage(c, userID, category)
}

func (h *Handler) listByType(category domain.MediaCategory) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := h.identity(c)
		if !ok {
			return
		}
		h.respondPage(c, userID, &category)
	}
}

func (h *Handler) respondPage(c *gin.Context, userID int64, category *domain.MediaCategory) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	result, err := h.service.List(c.Request.Context(), userID, category, page, pageSize)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to list media")
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Count godoc
// @Summary Count uploaded media
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param type query string false "Filter by category"
// @Success 200 {object} map[string]interface{} "Media count"
// @Router /media/count [get]
func (h *Handler) Count(c *gin.Context) {
	userID, _, ok := h.identity(c)
	if !ok {
		return
	}

	var category *domain.MediaCategory
	if raw := c.Query("type"); raw != "" {
		cat, err := domain.ParseMediaCategory(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_TYPE", "Unknown media type filter")
			return
		}
		category = &cat
	}

	count, err := h.service.Count(c.Request.Context(), userID, category)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to count media")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// GetByID godoc
// @Summary Get one media record
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param id path int64 true "Media ID"
// @Success 200 {object} map[string]interface{} "Media record"
// @Failure 404 {object} map[string]string "Media not found"
// @Router /media/{id} [get]
func (h *Handler) GetByID(c *gin.Context) {
	if _, _, ok := h.identity(c); !ok {
		return
	}

	id, ok := h.pathID(c)
	if !ok {
		return
	}

	item, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Media not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get media")
		return
	}
	response.Success(c, http.StatusOK, item)
}

// Content godoc
// @Summary Stream stored media content
// @Tags media
// @Produce octet-stream
// @Security BearerAuth
// @Param key path string true "Storage key"
// @Success 200 {file} binary "Raw file content"
// @Failure 404 {object} map[string]string "Media not found"
// @Router /media/content/{key} [get]
func (h *Handler) Content(c *gin.Context) {
	if _, _, ok := h.identity(c); !ok {
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.Error(c, http.StatusBadRequest, "INVALID_KEY", "Storage key is required")
		return
	}

	rc, m, err := h.service.OpenContent(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Media not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to read media content")
		return
	}
	defer rc.Close()

	disposition := fmt.Sprintf("inline; filename=%q", m.OriginalFilename)
	c.DataFromReader(http.StatusOK, m.FileSize, m.MimeType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

// PublicURL godoc
// @Summary Resolve a public URL for a stored object
// @Description With expiry_seconds > 0 returns a signed URL where the backend supports it, otherwise a static one
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param storage_key query string true "Storage key"
// @Param expiry_seconds query int false "Signed URL lifetime in seconds"
// @Success 200 {object} map[string]interface{} "Resolved URL"
// @Router /media/public-url [get]
func (h *Handler) PublicURL(c *gin.Context) {
	if _, _, ok := h.identity(c); !ok {
		return
	}

	key := c.Query("storage_key")
	if key == "" {
		response.Error(c, http.StatusBadRequest, "INVALID_KEY", "storage_key is required")
		return
	}

	expirySeconds, err := strconv.Atoi(c.DefaultQuery("expiry_seconds", "0"))
	if err != nil || expirySeconds < 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_EXPIRY", "expiry_seconds must be a non-negative integer")
		return
	}

	url, err := h.service.PublicURL(c.Request.Context(), key, time.Duration(expirySeconds)*time.Second)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "URL_FAILED", "Failed to generate URL")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url, "expiry_seconds": expirySeconds})
}

// Delete godoc
// @Summary Soft delete a media record
// @Description Marks the record deleted; the stored object is kept
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param id path int64 true "Media ID"
// @Success 200 {object} map[string]interface{} "Deleted"
// @Failure 403 {object} map[string]string "Media belongs to another user"
// @Failure 404 {object} map[string]string "Media not found"
// @Router /media/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _, ok := h.identity(c)
	if !ok {
		return
	}

	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.service.SoftDelete(c.Request.Context(), id, userID); err != nil {
		h.deleteError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// Purge godoc
// @Summary Permanently delete a media record and its stored object
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param id path int64 true "Media ID"
// @Success 200 {object} map[string]interface{} "Purged"
// @Failure 403 {object} map[string]string "Media belongs to another user"
// @Failure 404 {object} map[string]string "Media not found"
// @Router /media/{id}/purge [delete]
func (h *Handler) Purge(c *gin.Context) {
	userID, _, ok := h.identity(c)
	if !ok {
		return
	}

	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.service.Purge(c.Request.Context(), id, userID); err != nil {
		h.deleteError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "purged": true})
}

func (h *Handler) deleteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMediaNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Media not found")
	case errors.Is(err, ErrNotOwner):
		response.Error(c, http.StatusForbidden, "NOT_OWNER", "Media belongs to another user")
	default:
		response.Error(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete media")
	}
}

func (h *Handler) identity(c *gin.Context) (userID, orgID int64, ok bool) {
	userID = c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return 0, 0, false
	}
	orgID = c.GetInt64("org_id")
	return userID, orgID, true
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid media ID")
		return 0, false
	}
	return id, true
}
