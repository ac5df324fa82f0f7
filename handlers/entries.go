package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"moodweaver-api/initializers"
	"moodweaver-api/models"
	"moodweaver-api/repository"
	"moodweaver-api/store"
	"moodweaver-api/types"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

type EntriesHandler struct {
	workflow *store.Workflow
	entries  *repository.EntriesRepository
	tags     *repository.TagsRepository
}

func NewEntriesHandler(workflow *store.Workflow, entries *repository.EntriesRepository, tags *repository.TagsRepository) *EntriesHandler {
	return &EntriesHandler{workflow: workflow, entries: entries, tags: tags}
}

// GetEntries lists the user's entries with the active tag filter (AND) and
// free-text search (OR) applied. Filtering runs over the full snapshot in
// memory with the same pure function the live sync sessions use.
func (h *EntriesHandler) GetEntries(c *gin.Context) {
	userID := c.GetInt("userId")

	all, err := h.entries.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	saved, err := h.tags.ListAvailableTags(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}

	filterTags := models.NormalizeTags(c.QueryArray("tags"))
	search := c.Query("search")
	visible := store.FilterEntries(all, filterTags, search)

	c.JSON(http.StatusOK, types.NewSuccessResponse(gin.H{
		"entries":       visible,
		"total":         len(visible),
		"availableTags": store.AvailableTagUnion(all, saved),
	}))
}

func (h *EntriesHandler) GetEntry(c *gin.Context) {
	userID := c.GetInt("userId")
	entry, err := h.entries.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.ErrorCodeNotFound, "Entry not found"))
		return
	}
	c.JSON(http.StatusOK, types.NewSuccessResponse(entry))
}

// CreateEntry accepts either a JSON body or a multipart form with an
// `entry` JSON field plus an optional `image` file. The entry document
// write decides success; image upload trouble comes back as a warning.
func (h *EntriesHandler) CreateEntry(c *gin.Context) {
	userID := c.GetInt("userId")

	var draft models.EntryDraft
	var image *store.ImageUpload
	if isJSONRequest(c) {
		if err := c.ShouldBindJSON(&draft); err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, err.Error()))
			return
		}
	} else {
		if err := json.Unmarshal([]byte(c.PostForm("entry")), &draft); err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "entry field must hold valid JSON"))
			return
		}
		var ok bool
		image, ok = h.readImage(c)
		if !ok {
			return
		}
	}
	if draft.EntryType != models.EntryTypeText && draft.EntryType != models.EntryTypeList {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "entryType must be \"text\" or \"list\""))
		return
	}

	entry, warnings, err := h.workflow.Create(c.Request.Context(), userID, draft, image)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, types.NewSuccessResponseWithWarnings(entry, warnings))
}

type entryPatchRequest struct {
	models.EntryPatch
	RemoveImage bool `json:"removeImage"`
}

// UpdateEntry touches only the fields provided in the patch. Image
// precedence: a new upload wins, then an explicit removal, then keep.
func (h *EntriesHandler) UpdateEntry(c *gin.Context) {
	userID := c.GetInt("userId")
	id := c.Param("id")

	var req entryPatchRequest
	var image *store.ImageUpload
	if isJSONRequest(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, err.Error()))
			return
		}
	} else {
		if err := json.Unmarshal([]byte(c.PostForm("entry")), &req); err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "entry field must hold valid JSON"))
			return
		}
		var ok bool
		image, ok = h.readImage(c)
		if !ok {
			return
		}
	}
	if req.EntryType != nil && *req.EntryType != models.EntryTypeText && *req.EntryType != models.EntryTypeList {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "entryType must be \"text\" or \"list\""))
		return
	}

	entry, warnings, err := h.workflow.Update(c.Request.Context(), userID, id, req.EntryPatch, image, req.RemoveImage)
	if errors.Is(err, store.ErrEntryNotFound) {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.ErrorCodeNotFound, "Entry not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, types.NewSuccessResponseWithWarnings(entry, warnings))
}

func (h *EntriesHandler) DeleteEntry(c *gin.Context) {
	userID := c.GetInt("userId")
	warnings, err := h.workflow.Delete(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, store.ErrEntryNotFound) {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.ErrorCodeNotFound, "Entry not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	if len(warnings) > 0 {
		c.JSON(http.StatusOK, types.NewSuccessResponseWithWarnings(nil, warnings))
		return
	}
	c.Status(http.StatusNoContent)
}

// AnalyzeEntry re-runs AI enrichment for one entry and returns the updated
// document. A failed analysis is still a 200: the failure is persisted on
// the entry as aiError.
func (h *EntriesHandler) AnalyzeEntry(c *gin.Context) {
	userID := c.GetInt("userId")
	entry, err := h.workflow.Enrich(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, store.ErrEntryNotFound) {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.ErrorCodeNotFound, "Entry not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, types.NewSuccessResponse(entry))
}

func isJSONRequest(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// readImage pulls the optional image file out of a multipart form and
// validates it against the upload policy. The bool is false when a
// response has already been written.
func (h *EntriesHandler) readImage(c *gin.Context) (*store.ImageUpload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, initializers.Conf.MaxSize+1<<20)
	file, err := c.FormFile("image")
	if err == http.ErrMissingFile || err == multipart.ErrMessageTooLarge {
		if err == multipart.ErrMessageTooLarge {
			c.JSON(http.StatusRequestEntityTooLarge, types.NewErrorResponse(types.ErrorCodeValidation, "image size exceeds the limit"))
			return nil, false
		}
		return nil, true
	}
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, types.NewErrorResponse(types.ErrorCodeValidation, "image size exceeds the limit"))
			return nil, false
		}
		// No file attached at all is fine; the entry just has no image.
		return nil, true
	}

	contentType, err := sniffImageType(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, err.Error()))
		return nil, false
	}
	if err := initializers.CheckImageAllowed(file.Size, contentType); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, err.Error()))
		return nil, false
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "cannot open uploaded image"))
		return nil, false
	}
	// The reader is consumed by the storage upload; minio closes nothing,
	// so the request lifecycle owns it. gin frees multipart temp files
	// after the handler returns.
	return &store.ImageUpload{
		Name:        file.Filename,
		ContentType: contentType,
		Size:        file.Size,
		Reader:      src,
	}, true
}

// sniffImageType detects the real MIME type from file content rather than
// trusting the client-supplied header.
func sniffImageType(file *multipart.FileHeader) (string, error) {
	sniff, err := file.Open()
	if err != nil {
		return "", errors.New("cannot open uploaded image")
	}
	defer sniff.Close()
	mt, err := mimetype.DetectReader(sniff)
	if err != nil || mt == nil {
		return "", errors.New("failed to detect image type")
	}
	return strings.Split(mt.String(), ";")[0], nil
}
