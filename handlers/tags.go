package handlers

import (
	"net/http"

	"moodweaver-api/models"
	"moodweaver-api/repository"
	"moodweaver-api/store"
	"moodweaver-api/types"

	"github.com/gin-gonic/gin"
)

type TagsHandler struct {
	workflow *store.Workflow
	entries  *repository.EntriesRepository
	tags     *repository.TagsRepository
}

func NewTagsHandler(workflow *store.Workflow, entries *repository.EntriesRepository, tags *repository.TagsRepository) *TagsHandler {
	return &TagsHandler{workflow: workflow, entries: entries, tags: tags}
}

// GetTags returns the tag-picker contents: built-in defaults, tags in use
// on any of the user's entries, and explicitly saved tags, sorted.
func (h *TagsHandler) GetTags(c *gin.Context) {
	userID := c.GetInt("userId")
	entries, err := h.entries.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	saved, err := h.tags.ListAvailableTags(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusOK, types.NewSuccessResponse(gin.H{
		"tags": store.AvailableTagUnion(entries, saved),
	}))
}

// AddTag saves a tag for later reuse. Safe to call repeatedly with the
// same name; the normalized name is the identity.
func (h *TagsHandler) AddTag(c *gin.Context) {
	userID := c.GetInt("userId")
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, err.Error()))
		return
	}
	if models.NormalizeTag(req.Name) == "" {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "tag name is empty"))
		return
	}
	name, err := h.workflow.AddAvailableTag(c.Request.Context(), userID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, types.NewSuccessResponse(gin.H{"name": name}))
}
