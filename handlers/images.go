package handlers

import (
	"net/http"
	"strings"

	"moodweaver-api/initializers"
	"moodweaver-api/store"
	"moodweaver-api/types"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// ImagesHandler exposes the standalone image collaborator surface:
// POST /upload-image and DELETE /delete-image/:key. The entry workflow
// uses the same storage underneath, so either path yields the same URLs.
type ImagesHandler struct {
	objects store.Objects
}

func NewImagesHandler(objects store.Objects) *ImagesHandler {
	return &ImagesHandler{objects: objects}
}

func (h *ImagesHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, initializers.Conf.MaxSize+1<<20)

	file, err := c.FormFile("image")
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, types.NewErrorResponse(types.ErrorCodeValidation, "image size exceeds the limit"))
			return
		}
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "image file is required"))
		return
	}

	sniff, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "cannot open uploaded image"))
		return
	}
	mt, detectErr := mimetype.DetectReader(sniff)
	_ = sniff.Close()
	if detectErr != nil || mt == nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "failed to detect image type"))
		return
	}
	contentType := strings.Split(mt.String(), ";")[0]
	if err := initializers.CheckImageAllowed(file.Size, contentType); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, err.Error()))
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "cannot open uploaded image"))
		return
	}
	defer src.Close()

	url, err := h.objects.Upload(c.Request.Context(), file.Filename, contentType, file.Size, src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, "image upload failed"))
		return
	}
	c.JSON(http.StatusCreated, types.NewSuccessResponse(gin.H{"imageUrl": url}))
}

func (h *ImagesHandler) DeleteImage(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" || strings.ContainsAny(key, "/\\") {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.ErrorCodeValidation, "invalid image key"))
		return
	}
	if err := h.objects.Delete(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.ErrorCodeInternal, "image delete failed"))
		return
	}
	c.Status(http.StatusNoContent)
}
