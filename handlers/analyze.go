package handlers

import (
	"net/http"
	"strings"

	"moodweaver-api/models"
	"moodweaver-api/pkg/insights"

	"github.com/gin-gonic/gin"
)

// AnalyzeHandler is the minimal AI-analysis collaborator surface:
// POST /analyze-entry proxies entry text to the generative model and
// returns parsed insight JSON. It holds no state of its own; the wire
// format is fixed (insight fields, or an "error" field on failure) so the
// handler answers raw JSON rather than the usual envelope.
type AnalyzeHandler struct {
	analyzer insights.Analyzer
}

func NewAnalyzeHandler(analyzer insights.Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer}
}

func (h *AnalyzeHandler) AnalyzeEntry(c *gin.Context) {
	var req struct {
		EntryContent string `json:"entryContent"`
		EntryType    string `json:"entryType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with entryContent and entryType"})
		return
	}
	if strings.TrimSpace(req.EntryContent) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entryContent is empty"})
		return
	}
	entryType := req.EntryType
	if entryType != models.EntryTypeList {
		entryType = models.EntryTypeText
	}

	ins, err := h.analyzer.Analyze(c.Request.Context(), req.EntryContent, entryType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ins)
}
