package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moodweaver-api/pkg/insights"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	ins       *insights.Insights
	err       error
	gotText   string
	gotType   string
	callCount int
}

func (s *stubAnalyzer) Analyze(_ context.Context, content, entryType string) (*insights.Insights, error) {
	s.callCount++
	s.gotText = content
	s.gotType = entryType
	if s.err != nil {
		return nil, s.err
	}
	return s.ins, nil
}

func analyzeRouter(a insights.Analyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/analyze-entry", NewAnalyzeHandler(a).AnalyzeEntry)
	return r
}

func TestAnalyzeEntryReturnsInsightJSON(t *testing.T) {
	stub := &stubAnalyzer{ins: &insights.Insights{
		Title:             "Quiet Morning",
		Greeting:          "Hello there!",
		Observations:      "You noticed small things today.",
		SentimentAnalysis: "Calm and content.",
		ReflectivePrompt:  "What would you repeat tomorrow?",
	}}
	r := analyzeRouter(stub)

	body := `{"entryContent":"coffee on the porch","entryType":"text"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze-entry", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Quiet Morning", got["aiTitle"])
	assert.Equal(t, "What would you repeat tomorrow?", got["aiReflectivePrompt"])
	assert.Equal(t, "coffee on the porch", stub.gotText)
	assert.Equal(t, "text", stub.gotType)
}

func TestAnalyzeEntryFailureYieldsErrorField(t *testing.T) {
	stub := &stubAnalyzer{err: errors.New("model returned status 429: rate limited")}
	r := analyzeRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze-entry", strings.NewReader(`{"entryContent":"x","entryType":"list"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got["error"], "rate limited")
}

func TestAnalyzeEntryRejectsEmptyContent(t *testing.T) {
	stub := &stubAnalyzer{}
	r := analyzeRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze-entry", strings.NewReader(`{"entryContent":"  ","entryType":"text"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, stub.callCount, "no model call for empty content")
}

func TestAnalyzeEntryNormalizesUnknownType(t *testing.T) {
	stub := &stubAnalyzer{ins: &insights.Insights{Title: "T"}}
	r := analyzeRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze-entry", strings.NewReader(`{"entryContent":"x","entryType":"checklist"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text", stub.gotType)
}
