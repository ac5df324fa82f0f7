package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultChatModel = "gpt-4o-mini"

// Generator produces insights by prompting an OpenAI-compatible
// chat-completions API. It implements Analyzer so single-process
// deployments can skip the HTTP hop through the analyze service.
type Generator struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// NewGeneratorFromEnv reads OPENAI_API_KEY, OPENAI_BASE_URL, and
// OPENAI_CHAT_MODEL. The API key is required.
func NewGeneratorFromEnv() (*Generator, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_CHAT_MODEL"))
	if model == "" {
		model = defaultChatModel
	}
	return &Generator{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}, nil
}

const systemPrompt = `You are a warm, thoughtful journaling companion. ` +
	`Given a journal entry, respond with ONLY a JSON object containing these string fields: ` +
	`"aiTitle" (a short evocative title), "aiGreeting" (one friendly sentence addressed to the writer), ` +
	`"aiObservations" (two or three sentences noticing themes), ` +
	`"aiSentimentAnalysis" (one sentence describing the overall mood), ` +
	`"aiReflectivePrompt" (one open question inviting further reflection). No markdown, no extra text.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Generator) Analyze(ctx context.Context, entryContent, entryType string) (*Insights, error) {
	user := "Journal entry:\n\n" + entryContent
	if entryType == "list" {
		user = "Checklist journal entry, one item per line:\n\n" + entryContent
	}
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("model returned status %d with unparsable body", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("model returned status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}
	return ParseModelOutput(parsed.Choices[0].Message.Content)
}

// ParseModelOutput extracts the insight JSON from raw model output,
// tolerating markdown code fences and surrounding prose.
func ParseModelOutput(content string) (*Insights, error) {
	s := strings.TrimSpace(content)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}
	var out Insights
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("model output is not valid insight JSON: %w", err)
	}
	if out.Title == "" && out.Observations == "" && out.SentimentAnalysis == "" {
		return nil, fmt.Errorf("model output is missing insight fields")
	}
	return &out, nil
}
