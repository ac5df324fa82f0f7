// Package insights produces AI-generated reflections on journal entries.
// Analysis is best-effort decoration: callers must treat any error as a
// degraded outcome to record, never as a reason to fail the entry write.
package insights

import "context"

// Insights holds the fields returned by a successful analysis.
type Insights struct {
	Title             string `json:"aiTitle"`
	Greeting          string `json:"aiGreeting"`
	Observations      string `json:"aiObservations"`
	SentimentAnalysis string `json:"aiSentimentAnalysis"`
	ReflectivePrompt  string `json:"aiReflectivePrompt"`
}

// Analyzer analyzes an entry's text. entryType is "text" or "list" and
// steers the prompt (a list entry is a checklist, not prose).
type Analyzer interface {
	Analyze(ctx context.Context, entryContent, entryType string) (*Insights, error)
}
