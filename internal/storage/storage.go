package storage

import "time"

// Event records one completed (or failed) turn: what the user sent and
// what came back. Events are appended in chronological order and read
// back only for reporting, never to rebuild a live session.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	Source            string    `json:"source"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response,omitempty"`
	Model             string    `json:"model,omitempty"`
	PromptTokens      int       `json:"prompt_tokens,omitempty"`
	CompletionTokens  int       `json:"completion_tokens,omitempty"`
	TotalTokens       int       `json:"total_tokens,omitempty"`
	Failed            bool      `json:"failed,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// Front-ends stamp their events with a source.
const (
	SourceWeb      = "web"
	SourceTelegram = "telegram"
	SourceMCP      = "mcp"
)

// Recorder abstracts persistence of interaction events.
// Implementations can be file-based, database, etc.
// LoadInteractions should return events in chronological order.
// AppendInteraction should atomically append a new event.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
