package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"adventure-bot/internal/llm"
)

// DefaultSystemPrompt keeps the guide on rails: it must stop after every
// scene and wait for the user's choice.
const DefaultSystemPrompt = "You are an educational choose-your-own-adventure guide. You MUST always stop after presenting choices to wait for user input. Never continue the story without user selection."

// ErrNoUserTurn is returned when a reply is requested while the last
// message is not a user message. Nothing is sent to the provider.
var ErrNoUserTurn = errors.New("no user turn awaiting a reply")

// Turn is one rendered conversation entry. The system prompt is not a
// turn and never reaches the UI.
type Turn struct {
	Role    string
	Content string
}

// Session is one ordered conversation. The first message is always the
// system prompt; user and assistant messages accumulate after it and are
// sent verbatim, in full, on every provider call.
type Session struct {
	mu           sync.RWMutex
	turnMu       sync.Mutex
	systemPrompt string
	msgs         []llm.Message
	createdAt    time.Time
	lastActiveAt time.Time
}

func New(systemPrompt string) *Session {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	s := &Session{systemPrompt: systemPrompt, createdAt: time.Now()}
	s.Reset()
	return s
}

// AppendUser adds one user message with the text as provided. Blank text
// is ignored so an empty submit never produces a turn.
func (s *Session) AppendUser(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, llm.Message{Role: llm.RoleUser, Content: text})
	s.lastActiveAt = time.Now()
	return true
}

// RequestReply sends the accumulated history to the client and blocks for
// one complete response. On success the assistant message is appended and
// the response returned. On failure nothing is appended: the last message
// stays the user's, and the turn may be retried as-is or after another
// AppendUser.
func (s *Session) RequestReply(ctx context.Context, client llm.Client) (llm.Response, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.RLock()
	history := make([]llm.Message, len(s.msgs))
	copy(history, s.msgs)
	s.mu.RUnlock()

	if history[len(history)-1].Role != llm.RoleUser {
		return llm.Response{}, ErrNoUserTurn
	}

	resp, err := client.Generate(ctx, history)
	if err != nil {
		return llm.Response{}, err
	}

	s.mu.Lock()
	s.msgs = append(s.msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
	s.lastActiveAt = time.Now()
	s.mu.Unlock()
	return resp, nil
}

// Reset discards the conversation and restores the initial state: exactly
// one system message. The prompt text is fixed for the session lifetime.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = []llm.Message{{Role: llm.RoleSystem, Content: s.systemPrompt}}
	s.lastActiveAt = time.Now()
}

// Messages returns a copy of the full ordered history, system prompt
// included.
func (s *Session) Messages() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]llm.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Turns renders the conversation for display: every message after the
// system prompt, in order.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, 0, len(s.msgs)-1)
	for _, m := range s.msgs[1:] {
		out = append(out, Turn{Role: m.Role, Content: m.Content})
	}
	return out
}

func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs) - 1
}

func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
