package session

import (
	"context"
	"errors"
	"testing"

	"adventure-bot/internal/llm"
)

type fakeClient struct {
	resp  llm.Response
	err   error
	calls [][]llm.Message
}

func (f *fakeClient) Generate(_ context.Context, messages []llm.Message) (llm.Response, error) {
	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	f.calls = append(f.calls, snapshot)
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return f.resp, nil
}

func TestNewStartsWithSystemPromptOnly(t *testing.T) {
	s := New("")

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[0].Content != DefaultSystemPrompt {
		t.Fatalf("unexpected initial message: %+v", msgs[0])
	}
	if len(s.Turns()) != 0 {
		t.Fatalf("fresh session should render no turns")
	}
}

func TestNewUsesProvidedSystemPrompt(t *testing.T) {
	s := New("guide the user through chemistry")
	if got := s.Messages()[0].Content; got != "guide the user through chemistry" {
		t.Fatalf("unexpected system prompt: %q", got)
	}
}

func TestAppendUserAddsExactlyOneMessage(t *testing.T) {
	s := New("")

	if !s.AppendUser("Tell me about space") {
		t.Fatalf("append rejected")
	}
	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "Tell me about space" {
		t.Fatalf("unexpected user message: %+v", msgs[1])
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Fatalf("system message displaced: %+v", msgs[0])
	}
}

func TestAppendUserIgnoresBlankText(t *testing.T) {
	s := New("")

	if s.AppendUser("") || s.AppendUser("   \t\n") {
		t.Fatalf("blank text should not append")
	}
	if len(s.Messages()) != 1 {
		t.Fatalf("blank append changed history: %d messages", len(s.Messages()))
	}
}

func TestRequestReplySuccessAppendsAssistant(t *testing.T) {
	s := New("")
	f := &fakeClient{resp: llm.Response{Content: "You enter the old library. A) Open the atlas B) Climb the ladder", Model: "test-model"}}

	s.AppendUser("Start a geography adventure")
	resp, err := s.RequestReply(context.Background(), f)
	if err != nil {
		t.Fatalf("request reply: %v", err)
	}
	if resp.Content != f.resp.Content {
		t.Fatalf("unexpected response content: %q", resp.Content)
	}

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[2].Role != llm.RoleAssistant || msgs[2].Content != f.resp.Content {
		t.Fatalf("unexpected assistant message: %+v", msgs[2])
	}
}

func TestRequestReplyFailureAppendsNothing(t *testing.T) {
	s := New("")
	f := &fakeClient{err: errors.New("401 unauthorized")}

	s.AppendUser("hello")
	if _, err := s.RequestReply(context.Background(), f); err == nil {
		t.Fatalf("expected error")
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("failure must not change history, got %d messages", len(msgs))
	}
	if msgs[1].Role != llm.RoleUser {
		t.Fatalf("last message should still be the user's: %+v", msgs[1])
	}
}

func TestRequestReplyRetryAfterFailure(t *testing.T) {
	s := New("")
	f := &fakeClient{err: errors.New("temporarily overloaded")}

	s.AppendUser("first try")
	if _, err := s.RequestReply(context.Background(), f); err == nil {
		t.Fatalf("expected failure")
	}

	// A bare retry resends the same history unchanged.
	f.err = nil
	f.resp = llm.Response{Content: "recovered"}
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(f.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(f.calls))
	}
	if len(f.calls[0]) != len(f.calls[1]) {
		t.Fatalf("retry sent different history: %d vs %d", len(f.calls[0]), len(f.calls[1]))
	}

	// Submitting again instead also works and yields two consecutive
	// user messages, which the provider accepts.
	s.AppendUser("second try")
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("request after resubmit: %v", err)
	}
	msgs := s.Messages()
	if msgs[2].Role != llm.RoleAssistant || msgs[3].Role != llm.RoleUser || msgs[4].Role != llm.RoleAssistant {
		t.Fatalf("unexpected roles after recovery: %+v", msgs)
	}
}

func TestRequestReplySendsFullHistoryEachCall(t *testing.T) {
	s := New("")
	f := &fakeClient{resp: llm.Response{Content: "A) left B) right"}}

	s.AppendUser("begin")
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	s.AppendUser("A")
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	if len(f.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(f.calls))
	}
	second := f.calls[1]
	if len(second) != 4 {
		t.Fatalf("second call should carry 4 messages, got %d", len(second))
	}
	wantRoles := []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}
	for i, want := range wantRoles {
		if second[i].Role != want {
			t.Fatalf("call 2 message %d: want role %s, got %s", i, want, second[i].Role)
		}
	}
	if second[1].Content != "begin" || second[3].Content != "A" {
		t.Fatalf("history not sent verbatim: %+v", second)
	}
}

func TestRequestReplyWithoutUserTurn(t *testing.T) {
	s := New("")
	f := &fakeClient{resp: llm.Response{Content: "nope"}}

	if _, err := s.RequestReply(context.Background(), f); !errors.Is(err, ErrNoUserTurn) {
		t.Fatalf("expected ErrNoUserTurn, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("provider must not be called without a user turn")
	}

	// Same after a completed turn: last message is the assistant's.
	s.AppendUser("go")
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if _, err := s.RequestReply(context.Background(), f); !errors.Is(err, ErrNoUserTurn) {
		t.Fatalf("expected ErrNoUserTurn after completed turn, got %v", err)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	s := New("")
	f := &fakeClient{resp: llm.Response{Content: "scene one"}}

	s.AppendUser("begin")
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("turn: %v", err)
	}

	s.Reset()
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != llm.RoleSystem {
		t.Fatalf("reset did not restore system-only state: %+v", msgs)
	}

	// The next turn starts from scratch: only system + new user are sent.
	s.AppendUser("new topic")
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("turn after reset: %v", err)
	}
	last := f.calls[len(f.calls)-1]
	if len(last) != 2 || last[1].Content != "new topic" {
		t.Fatalf("reset history leaked into next call: %+v", last)
	}
}

func TestTurnsSkipSystemPrompt(t *testing.T) {
	s := New("")
	f := &fakeClient{resp: llm.Response{Content: "reply"}}

	s.AppendUser("question")
	if _, err := s.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("turn: %v", err)
	}

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	for _, turn := range turns {
		if turn.Role == llm.RoleSystem {
			t.Fatalf("system prompt leaked into render: %+v", turn)
		}
	}
	if turns[0].Content != "question" || turns[1].Content != "reply" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestMessagesCopySemantics(t *testing.T) {
	s := New("")
	s.AppendUser("hello")

	msgs := s.Messages()
	msgs[1] = llm.Message{Role: llm.RoleUser, Content: "mutated"}
	if s.Messages()[1].Content != "hello" {
		t.Fatalf("internal state mutated via returned slice")
	}
}
