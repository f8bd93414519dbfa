package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"adventure-bot/internal/llm"
	"adventure-bot/internal/session"
	"adventure-bot/internal/storage"
)

type fakeLLM struct {
	resp  llm.Response
	err   error
	calls int
}

func (f *fakeLLM) Generate(_ context.Context, _ []llm.Message) (llm.Response, error) {
	f.calls++
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return f.resp, nil
}

type memRecorder struct {
	events []storage.Event
}

func (m *memRecorder) AppendInteraction(ev storage.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) LoadInteractions() ([]storage.Event, error) {
	return append([]storage.Event{}, m.events...), nil
}

func newTestServer(f *fakeLLM) (*WebServer, *session.Manager, *memRecorder) {
	mgr := session.NewManager("")
	rec := &memRecorder{}
	return NewWebServer(mgr, f, rec, 8080), mgr, rec
}

func withSessionCookie(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: id})
	return req
}

func postForm(path string, form url.Values, sessionID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withSessionCookie(req, sessionID)
}

func TestHandleStatus(t *testing.T) {
	ws, _, _ := newTestServer(&fakeLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	ws.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "healthy" || resp["service"] != "adventure-bot" {
		t.Fatalf("unexpected status payload: %+v", resp)
	}
}

func TestChatPageAssignsSessionCookie(t *testing.T) {
	ws, _, _ := newTestServer(&fakeLLM{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	ws.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("session cookie not assigned")
	}
}

func TestChatPageRendersConversation(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: "You arrive in Paris. A) Museum B) Cafe"}}
	ws, mgr, _ := newTestServer(f)

	_, sess := mgr.GetOrCreate("visitor")
	sess.AppendUser("Teach me French history")
	if _, err := sess.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/", nil), "visitor")
	w := httptest.NewRecorder()
	ws.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Teach me French history") {
		t.Fatalf("user turn missing from page")
	}
	if !strings.Contains(body, "You arrive in Paris") {
		t.Fatalf("assistant turn missing from page")
	}
	if strings.Contains(body, session.DefaultSystemPrompt) {
		t.Fatalf("system prompt leaked into page")
	}
	if !strings.Contains(body, InputPlaceholder) {
		t.Fatalf("input placeholder missing")
	}
	if !strings.Contains(body, ResetLabel) {
		t.Fatalf("reset button missing")
	}
}

func TestSubmitRunsFullTurn(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: "Scene text", Model: "open-mistral-7b", TotalTokens: 9}}
	ws, mgr, rec := newTestServer(f)

	form := url.Values{"prompt": {"Start an astronomy adventure"}}
	w := httptest.NewRecorder()
	ws.handleSubmit(w, postForm("/chat", form, "visitor"))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("want 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Fatalf("unexpected redirect: %s", loc)
	}

	sess, ok := mgr.Get("visitor")
	if !ok {
		t.Fatalf("session not created")
	}
	turns := sess.Turns()
	if len(turns) != 2 {
		t.Fatalf("want 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "Start an astronomy adventure" || turns[1].Content != "Scene text" {
		t.Fatalf("unexpected turns: %+v", turns)
	}

	if len(rec.events) != 1 {
		t.Fatalf("want 1 recorded event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Source != storage.SourceWeb || ev.Failed || ev.TotalTokens != 9 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSubmitFailureKeepsHistoryAndShowsError(t *testing.T) {
	f := &fakeLLM{err: errors.New("mistral unavailable")}
	ws, mgr, rec := newTestServer(f)

	form := url.Values{"prompt": {"hello"}}
	w := httptest.NewRecorder()
	ws.handleSubmit(w, postForm("/chat", form, "visitor"))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("want 303, got %d", w.Code)
	}
	loc := w.Header().Get("Location")
	if !strings.Contains(loc, "error=") || !strings.Contains(loc, "mistral") {
		t.Fatalf("redirect should carry the error: %s", loc)
	}

	sess, _ := mgr.Get("visitor")
	turns := sess.Turns()
	if len(turns) != 1 || turns[0].Role != llm.RoleUser {
		t.Fatalf("failure must leave only the user turn: %+v", turns)
	}

	if len(rec.events) != 1 || !rec.events[0].Failed || rec.events[0].Error == "" {
		t.Fatalf("failure not recorded: %+v", rec.events)
	}

	// The follow-up render shows the error inline.
	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/?error=mistral+unavailable", nil), "visitor")
	w = httptest.NewRecorder()
	ws.handleChat(w, req)
	if !strings.Contains(w.Body.String(), "An error occurred: mistral unavailable") {
		t.Fatalf("inline error missing from page")
	}
}

func TestSubmitBlankPromptIsNoop(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: "should not be used"}}
	ws, mgr, rec := newTestServer(f)

	form := url.Values{"prompt": {"   \t"}}
	w := httptest.NewRecorder()
	ws.handleSubmit(w, postForm("/chat", form, "visitor"))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("want 303, got %d", w.Code)
	}
	if f.calls != 0 {
		t.Fatalf("provider called on blank prompt")
	}
	sess, _ := mgr.Get("visitor")
	if len(sess.Turns()) != 0 {
		t.Fatalf("blank prompt changed history")
	}
	if len(rec.events) != 0 {
		t.Fatalf("blank prompt recorded")
	}
}

func TestResetRestoresInitialPage(t *testing.T) {
	f := &fakeLLM{resp: llm.Response{Content: "Scene"}}
	ws, mgr, _ := newTestServer(f)

	_, sess := mgr.GetOrCreate("visitor")
	sess.AppendUser("begin")
	if _, err := sess.RequestReply(context.Background(), f); err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	w := httptest.NewRecorder()
	ws.handleReset(w, postForm("/reset", url.Values{}, "visitor"))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("want 303, got %d", w.Code)
	}
	if len(sess.Turns()) != 0 {
		t.Fatalf("reset did not clear turns")
	}
}

func TestHandleSessionsList(t *testing.T) {
	ws, mgr, _ := newTestServer(&fakeLLM{})
	mgr.GetOrCreate("a")
	mgr.GetOrCreate("b")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	ws.handleSessions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["total_sessions"] != float64(2) {
		t.Fatalf("unexpected session count: %+v", resp)
	}
}
