package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adventure-bot/internal/llm"
	"adventure-bot/internal/session"
	"adventure-bot/internal/storage"
)

// Fixed page copy. The guide text itself lives in the session system
// prompt; this is only chrome around the conversation.
const (
	PageTitle        = "Educational Adventure Bot 🎓"
	WelcomeText      = "Welcome to your personalized learning journey! Choose a subject and start exploring."
	InputPlaceholder = "What would you like to learn about?"
	ResetLabel       = "Start New Adventure"
)

const sessionCookie = "adventure_session"

// WebServer serves the chat UI: one adventure per browser, tracked by a
// session cookie.
type WebServer struct {
	sessions  *session.Manager
	client    llm.Client
	recorder  storage.Recorder
	server    *http.Server
	port      int
	startTime time.Time
}

// ChatPageData feeds the chat template.
type ChatPageData struct {
	Title        string
	Welcome      string
	Placeholder  string
	ResetLabel   string
	Turns        []session.Turn
	ErrorMessage string
}

func NewWebServer(sessions *session.Manager, client llm.Client, recorder storage.Recorder, port int) *WebServer {
	return &WebServer{
		sessions:  sessions,
		client:    client,
		recorder:  recorder,
		port:      port,
		startTime: time.Now(),
	}
}

func (ws *WebServer) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/static/", ws.handleStatic)        // Stylesheet and script
	mux.HandleFunc("/api/status", ws.handleStatus)     // Health check endpoint
	mux.HandleFunc("/api/sessions", ws.handleSessions) // List of live sessions (admin)
	mux.HandleFunc("/chat", ws.handleSubmit)           // One turn: append + request reply
	mux.HandleFunc("/reset", ws.handleReset)           // Back to the initial state
	mux.HandleFunc("/", ws.handleChat)                 // Chat page (must be last)

	ws.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", ws.port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🌐 Starting Adventure Bot web server on http://localhost:%d", ws.port)
	return ws.server.ListenAndServe()
}

func (ws *WebServer) Stop() error {
	if ws.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return ws.server.Shutdown(ctx)
}

// resolveSession finds the visitor's session by cookie, creating both on
// first contact.
func (ws *WebServer) resolveSession(w http.ResponseWriter, r *http.Request) (string, *session.Session) {
	var current string
	if c, err := r.Cookie(sessionCookie); err == nil {
		current = c.Value
	}
	id, sess := ws.sessions.GetOrCreate(current)
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return id, sess
}

// handleChat renders the conversation. The page is a pure projection of
// session state; the system prompt never appears.
func (ws *WebServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, sess := ws.resolveSession(w, r)

	data := &ChatPageData{
		Title:        PageTitle,
		Welcome:      WelcomeText,
		Placeholder:  InputPlaceholder,
		ResetLabel:   ResetLabel,
		Turns:        sess.Turns(),
		ErrorMessage: r.URL.Query().Get("error"),
	}
	ws.renderChatPage(w, data)
}

// handleSubmit runs one full turn: append the user message, block on the
// provider, then redirect back to the page render. A failed call changes
// nothing in the session and comes back as an inline error.
func (ws *WebServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, sess := ws.resolveSession(w, r)

	text := r.FormValue("prompt")
	if !sess.AppendUser(text) {
		// Blank submit: nothing to do.
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	resp, err := sess.RequestReply(r.Context(), ws.client)

	ev := storage.Event{
		Timestamp:   time.Now().UTC(),
		SessionID:   id,
		Source:      storage.SourceWeb,
		UserMessage: text,
	}
	if err != nil {
		ev.Failed = true
		ev.Error = err.Error()
		ws.record(ev)
		log.Printf("❌ Inference call failed for session %s: %v", id, err)
		http.Redirect(w, r, "/?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	ev.AssistantResponse = resp.Content
	ev.Model = resp.Model
	ev.PromptTokens = resp.PromptTokens
	ev.CompletionTokens = resp.CompletionTokens
	ev.TotalTokens = resp.TotalTokens
	ws.record(ev)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, sess := ws.resolveSession(w, r)
	sess.Reset()
	log.Printf("🔄 Session %s reset", id)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *WebServer) record(ev storage.Event) {
	if ws.recorder == nil {
		return
	}
	if err := ws.recorder.AppendInteraction(ev); err != nil {
		log.Printf("⚠️ Failed to record interaction: %v", err)
	}
}

// handleStatic serves the stylesheet and script inline - no external
// assets to deploy.
func (ws *WebServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/static/")

	switch path {
	case "style.css":
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(getCSS()))
	case "script.js":
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(getJS()))
	default:
		http.NotFound(w, r)
	}
}

// handleStatus serves the health check.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "adventure-bot",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(ws.startTime).String(),
		"sessions":  ws.sessions.Len(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleSessions lists live sessions (admin API).
func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	infos := ws.sessions.List()
	sessionList := make([]map[string]interface{}, 0, len(infos))
	for _, info := range infos {
		sessionList = append(sessionList, map[string]interface{}{
			"session_id":  info.ID,
			"turns":       info.Turns,
			"created_at":  info.CreatedAt,
			"last_active": info.LastActive,
			"age":         time.Since(info.CreatedAt).Round(time.Second).String(),
		})
	}

	response := map[string]interface{}{
		"success":        true,
		"sessions":       sessionList,
		"total_sessions": len(sessionList),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (ws *WebServer) renderChatPage(w http.ResponseWriter, data *ChatPageData) {
	tmpl := template.Must(template.New("chat").Parse(getHTMLTemplate()))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("Error rendering template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func getHTMLTemplate() string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="/static/style.css">
</head>
<body>
    <div class="container">
        <header class="header">
            <h1>{{.Title}}</h1>
            <p class="welcome">{{.Welcome}}</p>
        </header>

        <main class="chat" id="chat-log">
            {{range .Turns}}
            <div class="message {{.Role}}">
                <div class="bubble">{{.Content}}</div>
            </div>
            {{end}}
            {{if .ErrorMessage}}
            <div class="message error">
                <div class="bubble">An error occurred: {{.ErrorMessage}}</div>
            </div>
            {{end}}
        </main>

        <footer class="composer">
            <form method="POST" action="/chat" class="prompt-form">
                <input type="text" id="prompt-input" name="prompt" placeholder="{{.Placeholder}}" autocomplete="off" required>
                <button type="submit" class="btn send-btn">Send</button>
            </form>
            <form method="POST" action="/reset" class="reset-form">
                <button type="submit" class="btn reset-btn">🔄 {{.ResetLabel}}</button>
            </form>
        </footer>
    </div>

    <script src="/static/script.js"></script>
</body>
</html>`
}

func getCSS() string {
	return `
* {
    margin: 0;
    padding: 0;
    box-sizing: border-box;
}

body {
    font-family: 'Georgia', 'Times New Roman', serif;
    background-color: #1a1a1a;
    color: #e0e0e0;
    line-height: 1.6;
}

.container {
    max-width: 860px;
    margin: 0 auto;
    min-height: 100vh;
    display: flex;
    flex-direction: column;
}

.header {
    background: linear-gradient(90deg, #ff6b35, #f7931e);
    padding: 1rem 2rem;
    border-bottom: 3px solid #333;
}

.header h1 {
    color: white;
    margin-bottom: 0.5rem;
}

.welcome {
    color: rgba(255, 255, 255, 0.9);
}

.chat {
    flex: 1;
    padding: 1.5rem;
    overflow-y: auto;
    display: flex;
    flex-direction: column;
    gap: 0.75rem;
}

.message {
    display: flex;
}

.message.user {
    justify-content: flex-end;
}

.message.assistant {
    justify-content: flex-start;
}

.message.error {
    justify-content: flex-start;
}

.bubble {
    max-width: 75%;
    padding: 0.75rem 1rem;
    border-radius: 12px;
    white-space: pre-wrap;
}

.message.user .bubble {
    background: #ff6b35;
    color: white;
    border-bottom-right-radius: 2px;
}

.message.assistant .bubble {
    background: #2a2a2a;
    border: 1px solid #333;
    border-bottom-left-radius: 2px;
}

.message.error .bubble {
    background: #3a1f1f;
    border: 1px solid #b33;
    color: #f0bcbc;
}

.composer {
    padding: 1rem 1.5rem 1.5rem;
    border-top: 2px solid #333;
    background: #202020;
}

.prompt-form {
    display: flex;
    gap: 0.5rem;
    margin-bottom: 0.75rem;
}

#prompt-input {
    flex: 1;
    padding: 0.75rem 1rem;
    border-radius: 8px;
    border: 1px solid #444;
    background: #1a1a1a;
    color: #e0e0e0;
    font-size: 1rem;
}

#prompt-input:focus {
    outline: none;
    border-color: #ff6b35;
}

.btn {
    padding: 0.75rem 1.25rem;
    border: none;
    border-radius: 8px;
    cursor: pointer;
    font-size: 0.95rem;
    transition: background-color 0.2s;
}

.send-btn {
    background: #ff6b35;
    color: white;
}

.send-btn:hover {
    background: #f7931e;
}

.reset-btn {
    background: #2a2a2a;
    color: #ccc;
    border: 1px solid #444;
}

.reset-btn:hover {
    background: #333;
}

@media (max-width: 768px) {
    .bubble {
        max-width: 90%;
    }
}
`
}

func getJS() string {
	return `
// Keep the latest turn in view and the input ready.
const chatLog = document.getElementById('chat-log');
if (chatLog) {
    chatLog.scrollTop = chatLog.scrollHeight;
}

const promptInput = document.getElementById('prompt-input');
if (promptInput) {
    promptInput.focus();
}
`
}
