package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"adventure-bot/internal/config"
	"adventure-bot/internal/llm"
	"adventure-bot/internal/session"
	"adventure-bot/internal/storage"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AdventureMCPServer exposes the adventure turn loop as MCP tools so
// agent hosts can drive a learning session over stdio.
type AdventureMCPServer struct {
	sessions *session.Manager
	client   llm.Client
	recorder storage.Recorder
}

func NewAdventureMCPServer(sessions *session.Manager, client llm.Client, recorder storage.Recorder) *AdventureMCPServer {
	log.Printf("🔧 Initializing Adventure MCP Server")

	return &AdventureMCPServer{
		sessions: sessions,
		client:   client,
		recorder: recorder,
	}
}

// Say runs one full adventure turn: the learner message is appended to
// the session and the guide's reply comes back as the tool result.
func (s *AdventureMCPServer) Say(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[map[string]interface{}]) (*mcp.CallToolResultFor[any], error) {
	text, ok := params.Arguments["text"].(string)
	if !ok {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "❌ text parameter is required and must be a string"},
			},
		}, nil
	}

	requestedID, _ := params.Arguments["session_id"].(string)
	sessionID, adv := s.sessions.GetOrCreate(requestedID)

	if !adv.AppendUser(text) {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "❌ text must not be blank"},
			},
		}, nil
	}

	log.Printf("💬 MCP Server: Running turn for session %s", sessionID)

	resp, err := adv.RequestReply(ctx, s.client)

	ev := storage.Event{
		Timestamp:   time.Now().UTC(),
		SessionID:   sessionID,
		Source:      storage.SourceMCP,
		UserMessage: text,
	}
	if err != nil {
		ev.Failed = true
		ev.Error = err.Error()
		s.record(ev)
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("An error occurred: %v", err)},
			},
			Meta: map[string]interface{}{
				"session_id": sessionID,
				"success":    false,
			},
		}, nil
	}

	ev.AssistantResponse = resp.Content
	ev.Model = resp.Model
	ev.PromptTokens = resp.PromptTokens
	ev.CompletionTokens = resp.CompletionTokens
	ev.TotalTokens = resp.TotalTokens
	s.record(ev)

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: strings.TrimSpace(resp.Content)},
		},
		Meta: map[string]interface{}{
			"session_id":   sessionID,
			"model":        resp.Model,
			"total_tokens": resp.TotalTokens,
			"turns":        adv.TurnCount(),
			"success":      true,
		},
	}, nil
}

// History returns the visible conversation for a session, oldest first.
func (s *AdventureMCPServer) History(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[map[string]interface{}]) (*mcp.CallToolResultFor[any], error) {
	sessionID, ok := params.Arguments["session_id"].(string)
	if !ok || sessionID == "" {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "❌ session_id parameter is required"},
			},
		}, nil
	}

	adv, ok := s.sessions.Get(sessionID)
	if !ok {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "❌ No adventure session found for session_id"},
			},
		}, nil
	}

	turns := adv.Turns()

	var resultMessage string
	if len(turns) == 0 {
		resultMessage = "📜 The adventure has not started yet"
	} else {
		resultMessage = fmt.Sprintf("📜 Adventure so far (%d messages):\n\n", len(turns))
		for _, t := range turns {
			resultMessage += fmt.Sprintf("[%s] %s\n", t.Role, t.Content)
		}
	}

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resultMessage},
		},
		Meta: map[string]interface{}{
			"session_id": sessionID,
			"turns":      len(turns),
			"success":    true,
		},
	}, nil
}

// Reset discards the session history and starts a fresh adventure.
func (s *AdventureMCPServer) Reset(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[map[string]interface{}]) (*mcp.CallToolResultFor[any], error) {
	sessionID, ok := params.Arguments["session_id"].(string)
	if !ok || sessionID == "" {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "❌ session_id parameter is required"},
			},
		}, nil
	}

	if !s.sessions.Reset(sessionID) {
		return &mcp.CallToolResultFor[any]{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "❌ No adventure session found for session_id"},
			},
		}, nil
	}

	log.Printf("🔄 MCP Server: Reset session %s", sessionID)

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "🔄 Started a new adventure"},
		},
		Meta: map[string]interface{}{
			"session_id": sessionID,
			"success":    true,
		},
	}, nil
}

func (s *AdventureMCPServer) record(ev storage.Event) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.AppendInteraction(ev); err != nil {
		log.Printf("⚠️ Failed to record interaction: %v", err)
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	log.Printf("🚀 Starting Adventure MCP Server")

	cfg := config.New()

	factory := llm.NewFactory(cfg)
	client, err := factory.CreateClient(string(cfg.LLMProvider), cfg.Model)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	var recorder storage.Recorder
	if cfg.TranscriptDBPath != "" {
		if rec, err := storage.NewSQLiteRecorder(cfg.TranscriptDBPath); err != nil {
			log.Printf("failed to init sqlite recorder: %v", err)
		} else {
			recorder = rec
		}
	} else if cfg.LogFilePath != "" {
		if rec, err := storage.NewFileRecorder(cfg.LogFilePath); err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			recorder = rec
		}
	}

	systemPrompt := ""
	if cfg.SystemPromptPath != "" {
		if data, err := os.ReadFile(cfg.SystemPromptPath); err == nil {
			systemPrompt = string(data)
		}
	}

	adventureServer := NewAdventureMCPServer(session.NewManager(systemPrompt), client, recorder)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "adventure-bot-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "adventure_say",
		Description: "Sends a learner message to the adventure guide and returns the next story beat. Creates a new session when session_id is omitted.",
	}, adventureServer.Say)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "adventure_history",
		Description: "Returns the visible conversation for an adventure session, oldest first",
	}, adventureServer.History)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "adventure_reset",
		Description: "Discards the session history and starts a new adventure",
	}, adventureServer.Reset)

	log.Printf("📋 Registered 3 adventure MCP tools:")
	log.Printf("   - adventure_say: Runs one story turn")
	log.Printf("   - adventure_history: Shows the conversation so far")
	log.Printf("   - adventure_reset: Starts a new adventure")
	log.Printf("🔗 Starting Adventure MCP server on stdin/stdout...")

	transport := mcp.NewStdioTransport()
	if err := server.Run(context.Background(), transport); err != nil {
		log.Fatalf("❌ Adventure MCP Server failed: %v", err)
	}
}
