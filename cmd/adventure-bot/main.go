package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adventure-bot/internal/analytics"
	"adventure-bot/internal/auth"
	"adventure-bot/internal/config"
	"adventure-bot/internal/llm"
	"adventure-bot/internal/scheduler"
	"adventure-bot/internal/session"
	"adventure-bot/internal/storage"
	"adventure-bot/internal/telegram"
	"adventure-bot/internal/web"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	// Resolve model with the persisted override, if any
	model := cfg.Model
	if s := readTrim(cfg.ModelFilePath); s != "" {
		model = s
	}

	factory := llm.NewFactory(cfg)
	llmClient, err := factory.CreateClient(string(cfg.LLMProvider), model)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	log.Printf("🚀 Adventure Bot starting [provider=%s, model=%s]", cfg.LLMProvider, model)

	systemPrompt := readSystemPrompt(cfg.SystemPromptPath)
	sessions := session.NewManager(systemPrompt)

	rec := newRecorder(cfg)

	webServer := web.NewWebServer(sessions, llmClient, rec, cfg.WebPort)
	go func() {
		if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("web server failed: %v", err)
		}
	}()

	var bot *telegram.Bot
	if cfg.TelegramBotToken != "" {
		bot, err = telegram.New(cfg.TelegramBotToken, telegram.Options{
			AuthService: newAuthService(cfg),
			Client:      llmClient,
			Sessions:    sessions,
			Recorder:    rec,
			Factory:     factory,
			Provider:    string(cfg.LLMProvider),
			Model:       model,
			ModelFile:   cfg.ModelFilePath,
			AdminUserID: cfg.AdminUserID,
			ParseMode:   cfg.MessageParseMode,
		})
		if err != nil {
			log.Fatalf("failed to create bot: %v", err)
		}
		go bot.Start(context.Background())
		log.Println("🤖 Telegram front-end enabled")
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, telegram front-end disabled")
	}

	sched := scheduler.New(cfg.ReportCronSpec)
	if rec != nil {
		sched.SetReportFunction(func(ctx context.Context) error {
			events, err := rec.LoadInteractions()
			if err != nil {
				return fmt.Errorf("load interactions: %w", err)
			}
			stats := analytics.AnalyzeDailyLogs(events, time.Now().UTC())
			summary := stats.GenerateReportSummary()
			log.Printf("📊 Daily report:\n%s", summary)
			if bot != nil {
				bot.SendReport(summary)
			}
			return nil
		})
		if err := sched.Start(); err != nil {
			log.Printf("failed to start scheduler: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	sched.Stop()
	if bot != nil {
		bot.Stop()
	}
	if err := webServer.Stop(); err != nil {
		log.Printf("web server shutdown: %v", err)
	}
}

func newAuthService(cfg *config.Config) *auth.Service {
	var allowRepo auth.Repository
	if cfg.AllowlistFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.AllowlistFilePath)
		if err != nil {
			log.Printf("failed to init allowlist repo: %v", err)
		} else {
			allowRepo = repo
		}
	}

	initial := cfg.AllowedUsers
	// Once a gate is configured the admin must keep access.
	if len(initial) > 0 && cfg.AdminUserID != 0 {
		initial = append(initial, cfg.AdminUserID)
	}

	authSvc, err := auth.NewWithRepo(allowRepo, initial)
	if err != nil {
		log.Fatalf("failed to init auth: %v", err)
	}
	return authSvc
}

func newRecorder(cfg *config.Config) storage.Recorder {
	if cfg.TranscriptDBPath != "" {
		rec, err := storage.NewSQLiteRecorder(cfg.TranscriptDBPath)
		if err != nil {
			log.Printf("failed to init sqlite recorder: %v", err)
			return nil
		}
		log.Printf("📚 Recording transcripts to sqlite at %s", cfg.TranscriptDBPath)
		return rec
	}
	if cfg.LogFilePath != "" {
		rec, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
			return nil
		}
		return rec
	}
	return nil
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not found or unreadable at %s: %v", path, err)
		return ""
	}
	return string(data)
}

func readTrim(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
