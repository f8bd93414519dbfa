package telegram

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"adventure-bot/internal/auth"
	"adventure-bot/internal/llm"
	"adventure-bot/internal/session"
	"adventure-bot/internal/storage"
)

const (
	welcomeMessage = "Welcome to your personalized learning journey! Choose a subject and start exploring."
	resetLabel     = "🔄 Start New Adventure"
	resetCmd       = "reset_adventure"
)

// sender is the narrow slice of the bot API the handlers need, so tests
// can capture outgoing messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

// Options wires the bot to the shared services.
type Options struct {
	AuthService *auth.Service
	Client      llm.Client
	Sessions    *session.Manager
	Recorder    storage.Recorder
	Factory     *llm.Factory
	Provider    string
	Model       string
	ModelFile   string
	AdminUserID int64
	ParseMode   string
}

// Bot drives adventures over Telegram. Sessions are keyed by chat, so a
// group shares one adventure.
type Bot struct {
	s           sender
	api         *tgbotapi.BotAPI
	authSvc     *auth.Service
	llmClient   llm.Client
	sessions    *session.Manager
	recorder    storage.Recorder
	factory     *llm.Factory
	provider    string
	model       string
	modelFile   string
	adminUserID int64
	parseMode   string
}

func New(botToken string, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		s:           botAPISender{api: api},
		api:         api,
		authSvc:     opts.AuthService,
		llmClient:   opts.Client,
		sessions:    opts.Sessions,
		recorder:    opts.Recorder,
		factory:     opts.Factory,
		provider:    opts.Provider,
		model:       opts.Model,
		modelFile:   opts.ModelFile,
		adminUserID: opts.AdminUserID,
		parseMode:   opts.ParseMode,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			b.handleIncomingMessage(ctx, update.Message)
			continue
		}
		if update.CallbackQuery != nil {
			b.handleCallback(update.CallbackQuery)
			continue
		}
	}
}

// Stop closes the update channel, letting Start return.
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
}

func chatSessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.authSvc.IsAllowed(msg.From.ID) {
		log.Printf("Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
		b.sendMessage(msg.Chat.ID, "This adventure is invite-only for now. Ask the admin to /allow you.")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	log.Printf("Incoming message from %d (@%s): %q", msg.From.ID, msg.From.UserName, msg.Text)

	id, sess := b.sessions.GetOrCreate(chatSessionID(msg.Chat.ID))
	if !sess.AppendUser(msg.Text) {
		return
	}

	resp, err := sess.RequestReply(ctx, b.llmClient)

	ev := storage.Event{
		Timestamp:   msg.Time().UTC(),
		SessionID:   id,
		Source:      storage.SourceTelegram,
		UserMessage: msg.Text,
	}
	if err != nil {
		log.Printf("failed to generate text: %v", err)
		ev.Failed = true
		ev.Error = err.Error()
		b.record(ev)
		b.sendMessage(msg.Chat.ID, "An error occurred: "+err.Error())
		return
	}

	ev.AssistantResponse = resp.Content
	ev.Model = resp.Model
	ev.PromptTokens = resp.PromptTokens
	ev.CompletionTokens = resp.CompletionTokens
	ev.TotalTokens = resp.TotalTokens
	b.record(ev)

	log.Printf("LLM response [model=%s, tokens: prompt=%d, completion=%d, total=%d]: %q",
		resp.Model, resp.PromptTokens, resp.CompletionTokens, resp.TotalTokens, resp.Content)

	meta := fmt.Sprintf("[model=%s, tokens: prompt=%d, completion=%d, total=%d]",
		resp.Model, resp.PromptTokens, resp.CompletionTokens, resp.TotalTokens)
	b.sendMessageWithReset(msg.Chat.ID, meta+"\n\n"+resp.Content)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, "🎓 "+welcomeMessage)
	case "reset":
		b.sessions.Reset(chatSessionID(msg.Chat.ID))
		b.sendMessage(msg.Chat.ID, "Adventure reset. "+welcomeMessage)
	case "model":
		b.handleModelSwitch(msg.Chat.ID, msg.From.ID, msg.CommandArguments())
	case "allow":
		b.handleAllow(msg.Chat.ID, msg.From.ID, msg.CommandArguments())
	case "deny":
		b.handleDeny(msg.Chat.ID, msg.From.ID, msg.CommandArguments())
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command. Send any text to continue your adventure, or /reset to start over.")
	}
}

func (b *Bot) handleModelSwitch(chatID, fromID int64, arg string) {
	if fromID != b.adminUserID {
		b.sendMessage(chatID, "Only the admin can switch models.")
		return
	}
	model := strings.TrimSpace(arg)
	if model == "" {
		b.sendMessage(chatID, "Usage: /model <id>\nAllowed: "+strings.Join(llm.GetAllowedModels(), ", "))
		return
	}
	if !llm.IsModelAllowed(model) {
		b.sendMessage(chatID, fmt.Sprintf("Model %q is not in the allowed list.", model))
		return
	}

	client, err := b.factory.CreateClient(b.provider, model)
	if err != nil {
		b.sendMessage(chatID, "Failed to switch model: "+err.Error())
		return
	}
	b.llmClient = client
	b.model = model

	if b.modelFile != "" {
		if err := os.MkdirAll(filepath.Dir(b.modelFile), 0o755); err == nil {
			if err := os.WriteFile(b.modelFile, []byte(model+"\n"), 0o644); err != nil {
				log.Printf("⚠️ Failed to persist model override: %v", err)
			}
		}
	}

	b.sendMessage(chatID, fmt.Sprintf("Model switched to %s", model))
}

func (b *Bot) handleAllow(chatID, fromID int64, arg string) {
	if fromID != b.adminUserID {
		b.sendMessage(chatID, "Only the admin can manage access.")
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		b.sendMessage(chatID, "Usage: /allow <user id>")
		return
	}
	if err := b.authSvc.Allow(auth.Learner{ID: id}); err != nil {
		b.sendMessage(chatID, "Failed to update allowlist: "+err.Error())
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("User %d can now play.", id))
}

func (b *Bot) handleDeny(chatID, fromID int64, arg string) {
	if fromID != b.adminUserID {
		b.sendMessage(chatID, "Only the admin can manage access.")
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		b.sendMessage(chatID, "Usage: /deny <user id>")
		return
	}
	if err := b.authSvc.Deny(id); err != nil {
		b.sendMessage(chatID, "Failed to update allowlist: "+err.Error())
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("User %d removed from the allowlist.", id))
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Data == resetCmd && cb.Message != nil {
		b.sessions.Reset(chatSessionID(cb.Message.Chat.ID))
		b.sendMessage(cb.Message.Chat.ID, "Adventure reset. "+welcomeMessage)
		return
	}
}

func (b *Bot) record(ev storage.Event) {
	if b.recorder == nil {
		return
	}
	if err := b.recorder.AppendInteraction(ev); err != nil {
		log.Printf("⚠️ Failed to record interaction: %v", err)
	}
}

// SendReport delivers an activity summary to the admin chat, when one
// is configured.
func (b *Bot) SendReport(text string) {
	if b.adminUserID == 0 {
		return
	}
	b.sendMessage(b.adminUserID, text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if b.parseMode != "" {
		msg.ParseMode = b.parseMode
	}
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

// sendMessageWithReset replies with an inline button that starts the
// adventure over.
func (b *Bot) sendMessageWithReset(chatID int64, text string) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(resetLabel, resetCmd),
		),
	)
	msg := tgbotapi.NewMessage(chatID, text)
	if b.parseMode != "" {
		msg.ParseMode = b.parseMode
	}
	msg.ReplyMarkup = kb
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
