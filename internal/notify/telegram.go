package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/CosmoTheDev/tasknotify/models"
	tele "gopkg.in/telebot.v4"
)

// telegramTextLimit is the Bot API maximum message length.
const telegramTextLimit = 4096

var botTokenPattern = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]{20,}$`)

// TelegramProvider sends notifications through the Telegram Bot API.
//
// Settings: bot_token (required), chat_id (required, integer), api_url.
type TelegramProvider struct {
	client *http.Client
	apiURL string
}

// NewTelegram creates a TelegramProvider. apiURL overrides the Bot API base
// URL when non-empty; a per-config api_url setting takes precedence.
func NewTelegram(client *http.Client, apiURL string) *TelegramProvider {
	return &TelegramProvider{client: client, apiURL: apiURL}
}

func (t *TelegramProvider) Type() string { return "telegram" }

func (t *TelegramProvider) Validate(cfg models.ProviderConfig) models.ValidationResult {
	var errs []string
	token := cfg.Setting("bot_token")
	switch {
	case token == "":
		errs = append(errs, "bot_token is required")
	case !botTokenPattern.MatchString(token):
		errs = append(errs, "bot_token must look like <bot id>:<secret>")
	}
	chat := cfg.Setting("chat_id")
	if chat == "" {
		errs = append(errs, "chat_id is required")
	} else if _, err := strconv.ParseInt(chat, 10, 64); err != nil {
		errs = append(errs, fmt.Sprintf("chat_id must be an integer, got %q", chat))
	}
	if api := cfg.Setting("api_url"); api != "" {
		if problem := checkURL("api_url", api, "http", "https"); problem != "" {
			errs = append(errs, problem)
		}
	}
	if len(errs) > 0 {
		return models.Invalid(errs...)
	}
	return models.ValidationResult{Valid: true}
}

func (t *TelegramProvider) Send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) models.NotificationResult {
	return finish(t.Type(), t.send(ctx, cfg, msg))
}

func (t *TelegramProvider) send(ctx context.Context, cfg models.ProviderConfig, msg models.NotificationMessage) error {
	if v := t.Validate(cfg); !v.Valid {
		return invalidConfig(t.Type(), v)
	}
	chatID, _ := strconv.ParseInt(cfg.Setting("chat_id"), 10, 64)

	apiURL := cfg.Setting("api_url")
	if apiURL == "" {
		apiURL = t.apiURL
	}
	// Offline skips the getMe round trip; the bot is only used to send.
	bot, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   cfg.Setting("bot_token"),
		Client:  t.client,
		Offline: true,
	})
	if err != nil {
		return sendErr(FailureAuth, "telegram: %w", err)
	}

	text := truncateRunes(msg.RenderedText, telegramTextLimit)
	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()
	select {
	case err := <-done:
		return classifyTelegram(err)
	case <-ctx.Done():
		return fmt.Errorf("telegram: %w", ctx.Err())
	}
}

func classifyTelegram(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return &SendError{Kind: FailureAuth, Err: fmt.Errorf("telegram: %w", err)}
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			// 403 here means the bot was blocked or removed from the chat.
			return &SendError{Kind: FailureTarget, Err: fmt.Errorf("telegram: %w", err)}
		}
	}
	return &SendError{Kind: FailureTransient, Err: fmt.Errorf("telegram: %w", err)}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
