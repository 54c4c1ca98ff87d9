// Package telegram delivers run reports to a single Telegram chat.
package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

var ErrNoChat = errors.New("telegram chat id is required")

// Notifier sends plain-text messages to one chat. The chat id is either a
// numeric id or a public "@channel" username.
type Notifier struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	channel string
	logger  *slog.Logger
}

// NewNotifier authorizes against the Bot API. endpoint is a tgbotapi-style
// format string ("https://api.telegram.org/bot%s/%s"); empty uses the
// public API. A nil client gets a 30s timeout client.
func NewNotifier(token, chatID string, client *http.Client, endpoint string, logger *slog.Logger) (*Notifier, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, ErrNoChat
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	n := &Notifier{api: api, logger: logger}
	if strings.HasPrefix(chatID, "@") {
		n.channel = chatID
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse telegram chat id %q: %w", chatID, err)
		}
		n.chatID = id
	}

	logger.Info("telegram notifier ready", "bot", api.Self.UserName, "chat", chatID)
	return n, nil
}

// Send delivers text as a plain message. Text over Telegram's limit is cut.
func (n *Notifier) Send(text string) error {
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen])
	}

	var msg tgbotapi.MessageConfig
	if n.channel != "" {
		msg = tgbotapi.NewMessageToChannel(n.channel, text)
	} else {
		msg = tgbotapi.NewMessage(n.chatID, text)
	}
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
