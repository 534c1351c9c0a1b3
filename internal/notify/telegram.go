package notify

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/CapCalWeb/internal/models"
)

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts short notices to the marketing chat. A nil *Telegram is a
// valid notifier that does nothing.
type Telegram struct {
	api    Sender
	chatID int64
	log    *slog.Logger
}

func NewTelegram(api Sender, chatID int64, log *slog.Logger) *Telegram {
	if api == nil || chatID == 0 {
		return nil
	}
	return &Telegram{api: api, chatID: chatID, log: log}
}

// NewTelegramFromToken connects to the Bot API. An empty token disables
// notifications.
func NewTelegramFromToken(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	log.Info("telegram notifier authorized", "username", api.Self.UserName)
	return NewTelegram(api, chatID, log), nil
}

func (t *Telegram) ContactReceived(msg models.ContactMessage) {
	t.send(fmt.Sprintf("New contact message\nFrom: %s <%s>\n\n%s", msg.Name, msg.Email, msg.Message))
}

func (t *Telegram) PromoterCreated(p models.Promoter) {
	t.send(fmt.Sprintf("New promoter %s <%s>\nCode: %s\nPlatforms: %s\nLink: %s",
		p.Name, p.Email, p.Code, strings.Join(p.Platforms, ", "), p.PromoLink))
}

func (t *Telegram) send(text string) {
	if t == nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("send telegram notification", "err", err)
	}
}
