package alert

import (
	"fmt"
	"log"
	"log/slog"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Telegram posts alerts to a single chat. Sends are asynchronous so a slow
// Bot API never holds up request handling.
type Telegram struct {
	api    *tgbotapi.Bot
	chatId int64
}

func NewTelegram(apiKey string, chatId int64) (*Telegram, error) {
	if apiKey == "" || chatId == 0 {
		return nil, fmt.Errorf("telegram api key and chat id are required")
	}
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	return &Telegram{api: api, chatId: chatId}, nil
}

func (t *Telegram) Alert(level slog.Level, text string) {
	go t.send(fmt.Sprintf("*%s*\n%s", Sanitize(level.String()), Sanitize(text)))
}

func (t *Telegram) send(text string) {
	_, err := t.api.SendMessage(t.chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		// slog would loop back into this alerter
		log.Printf("telegram alert: %v", err)
		_, _ = t.api.SendMessage(t.chatId, text, &tgbotapi.SendMessageOpts{})
	}
}

// Sanitize escapes MarkdownV2 reserved characters.
func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*`~>"
	var sb strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}
