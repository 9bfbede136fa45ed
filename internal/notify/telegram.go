package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/notexe/habit-alarm/internal/model"
)

const defaultTelegramURL = "https://api.telegram.org"

// Telegram sends notifications via the Telegram Bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *resty.Client
}

// NewTelegram creates a Telegram sender. An empty baseURL uses the public
// Bot API endpoint.
func NewTelegram(botToken, chatID, baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = defaultTelegramURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	return &Telegram{botToken: botToken, chatID: chatID, client: c}
}

type telegramSendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Granted reports whether a bot token and chat are configured.
func (t *Telegram) Granted(context.Context) (bool, error) {
	return t.botToken != "" && t.chatID != "", nil
}

// Send posts msg to the configured chat as HTML.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	var tgResp telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(telegramSendRequest{
			ChatID:    t.chatID,
			Text:      formatTelegram(msg),
			ParseMode: "HTML",
		}).
		SetResult(&tgResp).
		SetError(&tgResp).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.botToken))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	if resp.StatusCode() != http.StatusOK || !tgResp.OK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode(), tgResp.Description)
	}
	return nil
}

func formatTelegram(msg Message) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(msg.Title))
	b.WriteString("</b>\n")
	b.WriteString(html.EscapeString(msg.Body))
	if msg.Kind == model.KindVerification && msg.TimerID != "" {
		b.WriteString("\n\nConfirm with <code>respond_notification ")
		b.WriteString(html.EscapeString(msg.TimerID))
		b.WriteString("</code>")
	}
	return b.String()
}
