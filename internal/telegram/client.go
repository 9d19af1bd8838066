// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats transfer suggestions into human-readable messages and handles
// delivery with retry logic for reliability.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// sender is the part of the bot API the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// Digest is the content of one notification.
type Digest struct {
	Team        string
	Week        int
	GeneratedAt time.Time
	Budget      int64
	Suggestions []models.TransferSuggestion
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send delivers the digest, retrying with a linear backoff.
func (c *Client) Send(d Digest) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(d))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders a digest as MarkdownV2.
func formatMessage(d Digest) string {
	var b strings.Builder

	b.WriteString("⚽ *Transfer Suggestions*")
	if d.Team != "" {
		fmt.Fprintf(&b, " for %s", escapeMarkdownV2(d.Team))
	}
	b.WriteString("\n\n")

	if d.Week > 0 {
		fmt.Fprintf(&b, "🗓 Week %d\n", d.Week)
	}
	if !d.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "📅 Generated: %s\n", escapeMarkdownV2(d.GeneratedAt.Format("2006-01-02 15:04")))
	}
	fmt.Fprintf(&b, "💰 Budget: %s\n\n", escapeMarkdownV2(formatMillions(d.Budget)))

	if len(d.Suggestions) == 0 {
		b.WriteString("No beneficial transfers found\\.\n")
		return b.String()
	}

	for i, s := range d.Suggestions {
		fmt.Fprintf(&b, "%d\\. 🔴 %s ➜ 🟢 *%s*\n", i+1, playerLabel(s.Out), playerLabel(s.In))
		fmt.Fprintf(&b, "   📈 Improvement: *%s* \\(%s ➜ %s\\)\n",
			escapeMarkdownV2(fmt.Sprintf("+%.1f", s.Improvement)),
			escapeMarkdownV2(fmt.Sprintf("%.1f", s.OutEval.Total)),
			escapeMarkdownV2(fmt.Sprintf("%.1f", s.InEval.Total)))
		fmt.Fprintf(&b, "   💸 Cost: %s, net %s, left %s\n",
			escapeMarkdownV2(formatMillions(s.AcquisitionCost)),
			escapeMarkdownV2(formatMillions(s.NetCost)),
			escapeMarkdownV2(formatMillions(s.RemainingBudget)))
		fmt.Fprintf(&b, "   ⚖️ Value ratio: %s \\| %s\n\n",
			escapeMarkdownV2(fmt.Sprintf("%.2f", s.ValueRatio)),
			escapeMarkdownV2(s.AcquisitionType))
	}
	return b.String()
}

func playerLabel(p *models.Player) string {
	if p == nil {
		return "?"
	}
	return escapeMarkdownV2(fmt.Sprintf("%s (%s, %s)", p.Nickname, p.Position.Short(), p.TeamName))
}

// formatMillions renders currency units as millions, e.g. 2.5M.
func formatMillions(units int64) string {
	return fmt.Sprintf("%.1fM", models.Millions(units))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
