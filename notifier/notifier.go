// Package notifier delivers new-listing messages to Telegram chats.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"apartment-scraper/config"
	"apartment-scraper/models"
	"apartment-scraper/utils"
)

// Notifier sends listing messages to every configured chat. Delivery is best
// effort: failures are logged and reported as false, never as errors.
type Notifier struct {
	chatIDs  []string
	client   sender
	fallback sender
	bot      *tgbotapi.BotAPI
	logger   *utils.Logger
}

// New returns nil when the Telegram credentials are incomplete.
func New(cfg *config.Config, logger *utils.Logger) *Notifier {
	if !cfg.NotificationsEnabled() {
		logger.Warn("[notifier] No notification configuration found, notifications disabled")
		return nil
	}

	apiBase := cfg.TelegramAPIEndpoint
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	apiBase = strings.TrimRight(apiBase, "/")
	httpClient := &http.Client{Timeout: requestTimeout}

	client, bot := newClient(apiBase, cfg.TelegramBotToken, httpClient, logger)
	n := &Notifier{
		chatIDs: cfg.TelegramChatIDs,
		client:  client,
		bot:     bot,
		logger:  logger,
	}
	if bot != nil {
		n.fallback = newFallbackClient(apiBase, cfg.TelegramBotToken, httpClient)
	}
	return n
}

// Notify formats l and sends it to every chat. It returns true when at least
// one chat received the message.
func (n *Notifier) Notify(ctx context.Context, l *models.RawListing) bool {
	text := FormatListing(l)

	delivered := 0
	for _, chatID := range n.chatIDs {
		if err := n.send(ctx, chatID, text); err != nil {
			n.logger.Error("[notifier] Failed to notify chat %s about %s: %v", chatID, l.ListingID, err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return false
	}
	n.logger.Info("[notifier] Listing %s sent to %d/%d chats", l.ListingID, delivered, len(n.chatIDs))
	return true
}

func (n *Notifier) send(ctx context.Context, chatID, text string) error {
	err := n.client.Send(ctx, chatID, text)
	if err == nil || n.fallback == nil {
		return err
	}

	n.logger.Warn("[notifier] Primary send failed, trying direct HTTP: %v", err)
	if fbErr := n.fallback.Send(ctx, chatID, text); fbErr != nil {
		return fmt.Errorf("%w; fallback: %v", err, fbErr)
	}
	return nil
}

// Responder returns a command responder sharing this notifier's bot client,
// or nil when the client library is not in use or text is empty.
func (n *Notifier) Responder(text string) *Responder {
	if n == nil || n.bot == nil || text == "" {
		return nil
	}
	return &Responder{bot: n.bot, reply: n, text: text, logger: n.logger}
}
