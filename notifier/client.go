package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"apartment-scraper/utils"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	requestTimeout = 10 * time.Second
	// botTimeout covers a full getUpdates long-poll plus the round trip.
	botTimeout = pollTimeout*time.Second + 5*time.Second
	parseModeHTML  = "HTML"
)

// sender delivers one message to one chat.
type sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// primaryClient sends through the Bot API client library.
type primaryClient struct {
	bot *tgbotapi.BotAPI
}

func (c *primaryClient) Send(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.ParseMode = parseModeHTML

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %s: %w", chatID, err)
	}
	return nil
}

// fallbackClient posts directly to the sendMessage endpoint.
type fallbackClient struct {
	apiBase string
	token   string
	http    *http.Client
}

func newFallbackClient(apiBase, token string, httpClient *http.Client) *fallbackClient {
	return &fallbackClient{apiBase: apiBase, token: token, http: httpClient}
}

func (c *fallbackClient) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": parseModeHTML,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram http: send to %s: %w", chatID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http: send to %s: status %d", chatID, resp.StatusCode)
	}
	return nil
}

// newClient picks the delivery client once. The library client is preferred;
// when it cannot be built (it validates the token on construction) the direct
// HTTP client takes over for the rest of the process.
func newClient(apiBase, token string, httpClient *http.Client, logger *utils.Logger) (sender, *tgbotapi.BotAPI) {
	endpoint := strings.TrimRight(apiBase, "/") + "/bot%s/%s"
	botHTTP := &http.Client{Transport: httpClient.Transport, Timeout: botTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, botHTTP)
	if err != nil {
		logger.Warn("[notifier] Telegram client unavailable, using direct HTTP: %v", err)
		return newFallbackClient(apiBase, token, httpClient), nil
	}
	logger.Info("[notifier] Telegram client ready as @%s", bot.Self.UserName)
	return &primaryClient{bot: bot}, bot
}
