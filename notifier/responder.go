package notifier

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"apartment-scraper/utils"
)

const (
	textCommand  = "/text"
	pollTimeout  = 10 // seconds, long-poll window on the Bot API side
	pollErrDelay = 5 * time.Second
)

// Responder answers the /text command with the predefined inquiry text.
type Responder struct {
	bot    *tgbotapi.BotAPI
	reply  *Notifier
	text   string
	offset int
	logger *utils.Logger
}

// Run polls for updates until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) {
	r.logger.Info("[responder] Listening for %s commands", textCommand)
	for ctx.Err() == nil {
		if err := r.poll(ctx); err != nil {
			r.logger.Error("[responder] Error checking Telegram updates: %v", err)
			if utils.Sleep(ctx, pollErrDelay) != nil {
				break
			}
		}
	}
	r.logger.Info("[responder] Stopped")
}

// poll fetches one batch of updates and answers every /text command in it.
func (r *Responder) poll(ctx context.Context) error {
	updates, err := r.bot.GetUpdates(tgbotapi.UpdateConfig{
		Offset:  r.offset + 1,
		Timeout: pollTimeout,
	})
	if err != nil {
		return err
	}

	for _, u := range updates {
		if u.UpdateID > r.offset {
			r.offset = u.UpdateID
		}
		if u.Message == nil || u.Message.Chat == nil {
			continue
		}
		if strings.TrimSpace(u.Message.Text) != textCommand {
			continue
		}

		chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
		if err := r.reply.send(ctx, chatID, r.text); err != nil {
			r.logger.Error("[responder] Error sending predefined text to %s: %v", chatID, err)
			continue
		}
		r.logger.Info("[responder] Sent predefined text to chat %s", chatID)
	}
	return nil
}
