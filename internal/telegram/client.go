// Package telegram connects ca-monitor to the Telegram Bot API.
// It long-polls for channel posts and chat messages, converts them into
// models.IncomingMessage values, and delivers routed notifications with retry
// logic for reliability.
//
// Owner notifications use MarkdownV2; target notifications are the bare
// address in plain text so they can be copied with one tap.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/ca-monitor/internal/logger"
	"github.com/rewired-gh/ca-monitor/internal/models"
)

// botAPI is the subset of *tgbotapi.BotAPI the client uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// ListenOptions controls how updates are received and filtered
type ListenOptions struct {
	PollTimeout      int  // long-poll timeout in seconds
	PinnedOnlyGroups bool // only pinned messages count for groups
}

// Client handles Telegram updates and notifications
type Client struct {
	bot            botAPI
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken string, maxRetries int, retryDelayBase time.Duration, debug bool) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	bot.Debug = debug
	logger.Info("Authorized on Telegram account @%s", bot.Self.UserName)

	return newClient(bot, maxRetries, retryDelayBase), nil
}

func newClient(bot botAPI, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Listen starts long polling and returns a channel of converted messages.
// The channel is closed when ctx is cancelled.
func (c *Client) Listen(ctx context.Context, opts ListenOptions) <-chan models.IncomingMessage {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = opts.PollTimeout
	u.AllowedUpdates = []string{"message", "channel_post"}

	updates := c.bot.GetUpdatesChan(u)
	out := make(chan models.IncomingMessage)

	go func() {
		defer close(out)
		defer c.bot.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := Convert(update, opts.PinnedOnlyGroups)
				if !ok {
					continue
				}
				select {
				case out <- *msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Send delivers a routed notification
func (c *Client) Send(ctx context.Context, n models.Notification) error {
	var msg tgbotapi.MessageConfig
	switch n.Recipient {
	case models.RecipientTarget:
		msg = tgbotapi.NewMessage(n.ChatID, formatTargetMessage(n.Address))
	default:
		msg = tgbotapi.NewMessage(n.ChatID, formatOwnerMessage(n.Detection))
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	msg.DisableWebPagePreview = true

	if err := c.send(ctx, msg); err != nil {
		return fmt.Errorf("notify %s %d: %w", n.Recipient, n.ChatID, err)
	}
	return nil
}

// Notify sends a plain text message, used for lifecycle notices
func (c *Client) Notify(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, tgbotapi.NewMessage(chatID, text))
}

// send sends with retry
func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Debug("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}
