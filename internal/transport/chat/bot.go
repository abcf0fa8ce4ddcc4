package chat

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vpntrack-server-go/internal/domain/registry"
	"vpntrack-server-go/internal/platform/config"
	platformerrors "vpntrack-server-go/internal/platform/errors"
)

// Bot is the Telegram front-end. It translates chat commands into typed
// registry commands and renders worker replies back to the user; it
// never touches the store itself.
type Bot struct {
	api         *tgbotapi.BotAPI
	dispatcher  *registry.Dispatcher
	logger      *slog.Logger
	pollTimeout int
}

func New(cfg *config.TelegramConfig, dispatcher *registry.Dispatcher, logger *slog.Logger) (*Bot, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, platformerrors.New(
			platformerrors.KindConfig, "chat", "telegram bot token required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, platformerrors.Wrap(
			platformerrors.KindTransport, "chat", "telegram authorization failed", err)
	}
	api.Debug = cfg.Debug

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 30
	}

	return &Bot{
		api:         api,
		dispatcher:  dispatcher,
		logger:      logger,
		pollTimeout: timeout,
	}, nil
}

// Run long-polls Telegram until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("[BOT] connected", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.logger.Debug("[BOT] message", "user", userID)

	switch Route(msg.Text) {
	case ActionToken:
		b.respondFromWorker(ctx, msg.Chat.ID, registry.NewIssueCredential(userID), renderToken)
	case ActionQuery:
		b.respondFromWorker(ctx, msg.Chat.ID, registry.NewQueryAddress(userID), renderQuery)
	case ActionUnknown:
		b.send(msg.Chat.ID, unknownCommandText, false)
	default:
		b.send(msg.Chat.ID, helpText, false)
	}
}

// respondFromWorker submits one command and renders its single reply.
// A failed dispatch or a failure result is final for this message; no
// retry happens anywhere on this path.
func (b *Bot) respondFromWorker(
	ctx context.Context,
	chatID int64,
	cmd registry.Command,
	render func(registry.Result) string,
) {
	if err := b.dispatcher.Submit(ctx, cmd); err != nil {
		b.logger.Error("[BOT] dispatch failed", "err", err)
		b.send(chatID, "Service is unavailable, try again later", false)
		return
	}
	res, err := cmd.Wait(ctx)
	if err != nil {
		b.logger.Error("[BOT] waiting for reply failed", "err", err)
		return
	}
	if !res.OK {
		b.send(chatID, "Something went wrong, try again later", false)
		return
	}
	b.send(chatID, render(res), true)
}

func renderToken(res registry.Result) string {
	return fmt.Sprintf("Your token is `%s`", res.Text)
}

func renderQuery(res registry.Result) string {
	return res.Text
}

func (b *Bot) send(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("[BOT] send failed", "err", err)
	}
}
