package telegram

import (
	"context"
	"fmt"

	"kadan/internal/application"
	"kadan/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot forwards audit events to moderator chats and answers block lookups.
type Bot struct {
	bot      *tgbotapi.BotAPI
	blocks   application.BlockService
	logger   application.Logger
	adminIDs map[int64]struct{}
}

func NewBot(token string, adminIDs []int64, blocks application.BlockService, logger application.Logger) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	admins := make(map[int64]struct{})
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	logger.Info("Telegram bot authorized on account %s", bot.Self.UserName)

	return &Bot{
		bot:      bot,
		blocks:   blocks,
		logger:   logger,
		adminIDs: admins,
	}, nil
}

func (b *Bot) Init() error {
	return nil
}

func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			chatID := update.Message.Chat.ID
			if !b.isAdmin(chatID) {
				continue
			}
			b.handleCommand(ctx, chatID, update.Message.Command(), update.Message.CommandArguments())
		}
	}
}

func (b *Bot) Stop() {
	b.bot.StopReceivingUpdates()
}

// Notify sends an alert to every moderator chat.
func (b *Bot) Notify(ctx context.Context, ev models.Event) error {
	text := formatAlert(ev)
	if text == "" {
		return nil
	}
	for chatID := range b.adminIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.sendMessage(chatID, text)
	}
	return nil
}
