// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/abelzeko/kommunekamp/internal/integration"
	"github.com/abelzeko/kommunekamp/internal/usecases"
)

// BotService is the part of the comparison use case the chat bot needs
type BotService interface {
	Compare(ctx context.Context, id1, id2 string) (*usecases.Comparison, error)
	Report(ctx context.Context, id1, id2 string) (*integration.Document, error)
	HandleNaturalLanguageQuery(ctx context.Context, query string) *usecases.Reply
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot            *tgbotapi.BotAPI
	service        BotService
	requestTimeout time.Duration
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, service BotService) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:            bot,
		service:        service,
		requestTimeout: 2 * time.Minute,
	}, nil
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	log.Info().Str("account", t.bot.Self.UserName).Msg("Authorized on Telegram account")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Info().Msg("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			log.Info().
				Str("user", userName(update.Message)).
				Int64("chat", update.Message.Chat.ID).
				Str("text", update.Message.Text).
				Msg("Received message")

			t.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage processes a Telegram message and sends the reply
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(ctx, t.requestTimeout)
	defer cancel()

	reply := t.respond(ctx, message)

	log.Debug().Str("user", userName(message)).Msg("Sending response")
	if _, err := t.bot.Send(reply); err != nil {
		log.Error().Err(err).Int64("chat", message.Chat.ID).Msg("Error sending message")
	}
}

// respond builds the reply for a message
func (t *TelegramBot) respond(ctx context.Context, message *tgbotapi.Message) tgbotapi.Chattable {
	chatID := message.Chat.ID

	if !message.IsCommand() {
		reply := t.service.HandleNaturalLanguageQuery(ctx, message.Text)
		if reply.Document != nil {
			return documentMessage(chatID, reply.Document, reply.Text)
		}
		return tgbotapi.NewMessage(chatID, reply.Text)
	}

	switch message.Command() {
	case "start":
		return tgbotapi.NewMessage(chatID, "Welcome to Kommunekamp! Compare two municipalities with /compare 0301 4601 or use /help for more information.")

	case "help":
		return tgbotapi.NewMessage(chatID, usecases.HelpText)

	case "compare":
		id1, id2, ok := commandPair(message.CommandArguments())
		if !ok {
			return tgbotapi.NewMessage(chatID, "Please specify two municipality numbers. Example: /compare 0301 4601")
		}
		cmp, err := t.service.Compare(ctx, id1, id2)
		if err != nil {
			log.Warn().Err(err).Str("komm1", id1).Str("komm2", id2).Msg("Comparison failed")
			return tgbotapi.NewMessage(chatID, usecases.UserError(err))
		}
		return tgbotapi.NewMessage(chatID, usecases.FormatComparison(cmp))

	case "report":
		id1, id2, ok := commandPair(message.CommandArguments())
		if !ok {
			return tgbotapi.NewMessage(chatID, "Please specify two municipality numbers. Example: /report 0301 4601")
		}
		doc, err := t.service.Report(ctx, id1, id2)
		if err != nil {
			log.Warn().Err(err).Str("komm1", id1).Str("komm2", id2).Msg("Report failed")
			return tgbotapi.NewMessage(chatID, usecases.UserError(err))
		}
		return documentMessage(chatID, doc, "")

	default:
		log.Info().Str("command", message.Command()).Str("user", userName(message)).Msg("Received unknown command")
		return tgbotapi.NewMessage(chatID, "Unknown command. Use /help to see available commands.")
	}
}

func documentMessage(chatID int64, doc *integration.Document, caption string) tgbotapi.DocumentConfig {
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Filename, Bytes: doc.Body})
	msg.Caption = caption
	return msg
}

// commandPair splits "0301 4601" (or "0301 vs 4601", "0301,4601") into two ids
func commandPair(args string) (string, string, bool) {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	var ids []string
	for _, f := range fields {
		if strings.EqualFold(f, "vs") {
			continue
		}
		ids = append(ids, f)
	}
	if len(ids) != 2 {
		return "", "", false
	}
	return ids[0], ids[1], true
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}
