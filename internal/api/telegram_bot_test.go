package api

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/integration"
	"github.com/abelzeko/kommunekamp/internal/usecases"
)

func commandMessage(text string) *tgbotapi.Message {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42},
		From:     &tgbotapi.User{UserName: "tester"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{UserName: "tester"},
	}
}

func TestBotCompareCommand(t *testing.T) {
	svc := &fakeService{}
	bot := &TelegramBot{service: svc}

	reply := bot.respond(context.Background(), commandMessage("/compare 0301 vs 5001"))
	msg, ok := reply.(tgbotapi.MessageConfig)
	require.True(t, ok, "expected a text message, got %T", reply)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "Oslo (0301) vs Trondheim (5001)")
	assert.Contains(t, msg.Text, "Winner: Oslo (0301)")
	assert.Equal(t, [2]string{"0301", "5001"}, svc.lastIDs)
}

func TestBotCompareCommandErrors(t *testing.T) {
	bot := &TelegramBot{service: &fakeService{compareErr: entities.ErrKommNotFound}}

	msg := bot.respond(context.Background(), commandMessage("/compare 0301")).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Example: /compare")

	msg = bot.respond(context.Background(), commandMessage("/compare 0301 9999")).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "could not find")
}

func TestBotReportCommand(t *testing.T) {
	bot := &TelegramBot{service: &fakeService{}}

	reply := bot.respond(context.Background(), commandMessage("/report 0301 5001"))
	doc, ok := reply.(tgbotapi.DocumentConfig)
	require.True(t, ok, "expected a document, got %T", reply)
	assert.Equal(t, int64(42), doc.ChatID)

	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "Norkart_Kommunekamp_0301_vs_5001_1700000000.pdf", file.Name)
	assert.Equal(t, []byte("%PDF-1.4"), file.Bytes)
}

func TestBotReportFailure(t *testing.T) {
	bot := &TelegramBot{service: &fakeService{reportErr: integration.ErrReportFailed}}

	msg := bot.respond(context.Background(), commandMessage("/report 0301 5001")).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "report service")
}

func TestBotHelpAndUnknown(t *testing.T) {
	bot := &TelegramBot{service: &fakeService{}}

	msg := bot.respond(context.Background(), commandMessage("/help")).(tgbotapi.MessageConfig)
	assert.Equal(t, usecases.HelpText, msg.Text)

	msg = bot.respond(context.Background(), commandMessage("/start")).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Welcome")

	msg = bot.respond(context.Background(), commandMessage("/rivers")).(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Unknown command")
}

func TestBotNaturalLanguage(t *testing.T) {
	svc := &fakeService{nlReply: &usecases.Reply{Text: "Hei!"}}
	bot := &TelegramBot{service: svc}

	msg := bot.respond(context.Background(), textMessage("hei")).(tgbotapi.MessageConfig)
	assert.Equal(t, "Hei!", msg.Text)

	svc.nlReply = &usecases.Reply{Text: "Her er rapporten", Document: &integration.Document{Filename: "r.pdf", Body: []byte("x")}}
	doc := bot.respond(context.Background(), textMessage("pdf oslo bergen")).(tgbotapi.DocumentConfig)
	assert.Equal(t, "Her er rapporten", doc.Caption)
}

func TestCommandPair(t *testing.T) {
	tests := []struct {
		args   string
		id1    string
		id2    string
		wantOK bool
	}{
		{"0301 5001", "0301", "5001", true},
		{"0301,5001", "0301", "5001", true},
		{"0301 VS 5001", "0301", "5001", true},
		{"0301", "", "", false},
		{"", "", "", false},
		{"1 2 3", "", "", false},
	}
	for _, tt := range tests {
		id1, id2, ok := commandPair(tt.args)
		assert.Equal(t, tt.wantOK, ok, tt.args)
		assert.Equal(t, tt.id1, id1, tt.args)
		assert.Equal(t, tt.id2, id2, tt.args)
	}
}
