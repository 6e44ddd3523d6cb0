package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// chatReplier sends replies to the chat an event came from. A non-zero replyTo
// makes every reply quote that message.
type chatReplier struct {
	bot     BotAPI
	chatID  int64
	replyTo int
	sent    int
}

func (r *chatReplier) ReplyText(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ReplyToMessageID = r.replyTo
	return r.send(msg)
}

func (r *chatReplier) ReplyMarkdown(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ReplyToMessageID = r.replyTo
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	return r.send(msg)
}

func (r *chatReplier) ReplyVoice(_ context.Context, path, caption string) error {
	voice := tgbotapi.NewVoice(r.chatID, tgbotapi.FilePath(path))
	voice.Caption = caption
	voice.ReplyToMessageID = r.replyTo
	return r.send(voice)
}

func (r *chatReplier) send(c tgbotapi.Chattable) error {
	if _, err := r.bot.Send(c); err != nil {
		return err
	}
	r.sent++
	return nil
}
