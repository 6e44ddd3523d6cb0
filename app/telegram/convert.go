package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	e "nuclight.org/relay-tg-bot/pkg/entities"
)

// convertUpdate maps a message update to a relay event. ok is false for anything
// the relay does not handle.
func convertUpdate(update tgbotapi.Update) (ev e.Event, ok bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return e.Event{}, false
	}

	ev = e.Event{
		ID:        strconv.Itoa(update.UpdateID),
		MessageID: takeMessageID(msg),
		Sender: e.User{
			ChatID:    takeChatID(msg.Chat),
			ChatTitle: msg.Chat.Title,
		},
	}

	if msg.From != nil {
		ev.Sender.ID = takeUserID(msg.From)
		ev.Sender.Name = takeUserName(msg.From)
	}

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start":
			ev.Kind = e.EventKindStart
		case "to_audio":
			ev.Kind = e.EventKindToAudio
			ev.Args = strings.Join(strings.Fields(msg.CommandArguments()), " ")
		default:
			return e.Event{}, false
		}
	case len(msg.Photo) > 0:
		photo := largestPhoto(msg.Photo)
		ev.Kind = e.EventKindPhoto
		ev.Attachment = &e.Attachment{
			FileID:   photo.FileID,
			MimeType: e.ModalityImage.MimeType,
		}
	case msg.Voice != nil:
		mimeType := msg.Voice.MimeType
		if mimeType == "" {
			mimeType = e.ModalityVoice.MimeType
		}
		ev.Kind = e.EventKindVoice
		ev.Attachment = &e.Attachment{
			FileID:   msg.Voice.FileID,
			MimeType: mimeType,
		}
	default:
		return e.Event{}, false
	}

	return ev, true
}

// largestPhoto picks the variant with the most pixels, the last one on ties.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height >= best.Width*best.Height {
			best = s
		}
	}
	return best
}

func takeUserName(user *tgbotapi.User) string {
	var sb strings.Builder

	if user.FirstName != "" {
		sb.WriteString(user.FirstName)
	}

	if user.LastName != "" {
		if sb.Len() > 0 {
			sb.WriteRune(' ')
		}
		sb.WriteString(user.LastName)
	}

	if user.UserName != "" {
		if sb.Len() > 0 {
			sb.WriteString(" (@")
			sb.WriteString(user.UserName)
			sb.WriteRune(')')
		} else {
			sb.WriteRune('@')
			sb.WriteString(user.UserName)
		}
	}

	if sb.Len() == 0 {
		return takeUserID(user)
	}

	return sb.String()
}
