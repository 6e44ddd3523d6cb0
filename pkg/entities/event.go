package entities

type User struct {
	ID        string
	Name      string
	ChatID    string
	ChatTitle string
}

// Event is a single inbound chat event the relay knows how to handle.
type Event struct {
	// ID is the platform update id, used for log correlation only
	ID string

	Kind      EventKind
	Sender    User
	MessageID string

	// Args is the command argument text, whitespace-normalized. Empty for non-commands.
	Args string

	// Attachment is set for photo and voice events
	Attachment *Attachment
}

type EventKind string

const (
	// EventKindStart is the /start command
	EventKindStart EventKind = "start"

	// EventKindToAudio is the /to_audio command, Args holds the text to speak
	EventKindToAudio EventKind = "to_audio"

	// EventKindPhoto is a photo message, Attachment points to the largest variant
	EventKindPhoto EventKind = "photo"

	// EventKindVoice is a voice note
	EventKindVoice EventKind = "voice"
)

type Attachment struct {
	FileID string

	// MimeType is what the file is uploaded to the AI service as
	MimeType string
}

func (e *Event) HasArgs() bool {
	return e.Args != ""
}

func (e *Event) HasAttachment() bool {
	return e.Attachment != nil && e.Attachment.FileID != ""
}
