package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	e "nuclight.org/relay-tg-bot/pkg/entities"
	"nuclight.org/relay-tg-bot/pkg/logger"
)

// Handler relays chat events to the AI services. Each event is handled on its own:
// an acknowledgment goes out first, then the attachment is downloaded, written to
// scratch storage and sent for analysis, and the result is replied to the same chat.
// Failures of the download/analysis/synthesis step are logged, reported and turned
// into a single apology reply, so a photo, voice or to_audio event ends with either
// the result or exactly one apology.
type Handler struct {
	// Log is a logger
	Log logger.Logger

	// Timeout bounds the whole handling of one event. Zero means no limit.
	Timeout time.Duration

	// Store is where downloaded attachments are written
	Store FileStore

	// Downloader fetches attachment bytes from the chat platform
	Downloader Downloader

	// AI describes images and transcribes voice notes
	AI Analyzer

	// TTS turns text into a voice file
	TTS Synthesizer

	// Reporter receives handled failures, may be nil
	Reporter ErrorReporter
}

// HandleEvent handles one event, sending replies through r. The returned error is
// only about talking to the chat; analysis failures are answered in the chat.
func (h *Handler) HandleEvent(ctx context.Context, ev e.Event, r Replier) error {
	log := h.Log.With("event_id", ev.ID, "kind", ev.Kind, "tg_chat_id", ev.Sender.ChatID, "tg_user_id", ev.Sender.ID)

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	switch ev.Kind {
	case e.EventKindStart:
		return h.start(ctx, log, r)
	case e.EventKindToAudio:
		return h.toAudio(ctx, log, ev, r)
	case e.EventKindPhoto:
		return h.photo(ctx, log, ev, r)
	case e.EventKindVoice:
		return h.voice(ctx, log, ev, r)
	default:
		log.Debug("ignoring event")
		return nil
	}
}

func (h *Handler) start(ctx context.Context, log logger.Logger, r Replier) error {
	log.Info("user started the bot")

	if err := r.ReplyMarkdown(ctx, welcomeText); err != nil {
		return fmt.Errorf("replying welcome: %w", err)
	}

	return nil
}

func (h *Handler) toAudio(ctx context.Context, log logger.Logger, ev e.Event, r Replier) error {
	if !ev.HasArgs() {
		if err := r.ReplyText(ctx, msgToAudioUsage); err != nil {
			return fmt.Errorf("replying usage: %w", err)
		}
		return nil
	}

	if err := r.ReplyText(ctx, msgToAudioAck); err != nil {
		return fmt.Errorf("replying ack: %w", err)
	}

	path, ok, err := h.guard(ctx, log, r, "generating audio", msgToAudioError, func(ctx context.Context) (string, error) {
		return h.TTS.SynthesizeToFile(ctx, ev.Args)
	})
	if !ok {
		return err
	}

	log.Info("audio generated", "path", path)
	if err = r.ReplyVoice(ctx, path, msgVoiceCaption); err != nil {
		return fmt.Errorf("replying voice: %w", err)
	}

	return nil
}

func (h *Handler) photo(ctx context.Context, log logger.Logger, ev e.Event, r Replier) error {
	if err := r.ReplyText(ctx, msgImageAck); err != nil {
		return fmt.Errorf("replying ack: %w", err)
	}

	description, ok, err := h.guard(ctx, log, r, "describing image", msgImageError, func(ctx context.Context) (string, error) {
		path, err := h.fetch(ctx, log, ev, e.ModalityImage)
		if err != nil {
			return "", err
		}
		return h.AI.DescribeImage(ctx, path, ev.Attachment.MimeType)
	})
	if !ok {
		return err
	}

	log.Info("image described", "description", description)
	return h.replyResult(ctx, r, msgImageLabel, description)
}

func (h *Handler) voice(ctx context.Context, log logger.Logger, ev e.Event, r Replier) error {
	if err := r.ReplyText(ctx, msgVoiceAck); err != nil {
		return fmt.Errorf("replying ack: %w", err)
	}

	transcription, ok, err := h.guard(ctx, log, r, "transcribing audio", msgVoiceError, func(ctx context.Context) (string, error) {
		path, err := h.fetch(ctx, log, ev, e.ModalityVoice)
		if err != nil {
			return "", err
		}
		return h.AI.TranscribeAudio(ctx, path, ev.Attachment.MimeType)
	})
	if !ok {
		return err
	}

	log.Info("audio transcribed", "transcription", transcription)
	return h.replyResult(ctx, r, msgVoiceLabel, transcription)
}

// fetch downloads the event attachment and writes it to scratch storage.
func (h *Handler) fetch(ctx context.Context, log logger.Logger, ev e.Event, m e.Modality) (string, error) {
	if !ev.HasAttachment() {
		return "", errNoAttachment
	}

	data, err := h.Downloader.Download(ctx, ev.Attachment.FileID)
	if err != nil {
		return "", fmt.Errorf("downloading attachment: %w", err)
	}

	path, err := h.Store.Save(ctx, m, data)
	if err != nil {
		return "", fmt.Errorf("saving attachment: %w", err)
	}

	log.Debug("attachment saved", "path", path, "size", len(data))
	return path, nil
}

func (h *Handler) replyResult(ctx context.Context, r Replier, label, text string) error {
	if err := r.ReplyText(ctx, label); err != nil {
		return fmt.Errorf("replying label: %w", err)
	}

	if err := r.ReplyText(ctx, text); err != nil {
		return fmt.Errorf("replying result: %w", err)
	}

	return nil
}

// guard runs fn and, if it fails, logs and reports the error and sends apology.
// ok is false when fn failed; err is then only set if the apology could not be sent.
func (h *Handler) guard(
	ctx context.Context,
	log logger.Logger,
	r Replier,
	op, apology string,
	fn func(ctx context.Context) (string, error),
) (result string, ok bool, err error) {
	result, err = fn(ctx)
	if err == nil {
		return result, true, nil
	}

	log.Error(op, "error", err)
	if h.Reporter != nil {
		h.Reporter.CaptureException(fmt.Errorf("%s: %w", op, err))
	}

	// the event deadline may be what failed fn, the apology still has to go out
	if rerr := r.ReplyText(context.WithoutCancel(ctx), apology); rerr != nil {
		return "", false, fmt.Errorf("replying apology: %w", rerr)
	}

	return "", false, nil
}

var errNoAttachment = errors.New("event has no attachment")

type Replier interface {
	ReplyText(ctx context.Context, text string) error
	ReplyMarkdown(ctx context.Context, text string) error
	ReplyVoice(ctx context.Context, path, caption string) error
}

type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

type FileStore interface {
	Save(ctx context.Context, m e.Modality, data []byte) (string, error)
}

type Analyzer interface {
	DescribeImage(ctx context.Context, path, mimeType string) (string, error)
	TranscribeAudio(ctx context.Context, path, mimeType string) (string, error)
}

type Synthesizer interface {
	SynthesizeToFile(ctx context.Context, text string) (string, error)
}

// ErrorReporter is satisfied by *sentry.Hub.
type ErrorReporter interface {
	CaptureException(exception error) *sentry.EventID
}
