package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	e "nuclight.org/relay-tg-bot/pkg/entities"
	"nuclight.org/relay-tg-bot/pkg/logger"
)

type reply struct {
	kind    string
	text    string
	caption string
}

type fakeReplier struct {
	replies []reply
	failOn  int // 1-based reply number to fail, 0 never
}

func (f *fakeReplier) add(r reply) error {
	f.replies = append(f.replies, r)
	if f.failOn == len(f.replies) {
		return errors.New("send failed")
	}
	return nil
}

func (f *fakeReplier) ReplyText(_ context.Context, text string) error {
	return f.add(reply{kind: "text", text: text})
}

func (f *fakeReplier) ReplyMarkdown(_ context.Context, text string) error {
	return f.add(reply{kind: "markdown", text: text})
}

func (f *fakeReplier) ReplyVoice(_ context.Context, path, caption string) error {
	return f.add(reply{kind: "voice", text: path, caption: caption})
}

type fakeDownloader struct {
	data []byte
	err  error
	ids  []string
	// replies seen when Download was called
	seen func() int
	at   int
}

func (f *fakeDownloader) Download(_ context.Context, fileID string) ([]byte, error) {
	f.ids = append(f.ids, fileID)
	if f.seen != nil {
		f.at = f.seen()
	}
	return f.data, f.err
}

type fakeStore struct {
	mu    sync.Mutex
	saved []e.Modality
	err   error
}

func (f *fakeStore) Save(_ context.Context, m e.Modality, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, m)
	return "temp/" + m.Name + "." + m.Ext, nil
}

type fakeAI struct {
	description   string
	transcription string
	err           error
	paths         []string
	mimeTypes     []string
}

func (f *fakeAI) DescribeImage(_ context.Context, path, mimeType string) (string, error) {
	f.paths = append(f.paths, path)
	f.mimeTypes = append(f.mimeTypes, mimeType)
	return f.description, f.err
}

func (f *fakeAI) TranscribeAudio(_ context.Context, path, mimeType string) (string, error) {
	f.paths = append(f.paths, path)
	f.mimeTypes = append(f.mimeTypes, mimeType)
	return f.transcription, f.err
}

type fakeTTS struct {
	texts []string
	err   error
	block bool
}

func (f *fakeTTS) SynthesizeToFile(ctx context.Context, text string) (string, error) {
	f.texts = append(f.texts, text)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return "temp/audio.mp3", nil
}

type fakeReporter struct {
	errs []error
}

func (f *fakeReporter) CaptureException(err error) *sentry.EventID {
	f.errs = append(f.errs, err)
	id := sentry.EventID("test")
	return &id
}

func newHandler() (*Handler, *fakeDownloader, *fakeStore, *fakeAI, *fakeTTS, *fakeReporter) {
	dl := &fakeDownloader{data: []byte("bytes")}
	store := &fakeStore{}
	ai := &fakeAI{}
	tts := &fakeTTS{}
	rep := &fakeReporter{}
	h := &Handler{
		Log:        logger.Discard(),
		Timeout:    time.Minute,
		Store:      store,
		Downloader: dl,
		AI:         ai,
		TTS:        tts,
		Reporter:   rep,
	}
	return h, dl, store, ai, tts, rep
}

func photoEvent() e.Event {
	return e.Event{
		ID:         "1",
		Kind:       e.EventKindPhoto,
		Sender:     e.User{ID: "10", ChatID: "20"},
		Attachment: &e.Attachment{FileID: "photo-big"},
	}
}

func voiceEvent() e.Event {
	return e.Event{
		ID:         "2",
		Kind:       e.EventKindVoice,
		Sender:     e.User{ID: "10", ChatID: "20"},
		Attachment: &e.Attachment{FileID: "voice-1", MimeType: "audio/mpeg"},
	}
}

func texts(replies []reply) []string {
	out := make([]string, len(replies))
	for i, r := range replies {
		out[i] = r.text
	}
	return out
}

func TestHandleEvent_Start(t *testing.T) {
	h, _, _, _, _, _ := newHandler()

	for i := 0; i < 2; i++ {
		r := &fakeReplier{}
		if err := h.HandleEvent(context.Background(), e.Event{Kind: e.EventKindStart}, r); err != nil {
			t.Fatalf("HandleEvent: %v", err)
		}

		if len(r.replies) != 1 {
			t.Fatalf("len(replies) = %d, want 1", len(r.replies))
		}
		if r.replies[0].kind != "markdown" {
			t.Errorf("kind = %q, want markdown", r.replies[0].kind)
		}
		for _, marker := range []string{"🎤", "🖼️", "🔊"} {
			if !strings.Contains(r.replies[0].text, marker) {
				t.Errorf("welcome text lacks %q", marker)
			}
		}
	}
}

func TestHandleEvent_ToAudioEmpty(t *testing.T) {
	h, _, _, _, tts, _ := newHandler()
	r := &fakeReplier{}

	err := h.HandleEvent(context.Background(), e.Event{Kind: e.EventKindToAudio}, r)
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(tts.texts) != 0 {
		t.Errorf("synthesis called with %q", tts.texts)
	}
	if len(r.replies) != 1 || r.replies[0].text != msgToAudioUsage {
		t.Errorf("replies = %q, want usage prompt", texts(r.replies))
	}
}

func TestHandleEvent_ToAudio(t *testing.T) {
	for _, arg := range []string{"a", "olá mundo", strings.Repeat("texto ", 80)} {
		h, _, _, _, tts, _ := newHandler()
		r := &fakeReplier{}

		err := h.HandleEvent(context.Background(), e.Event{Kind: e.EventKindToAudio, Args: arg}, r)
		if err != nil {
			t.Fatalf("HandleEvent: %v", err)
		}

		if len(tts.texts) != 1 || tts.texts[0] != arg {
			t.Errorf("synthesized %q, want [%q]", tts.texts, arg)
		}

		last := r.replies[len(r.replies)-1]
		if last.kind != "voice" {
			t.Fatalf("last reply kind = %q, want voice", last.kind)
		}
		if last.caption == "" {
			t.Error("voice reply has empty caption")
		}
		if last.text != "temp/audio.mp3" {
			t.Errorf("voice path = %q, want %q", last.text, "temp/audio.mp3")
		}
	}
}

func TestHandleEvent_ToAudioFailure(t *testing.T) {
	h, _, _, _, tts, rep := newHandler()
	tts.err = errors.New("tts down")
	r := &fakeReplier{}

	if err := h.HandleEvent(context.Background(), e.Event{Kind: e.EventKindToAudio, Args: "oi"}, r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := texts(r.replies)
	if len(got) != 2 || got[0] != msgToAudioAck || got[1] != msgToAudioError {
		t.Errorf("replies = %q, want ack then apology", got)
	}
	if len(rep.errs) != 1 {
		t.Errorf("reported %d errors, want 1", len(rep.errs))
	}
}

func TestHandleEvent_ToAudioTimeout(t *testing.T) {
	h, _, _, _, tts, _ := newHandler()
	h.Timeout = 10 * time.Millisecond
	tts.block = true
	r := &fakeReplier{}

	if err := h.HandleEvent(context.Background(), e.Event{Kind: e.EventKindToAudio, Args: "oi"}, r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := texts(r.replies)
	if len(got) != 2 || got[1] != msgToAudioError {
		t.Errorf("replies = %q, want ack then apology", got)
	}
}

func TestHandleEvent_Photo(t *testing.T) {
	h, dl, store, ai, _, _ := newHandler()
	ai.description = "X"
	r := &fakeReplier{}
	dl.seen = func() int { return len(r.replies) }

	if err := h.HandleEvent(context.Background(), photoEvent(), r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := texts(r.replies)
	if len(got) != 3 {
		t.Fatalf("replies = %q, want 3", got)
	}
	if got[0] != msgImageAck || got[1] != msgImageLabel {
		t.Errorf("replies = %q", got)
	}
	if got[2] != "X" {
		t.Errorf("description reply = %q, want %q", got[2], "X")
	}
	if dl.at != 1 {
		t.Errorf("download started after %d replies, want 1", dl.at)
	}
	if len(dl.ids) != 1 || dl.ids[0] != "photo-big" {
		t.Errorf("downloaded %q, want [photo-big]", dl.ids)
	}
	if len(store.saved) != 1 || store.saved[0] != e.ModalityImage {
		t.Errorf("saved %v, want [image]", store.saved)
	}
	if len(ai.paths) != 1 || ai.paths[0] != "temp/image.jpg" {
		t.Errorf("analyzed %q", ai.paths)
	}
}

func TestHandleEvent_PhotoFailure(t *testing.T) {
	h, _, _, ai, _, rep := newHandler()
	ai.err = errors.New("malformed json")
	r := &fakeReplier{}

	if err := h.HandleEvent(context.Background(), photoEvent(), r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := texts(r.replies)
	if len(got) != 2 || got[0] != msgImageAck || got[1] != msgImageError {
		t.Errorf("replies = %q, want ack then apology", got)
	}
	if len(rep.errs) != 1 || !strings.Contains(rep.errs[0].Error(), "malformed json") {
		t.Errorf("reported %v", rep.errs)
	}
}

func TestHandleEvent_Voice(t *testing.T) {
	h, _, store, ai, _, _ := newHandler()
	ai.transcription = "Y"
	r := &fakeReplier{}

	if err := h.HandleEvent(context.Background(), voiceEvent(), r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	got := texts(r.replies)
	if len(got) != 3 {
		t.Fatalf("replies = %q, want 3", got)
	}
	if got[0] != msgVoiceAck || got[1] != msgVoiceLabel || got[2] != "Y" {
		t.Errorf("replies = %q", got)
	}
	if len(store.saved) != 1 || store.saved[0] != e.ModalityVoice {
		t.Errorf("saved %v, want [voice]", store.saved)
	}
	if len(ai.mimeTypes) != 1 || ai.mimeTypes[0] != "audio/mpeg" {
		t.Errorf("mime types = %q, want [audio/mpeg]", ai.mimeTypes)
	}
}

func TestHandleEvent_VoiceFailures(t *testing.T) {
	tests := map[string]func(*fakeDownloader, *fakeStore, *fakeAI){
		"download": func(dl *fakeDownloader, _ *fakeStore, _ *fakeAI) { dl.err = errors.New("network") },
		"store":    func(_ *fakeDownloader, s *fakeStore, _ *fakeAI) { s.err = errors.New("disk full") },
		"ai":       func(_ *fakeDownloader, _ *fakeStore, ai *fakeAI) { ai.err = errors.New("api") },
	}

	for name, breakIt := range tests {
		t.Run(name, func(t *testing.T) {
			h, dl, store, ai, _, rep := newHandler()
			breakIt(dl, store, ai)
			r := &fakeReplier{}

			if err := h.HandleEvent(context.Background(), voiceEvent(), r); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}

			got := texts(r.replies)
			if len(got) != 2 || got[0] != msgVoiceAck || got[1] != msgVoiceError {
				t.Errorf("replies = %q, want ack then apology", got)
			}
			if len(rep.errs) != 1 {
				t.Errorf("reported %d errors, want 1", len(rep.errs))
			}
		})
	}
}

func TestHandleEvent_MissingAttachment(t *testing.T) {
	h, dl, _, _, _, rep := newHandler()
	ev := voiceEvent()
	ev.Attachment = nil
	r := &fakeReplier{}

	if err := h.HandleEvent(context.Background(), ev, r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(dl.ids) != 0 {
		t.Errorf("downloaded %q", dl.ids)
	}
	if len(rep.errs) != 1 || !errors.Is(rep.errs[0], errNoAttachment) {
		t.Errorf("reported %v, want errNoAttachment", rep.errs)
	}
}

func TestHandleEvent_AckFailureStops(t *testing.T) {
	h, dl, _, _, _, _ := newHandler()
	r := &fakeReplier{failOn: 1}

	err := h.HandleEvent(context.Background(), photoEvent(), r)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(dl.ids) != 0 {
		t.Errorf("download attempted after failed ack")
	}
}

func TestHandleEvent_NilReporter(t *testing.T) {
	h, _, _, ai, _, _ := newHandler()
	h.Reporter = nil
	ai.err = errors.New("api")
	r := &fakeReplier{}

	if err := h.HandleEvent(context.Background(), photoEvent(), r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(r.replies) != 2 {
		t.Errorf("len(replies) = %d, want 2", len(r.replies))
	}
}

func TestHandleEvent_UnknownKind(t *testing.T) {
	h, _, _, _, _, _ := newHandler()
	r := &fakeReplier{}

	if err := h.HandleEvent(context.Background(), e.Event{Kind: "sticker"}, r); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(r.replies) != 0 {
		t.Errorf("replies = %q, want none", texts(r.replies))
	}
}
