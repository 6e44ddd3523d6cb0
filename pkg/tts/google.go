package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	e "nuclight.org/relay-tg-bot/pkg/entities"
)

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

type FileStore interface {
	Save(ctx context.Context, m e.Modality, data []byte) (string, error)
}

// Google speaks text through the Google Translate TTS endpoint, the same one gTTS uses.
// The endpoint accepts short inputs only, so text is split on whitespace into chunks of
// at most MaxChunkLen characters and the MP3 responses are concatenated.
type Google struct {
	// Lang is the language code of the voice, e.g. "pt"
	Lang string

	// BaseURL overrides DefaultBaseURL
	BaseURL string

	HTTPClient HTTPClient

	// Store receives the synthesized audio in SynthesizeToFile
	Store FileStore
}

func NewGoogle(lang string, httpClient HTTPClient, store FileStore) *Google {
	return &Google{
		Lang:       lang,
		BaseURL:    DefaultBaseURL,
		HTTPClient: httpClient,
		Store:      store,
	}
}

var ErrEmptyText = errors.New("nothing to synthesize")

// Synthesize returns MP3 audio of text.
func (g *Google) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := SplitText(text, MaxChunkLen)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := g.fetch(ctx, chunk, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		audio.Write(data)
	}

	return audio.Bytes(), nil
}

// SynthesizeToFile synthesizes text and writes it to the store, returning the file path.
func (g *Google) SynthesizeToFile(ctx context.Context, text string) (string, error) {
	audio, err := g.Synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("synthesizing: %w", err)
	}

	path, err := g.Store.Save(ctx, e.ModalitySpeech, audio)
	if err != nil {
		return "", fmt.Errorf("saving audio: %w", err)
	}

	return path, nil
}

func (g *Google) fetch(ctx context.Context, chunk string, idx, total int) ([]byte, error) {
	base := g.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", g.Lang)
	query.Set("q", chunk)
	query.Set("total", strconv.Itoa(total))
	query.Set("idx", strconv.Itoa(idx))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "audio/mpeg")

	res, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}

	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d: %s", res.StatusCode, resBody)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}

	return body, nil
}

// SplitText breaks text into whitespace-separated chunks of at most limit runes.
// Words longer than limit are cut.
func SplitText(text string, limit int) []string {
	var chunks []string
	var sb strings.Builder
	size := 0

	flush := func() {
		if sb.Len() > 0 {
			chunks = append(chunks, sb.String())
			sb.Reset()
			size = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)

		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}

		if len(runes) == 0 {
			continue
		}

		if size > 0 && size+1+len(runes) > limit {
			flush()
		}

		if size > 0 {
			sb.WriteRune(' ')
			size++
		}
		sb.WriteString(string(runes))
		size += len(runes)
	}

	flush()

	return chunks
}

const (
	DefaultBaseURL = "https://translate.google.com/translate_tts"
	DefaultLang    = "pt"
	MaxChunkLen    = 200

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)
