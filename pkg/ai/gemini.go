package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
	e "nuclight.org/relay-tg-bot/pkg/entities"
	"nuclight.org/relay-tg-bot/pkg/logger"
)

// Gemini uploads scratch files to the Gemini API and asks for a JSON answer about them.
type Gemini struct {
	client *genai.Client
	model  string
	log    logger.Logger
}

func NewGemini(ctx context.Context, log logger.Logger, apiKey, model string, httpClient *http.Client) (*Gemini, error) {
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  model,
		log:    log,
	}, nil
}

// DescribeImage describes the image at path. An empty mimeType means image/jpeg.
func (g *Gemini) DescribeImage(ctx context.Context, path, mimeType string) (string, error) {
	var result ImageDescription
	err := g.Analyze(ctx, path, orDefault(mimeType, e.ModalityImage), describeImagePrompt, DescriptionFormat, &result)
	if err != nil {
		return "", err
	}

	if result.Description == "" {
		return "", fmt.Errorf("%s: %w", DescriptionFormat.Field, ErrEmptyField)
	}

	return result.Description, nil
}

// TranscribeAudio transcribes the recording at path. An empty mimeType means audio/ogg.
func (g *Gemini) TranscribeAudio(ctx context.Context, path, mimeType string) (string, error) {
	var result AudioTranscription
	err := g.Analyze(ctx, path, orDefault(mimeType, e.ModalityVoice), transcribeAudioPrompt, TranscriptionFormat, &result)
	if err != nil {
		return "", err
	}

	if result.Transcription == "" {
		return "", fmt.Errorf("%s: %w", TranscriptionFormat.Field, ErrEmptyField)
	}

	return result.Transcription, nil
}

// Analyze uploads the file at path, asks the model to follow instruction with the file as
// input and decodes the JSON answer into result.
func (g *Gemini) Analyze(ctx context.Context, path, mimeType, instruction string, rf ResponseFormat, result any) error {
	log := g.log.With("path", path, "format", rf.Name, "mime_type", mimeType)

	log.Debug("uploading file to gemini")
	file, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType: mimeType,
	})
	if err != nil {
		return fmt.Errorf("uploading file: %w", err)
	}

	if file.MIMEType != "" {
		mimeType = file.MIMEType
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instruction),
			genai.NewPartFromURI(file.URI, mimeType),
		}, genai.RoleUser),
	}

	log.Debug("generating content", "model", g.model, "file", file.Name)
	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, generateConfig(rf))
	if err != nil {
		return fmt.Errorf("generating content: %w", err)
	}

	text := res.Text()
	log.Info("content generated", "response", text)

	if err = decodeResult(text, result); err != nil {
		return err
	}

	return nil
}

func generateConfig(rf ResponseFormat) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   rf.Schema,
		SafetySettings:   safetySettings(),
	}
}

// safetySettings sets every adjustable harm category to BLOCK_NONE.
func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
	}

	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}

	return settings
}

func decodeResult(text string, result any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty response text")
	}

	if err := json.Unmarshal([]byte(text), result); err != nil {
		return fmt.Errorf("unmarshal response content: %w", err)
	}

	return nil
}

func orDefault(mimeType string, m e.Modality) string {
	if mimeType == "" {
		return m.MimeType
	}
	return mimeType
}

//go:embed prompts/describe_image.txt
var describeImageRaw string

//go:embed prompts/transcribe_audio.txt
var transcribeAudioRaw string

var (
	describeImagePrompt   = strings.TrimSpace(describeImageRaw)
	transcribeAudioPrompt = strings.TrimSpace(transcribeAudioRaw)
)
