package ai

import (
	"errors"

	"google.golang.org/genai"
)

// ResponseFormat is the JSON shape the model is constrained to.
type ResponseFormat struct {
	Name   string
	Field  string
	Schema *genai.Schema
}

type ImageDescription struct {
	Description string `json:"description"`
}

type AudioTranscription struct {
	Transcription string `json:"transcription"`
}

var DescriptionFormat = objectFormat(
	"image_description",
	"description",
	"detailed description of the image in Brazilian Portuguese",
)

var TranscriptionFormat = objectFormat(
	"audio_transcription",
	"transcription",
	"transcription of the audio in Brazilian Portuguese",
)

func objectFormat(name, field, description string) ResponseFormat {
	return ResponseFormat{
		Name:  name,
		Field: field,
		Schema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				field: {
					Type:        genai.TypeString,
					Description: description,
				},
			},
			Required: []string{field},
		},
	}
}

// ErrEmptyField is returned when the response parses but the expected field is absent or empty.
var ErrEmptyField = errors.New("response field is missing or empty")

const DefaultModel = "gemini-1.5-flash"
