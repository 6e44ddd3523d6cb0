package relay

import (
	_ "embed"
	"strings"
)

//go:embed welcome.md
var welcomeRaw string

var welcomeText = strings.TrimSpace(welcomeRaw)

const (
	msgToAudioUsage = "Por favor, forneça o texto após o comando /to_audio."
	msgToAudioAck   = "Gerando áudio..."
	msgVoiceCaption = "Aqui está o áudio gerado!"
	msgToAudioError = "Desculpe, ocorreu um erro ao gerar o áudio."

	msgImageAck   = "Recebendo a imagem. Iniciando o processo de descrição da imagem..."
	msgImageLabel = "Sua descrição da imagem"
	msgImageError = "Desculpe, ocorreu um erro durante a descrição da imagem."

	msgVoiceAck   = "Recebendo áudio. Iniciando o processo de transcrição do áudio..."
	msgVoiceLabel = "Transcrição do áudio:"
	msgVoiceError = "Desculpe, ocorreu um erro durante a transcrição."
)
