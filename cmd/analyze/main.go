package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/relay-tg-bot/pkg/ai"
	"nuclight.org/relay-tg-bot/pkg/logger"
)

var opts struct {
	GeminiAPIKey string `long:"gemini-api-key" env:"GEMINI_API_KEY" required:"true" description:"gemini api key"`
	GeminiModel  string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-1.5-flash" description:"gemini model"`
	Kind         string `short:"k" long:"kind" choice:"image" choice:"audio" default:"image" description:"what the file is"`
	File         string `short:"f" long:"file" required:"true" description:"local file to analyze"`
	MimeType     string `long:"mime-type" description:"mime type of the file, guessed from the extension if empty"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(true)
	log.Info("starting analysis", "kind", opts.Kind, "file", opts.File)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gemini, err := ai.NewGemini(ctx, log, opts.GeminiAPIKey, opts.GeminiModel, http.DefaultClient)
	if err != nil {
		log.Error("creating gemini client", "error", err)
		os.Exit(1)
	}

	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = guessMimeType(opts.File)
	}
	log.Debug("uploading as", "mime_type", mimeType)

	var result string
	switch opts.Kind {
	case "image":
		result, err = gemini.DescribeImage(ctx, opts.File, mimeType)
	case "audio":
		result, err = gemini.TranscribeAudio(ctx, opts.File, mimeType)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("context canceled, stopping")
			os.Exit(1)
		}

		log.Error("analyzing file", "error", err)
		os.Exit(1)
	}

	fmt.Println(result)
}

// guessMimeType maps the file extension to a mime type. Empty lets the client
// fall back to the default of the kind.
func guessMimeType(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ogg", ".oga", ".opus":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case "":
		return ""
	default:
		mimeType := mime.TypeByExtension(ext)
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
		return mimeType
	}
}
