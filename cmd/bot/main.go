package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"nuclight.org/relay-tg-bot/app/relay"
	"nuclight.org/relay-tg-bot/app/storage"
	"nuclight.org/relay-tg-bot/app/telegram"
	"nuclight.org/relay-tg-bot/pkg/ai"
	"nuclight.org/relay-tg-bot/pkg/logger"
	"nuclight.org/relay-tg-bot/pkg/tts"
)

var opts struct {
	TelegramAPIToken   string `long:"telegram-api-token" env:"BOT_FATHER_TOKEN" required:"true" description:"telegram bot token"`
	TelegramWorkersNum int    `long:"telegram-workers-num" env:"TELEGRAM_WORKERS_NUM" default:"5" description:"number of workers for telegram bot"`

	GeminiAPIKey string `long:"gemini-api-key" env:"GEMINI_API_KEY" required:"true" description:"gemini api key"`
	GeminiModel  string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-1.5-flash" description:"gemini model used for descriptions and transcriptions"`

	TTSLang string `long:"tts-lang" env:"TTS_LANG" default:"pt" description:"language code of synthesized speech"`

	ScratchDir           string        `long:"scratch-dir" env:"SCRATCH_DIR" default:"temp" description:"directory for downloaded and generated files"`
	ScratchRetention     time.Duration `long:"scratch-retention" env:"SCRATCH_RETENTION" default:"24h" description:"age after which scratch files are removed, 0 keeps them"`
	ScratchSweepInterval time.Duration `long:"scratch-sweep-interval" env:"SCRATCH_SWEEP_INTERVAL" default:"1h" description:"how often the scratch directory is swept"`

	RequestTimeout time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"2m" description:"time limit for handling one message"`

	SentryDSN string `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn, empty disables error reporting"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"enable debug logs"`
}

var Revision = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	log := logger.NewLogger(opts.Debug)
	log.Info("starting bot", "revision", Revision)

	if opts.SentryDSN != "" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:     opts.SentryDSN,
			Release: Revision,
		})
		if err != nil {
			log.Error("initializing sentry", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scratch := &storage.Scratch{
		Dir:       opts.ScratchDir,
		Retention: opts.ScratchRetention,
		Log:       log,
	}
	go scratch.Run(ctx, opts.ScratchSweepInterval)

	gemini, err := ai.NewGemini(ctx, log, opts.GeminiAPIKey, opts.GeminiModel, http.DefaultClient)
	if err != nil {
		log.Error("creating gemini client", "error", err)
		os.Exit(1)
	}

	handler := &relay.Handler{
		Log:      log,
		Timeout:  opts.RequestTimeout,
		Store:    scratch,
		AI:       gemini,
		TTS:      tts.NewGoogle(opts.TTSLang, http.DefaultClient, scratch),
		Reporter: sentry.CurrentHub(),
	}

	bot := &telegram.Client{
		Log:        log,
		APIToken:   opts.TelegramAPIToken,
		WorkersNum: opts.TelegramWorkersNum,
		Handler:    handler,
	}
	handler.Downloader = bot

	err = bot.Start(ctx)
	if err != nil {
		log.Error("starting bot", "error", err)
		os.Exit(1)
	}

	log.Info("bot is running")
	<-ctx.Done()
	log.Info("stopping bot")

	bot.Wait()
	sentry.Flush(2 * time.Second)

	os.Exit(0)
}
