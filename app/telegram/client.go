package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"nuclight.org/relay-tg-bot/app/relay"
	e "nuclight.org/relay-tg-bot/pkg/entities"
	"nuclight.org/relay-tg-bot/pkg/logger"
)

type EventHandler interface {
	HandleEvent(ctx context.Context, ev e.Event, r relay.Replier) error
}

// BotAPI is the part of *tgbotapi.BotAPI the client sends and downloads through.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Client struct {
	Log        logger.Logger
	APIToken   string
	WorkersNum int
	Handler    EventHandler

	// HTTPClient downloads attachments, http.DefaultClient if nil
	HTTPClient *http.Client

	api *tgbotapi.BotAPI
	bot BotAPI
	wg  sync.WaitGroup
}

func (c *Client) Start(ctx context.Context) (err error) {
	if c.WorkersNum == 0 {
		return fmt.Errorf("workers number must be greater than 0")
	}

	log := c.Log

	c.api, err = tgbotapi.NewBotAPI(c.APIToken)
	if err != nil {
		return fmt.Errorf("creating bot api: %w", err)
	}
	c.bot = c.api

	log.Info("bot api created", "username", c.api.Self.UserName)

	updatesConf := tgbotapi.NewUpdate(0)
	updatesConf.Timeout = 60

	updatesChan := c.api.GetUpdatesChan(updatesConf)

	for i := 0; i < c.WorkersNum; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleUpdatesFromChan(ctx, updatesChan)
		}()
	}

	go func() {
		<-ctx.Done()
		c.api.StopReceivingUpdates()
	}()

	return nil
}

func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) handleUpdatesFromChan(ctx context.Context, updatesChan tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updatesChan:
			if !ok {
				return
			}
			err := c.handleUpdate(ctx, update)
			if err != nil {
				c.Log.Error("handling update", "tg_update_id", update.UpdateID, "error", err)
			}
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update) (err error) {
	log := c.Log.With("tg_update_id", update.UpdateID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic", "error", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if update.Message == nil {
		log.Debug("message is nil")
		return nil
	}

	if update.Message.Chat == nil {
		log.Warn("message chat is nil")
		return nil
	}

	ev, ok := convertUpdate(update)
	if !ok {
		log.Debug("unsupported message", "tg_chat_id", update.Message.Chat.ID)
		return nil
	}

	log.Info(
		"new event",
		"kind", ev.Kind,
		"tg_message_id", update.Message.MessageID,
		"tg_user_id", ev.Sender.ID,
		"tg_user_name", ev.Sender.Name,
		"tg_chat_id", ev.Sender.ChatID,
		"tg_chat_title", ev.Sender.ChatTitle,
	)

	replier := &chatReplier{
		bot:    c.bot,
		chatID: update.Message.Chat.ID,
	}

	// in groups answers quote the message they belong to
	if !update.Message.Chat.IsPrivate() {
		replier.replyTo = update.Message.MessageID
	}

	if err = c.Handler.HandleEvent(ctx, ev, replier); err != nil {
		return fmt.Errorf("handling event: %w", err)
	}

	log.Info("event handled", "kind", ev.Kind, "replies", replier.sent)
	return nil
}

func takeMessageID(message *tgbotapi.Message) string {
	return strconv.Itoa(message.MessageID)
}

func takeChatID(chat *tgbotapi.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}

func takeUserID(user *tgbotapi.User) string {
	return strconv.FormatInt(user.ID, 10)
}
