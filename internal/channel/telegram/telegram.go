// Package telegram implements the Telegram channel adapter using long polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/logger"
	"github.com/keepmind9/chanbridge/internal/message"
	"github.com/keepmind9/chanbridge/pkg/constants"
)

// api is the subset of tgbotapi.BotAPI the adapter uses.
// Narrowed to an interface so tests can inject a fake client.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config holds the Telegram adapter configuration.
type Config struct {
	Enabled      bool
	Token        string
	AllowedUsers []string
}

// Adapter implements channel.Adapter for Telegram.
type Adapter struct {
	mu       sync.RWMutex
	cfg      Config
	allow    channel.Allowlist
	bot      api
	handlers channel.Handlers
	state    channel.State
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Telegram adapter instance
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:   cfg,
		allow: channel.NewAllowlist(cfg.AllowedUsers),
		state: channel.StateStopped,
	}
}

// Channel returns the platform this adapter serves.
func (a *Adapter) Channel() message.ChannelType {
	return message.ChannelTelegram
}

// Start establishes long polling to Telegram and begins delivering
// normalized messages. A disabled adapter logs and returns nil without
// connecting.
func (a *Adapter) Start(handlers channel.Handlers) error {
	if !a.cfg.Enabled {
		logger.WithField("platform", "telegram").Info("telegram-adapter-disabled-skipping-start")
		return nil
	}

	a.mu.Lock()
	a.handlers = handlers
	a.state = channel.StateStarting
	a.mu.Unlock()

	a.ctx, a.cancel = context.WithCancel(context.Background())

	logger.WithFields(logrus.Fields{
		"token": channel.MaskSecret(a.cfg.Token),
	}).Info("starting-telegram-adapter-with-long-polling")

	a.mu.Lock()
	if a.bot == nil {
		bot, err := tgbotapi.NewBotAPI(a.cfg.Token)
		if err != nil {
			a.state = channel.StateErrored
			a.mu.Unlock()
			logger.WithField("error", err).Error("failed-to-initialize-telegram-client")
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		a.bot = bot
	}
	bot := a.bot
	a.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(constants.DefaultPollTimeout.Seconds()) // Long poll timeout in seconds

	updates := bot.GetUpdatesChan(u)

	// Process updates in background
	go func() {
		for {
			select {
			case <-a.ctx.Done():
				logger.Info("telegram-long-polling-stopped")
				return
			case update, ok := <-updates:
				if !ok {
					logger.Info("telegram-updates-channel-closed")
					return
				}
				if update.Message != nil {
					a.handleMessage(update.Message)
				}
			}
		}
	}()

	a.mu.Lock()
	a.state = channel.StateConnected
	a.mu.Unlock()

	logger.Info("telegram-long-polling-connection-started")
	handlers.EmitConnected()
	return nil
}

// handleMessage normalizes one incoming Telegram message and delivers it to
// the host. Never lets a panic escape back into the polling loop; failures
// are forwarded to OnError and the single event is dropped.
func (a *Adapter) handleMessage(msg *tgbotapi.Message) {
	if msg == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := &channel.PlatformError{
				Channel: message.ChannelTelegram,
				Err:     fmt.Errorf("message handler panic: %v", r),
			}
			logger.WithField("error", err).Error("telegram-message-handler-panicked")
			a.getHandlers().EmitError(err)
		}
	}()

	kind := classifyEvent(msg)
	if kind == kindUnsupported {
		return
	}

	usr, ok := a.mapUser(msg.From)
	if !ok {
		// Allowlist enforcement point: no callback, no reply, log only.
		return
	}

	if msg.Chat != nil {
		a.sendTyping(msg.Chat.ID)
	}

	a.getHandlers().EmitMessage(a.normalize(kind, msg, usr))
}

// eventKind enumerates the supported inbound message kinds.
type eventKind int

const (
	kindUnsupported eventKind = iota
	kindText
	kindPhoto
	kindDocument
	kindVoice
)

// classifyEvent maps a Telegram message to its event kind. Control events
// (joins, pins, etc.) come back unsupported and are dropped.
func classifyEvent(msg *tgbotapi.Message) eventKind {
	switch {
	case msg.Text != "":
		return kindText
	case len(msg.Photo) > 0:
		return kindPhoto
	case msg.Document != nil:
		return kindDocument
	case msg.Voice != nil:
		return kindVoice
	default:
		return kindUnsupported
	}
}

// normalize builds the Inbound record for an accepted event.
func (a *Adapter) normalize(kind eventKind, msg *tgbotapi.Message, usr message.User) message.Inbound {
	var content string
	var attachments []message.Attachment

	switch kind {
	case kindText:
		content = msg.Text
	case kindPhoto:
		content = msg.Caption
		if att := classifyPhoto(msg.Photo); att != nil {
			attachments = append(attachments, *att)
		}
	case kindDocument:
		content = msg.Caption
		if att := classifyDocument(msg.Document); att != nil {
			attachments = append(attachments, *att)
		}
	case kindVoice:
		// Voice notes carry no caption on Telegram.
		if att := classifyVoice(msg.Voice); att != nil {
			attachments = append(attachments, *att)
		}
	}

	var chatID string
	if msg.Chat != nil {
		chatID = strconv.FormatInt(msg.Chat.ID, 10)
	}

	var replyTo string
	if msg.ReplyToMessage != nil {
		replyTo = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}

	return message.Inbound{
		ID:          message.NewID(),
		Channel:     message.ChannelTelegram,
		ChatID:      chatID,
		User:        usr,
		Content:     content,
		Attachments: attachments,
		ReplyToID:   replyTo,
		Timestamp:   int64(msg.Date) * 1000, // Telegram reports seconds
		Raw:         msg,
	}
}

// sendTyping is fire-and-forget: failures are logged at debug level and
// never surfaced.
func (a *Adapter) sendTyping(chatID int64) {
	a.mu.RLock()
	bot := a.bot
	a.mu.RUnlock()
	if bot == nil {
		return
	}

	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := bot.Request(action); err != nil {
		logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Debug("typing-indicator-failed-ignored")
	}
}

// Send delivers an outbound message: one send-text call when Content is
// set, then one platform call per sendable attachment, in order. A failure
// anywhere stops the sequence and is returned as a single error; earlier
// calls stay delivered.
func (a *Adapter) Send(out message.Outbound) error {
	a.mu.RLock()
	bot := a.bot
	connected := a.state == channel.StateConnected
	a.mu.RUnlock()

	if bot == nil || !connected {
		return channel.ErrNotConnected
	}

	chatID, err := strconv.ParseInt(out.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID format: %w", err)
	}

	if out.Content != "" {
		text := out.Content
		if len(text) > constants.MaxTelegramMessageLength {
			logger.WithFields(logrus.Fields{
				"original_length": len(text),
				"max_length":      constants.MaxTelegramMessageLength,
			}).Info("truncating-message-for-telegram-limit")
			text = text[:constants.MaxTelegramMessageLength]
		}

		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if out.ReplyToID != "" {
			if replyID, convErr := strconv.Atoi(out.ReplyToID); convErr == nil {
				msg.ReplyToMessageID = replyID
			}
		}

		if _, err := bot.Send(msg); err != nil {
			logger.WithFields(logrus.Fields{
				"chat_id": out.ChatID,
				"error":   err,
			}).Error("failed-to-send-text-to-telegram")
			return fmt.Errorf("failed to send message to chat %s: %w", out.ChatID, err)
		}
	}

	for _, att := range out.Attachments {
		switch {
		case att.Type == message.AttachmentImage && att.Sendable():
			photo := tgbotapi.NewPhoto(chatID, requestFileData(att))
			if _, err := bot.Send(photo); err != nil {
				return fmt.Errorf("failed to send photo to chat %s: %w", out.ChatID, err)
			}
		case att.Sendable() && att.Filename != "":
			doc := tgbotapi.NewDocument(chatID, requestFileData(att))
			if _, err := bot.Send(doc); err != nil {
				return fmt.Errorf("failed to send document to chat %s: %w", out.ChatID, err)
			}
		default:
			// Attachments without a usable source are skipped, not errors.
			logger.WithFields(logrus.Fields{
				"chat_id":  out.ChatID,
				"type":     att.Type,
				"filename": att.Filename,
			}).Warn("skipping-attachment-without-usable-source")
		}
	}

	logger.WithField("chat_id", out.ChatID).Info("message-sent-to-telegram")
	return nil
}

// requestFileData picks the Telegram upload source for an attachment.
// Callers must check Sendable first.
func requestFileData(att message.Attachment) tgbotapi.RequestFileData {
	if att.URL != "" {
		return tgbotapi.FileURL(att.URL)
	}
	name := att.Filename
	if name == "" {
		name = constants.DefaultDocumentFilename
	}
	return tgbotapi.FileBytes{Name: name, Bytes: att.Data}
}

// IsConnected reports whether a live platform connection exists.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == channel.StateConnected
}

// State returns the current lifecycle state.
func (a *Adapter) State() channel.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Stop closes the long polling connection and releases resources.
func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	bot := a.bot
	a.bot = nil
	wasConnected := a.state == channel.StateConnected
	a.state = channel.StateStopped
	handlers := a.handlers
	a.mu.Unlock()

	if bot != nil {
		bot.StopReceivingUpdates()
		logger.Info("telegram-long-polling-stopped")
	}

	if wasConnected {
		handlers.EmitDisconnected()
	}

	logger.Info("telegram-adapter-stopped")
	return nil
}

func (a *Adapter) getHandlers() channel.Handlers {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handlers
}
