// Package discord implements the Discord channel adapter over a gateway
// websocket session.
package discord

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/logger"
	"github.com/keepmind9/chanbridge/internal/message"
	"github.com/keepmind9/chanbridge/pkg/constants"
)

// session is the slice of discordgo.Session the adapter needs.
// Narrowed to an interface so tests can inject a fake.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Config holds the Discord adapter configuration.
type Config struct {
	Enabled      bool
	Token        string
	ChannelID    string // default channel for sends without a chat id
	AllowedUsers []string
}

// Adapter implements channel.Adapter for Discord.
type Adapter struct {
	mu       sync.RWMutex
	cfg      Config
	allow    channel.Allowlist
	session  session
	handlers channel.Handlers
	state    channel.State
}

// New creates a new Discord adapter instance
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:   cfg,
		allow: channel.NewAllowlist(cfg.AllowedUsers),
		state: channel.StateStopped,
	}
}

// Channel returns the platform this adapter serves.
func (a *Adapter) Channel() message.ChannelType {
	return message.ChannelDiscord
}

// Start opens the Discord gateway connection and begins delivering
// normalized messages.
func (a *Adapter) Start(handlers channel.Handlers) error {
	if !a.cfg.Enabled {
		logger.WithField("platform", "discord").Info("discord-adapter-disabled-skipping-start")
		return nil
	}

	a.mu.Lock()
	a.handlers = handlers
	a.state = channel.StateStarting

	if a.session == nil {
		s, err := discordgo.New("Bot " + a.cfg.Token)
		if err != nil {
			a.state = channel.StateErrored
			a.mu.Unlock()
			return fmt.Errorf("failed to create discord session: %w", err)
		}
		a.session = s
	}
	s := a.session
	a.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"token":   channel.MaskSecret(a.cfg.Token),
		"channel": a.cfg.ChannelID,
	}).Info("starting-discord-adapter")

	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})

	if err := s.Open(); err != nil {
		a.mu.Lock()
		a.state = channel.StateErrored
		a.mu.Unlock()
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	a.mu.Lock()
	a.state = channel.StateConnected
	a.mu.Unlock()

	logger.Info("discord-gateway-connection-started")
	handlers.EmitConnected()
	return nil
}

// handleMessage normalizes one MessageCreate event. Bot-authored messages
// and disallowed senders are dropped without a callback.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := &channel.PlatformError{
				Channel: message.ChannelDiscord,
				Err:     fmt.Errorf("message handler panic: %v", r),
			}
			logger.WithField("error", err).Error("discord-message-handler-panicked")
			a.getHandlers().EmitError(err)
		}
	}()

	if m.Author == nil || m.Author.Bot {
		return
	}

	usr, ok := a.mapUser(m.Author)
	if !ok {
		return
	}

	a.sendTyping(m.ChannelID)

	var attachments []message.Attachment
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		attachments = append(attachments, classifyAttachment(att))
	}

	if m.Content == "" && len(attachments) == 0 {
		return
	}

	var replyTo string
	if m.MessageReference != nil {
		replyTo = m.MessageReference.MessageID
	}

	a.getHandlers().EmitMessage(message.Inbound{
		ID:          message.NewID(),
		Channel:     message.ChannelDiscord,
		ChatID:      m.ChannelID,
		User:        usr,
		Content:     m.Content,
		Attachments: attachments,
		ReplyToID:   replyTo,
		Timestamp:   m.Timestamp.UnixMilli(),
		Raw:         m.Message,
	})
}

// mapUser builds the normalized sender identity, enforcing the allowlist.
func (a *Adapter) mapUser(author *discordgo.User) (message.User, bool) {
	if author == nil {
		return message.User{}, false
	}

	if !a.allow.Allowed(author.ID) {
		logger.WithFields(logrus.Fields{
			"platform": "discord",
			"user_id":  author.ID,
			"username": author.Username,
		}).Debug("dropping-message-from-user-not-in-allowlist")
		return message.User{}, false
	}

	metadata := make(map[string]string)
	if author.Username != "" {
		metadata["username"] = author.Username
	}
	if author.Locale != "" {
		metadata["locale"] = author.Locale
	}

	return message.User{
		ID:          message.UserID(message.ChannelDiscord, author.ID),
		DisplayName: author.Username,
		Channel:     message.ChannelDiscord,
		NativeID:    author.ID,
		Metadata:    metadata,
	}, true
}

// classifyAttachment maps a Discord attachment by its reported content type.
func classifyAttachment(att *discordgo.MessageAttachment) message.Attachment {
	kind := message.AttachmentFile
	switch {
	case strings.HasPrefix(att.ContentType, "image/"):
		kind = message.AttachmentImage
	case strings.HasPrefix(att.ContentType, "audio/"):
		kind = message.AttachmentAudio
	case strings.HasPrefix(att.ContentType, "video/"):
		kind = message.AttachmentVideo
	}

	mime := att.ContentType
	if mime == "" {
		mime = constants.DefaultDocumentMimeType
	}

	return message.Attachment{
		Type:     kind,
		MimeType: mime,
		Filename: att.Filename,
		Size:     int64(att.Size),
		URL:      att.URL,
	}
}

// sendTyping is fire-and-forget; failures are logged and dropped.
func (a *Adapter) sendTyping(channelID string) {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s == nil {
		return
	}
	if err := s.ChannelTyping(channelID); err != nil {
		logger.WithFields(logrus.Fields{
			"channel": channelID,
			"error":   err,
		}).Debug("typing-indicator-failed-ignored")
	}
}

// Send delivers an outbound message: text (with reply reference) first,
// then attachments in order. Inline data becomes a file upload; URL-only
// attachments are sent as link messages; unusable ones are skipped.
func (a *Adapter) Send(out message.Outbound) error {
	a.mu.RLock()
	s := a.session
	connected := a.state == channel.StateConnected
	a.mu.RUnlock()

	if s == nil || !connected {
		return channel.ErrNotConnected
	}

	targetChannel := out.ChatID
	if targetChannel == "" {
		targetChannel = a.cfg.ChannelID
	}
	if targetChannel == "" {
		return fmt.Errorf("channel ID is required for Discord")
	}

	if out.Content != "" {
		text := out.Content
		if len(text) > constants.MaxDiscordMessageLength {
			logger.WithFields(logrus.Fields{
				"original_length": len(text),
				"max_length":      constants.MaxDiscordMessageLength,
			}).Info("truncating-message-for-discord-limit")
			// Keep the tail to show the newest content
			text = "..." + text[len(text)-constants.MaxDiscordMessageLength+3:]
		}

		send := &discordgo.MessageSend{Content: text}
		if out.ReplyToID != "" {
			send.Reference = &discordgo.MessageReference{
				MessageID: out.ReplyToID,
				ChannelID: targetChannel,
			}
		}

		if _, err := s.ChannelMessageSendComplex(targetChannel, send); err != nil {
			logger.WithFields(logrus.Fields{
				"channel": targetChannel,
				"error":   err,
			}).Error("failed-to-send-message-to-discord")
			return fmt.Errorf("failed to send message to channel %s: %w", targetChannel, err)
		}
	}

	for _, att := range out.Attachments {
		switch {
		case len(att.Data) > 0:
			name := att.Filename
			if name == "" {
				name = constants.DefaultDocumentFilename
			}
			if _, err := s.ChannelFileSend(targetChannel, name, bytes.NewReader(att.Data)); err != nil {
				return fmt.Errorf("failed to send file to channel %s: %w", targetChannel, err)
			}
		case att.URL != "":
			if _, err := s.ChannelMessageSendComplex(targetChannel, &discordgo.MessageSend{Content: att.URL}); err != nil {
				return fmt.Errorf("failed to send attachment link to channel %s: %w", targetChannel, err)
			}
		default:
			logger.WithFields(logrus.Fields{
				"channel":  targetChannel,
				"type":     att.Type,
				"filename": att.Filename,
			}).Warn("skipping-attachment-without-usable-source")
		}
	}

	logger.WithField("channel", targetChannel).Info("message-sent-to-discord")
	return nil
}

// IsConnected reports whether a live gateway connection exists.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == channel.StateConnected
}

// Stop closes the gateway connection and releases resources.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	s := a.session
	a.session = nil
	wasConnected := a.state == channel.StateConnected
	a.state = channel.StateStopped
	handlers := a.handlers
	a.mu.Unlock()

	if s == nil {
		return nil
	}

	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	if wasConnected {
		handlers.EmitDisconnected()
	}

	logger.Info("discord-adapter-stopped")
	return nil
}

func (a *Adapter) getHandlers() channel.Handlers {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handlers
}
