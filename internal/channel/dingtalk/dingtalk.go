// Package dingtalk implements the DingTalk channel adapter using the
// stream-mode websocket connection.
package dingtalk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"
	"github.com/sirupsen/logrus"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/logger"
	"github.com/keepmind9/chanbridge/internal/message"
	"github.com/keepmind9/chanbridge/pkg/constants"
)

// replier abstracts the session-webhook reply call so tests can fake it.
type replier interface {
	replyText(ctx context.Context, sessionWebhook, text string) error
}

// webhookReplier replies through the real DingTalk session webhook.
type webhookReplier struct{}

func (webhookReplier) replyText(ctx context.Context, sessionWebhook, text string) error {
	return chatbot.NewChatbotReplier().SimpleReplyText(ctx, sessionWebhook, []byte(text))
}

// Config holds the DingTalk adapter configuration.
type Config struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	AllowedUsers []string
}

// Adapter implements channel.Adapter for DingTalk.
//
// DingTalk replies go through a per-conversation session webhook delivered
// with each inbound callback, not a global send API. The adapter tracks the
// most recent webhook per conversation; sends to a conversation the bot has
// never heard from fail.
type Adapter struct {
	mu           sync.RWMutex
	cfg          Config
	allow        channel.Allowlist
	streamClient *client.StreamClient
	replier      replier
	webhooks     map[string]string // conversation id -> session webhook
	handlers     channel.Handlers
	state        channel.State
	ctx          context.Context
	cancel       context.CancelFunc
}

// New creates a new DingTalk adapter instance
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:      cfg,
		allow:    channel.NewAllowlist(cfg.AllowedUsers),
		replier:  webhookReplier{},
		webhooks: make(map[string]string),
		state:    channel.StateStopped,
	}
}

// Channel returns the platform this adapter serves.
func (a *Adapter) Channel() message.ChannelType {
	return message.ChannelDingTalk
}

// Start establishes the stream-mode websocket connection and begins
// delivering normalized messages.
func (a *Adapter) Start(handlers channel.Handlers) error {
	if !a.cfg.Enabled {
		logger.WithField("platform", "dingtalk").Info("dingtalk-adapter-disabled-skipping-start")
		return nil
	}

	a.mu.Lock()
	a.handlers = handlers
	a.state = channel.StateStarting
	a.mu.Unlock()

	a.ctx, a.cancel = context.WithCancel(context.Background())

	logger.WithFields(logrus.Fields{
		"client_id": channel.MaskSecret(a.cfg.ClientID),
	}).Info("starting-dingtalk-adapter-with-websocket-long-connection")

	credential := client.NewAppCredentialConfig(a.cfg.ClientID, a.cfg.ClientSecret)

	a.mu.Lock()
	a.streamClient = client.NewStreamClient(client.WithAppCredential(credential))
	streamClient := a.streamClient
	a.mu.Unlock()

	streamClient.RegisterChatBotCallbackRouter(a.handleMessageReceive)

	go func() {
		if err := streamClient.Start(a.ctx); err != nil {
			perr := &channel.PlatformError{Channel: message.ChannelDingTalk, Err: err}
			logger.WithField("error", err).Error("dingtalk-websocket-connection-failed")
			a.getHandlers().EmitError(perr)
		}
	}()

	// Give the long connection time to establish
	time.Sleep(constants.ConnectionSettleDelay)

	a.mu.Lock()
	a.state = channel.StateConnected
	a.mu.Unlock()

	logger.Info("dingtalk-websocket-long-connection-started")
	handlers.EmitConnected()
	return nil
}

// handleMessageReceive normalizes one chatbot callback. The session webhook
// is recorded before any filtering so replies keep working even when the
// triggering event is dropped.
func (a *Adapter) handleMessageReceive(_ context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	if data == nil {
		return []byte(""), nil
	}

	if data.ConversationId != "" && data.SessionWebhook != "" {
		a.mu.Lock()
		a.webhooks[data.ConversationId] = data.SessionWebhook
		a.mu.Unlock()
	}

	usr, ok := a.mapUser(data)
	if !ok {
		return []byte(""), nil
	}

	var content string
	if data.Msgtype == "text" {
		content = data.Text.Content
	}
	if content == "" {
		return []byte(""), nil
	}

	logger.WithFields(logrus.Fields{
		"platform":          "dingtalk",
		"conversation_id":   data.ConversationId,
		"conversation_type": data.ConversationType,
		"user_id":           usr.NativeID,
		"msg_id":            data.MsgId,
		"content_len":       len(content),
	}).Info("received-dingtalk-message-event-parsed")

	a.getHandlers().EmitMessage(message.Inbound{
		ID:        message.NewID(),
		Channel:   message.ChannelDingTalk,
		ChatID:    data.ConversationId,
		User:      usr,
		Content:   content,
		Timestamp: data.CreateAt,
		Raw:       data,
	})

	return []byte(""), nil
}

// mapUser builds the normalized sender identity, keyed on the staff id.
func (a *Adapter) mapUser(data *chatbot.BotCallbackDataModel) (message.User, bool) {
	nativeID := data.SenderStaffId
	if nativeID == "" {
		nativeID = data.SenderId
	}
	if nativeID == "" {
		return message.User{}, false
	}

	if !a.allow.Allowed(nativeID) {
		logger.WithFields(logrus.Fields{
			"platform": "dingtalk",
			"user_id":  nativeID,
		}).Debug("dropping-message-from-user-not-in-allowlist")
		return message.User{}, false
	}

	metadata := make(map[string]string)
	if data.IsAdmin {
		metadata["is_admin"] = "true"
	}

	return message.User{
		ID:          message.UserID(message.ChannelDingTalk, nativeID),
		DisplayName: data.SenderNick,
		Channel:     message.ChannelDingTalk,
		NativeID:    nativeID,
		Metadata:    metadata,
	}, true
}

// Send replies through the conversation's recorded session webhook.
// Attachments are not deliverable over the webhook and are skipped.
func (a *Adapter) Send(out message.Outbound) error {
	a.mu.RLock()
	connected := a.state == channel.StateConnected
	webhook := a.webhooks[out.ChatID]
	rep := a.replier
	ctx := a.ctx
	a.mu.RUnlock()

	if !connected {
		return channel.ErrNotConnected
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if out.ChatID == "" {
		return fmt.Errorf("conversation ID is required for DingTalk")
	}
	if webhook == "" {
		return fmt.Errorf("no session webhook known for conversation %s", out.ChatID)
	}

	for _, att := range out.Attachments {
		logger.WithFields(logrus.Fields{
			"conversation_id": out.ChatID,
			"type":            att.Type,
			"filename":        att.Filename,
		}).Warn("dingtalk-attachments-not-supported-skipping")
	}

	if out.Content == "" {
		return nil
	}

	text := out.Content
	if len(text) > constants.MaxDingTalkMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(text),
			"max_length":      constants.MaxDingTalkMessageLength,
		}).Info("truncating-message-for-dingtalk-limit")
		text = text[:constants.MaxDingTalkMessageLength]
	}

	if err := rep.replyText(ctx, webhook, text); err != nil {
		logger.WithFields(logrus.Fields{
			"conversation_id": out.ChatID,
			"error":           err,
		}).Error("failed-to-send-message-to-dingtalk")
		return fmt.Errorf("failed to send message to conversation %s: %w", out.ChatID, err)
	}

	logger.WithField("conversation_id", out.ChatID).Info("message-sent-to-dingtalk")
	return nil
}

// IsConnected reports whether the long connection is up.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == channel.StateConnected
}

// Stop closes the stream connection and releases resources.
func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	streamClient := a.streamClient
	a.streamClient = nil
	wasConnected := a.state == channel.StateConnected
	a.state = channel.StateStopped
	handlers := a.handlers
	a.mu.Unlock()

	if streamClient != nil {
		streamClient.Close()
		logger.Info("dingtalk-websocket-connection-stopped")
	}

	if wasConnected {
		handlers.EmitDisconnected()
	}

	logger.Info("dingtalk-adapter-stopped")
	return nil
}

func (a *Adapter) getHandlers() channel.Handlers {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handlers
}
