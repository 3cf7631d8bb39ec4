// Package feishu implements the Feishu (Lark) channel adapter using the
// websocket long connection.
package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/sirupsen/logrus"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/logger"
	"github.com/keepmind9/chanbridge/internal/message"
	"github.com/keepmind9/chanbridge/pkg/constants"
)

// textSender abstracts the Feishu send-message API so tests can fake it.
type textSender interface {
	sendText(ctx context.Context, chatID, contentJSON string) error
}

// larkTextSender sends through the real Lark IM API.
type larkTextSender struct {
	client *lark.Client
}

func (s *larkTextSender) sendText(ctx context.Context, chatID, contentJSON string) error {
	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(chatID).
		MsgType(larkim.MsgTypeText).
		Content(contentJSON).
		Build()

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(body).
		Build()

	resp, err := s.client.Im.Message.Create(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}
	return nil
}

// Config holds the Feishu adapter configuration.
type Config struct {
	Enabled           bool
	AppID             string
	AppSecret         string
	EncryptKey        string // optional, for encrypted events
	VerificationToken string // optional, for event verification
	AllowedUsers      []string
}

// Adapter implements channel.Adapter for Feishu.
type Adapter struct {
	mu       sync.RWMutex
	cfg      Config
	allow    channel.Allowlist
	sender   textSender
	wsClient *ws.Client
	handlers channel.Handlers
	state    channel.State
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Feishu adapter instance
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:    cfg,
		allow:  channel.NewAllowlist(cfg.AllowedUsers),
		sender: &larkTextSender{client: lark.NewClient(cfg.AppID, cfg.AppSecret)},
		state:  channel.StateStopped,
	}
}

// Channel returns the platform this adapter serves.
func (a *Adapter) Channel() message.ChannelType {
	return message.ChannelFeishu
}

// Start establishes the websocket long connection and begins delivering
// normalized messages.
func (a *Adapter) Start(handlers channel.Handlers) error {
	if !a.cfg.Enabled {
		logger.WithField("platform", "feishu").Info("feishu-adapter-disabled-skipping-start")
		return nil
	}

	a.mu.Lock()
	a.handlers = handlers
	a.state = channel.StateStarting
	a.mu.Unlock()

	a.ctx, a.cancel = context.WithCancel(context.Background())

	logger.WithFields(logrus.Fields{
		"app_id": channel.MaskSecret(a.cfg.AppID),
	}).Info("starting-feishu-adapter-with-websocket-long-connection")

	eventDispatcher := dispatcher.NewEventDispatcher(a.cfg.VerificationToken, a.cfg.EncryptKey)
	eventDispatcher.OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
		return a.handleMessageReceive(event)
	})

	a.wsClient = ws.NewClient(a.cfg.AppID, a.cfg.AppSecret,
		ws.WithEventHandler(eventDispatcher),
		ws.WithLogLevel(larkcore.LogLevelInfo),
		ws.WithAutoReconnect(true),
	)

	// ws.Client.Start blocks; connection errors come back through OnError.
	go func() {
		if err := a.wsClient.Start(a.ctx); err != nil {
			perr := &channel.PlatformError{Channel: message.ChannelFeishu, Err: err}
			logger.WithField("error", err).Error("feishu-websocket-connection-failed")
			a.getHandlers().EmitError(perr)
		}
	}()

	// Give the long connection time to establish
	time.Sleep(constants.ConnectionSettleDelay)

	a.mu.Lock()
	a.state = channel.StateConnected
	a.mu.Unlock()

	logger.Info("feishu-websocket-long-connection-started")
	handlers.EmitConnected()
	return nil
}

// handleMessageReceive normalizes one Feishu message event. Always returns
// nil: a normalization problem drops the single event instead of failing
// the dispatcher.
func (a *Adapter) handleMessageReceive(event *larkim.P2MessageReceiveV1) error {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil
	}
	ev := event.Event

	var chatID, msgType, rawContent, parentID string
	var createTime int64
	if ev.Message.ChatId != nil {
		chatID = *ev.Message.ChatId
	}
	if ev.Message.MessageType != nil {
		msgType = *ev.Message.MessageType
	}
	if ev.Message.Content != nil {
		rawContent = *ev.Message.Content
	}
	if ev.Message.ParentId != nil {
		parentID = *ev.Message.ParentId
	}
	if ev.Message.CreateTime != nil {
		// Feishu reports milliseconds as a decimal string
		if ms, err := strconv.ParseInt(*ev.Message.CreateTime, 10, 64); err == nil {
			createTime = ms
		}
	}
	if createTime == 0 {
		createTime = time.Now().UnixMilli()
	}

	usr, ok := a.mapUser(ev.Sender)
	if !ok {
		return nil
	}

	content := rawContent
	if msgType == larkim.MsgTypeText {
		content = extractTextContent(rawContent)
	}

	logger.WithFields(logrus.Fields{
		"platform":     "feishu",
		"user_id":      usr.NativeID,
		"chat_id":      chatID,
		"message_type": msgType,
		"content_len":  len(content),
	}).Info("received-feishu-message-event-parsed")

	a.getHandlers().EmitMessage(message.Inbound{
		ID:        message.NewID(),
		Channel:   message.ChannelFeishu,
		ChatID:    chatID,
		User:      usr,
		Content:   content,
		ReplyToID: parentID,
		Timestamp: createTime,
		Raw:       event,
	})
	return nil
}

// mapUser builds the normalized sender identity from the event sender.
// Feishu message events carry ids only; the display name stays empty.
func (a *Adapter) mapUser(sender *larkim.EventSender) (message.User, bool) {
	if sender == nil || sender.SenderId == nil {
		return message.User{}, false
	}

	var nativeID string
	if sender.SenderId.UserId != nil && *sender.SenderId.UserId != "" {
		nativeID = *sender.SenderId.UserId
	} else if sender.SenderId.OpenId != nil {
		nativeID = *sender.SenderId.OpenId
	}
	if nativeID == "" {
		return message.User{}, false
	}

	if !a.allow.Allowed(nativeID) {
		logger.WithFields(logrus.Fields{
			"platform": "feishu",
			"user_id":  nativeID,
		}).Debug("dropping-message-from-user-not-in-allowlist")
		return message.User{}, false
	}

	metadata := make(map[string]string)
	if sender.SenderId.OpenId != nil && *sender.SenderId.OpenId != "" {
		metadata["open_id"] = *sender.SenderId.OpenId
	}

	return message.User{
		ID:       message.UserID(message.ChannelFeishu, nativeID),
		Channel:  message.ChannelFeishu,
		NativeID: nativeID,
		Metadata: metadata,
	}, true
}

// textContent is the Feishu text message content envelope.
type textContent struct {
	Text string `json:"text"`
}

// extractTextContent unwraps {"text":"..."} content envelopes. Anything
// that does not parse comes back unchanged.
func extractTextContent(content string) string {
	var tc textContent
	if err := json.Unmarshal([]byte(content), &tc); err != nil {
		return content
	}
	return tc.Text
}

// Send delivers an outbound text message. Feishu attachments require the
// separate media upload API and are skipped with a log entry.
func (a *Adapter) Send(out message.Outbound) error {
	a.mu.RLock()
	sender := a.sender
	connected := a.state == channel.StateConnected
	ctx := a.ctx
	a.mu.RUnlock()

	if !connected {
		return channel.ErrNotConnected
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if out.ChatID == "" {
		return fmt.Errorf("chat ID is required for Feishu")
	}

	for _, att := range out.Attachments {
		logger.WithFields(logrus.Fields{
			"chat_id":  out.ChatID,
			"type":     att.Type,
			"filename": att.Filename,
		}).Warn("feishu-attachments-not-supported-skipping")
	}

	if out.Content == "" {
		return nil
	}

	text := out.Content
	if len(text) > constants.MaxFeishuMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(text),
			"max_length":      constants.MaxFeishuMessageLength,
		}).Info("truncating-message-for-feishu-limit")
		text = text[:constants.MaxFeishuMessageLength]
	}

	contentJSON, err := json.Marshal(textContent{Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}

	if err := sender.sendText(ctx, out.ChatID, string(contentJSON)); err != nil {
		logger.WithFields(logrus.Fields{
			"chat_id": out.ChatID,
			"error":   err,
		}).Error("failed-to-send-message-to-feishu")
		return fmt.Errorf("failed to send message to chat %s: %w", out.ChatID, err)
	}

	logger.WithField("chat_id", out.ChatID).Info("message-sent-to-feishu")
	return nil
}

// IsConnected reports whether the long connection is up.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == channel.StateConnected
}

// Stop closes the websocket connection. The ws client has no Stop call in
// this SDK version; the connection follows the context.
func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	wasConnected := a.state == channel.StateConnected
	a.state = channel.StateStopped
	handlers := a.handlers
	a.mu.Unlock()

	if wasConnected {
		handlers.EmitDisconnected()
	}

	logger.Info("feishu-adapter-stopped")
	return nil
}

func (a *Adapter) getHandlers() channel.Handlers {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handlers
}
