package dingtalk

import (
	"context"
	"errors"
	"testing"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/message"
)

type fakeReplier struct {
	fail    bool
	replies []sentReply
}

type sentReply struct {
	webhook string
	text    string
}

func (f *fakeReplier) replyText(_ context.Context, sessionWebhook, text string) error {
	if f.fail {
		return errors.New("webhook rejected")
	}
	f.replies = append(f.replies, sentReply{webhook: sessionWebhook, text: text})
	return nil
}

func connected(fake *fakeReplier, handlers channel.Handlers, allowed ...string) *Adapter {
	a := New(Config{Enabled: true, ClientID: "ding_id", ClientSecret: "secret", AllowedUsers: allowed})
	a.replier = fake
	a.handlers = handlers
	a.state = channel.StateConnected
	return a
}

func textCallback(staffID, conversationID, content string) *chatbot.BotCallbackDataModel {
	cb := &chatbot.BotCallbackDataModel{
		ConversationId: conversationID,
		SenderStaffId:  staffID,
		SenderNick:     "Alice",
		SessionWebhook: "https://oapi.dingtalk.com/robot/sendBySession?session=" + conversationID,
		MsgId:          "msg-1",
		Msgtype:        "text",
		CreateAt:       1700000000000,
	}
	cb.Text.Content = content
	return cb
}

func TestHandleMessageReceive_NormalizesTextCallback(t *testing.T) {
	var got message.Inbound
	received := 0
	a := connected(&fakeReplier{}, channel.Handlers{
		OnMessage: func(msg message.Inbound) { got = msg; received++ },
	})

	resp, err := a.handleMessageReceive(context.Background(), textCallback("staff-1", "conv-1", "hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte(""), resp)
	require.Equal(t, 1, received)

	assert.Equal(t, message.ChannelDingTalk, got.Channel)
	assert.Equal(t, "conv-1", got.ChatID)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "dingtalk:staff-1", got.User.ID)
	assert.Equal(t, "Alice", got.User.DisplayName)
	assert.Equal(t, int64(1700000000000), got.Timestamp)
}

func TestHandleMessageReceive_NilAndNonTextIgnored(t *testing.T) {
	received := 0
	a := connected(&fakeReplier{}, channel.Handlers{
		OnMessage: func(message.Inbound) { received++ },
	})

	_, err := a.handleMessageReceive(context.Background(), nil)
	require.NoError(t, err)

	cb := textCallback("staff-1", "conv-1", "")
	cb.Msgtype = "richText"
	_, err = a.handleMessageReceive(context.Background(), cb)
	require.NoError(t, err)

	assert.Zero(t, received)
}

func TestHandleMessageReceive_AllowlistEnforced(t *testing.T) {
	received := 0
	a := connected(&fakeReplier{}, channel.Handlers{
		OnMessage: func(message.Inbound) { received++ },
	}, "staff-1")

	_, err := a.handleMessageReceive(context.Background(), textCallback("staff-2", "conv-1", "nope"))
	require.NoError(t, err)
	assert.Zero(t, received)
}

func TestHandleMessageReceive_RecordsWebhookEvenForDroppedEvents(t *testing.T) {
	a := connected(&fakeReplier{}, channel.Handlers{}, "staff-1")

	_, err := a.handleMessageReceive(context.Background(), textCallback("staff-2", "conv-1", "nope"))
	require.NoError(t, err)

	a.mu.RLock()
	webhook := a.webhooks["conv-1"]
	a.mu.RUnlock()
	assert.NotEmpty(t, webhook)
}

func TestSend_BeforeStart(t *testing.T) {
	a := New(Config{Enabled: true, ClientID: "ding_id", ClientSecret: "secret"})

	err := a.Send(message.Outbound{ChatID: "conv-1", Content: "hi"})
	assert.ErrorIs(t, err, channel.ErrNotConnected)
}

func TestSend_RepliesThroughRecordedWebhook(t *testing.T) {
	fake := &fakeReplier{}
	a := connected(fake, channel.Handlers{})

	_, err := a.handleMessageReceive(context.Background(), textCallback("staff-1", "conv-1", "ping"))
	require.NoError(t, err)

	require.NoError(t, a.Send(message.Outbound{ChatID: "conv-1", Content: "pong"}))
	require.Len(t, fake.replies, 1)
	assert.Contains(t, fake.replies[0].webhook, "conv-1")
	assert.Equal(t, "pong", fake.replies[0].text)
}

func TestSend_UnknownConversationFails(t *testing.T) {
	fake := &fakeReplier{}
	a := connected(fake, channel.Handlers{})

	err := a.Send(message.Outbound{ChatID: "conv-unknown", Content: "hi"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, channel.ErrNotConnected)
	assert.Empty(t, fake.replies)
}

func TestSend_ReplierFailure(t *testing.T) {
	fake := &fakeReplier{fail: true}
	a := connected(fake, channel.Handlers{})

	_, err := a.handleMessageReceive(context.Background(), textCallback("staff-1", "conv-1", "ping"))
	require.NoError(t, err)

	assert.Error(t, a.Send(message.Outbound{ChatID: "conv-1", Content: "pong"}))
}

func TestStop_EmitsDisconnected(t *testing.T) {
	disconnected := false
	a := connected(&fakeReplier{}, channel.Handlers{
		OnDisconnected: func() { disconnected = true },
	})

	require.NoError(t, a.Stop())
	assert.True(t, disconnected)
	assert.False(t, a.IsConnected())
}
