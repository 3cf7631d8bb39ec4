package discord

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepmind9/chanbridge/internal/channel"
	"github.com/keepmind9/chanbridge/internal/message"
)

type sentMessage struct {
	channel string
	data    *discordgo.MessageSend
}

type sentFile struct {
	channel string
	name    string
	body    []byte
}

// fakeSession is a fake Discord session implementing the session interface.
type fakeSession struct {
	failOnOpen bool
	failOnSend bool
	openCalled bool
	closed     bool
	handler    interface{}
	messages   []sentMessage
	files      []sentFile
	typed      []string
}

func (f *fakeSession) AddHandler(handler interface{}) func() {
	f.handler = handler
	return func() {}
}

func (f *fakeSession) Open() error {
	f.openCalled = true
	if f.failOnOpen {
		return errors.New("failed to open discord connection")
	}
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.failOnSend {
		return nil, errors.New("failed to send message")
	}
	f.messages = append(f.messages, sentMessage{channel: channelID, data: data})
	return &discordgo.Message{ID: "msg-id"}, nil
}

func (f *fakeSession) ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.failOnSend {
		return nil, errors.New("failed to send file")
	}
	body, _ := io.ReadAll(r)
	f.files = append(f.files, sentFile{channel: channelID, name: name, body: body})
	return &discordgo.Message{ID: "file-id"}, nil
}

func (f *fakeSession) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	f.typed = append(f.typed, channelID)
	return nil
}

func (f *fakeSession) simulate(m *discordgo.MessageCreate) {
	if handler, ok := f.handler.(func(*discordgo.Session, *discordgo.MessageCreate)); ok {
		handler(nil, m)
	}
}

func startedAdapter(t *testing.T, fake *fakeSession, handlers channel.Handlers, allowed ...string) *Adapter {
	t.Helper()
	a := New(Config{Enabled: true, Token: "test-token", ChannelID: "default-chan", AllowedUsers: allowed})
	a.session = fake
	require.NoError(t, a.Start(handlers))
	return a
}

func userMessage(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "m1",
			ChannelID: "chan-1",
			Content:   content,
			Timestamp: time.UnixMilli(1700000000000),
			Author:    &discordgo.User{ID: userID, Username: "alice"},
		},
	}
}

func TestStart_RegistersHandlerAndConnects(t *testing.T) {
	fake := &fakeSession{}
	connected := false
	a := startedAdapter(t, fake, channel.Handlers{OnConnected: func() { connected = true }})

	assert.True(t, fake.openCalled)
	assert.NotNil(t, fake.handler)
	assert.True(t, connected)
	assert.True(t, a.IsConnected())
}

func TestStart_OpenFailure(t *testing.T) {
	fake := &fakeSession{failOnOpen: true}
	a := New(Config{Enabled: true, Token: "test-token"})
	a.session = fake

	err := a.Start(channel.Handlers{})
	assert.Error(t, err)
	assert.False(t, a.IsConnected())
}

func TestStart_Disabled(t *testing.T) {
	a := New(Config{Enabled: false, Token: "test-token"})

	assert.NoError(t, a.Start(channel.Handlers{}))
	assert.False(t, a.IsConnected())
}

func TestHandleMessage_NormalizesInbound(t *testing.T) {
	fake := &fakeSession{}
	var got message.Inbound
	startedAdapter(t, fake, channel.Handlers{
		OnMessage: func(msg message.Inbound) { got = msg },
	})

	m := userMessage("user-123", "hello")
	m.Attachments = []*discordgo.MessageAttachment{
		{
			ID:          "att-1",
			URL:         "https://cdn.example.com/cat.png",
			Filename:    "cat.png",
			ContentType: "image/png",
			Size:        2048,
		},
	}
	fake.simulate(m)

	assert.Equal(t, message.ChannelDiscord, got.Channel)
	assert.Equal(t, "chan-1", got.ChatID)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "discord:user-123", got.User.ID)
	assert.Equal(t, "alice", got.User.DisplayName)
	assert.Equal(t, int64(1700000000000), got.Timestamp)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, message.AttachmentImage, got.Attachments[0].Type)
	assert.Equal(t, "https://cdn.example.com/cat.png", got.Attachments[0].URL)
	assert.Equal(t, int64(2048), got.Attachments[0].Size)
}

func TestHandleMessage_IgnoresBotAuthors(t *testing.T) {
	fake := &fakeSession{}
	received := 0
	startedAdapter(t, fake, channel.Handlers{
		OnMessage: func(message.Inbound) { received++ },
	})

	m := userMessage("bot-1", "beep")
	m.Author.Bot = true
	fake.simulate(m)

	assert.Zero(t, received)
}

func TestHandleMessage_AllowlistEnforced(t *testing.T) {
	fake := &fakeSession{}
	received := 0
	startedAdapter(t, fake, channel.Handlers{
		OnMessage: func(message.Inbound) { received++ },
	}, "user-1")

	fake.simulate(userMessage("user-2", "hi"))
	assert.Zero(t, received)

	fake.simulate(userMessage("user-1", "hi"))
	assert.Equal(t, 1, received)
}

func TestClassifyAttachment_ByContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        message.AttachmentType
	}{
		{"image/png", message.AttachmentImage},
		{"audio/mpeg", message.AttachmentAudio},
		{"video/mp4", message.AttachmentVideo},
		{"application/pdf", message.AttachmentFile},
		{"", message.AttachmentFile},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			att := classifyAttachment(&discordgo.MessageAttachment{ContentType: tt.contentType})
			assert.Equal(t, tt.want, att.Type)
		})
	}
}

func TestSend_BeforeStart(t *testing.T) {
	a := New(Config{Enabled: true, Token: "test-token"})

	err := a.Send(message.Outbound{ChatID: "chan-1", Content: "hi"})
	assert.ErrorIs(t, err, channel.ErrNotConnected)
}

func TestSend_TextWithReplyReference(t *testing.T) {
	fake := &fakeSession{}
	a := startedAdapter(t, fake, channel.Handlers{})

	err := a.Send(message.Outbound{ChatID: "chan-1", Content: "threaded", ReplyToID: "orig-1"})
	require.NoError(t, err)
	require.Len(t, fake.messages, 1)

	sent := fake.messages[0]
	assert.Equal(t, "chan-1", sent.channel)
	assert.Equal(t, "threaded", sent.data.Content)
	require.NotNil(t, sent.data.Reference)
	assert.Equal(t, "orig-1", sent.data.Reference.MessageID)
}

func TestSend_FallsBackToConfiguredChannel(t *testing.T) {
	fake := &fakeSession{}
	a := startedAdapter(t, fake, channel.Handlers{})

	require.NoError(t, a.Send(message.Outbound{Content: "hi"}))
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "default-chan", fake.messages[0].channel)
}

func TestSend_InlineDataBecomesFileUpload(t *testing.T) {
	fake := &fakeSession{}
	a := startedAdapter(t, fake, channel.Handlers{})

	err := a.Send(message.Outbound{
		ChatID: "chan-1",
		Attachments: []message.Attachment{
			{Type: message.AttachmentFile, Filename: "notes.txt", Data: []byte("hello")},
		},
	})
	require.NoError(t, err)
	require.Len(t, fake.files, 1)
	assert.Equal(t, "notes.txt", fake.files[0].name)
	assert.Equal(t, []byte("hello"), fake.files[0].body)
}

func TestSend_URLOnlyAttachmentSentAsLink(t *testing.T) {
	fake := &fakeSession{}
	a := startedAdapter(t, fake, channel.Handlers{})

	err := a.Send(message.Outbound{
		ChatID: "chan-1",
		Attachments: []message.Attachment{
			{Type: message.AttachmentImage, URL: "https://cdn.example.com/cat.png"},
		},
	})
	require.NoError(t, err)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "https://cdn.example.com/cat.png", fake.messages[0].data.Content)
}

func TestSend_SkipsUnusableAttachment(t *testing.T) {
	fake := &fakeSession{}
	a := startedAdapter(t, fake, channel.Handlers{})

	err := a.Send(message.Outbound{
		ChatID: "chan-1",
		Attachments: []message.Attachment{
			{Type: message.AttachmentFile, Filename: "ghost.bin"},
		},
	})
	assert.NoError(t, err)
	assert.Empty(t, fake.messages)
	assert.Empty(t, fake.files)
}

func TestSend_Failure(t *testing.T) {
	fake := &fakeSession{failOnSend: true}
	a := startedAdapter(t, fake, channel.Handlers{})

	err := a.Send(message.Outbound{ChatID: "chan-1", Content: "hi"})
	assert.Error(t, err)
}

func TestStop_ClosesSessionAndEmitsDisconnected(t *testing.T) {
	fake := &fakeSession{}
	disconnected := false
	a := startedAdapter(t, fake, channel.Handlers{
		OnDisconnected: func() { disconnected = true },
	})

	require.NoError(t, a.Stop())
	assert.True(t, fake.closed)
	assert.True(t, disconnected)
	assert.False(t, a.IsConnected())
}

func TestStop_WithoutStartIsSafe(t *testing.T) {
	a := New(Config{Enabled: true, Token: "test-token"})
	assert.NoError(t, a.Stop())
}
