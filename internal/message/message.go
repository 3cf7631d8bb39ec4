// Package message defines the normalized message model shared by all
// channel adapters.
//
// Every platform-native event is mapped into these types before the host
// sees it, and every outbound message is expressed in them before an
// adapter translates it back into platform send calls. The types carry no
// platform SDK dependencies so the host never imports one.
package message

import (
	"github.com/google/uuid"
)

// ChannelType identifies the messaging platform a message belongs to.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelDiscord  ChannelType = "discord"
	ChannelFeishu   ChannelType = "feishu"
	ChannelDingTalk ChannelType = "dingtalk"
)

// User is the normalized identity of a message sender.
//
// ID is globally unique across channels: it namespaces the platform-native
// identifier with the channel type ("telegram:12345"). NativeID keeps the
// raw platform identifier for allowlist checks and platform API calls.
type User struct {
	ID          string
	DisplayName string
	Channel     ChannelType
	NativeID    string
	Metadata    map[string]string
}

// UserID builds the namespaced user identifier for a channel-native id.
func UserID(channel ChannelType, nativeID string) string {
	return string(channel) + ":" + nativeID
}

// Inbound is a normalized message received from a channel.
//
// Instances are constructed fresh per platform event and handed to the host
// callback; the adapter retains no reference afterwards. SessionID is left
// empty at this layer and assigned by the host. Timestamp is milliseconds
// since epoch. Raw carries the platform-native payload untouched for hosts
// that need platform details the normalized model drops.
type Inbound struct {
	ID          string
	SessionID   string
	Channel     ChannelType
	ChatID      string
	User        User
	Content     string
	Attachments []Attachment
	ReplyToID   string
	Timestamp   int64
	Raw         any
}

// Outbound is a normalized message for an adapter to deliver.
type Outbound struct {
	ChatID      string
	Content     string
	Attachments []Attachment
	ReplyToID   string
}

// NewID returns a unique message identifier.
func NewID() string {
	return uuid.NewString()
}
