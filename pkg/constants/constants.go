package constants

import "time"

// Message length limits for different platforms
const (
	// MaxTelegramMessageLength is Telegram's message character limit
	MaxTelegramMessageLength = 4096
	// MaxDiscordMessageLength is Discord's message character limit
	MaxDiscordMessageLength = 2000
	// MaxFeishuMessageLength is Feishu's message character limit
	MaxFeishuMessageLength = 20000
	// MaxDingTalkMessageLength is DingTalk's message character limit
	MaxDingTalkMessageLength = 20000
)

// Timeouts and delays
const (
	// DefaultPollTimeout is the timeout for Telegram long polling
	DefaultPollTimeout = 60 * time.Second
	// ConnectionSettleDelay gives websocket long connections time to establish
	ConnectionSettleDelay = 2 * time.Second
)

// Secret masking
const (
	// MinSecretLengthForMasking is the minimum secret length to apply masking
	MinSecretLengthForMasking = 10
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 4
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 4
)

// Attachment defaults
const (
	// DefaultPhotoMimeType is assumed when a platform does not report one
	DefaultPhotoMimeType = "image/jpeg"
	// DefaultDocumentMimeType is the generic fallback for documents
	DefaultDocumentMimeType = "application/octet-stream"
	// DefaultVoiceMimeType is assumed for voice notes without a reported type
	DefaultVoiceMimeType = "audio/ogg"
	// DefaultDocumentFilename is used when a platform omits the filename
	DefaultDocumentFilename = "file"
)
