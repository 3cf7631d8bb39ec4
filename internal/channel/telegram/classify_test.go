package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepmind9/chanbridge/internal/message"
)

func TestClassifyPhoto_SelectsLargestVariant(t *testing.T) {
	sizes := []tgbotapi.PhotoSize{
		{FileID: "f1", FileUniqueID: "u1", Width: 90, Height: 60, FileSize: 1000},
		{FileID: "f2", FileUniqueID: "u2", Width: 320, Height: 213, FileSize: 12000},
		{FileID: "f3", FileUniqueID: "u3", Width: 1280, Height: 853, FileSize: 150000},
	}

	att := classifyPhoto(sizes)
	require.NotNil(t, att)

	assert.Equal(t, message.AttachmentImage, att.Type)
	assert.Equal(t, "image/jpeg", att.MimeType)
	assert.Equal(t, "u3.jpg", att.Filename, "must pick the last (largest) variant")
	assert.Equal(t, int64(150000), att.Size)
}

func TestClassifyPhoto_EmptyVariants(t *testing.T) {
	assert.Nil(t, classifyPhoto(nil))
	assert.Nil(t, classifyPhoto([]tgbotapi.PhotoSize{}))
}

func TestClassifyPhoto_Idempotent(t *testing.T) {
	sizes := []tgbotapi.PhotoSize{
		{FileUniqueID: "a", FileSize: 10},
		{FileUniqueID: "b", FileSize: 20},
	}

	first := classifyPhoto(sizes)
	second := classifyPhoto(sizes)
	assert.Equal(t, first, second)
}

func TestClassifyDocument(t *testing.T) {
	t.Run("nil document", func(t *testing.T) {
		assert.Nil(t, classifyDocument(nil))
	})

	t.Run("platform values preserved", func(t *testing.T) {
		att := classifyDocument(&tgbotapi.Document{
			FileName: "report.pdf",
			MimeType: "application/pdf",
			FileSize: 4096,
		})
		require.NotNil(t, att)
		assert.Equal(t, message.AttachmentFile, att.Type)
		assert.Equal(t, "application/pdf", att.MimeType)
		assert.Equal(t, "report.pdf", att.Filename)
		assert.Equal(t, int64(4096), att.Size)
	})

	t.Run("fallbacks when platform omits fields", func(t *testing.T) {
		att := classifyDocument(&tgbotapi.Document{})
		require.NotNil(t, att)
		assert.Equal(t, "application/octet-stream", att.MimeType)
		assert.Equal(t, "file", att.Filename)
	})
}

func TestClassifyVoice(t *testing.T) {
	t.Run("nil voice", func(t *testing.T) {
		assert.Nil(t, classifyVoice(nil))
	})

	t.Run("mime fallback and no filename", func(t *testing.T) {
		att := classifyVoice(&tgbotapi.Voice{FileSize: 2048})
		require.NotNil(t, att)
		assert.Equal(t, message.AttachmentAudio, att.Type)
		assert.Equal(t, "audio/ogg", att.MimeType)
		assert.Empty(t, att.Filename)
		assert.Equal(t, int64(2048), att.Size)
	})

	t.Run("platform mime preserved", func(t *testing.T) {
		att := classifyVoice(&tgbotapi.Voice{MimeType: "audio/opus"})
		require.NotNil(t, att)
		assert.Equal(t, "audio/opus", att.MimeType)
	})
}
