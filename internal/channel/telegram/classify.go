package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/keepmind9/chanbridge/internal/message"
	"github.com/keepmind9/chanbridge/pkg/constants"
)

// classifyPhoto maps Telegram photo size variants to a normalized image
// attachment. Telegram orders the variants ascending by resolution; the
// last one is the original-quality variant and is always the one selected.
func classifyPhoto(sizes []tgbotapi.PhotoSize) *message.Attachment {
	if len(sizes) == 0 {
		return nil
	}

	variant := sizes[len(sizes)-1]
	return &message.Attachment{
		Type:     message.AttachmentImage,
		MimeType: constants.DefaultPhotoMimeType,
		Filename: variant.FileUniqueID + ".jpg",
		Size:     int64(variant.FileSize),
	}
}

// classifyDocument maps a Telegram document to a normalized file attachment.
func classifyDocument(doc *tgbotapi.Document) *message.Attachment {
	if doc == nil {
		return nil
	}

	mime := doc.MimeType
	if mime == "" {
		mime = constants.DefaultDocumentMimeType
	}
	filename := doc.FileName
	if filename == "" {
		filename = constants.DefaultDocumentFilename
	}

	return &message.Attachment{
		Type:     message.AttachmentFile,
		MimeType: mime,
		Filename: filename,
		Size:     int64(doc.FileSize),
	}
}

// classifyVoice maps a Telegram voice note to a normalized audio attachment.
// Voice notes have no filename on the platform; none is synthesized.
func classifyVoice(voice *tgbotapi.Voice) *message.Attachment {
	if voice == nil {
		return nil
	}

	mime := voice.MimeType
	if mime == "" {
		mime = constants.DefaultVoiceMimeType
	}

	return &message.Attachment{
		Type:     message.AttachmentAudio,
		MimeType: mime,
		Size:     int64(voice.FileSize),
	}
}
