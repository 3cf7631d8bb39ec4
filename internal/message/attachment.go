package message

// AttachmentType classifies an attachment independently of the platform
// that produced it.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentAudio AttachmentType = "audio"
	AttachmentVideo AttachmentType = "video"
)

// Attachment is a normalized media record.
//
// Inbound attachments describe media the platform holds (the source may be
// reachable only through Raw); outbound attachments must carry a URL or an
// inline Data payload to be deliverable.
type Attachment struct {
	Type     AttachmentType
	MimeType string
	Filename string
	Size     int64
	URL      string
	Data     []byte
}

// Sendable reports whether the attachment carries a usable source.
// Adapters silently skip outbound attachments that are not sendable.
func (a Attachment) Sendable() bool {
	return a.URL != "" || len(a.Data) > 0
}
