package domain

import (
	"strings"
	"time"
)

// MessageType is the kind of content carried by a message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
	MessageLocation MessageType = "location"
	MessageContact  MessageType = "contact"
	MessageUnknown  MessageType = "unknown"
)

// MessageContent is the textual payload of a message.
type MessageContent struct {
	Text     string `json:"text,omitempty"`
	Caption  string `json:"caption,omitempty"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url"`
}

// MessageMetadata carries chat-level flags.
type MessageMetadata struct {
	IsGroup   bool   `json:"is_group"`
	GroupID   string `json:"group_id,omitempty"`
	FromMe    bool   `json:"from_me"`
	Forwarded bool   `json:"forwarded"`
}

// NormalizedMessage is an inbound message after transport-specific normalization.
// Validation tags are checked once at the webhook boundary.
type NormalizedMessage struct {
	MessageID   string          `json:"message_id"   validate:"required"`
	TenantID    string          `json:"tenant_id"    validate:"required"`
	UserID      string          `json:"user_id"      validate:"required"`
	SenderPhone string          `json:"sender_phone" validate:"required,numeric,min=10,max=15"`
	SenderName  string          `json:"sender_name,omitempty"`
	Type        MessageType     `json:"message_type" validate:"required,oneof=text image video audio document location contact unknown"`
	Content     MessageContent  `json:"content"`
	Metadata    MessageMetadata `json:"metadata"`
	Timestamp   time.Time       `json:"timestamp"    validate:"required"`
}

// FullText joins text and caption with a single space, skipping empty parts.
func (m *NormalizedMessage) FullText() string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(m.Content.Text); t != "" {
		parts = append(parts, t)
	}
	if c := strings.TrimSpace(m.Content.Caption); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, " ")
}

// DisplaySender returns the sender name, falling back to the phone number.
func (m *NormalizedMessage) DisplaySender() string {
	if name := strings.TrimSpace(m.SenderName); name != "" {
		return name
	}
	return m.SenderPhone
}
