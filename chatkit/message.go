package chatkit

import "time"

// MessageType tags the primary modality of a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVoice MessageType = "voice"
)

// Message is the domain model for a chat message. The id is assigned by the
// server; clients never mint ids for persisted messages.
type Message struct {
	ID                string          `json:"id"`
	ChatID            string          `json:"chatId"`
	SenderID          string          `json:"senderId"`
	Content           string          `json:"content,omitempty"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	VoiceNoteURL      string          `json:"voiceNoteUrl,omitempty"`
	VoiceNoteDuration int             `json:"voiceNoteDuration,omitempty"` // seconds
	Type              MessageType     `json:"messageType"`
	ReplyToMessageID  string          `json:"replyToMessageId,omitempty"`
	Reactions         []ReactionGroup `json:"reactions,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// ReactionGroup is the per-emoji rollup of reactions on a message.
type ReactionGroup struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	ReactedByMe bool   `json:"reactedByMe"`
}

// OutgoingMessage describes a message to be persisted and broadcast by the
// server. The acknowledgment arrives later through the message_sent event,
// not as a return value.
type OutgoingMessage struct {
	ChatID            string      `json:"chatId"`
	Content           string      `json:"content,omitempty"`
	Type              MessageType `json:"messageType"`
	ImageURL          string      `json:"imageUrl,omitempty"`
	VoiceNoteURL      string      `json:"voiceNoteUrl,omitempty"`
	VoiceNoteDuration int         `json:"voiceNoteDuration,omitempty"`
	ReplyToMessageID  string      `json:"replyToMessageId,omitempty"`
	// Echo asks the server to deliver the persisted message back to the
	// sender via message_sent.
	Echo bool `json:"echo,omitempty"`
	// ClientID correlates the echo with this send. Filled by the client.
	ClientID string `json:"clientId,omitempty"`
}

// TypingState is the ephemeral per-peer typing flag for a conversation.
// It is never persisted.
type TypingState struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ReplyContext is the local-only snapshot taken when the user starts a reply.
// It is independent of later changes to the referenced message.
type ReplyContext struct {
	MessageID  string
	Content    string
	SenderName string
	HasImage   bool
}
