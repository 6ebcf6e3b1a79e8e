package chatkit

// TypingEvent is emitted when a user starts or stops typing in a conversation.
type TypingEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// ReactionEvent is emitted when a reaction is added to or removed from a
// message. The server sends one event per (user, emoji) change.
type ReactionEvent struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}
