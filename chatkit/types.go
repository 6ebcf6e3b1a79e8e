package chatkit

import "encoding/json"

const (
	ProtocolVersion = 1

	inboundHello          = "hello"
	inboundJoinChat       = "join_chat"
	inboundLeaveChat      = "leave_chat"
	inboundSendMessage    = "send_message"
	inboundTypingStart    = "typing_start"
	inboundTypingStop     = "typing_stop"
	inboundReactionAdd    = "reaction_add"
	inboundReactionRemove = "reaction_remove"

	outboundEvent = "event"
	outboundError = "error"

	eventNewMessage        = "new_message"
	eventMessageSent       = "message_sent"
	eventUserTyping        = "user_typing"
	eventUserStoppedTyping = "user_stopped_typing"
	eventReactionAdded     = "reaction_added"
	eventReactionRemoved   = "reaction_removed"
)

// Inbound represents the envelope from client to server.
type Inbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Outbound is the envelope server -> client.
type Outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// HelloPayload initiates the session.
type HelloPayload struct {
	Protocol int    `json:"protocol,omitempty"`
	Token    string `json:"token,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// ChatPayload scopes a request to one conversation room.
type ChatPayload struct {
	ChatID string `json:"chatId"`
}

// ReactionPayload adds or removes a reaction on a message.
type ReactionPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// Error describes a protocol error.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Msg
}

// UnmarshalData decodes RawMessage into target.
func UnmarshalData(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}
