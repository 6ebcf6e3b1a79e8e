package history

import (
	"time"

	"github.com/pulseapp/chatkit-go/chatkit"
)

// ConversationKind distinguishes direct and group conversations.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation is the metadata record for a chat thread.
type Conversation struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Kind      ConversationKind `json:"kind"`
	MemberIDs []string         `json:"memberIds,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Participant identifies the peer whose messages a page carries alongside.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Page is one fetched slice of a conversation's history. Pages are fetched
// newest-first; each page covers a contiguous older time range than the one
// fetched before it. Message order within a page is not guaranteed to be
// chronological; consumers re-sort.
type Page struct {
	Messages   []chatkit.Message `json:"messages"`
	Sender     *Participant      `json:"sender,omitempty"`
	NextCursor string            `json:"nextCursor,omitempty"`
	HasMore    bool              `json:"hasMore"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
