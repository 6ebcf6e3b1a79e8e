// Package ledger tracks which conversations have unread messages and which
// conversation is currently foregrounded. It is the only cross-conversation
// shared state in the SDK and is only ever mutated through its own methods.
package ledger

import (
	"sort"
	"sync"

	"github.com/pulseapp/chatkit-go/chatkit"
)

// Ledger is a process-wide unread/active-conversation registry. Construct one
// per process and pass it to each coordinator; it is safe for concurrent use.
type Ledger struct {
	mu     sync.Mutex
	active string
	unread map[string]struct{}
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{unread: make(map[string]struct{})}
}

// SetActiveChat marks the foregrounded conversation. The empty string clears
// the marker. Unread marking is suppressed for the active conversation.
func (l *Ledger) SetActiveChat(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = chatID
}

// ActiveChat returns the currently foregrounded conversation id, or "".
func (l *Ledger) ActiveChat() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MarkUnread flags a conversation as unread. It is a no-op for the active
// conversation and for an empty id. Membership, not message count, determines
// unread.
func (l *Ledger) MarkUnread(chatID string) {
	if chatID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if chatID == l.active {
		return
	}
	l.unread[chatID] = struct{}{}
}

// ClearUnread removes a conversation's unread flag.
func (l *Ledger) ClearUnread(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.unread, chatID)
}

// IsUnread reports whether a conversation is flagged unread.
func (l *Ledger) IsUnread(chatID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.unread[chatID]
	return ok
}

// UnreadChats returns the flagged conversation ids, sorted for stable output.
func (l *Ledger) UnreadChats() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.unread))
	for id := range l.unread {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MessageFeed is the slice of the channel client the unread tracker needs.
type MessageFeed interface {
	OnNewMessage(fn func(chatkit.Message)) chatkit.Unsubscribe
}

// TrackUnread subscribes to incoming messages and flags their conversations
// unread; messages for the active conversation are suppressed by MarkUnread.
// The returned handle tears the subscription down.
func TrackUnread(feed MessageFeed, l *Ledger) chatkit.Unsubscribe {
	return feed.OnNewMessage(func(m chatkit.Message) {
		l.MarkUnread(m.ChatID)
	})
}
