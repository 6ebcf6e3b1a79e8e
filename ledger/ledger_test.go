package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulseapp/chatkit-go/chatkit"
)

func TestMarkAndClearUnread(t *testing.T) {
	l := New()

	l.MarkUnread("chat-1")
	l.MarkUnread("chat-2")
	l.MarkUnread("chat-1") // membership, not count

	assert.True(t, l.IsUnread("chat-1"))
	assert.Equal(t, []string{"chat-1", "chat-2"}, l.UnreadChats())

	l.ClearUnread("chat-1")
	assert.False(t, l.IsUnread("chat-1"))
	assert.Equal(t, []string{"chat-2"}, l.UnreadChats())
}

func TestMarkUnreadSuppressedForActiveChat(t *testing.T) {
	l := New()
	l.SetActiveChat("chat-1")

	l.MarkUnread("chat-1")
	assert.False(t, l.IsUnread("chat-1"))

	l.MarkUnread("chat-2")
	assert.True(t, l.IsUnread("chat-2"))
}

func TestSetActiveChatEmptyClears(t *testing.T) {
	l := New()
	l.SetActiveChat("chat-1")
	assert.Equal(t, "chat-1", l.ActiveChat())

	l.SetActiveChat("")
	assert.Equal(t, "", l.ActiveChat())

	l.MarkUnread("chat-1")
	assert.True(t, l.IsUnread("chat-1"))
}

func TestMarkUnreadIgnoresEmptyID(t *testing.T) {
	l := New()
	l.MarkUnread("")
	assert.Empty(t, l.UnreadChats())
}

type fakeFeed struct {
	fn func(chatkit.Message)
}

func (f *fakeFeed) OnNewMessage(fn func(chatkit.Message)) chatkit.Unsubscribe {
	f.fn = fn
	return func() { f.fn = nil }
}

func TestTrackUnread(t *testing.T) {
	l := New()
	l.SetActiveChat("chat-active")
	feed := &fakeFeed{}

	unsub := TrackUnread(feed, l)

	feed.fn(chatkit.Message{ID: "m1", ChatID: "chat-bg"})
	feed.fn(chatkit.Message{ID: "m2", ChatID: "chat-active"})

	assert.True(t, l.IsUnread("chat-bg"))
	assert.False(t, l.IsUnread("chat-active"), "active conversation never flags unread")

	unsub()
	assert.Nil(t, feed.fn)
}
