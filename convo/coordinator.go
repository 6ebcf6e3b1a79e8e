// Package convo owns the state of one mounted conversation view: it merges
// paginated history with live channel events into a single chronological,
// de-duplicated message list and carries the transient compose state (input
// text, typing indicator, reply context).
package convo

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pulseapp/chatkit-go/chatkit"
	"github.com/pulseapp/chatkit-go/history"
)

// ErrAlreadyOpen is returned by Open on a coordinator that is already mounted.
var ErrAlreadyOpen = errors.New("conversation already open")

// Channel is the slice of the event channel client the coordinator uses.
// *chatkit.Client satisfies it.
type Channel interface {
	JoinChat(ctx context.Context, chatID string) error
	LeaveChat(ctx context.Context, chatID string) error
	SendMessage(ctx context.Context, out chatkit.OutgoingMessage) error
	StartTyping(ctx context.Context, chatID string) error
	StopTyping(ctx context.Context, chatID string) error
	AddReaction(ctx context.Context, chatID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, chatID, messageID, emoji string) error

	OnNewMessage(fn func(chatkit.Message)) chatkit.Unsubscribe
	OnMessageSent(fn func(chatkit.Message)) chatkit.Unsubscribe
	OnUserTyping(fn func(chatkit.TypingEvent)) chatkit.Unsubscribe
	OnUserStoppedTyping(fn func(chatkit.TypingEvent)) chatkit.Unsubscribe
	OnReactionAdded(fn func(chatkit.ReactionEvent)) chatkit.Unsubscribe
	OnReactionRemoved(fn func(chatkit.ReactionEvent)) chatkit.Unsubscribe
}

// History is the paged-history surface the coordinator consumes.
// *history.Pager satisfies it.
type History interface {
	FetchNext(ctx context.Context) error
	Pages() []*history.Page
	HasNext() bool
	IsFetching() bool
}

// Presence is the slice of the unread/presence ledger the coordinator uses.
// *ledger.Ledger satisfies it.
type Presence interface {
	SetActiveChat(chatID string)
	ActiveChat() string
	ClearUnread(chatID string)
}

// View is the read-only snapshot handed to the UI layer.
type View struct {
	Messages   []chatkit.Message
	Input      string
	PeerTyping bool
	ReplyingTo *chatkit.ReplyContext
	HasMore    bool
	Loading    bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger overrides the coordinator's logger.
func WithLogger(l chatkit.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithNotify registers a hook invoked after every state change, typically to
// trigger a UI re-render. It runs on whatever goroutine caused the change.
func WithNotify(fn func()) Option {
	return func(c *Coordinator) { c.notify = fn }
}

// Coordinator is the per-conversation state hub. Construct one per mounted
// conversation view and discard it after Close; the ledger is the only state
// shared across conversations.
type Coordinator struct {
	chatID   string
	userID   string
	ch       Channel
	hist     History
	presence Presence
	log      chatkit.Logger
	notify   func()

	mu     sync.Mutex
	tl     *timeline
	input  string
	reply  *chatkit.ReplyContext
	typing map[string]bool
	subs   []chatkit.Unsubscribe
	open   bool

	runCtx    context.Context
	cancelRun context.CancelFunc
}

// New creates a coordinator for one conversation. userID is the local user's
// identity from the app's auth layer; it drives self-echo suppression and
// the ReactedByMe rollup.
func New(chatID, userID string, ch Channel, hist History, presence Presence, opts ...Option) *Coordinator {
	c := &Coordinator{
		chatID:   chatID,
		userID:   userID,
		ch:       ch,
		hist:     hist,
		presence: presence,
		log:      chatkit.NoopLogger(),
		tl:       newTimeline(userID),
		typing:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open mounts the conversation: joins the channel room, registers the event
// handlers, marks the conversation active and read, and fetches the most
// recent history page. A history fetch failure leaves the coordinator open;
// LoadMore retries it.
func (c *Coordinator) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.open = true
	c.runCtx, c.cancelRun = context.WithCancel(context.Background())
	c.mu.Unlock()

	if err := c.ch.JoinChat(ctx, c.chatID); err != nil {
		c.mu.Lock()
		c.open = false
		c.cancelRun()
		c.mu.Unlock()
		return err
	}

	subs := []chatkit.Unsubscribe{
		c.ch.OnNewMessage(c.onNewMessage),
		c.ch.OnMessageSent(c.onMessageSent),
		c.ch.OnUserTyping(c.onUserTyping),
		c.ch.OnUserStoppedTyping(c.onUserStoppedTyping),
		c.ch.OnReactionAdded(c.onReactionAdded),
		c.ch.OnReactionRemoved(c.onReactionRemoved),
	}
	c.mu.Lock()
	c.subs = subs
	c.mu.Unlock()

	c.presence.SetActiveChat(c.chatID)
	c.presence.ClearUnread(c.chatID)

	if err := c.hist.FetchNext(ctx); err != nil {
		c.log.Warn("initial history fetch failed", map[string]any{"chat": c.chatID, "error": err.Error()})
		return err
	}
	c.syncPages()
	return nil
}

// Close unmounts the conversation: leaves the room, removes exactly the
// handlers registered at Open, and clears the active marker only if it still
// points at this conversation (the user may already have opened another one).
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	subs := c.subs
	c.subs = nil
	c.typing = make(map[string]bool)
	c.cancelRun()
	c.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
	if c.presence.ActiveChat() == c.chatID {
		c.presence.SetActiveChat("")
	}
	return c.ch.LeaveChat(ctx, c.chatID)
}

// Snapshot returns the current view state. The returned value is a copy; the
// UI may hold it across renders without racing the coordinator.
func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	v := View{
		Messages:   c.tl.messages(),
		Input:      c.input,
		PeerTyping: len(c.typing) > 0,
	}
	if c.reply != nil {
		rc := *c.reply
		v.ReplyingTo = &rc
	}
	c.mu.Unlock()

	v.HasMore = c.hist.HasNext()
	v.Loading = c.hist.IsFetching()
	return v
}

// SetInput updates the compose buffer and emits typing hints edge-triggered:
// one StartTyping when the buffer goes empty to non-empty, one StopTyping
// when it goes back to empty. Keystrokes within a non-empty buffer emit
// nothing.
func (c *Coordinator) SetInput(text string) {
	c.mu.Lock()
	prev := c.input
	c.input = text
	ctx := c.runCtx
	open := c.open
	c.mu.Unlock()

	if open {
		switch {
		case prev == "" && text != "":
			if err := c.ch.StartTyping(ctx, c.chatID); err != nil {
				c.log.Debug("start typing emit failed", map[string]any{"error": err.Error()})
			}
		case prev != "" && text == "":
			if err := c.ch.StopTyping(ctx, c.chatID); err != nil {
				c.log.Debug("stop typing emit failed", map[string]any{"error": err.Error()})
			}
		}
	}
	c.changed()
}

// Send emits the compose buffer as a text message. The buffer and the reply
// context are cleared immediately, before any acknowledgment, and are not
// restored if the send fails; the persisted message materializes later via
// the message_sent or new_message event.
func (c *Coordinator) Send(ctx context.Context) error {
	c.mu.Lock()
	content := strings.TrimSpace(c.input)
	if content == "" {
		c.mu.Unlock()
		return chatkit.NewError(chatkit.ErrorInvalidMessage, "nothing to send")
	}
	reply := c.reply
	c.input = ""
	c.reply = nil
	c.mu.Unlock()
	c.changed()

	out := chatkit.OutgoingMessage{
		ChatID:  c.chatID,
		Content: content,
		Type:    chatkit.MessageText,
		Echo:    true,
	}
	if reply != nil {
		out.ReplyToMessageID = reply.MessageID
	}

	// the buffer just went non-empty to empty
	if err := c.ch.StopTyping(ctx, c.chatID); err != nil {
		c.log.Debug("stop typing emit failed", map[string]any{"error": err.Error()})
	}
	return c.ch.SendMessage(ctx, out)
}

// SendImage emits an image message, using the compose buffer as caption if
// non-empty. Buffer and reply context clear exactly as in Send.
func (c *Coordinator) SendImage(ctx context.Context, imageURL string) error {
	if imageURL == "" {
		return chatkit.NewError(chatkit.ErrorInvalidMessage, "empty image url")
	}
	c.mu.Lock()
	caption := strings.TrimSpace(c.input)
	hadInput := c.input != ""
	reply := c.reply
	c.input = ""
	c.reply = nil
	c.mu.Unlock()
	c.changed()

	out := chatkit.OutgoingMessage{
		ChatID:   c.chatID,
		Content:  caption,
		Type:     chatkit.MessageImage,
		ImageURL: imageURL,
		Echo:     true,
	}
	if reply != nil {
		out.ReplyToMessageID = reply.MessageID
	}
	if hadInput {
		if err := c.ch.StopTyping(ctx, c.chatID); err != nil {
			c.log.Debug("stop typing emit failed", map[string]any{"error": err.Error()})
		}
	}
	return c.ch.SendMessage(ctx, out)
}

// SendVoice emits a voice-note message. The compose buffer is left alone;
// voice notes carry no caption. The reply context, if any, attaches and
// clears.
func (c *Coordinator) SendVoice(ctx context.Context, voiceNoteURL string, durationSeconds int) error {
	if voiceNoteURL == "" {
		return chatkit.NewError(chatkit.ErrorInvalidMessage, "empty voice note url")
	}
	c.mu.Lock()
	reply := c.reply
	c.reply = nil
	c.mu.Unlock()
	c.changed()

	out := chatkit.OutgoingMessage{
		ChatID:            c.chatID,
		Type:              chatkit.MessageVoice,
		VoiceNoteURL:      voiceNoteURL,
		VoiceNoteDuration: durationSeconds,
		Echo:              true,
	}
	if reply != nil {
		out.ReplyToMessageID = reply.MessageID
	}
	return c.ch.SendMessage(ctx, out)
}

// React asks the server to add a reaction. The message's reaction rollup
// changes only when the reaction_added event round-trips back, so local and
// server counts cannot diverge.
func (c *Coordinator) React(ctx context.Context, messageID, emoji string) error {
	return c.ch.AddReaction(ctx, c.chatID, messageID, emoji)
}

// Unreact asks the server to remove a reaction; like React, the rollup
// changes only on the round-trip event.
func (c *Coordinator) Unreact(ctx context.Context, messageID, emoji string) error {
	return c.ch.RemoveReaction(ctx, c.chatID, messageID, emoji)
}

// Reply snapshots the message being replied to. The snapshot is independent
// of later changes to the message.
func (c *Coordinator) Reply(msg chatkit.Message, senderName string) {
	rc := chatkit.ReplyContext{
		MessageID:  msg.ID,
		Content:    msg.Content,
		SenderName: senderName,
		HasImage:   msg.ImageURL != "",
	}
	c.mu.Lock()
	c.reply = &rc
	c.mu.Unlock()
	c.changed()
}

// CancelReply discards the reply context.
func (c *Coordinator) CancelReply() {
	c.mu.Lock()
	c.reply = nil
	c.mu.Unlock()
	c.changed()
}

// ResolveReply looks up the message a reply references, if it is currently
// in the merged list.
func (c *Coordinator) ResolveReply(msg chatkit.Message) (chatkit.Message, bool) {
	if msg.ReplyToMessageID == "" {
		return chatkit.Message{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tl.get(msg.ReplyToMessageID)
}

// LoadMore fetches the next older history page. It is a no-op while a fetch
// is in flight or when no older page exists.
func (c *Coordinator) LoadMore(ctx context.Context) error {
	if c.hist.IsFetching() || !c.hist.HasNext() {
		return nil
	}
	if err := c.hist.FetchNext(ctx); err != nil {
		return err
	}
	c.syncPages()
	return nil
}

// syncPages merges every fetched page into the timeline. Pages are walked in
// reverse fetch order (oldest page first); the merge is idempotent so
// re-walking already-merged pages is harmless.
func (c *Coordinator) syncPages() {
	pages := c.hist.Pages()
	c.mu.Lock()
	for i := len(pages) - 1; i >= 0; i-- {
		for _, m := range pages[i].Messages {
			if m.ChatID != "" && m.ChatID != c.chatID {
				continue
			}
			c.tl.upsert(m)
		}
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) onNewMessage(m chatkit.Message) {
	if m.ChatID != c.chatID {
		return
	}
	c.mu.Lock()
	c.tl.upsert(m)
	// a delivered message implies its sender stopped typing
	delete(c.typing, m.SenderID)
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) onMessageSent(m chatkit.Message) {
	if m.ChatID != c.chatID {
		return
	}
	c.mu.Lock()
	c.tl.upsert(m)
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) onUserTyping(ev chatkit.TypingEvent) {
	if ev.ChatID != c.chatID || ev.UserID == c.userID {
		return
	}
	c.mu.Lock()
	c.typing[ev.UserID] = true
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) onUserStoppedTyping(ev chatkit.TypingEvent) {
	if ev.ChatID != c.chatID {
		return
	}
	c.mu.Lock()
	delete(c.typing, ev.UserID)
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) onReactionAdded(ev chatkit.ReactionEvent) {
	if ev.ChatID != c.chatID {
		return
	}
	c.mu.Lock()
	c.tl.applyReaction(ev, true)
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) onReactionRemoved(ev chatkit.ReactionEvent) {
	if ev.ChatID != c.chatID {
		return
	}
	c.mu.Lock()
	c.tl.applyReaction(ev, false)
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) changed() {
	if c.notify != nil {
		c.notify()
	}
}
