package convo

import (
	"sort"

	"github.com/pulseapp/chatkit-go/chatkit"
)

// maxPendingReactions bounds the buffer of reaction events that arrived
// before their message did.
const maxPendingReactions = 256

type pendingReaction struct {
	ev    chatkit.ReactionEvent
	added bool
}

// timeline is the normalized, id-deduplicated, chronologically ascending
// message list for one conversation. Live events and history pages both feed
// it; delivery order does not matter. Not safe for concurrent use; the
// coordinator serializes access.
type timeline struct {
	localUser string
	byID      map[string]*chatkit.Message
	order     []*chatkit.Message

	// reaction events for messages not merged yet, keyed by message id,
	// replayed when the message appears through any path
	pending      map[string][]pendingReaction
	pendingTotal int
}

func newTimeline(localUser string) *timeline {
	return &timeline{
		localUser: localUser,
		byID:      make(map[string]*chatkit.Message),
		pending:   make(map[string][]pendingReaction),
	}
}

// upsert merges one message. The first-seen record is kept; a later duplicate
// only fills fields the kept record is missing. Reactions are changed solely
// through applyReaction.
func (t *timeline) upsert(m chatkit.Message) {
	if m.ID == "" {
		return
	}
	if existing, ok := t.byID[m.ID]; ok {
		fillMissing(existing, m)
		return
	}

	msg := m
	msg.Reactions = cloneReactions(m.Reactions)
	t.byID[msg.ID] = &msg

	// insert after every message with an earlier-or-equal timestamp so that
	// equal timestamps keep arrival order
	i := sort.Search(len(t.order), func(i int) bool {
		return t.order[i].CreatedAt.After(msg.CreatedAt)
	})
	t.order = append(t.order, nil)
	copy(t.order[i+1:], t.order[i:])
	t.order[i] = &msg

	t.replayPending(&msg)
}

// fillMissing copies optional fields a duplicate carries that the kept record
// lacks. Reactions are filled only when the kept record has none at all.
func fillMissing(dst *chatkit.Message, src chatkit.Message) {
	if dst.Content == "" {
		dst.Content = src.Content
	}
	if dst.ImageURL == "" {
		dst.ImageURL = src.ImageURL
	}
	if dst.VoiceNoteURL == "" {
		dst.VoiceNoteURL = src.VoiceNoteURL
	}
	if dst.VoiceNoteDuration == 0 {
		dst.VoiceNoteDuration = src.VoiceNoteDuration
	}
	if dst.ReplyToMessageID == "" {
		dst.ReplyToMessageID = src.ReplyToMessageID
	}
	if dst.SenderID == "" {
		dst.SenderID = src.SenderID
	}
	if dst.Type == "" {
		dst.Type = src.Type
	}
	if dst.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	if len(dst.Reactions) == 0 && len(src.Reactions) > 0 {
		dst.Reactions = cloneReactions(src.Reactions)
	}
}

// applyReaction mutates the reaction rollup of the referenced message, or
// buffers the event if the message has not been merged yet.
func (t *timeline) applyReaction(ev chatkit.ReactionEvent, added bool) {
	msg, ok := t.byID[ev.MessageID]
	if !ok {
		if t.pendingTotal >= maxPendingReactions {
			return
		}
		t.pending[ev.MessageID] = append(t.pending[ev.MessageID], pendingReaction{ev: ev, added: added})
		t.pendingTotal++
		return
	}
	t.applyReactionTo(msg, ev, added)
}

func (t *timeline) applyReactionTo(msg *chatkit.Message, ev chatkit.ReactionEvent, added bool) {
	idx := -1
	for i := range msg.Reactions {
		if msg.Reactions[i].Emoji == ev.Emoji {
			idx = i
			break
		}
	}
	self := ev.UserID == t.localUser
	if added {
		if idx < 0 {
			msg.Reactions = append(msg.Reactions, chatkit.ReactionGroup{Emoji: ev.Emoji, Count: 1, ReactedByMe: self})
			return
		}
		msg.Reactions[idx].Count++
		if self {
			msg.Reactions[idx].ReactedByMe = true
		}
		return
	}
	if idx < 0 {
		return
	}
	msg.Reactions[idx].Count--
	if self {
		msg.Reactions[idx].ReactedByMe = false
	}
	if msg.Reactions[idx].Count <= 0 {
		msg.Reactions = append(msg.Reactions[:idx], msg.Reactions[idx+1:]...)
	}
}

func (t *timeline) replayPending(msg *chatkit.Message) {
	buffered, ok := t.pending[msg.ID]
	if !ok {
		return
	}
	delete(t.pending, msg.ID)
	t.pendingTotal -= len(buffered)
	for _, p := range buffered {
		t.applyReactionTo(msg, p.ev, p.added)
	}
}

// messages returns a copy of the list safe to hand to the UI.
func (t *timeline) messages() []chatkit.Message {
	out := make([]chatkit.Message, len(t.order))
	for i, m := range t.order {
		out[i] = *m
		out[i].Reactions = cloneReactions(m.Reactions)
	}
	return out
}

func (t *timeline) get(id string) (chatkit.Message, bool) {
	m, ok := t.byID[id]
	if !ok {
		return chatkit.Message{}, false
	}
	msg := *m
	msg.Reactions = cloneReactions(m.Reactions)
	return msg, true
}

func cloneReactions(rs []chatkit.ReactionGroup) []chatkit.ReactionGroup {
	if len(rs) == 0 {
		return nil
	}
	out := make([]chatkit.ReactionGroup, len(rs))
	copy(out, rs)
	return out
}
