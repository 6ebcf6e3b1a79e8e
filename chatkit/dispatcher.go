package chatkit

import (
	"sync"

	"github.com/google/uuid"
)

// Unsubscribe removes the handler it was returned for. Safe to call more
// than once.
type Unsubscribe func()

// handlerSet keeps registered callbacks for one event type. Each add returns
// an unsubscribe handle so callers never have to retain and re-pass the
// original function reference.
type handlerSet[T any] struct {
	mu  sync.RWMutex
	fns map[string]func(T)
}

func (s *handlerSet[T]) add(fn func(T)) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[string]func(T))
	}
	s.fns[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *handlerSet[T]) emit(v T) {
	s.mu.RLock()
	fns := make([]func(T), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (s *handlerSet[T]) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fns) == 0
}

// Dispatcher routes outbound envelopes to registered callbacks.
type Dispatcher struct {
	newMessage      handlerSet[Message]
	messageSent     handlerSet[Message]
	userTyping      handlerSet[TypingEvent]
	userStopped     handlerSet[TypingEvent]
	reactionAdded   handlerSet[ReactionEvent]
	reactionRemoved handlerSet[ReactionEvent]
	stateChanged    handlerSet[StateEvent]
	errs            handlerSet[error]
}

func (d *Dispatcher) OnNewMessage(fn func(Message)) Unsubscribe       { return d.newMessage.add(fn) }
func (d *Dispatcher) OnMessageSent(fn func(Message)) Unsubscribe      { return d.messageSent.add(fn) }
func (d *Dispatcher) OnUserTyping(fn func(TypingEvent)) Unsubscribe   { return d.userTyping.add(fn) }
func (d *Dispatcher) OnUserStoppedTyping(fn func(TypingEvent)) Unsubscribe {
	return d.userStopped.add(fn)
}
func (d *Dispatcher) OnReactionAdded(fn func(ReactionEvent)) Unsubscribe {
	return d.reactionAdded.add(fn)
}
func (d *Dispatcher) OnReactionRemoved(fn func(ReactionEvent)) Unsubscribe {
	return d.reactionRemoved.add(fn)
}
func (d *Dispatcher) OnStateChanged(fn func(StateEvent)) Unsubscribe { return d.stateChanged.add(fn) }
func (d *Dispatcher) OnError(fn func(error)) Unsubscribe             { return d.errs.add(fn) }

func (d *Dispatcher) Dispatch(out Outbound) {
	if out.Type == outboundError && out.Error != nil {
		// Convert protocol error to ChatError
		d.errs.emit(FromProtocolError(out.Error))
		return
	}
	switch out.Event {
	case eventNewMessage:
		if d.newMessage.empty() {
			return
		}
		var m Message
		if err := UnmarshalData(out.Data, &m); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal new_message event", err))
			return
		}
		d.newMessage.emit(m)
	case eventMessageSent:
		if d.messageSent.empty() {
			return
		}
		var m Message
		if err := UnmarshalData(out.Data, &m); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal message_sent event", err))
			return
		}
		d.messageSent.emit(m)
	case eventUserTyping:
		if d.userTyping.empty() {
			return
		}
		var ev TypingEvent
		if err := UnmarshalData(out.Data, &ev); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal user_typing event", err))
			return
		}
		d.userTyping.emit(ev)
	case eventUserStoppedTyping:
		if d.userStopped.empty() {
			return
		}
		var ev TypingEvent
		if err := UnmarshalData(out.Data, &ev); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal user_stopped_typing event", err))
			return
		}
		d.userStopped.emit(ev)
	case eventReactionAdded:
		if d.reactionAdded.empty() {
			return
		}
		var ev ReactionEvent
		if err := UnmarshalData(out.Data, &ev); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal reaction_added event", err))
			return
		}
		d.reactionAdded.emit(ev)
	case eventReactionRemoved:
		if d.reactionRemoved.empty() {
			return
		}
		var ev ReactionEvent
		if err := UnmarshalData(out.Data, &ev); err != nil {
			d.fireError(WrapError(ErrorSerialization, "failed to unmarshal reaction_removed event", err))
			return
		}
		d.reactionRemoved.emit(ev)
	}
}

func (d *Dispatcher) fireError(err error) {
	if err != nil {
		d.errs.emit(err)
	}
}

func (d *Dispatcher) fireState(ev StateEvent) {
	d.stateChanged.emit(ev)
}
