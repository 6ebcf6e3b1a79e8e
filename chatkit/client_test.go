package chatkit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDispatcherNewMessage(t *testing.T) {
	var got Message
	var errCalled bool
	var d Dispatcher
	d.OnNewMessage(func(m Message) { got = m })
	d.OnError(func(err error) { errCalled = true; _ = err })

	raw, _ := json.Marshal(Message{
		ID: "m1", ChatID: "chat-1", SenderID: "alice",
		Content: "hi", Type: MessageText, CreatedAt: time.Now(),
	})
	d.Dispatch(Outbound{Type: outboundEvent, Event: eventNewMessage, Data: raw})

	if got.ID != "m1" || got.ChatID != "chat-1" || got.Content != "hi" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if errCalled {
		t.Fatalf("unexpected error callback")
	}
}

func TestDispatcherTypingEvents(t *testing.T) {
	var started, stopped []TypingEvent
	var d Dispatcher
	d.OnUserTyping(func(ev TypingEvent) { started = append(started, ev) })
	d.OnUserStoppedTyping(func(ev TypingEvent) { stopped = append(stopped, ev) })

	raw, _ := json.Marshal(TypingEvent{ChatID: "chat-1", UserID: "bob"})
	d.Dispatch(Outbound{Type: outboundEvent, Event: eventUserTyping, Data: raw})
	d.Dispatch(Outbound{Type: outboundEvent, Event: eventUserStoppedTyping, Data: raw})

	if len(started) != 1 || len(stopped) != 1 {
		t.Fatalf("expected one typing and one stop event, got %d/%d", len(started), len(stopped))
	}
	if started[0].UserID != "bob" {
		t.Fatalf("unexpected event: %+v", started[0])
	}
}

func TestDispatcherReactionEvents(t *testing.T) {
	var added ReactionEvent
	var d Dispatcher
	d.OnReactionAdded(func(ev ReactionEvent) { added = ev })

	raw, _ := json.Marshal(ReactionEvent{ChatID: "chat-1", MessageID: "m1", UserID: "bob", Emoji: "👍"})
	d.Dispatch(Outbound{Type: outboundEvent, Event: eventReactionAdded, Data: raw})

	if added.MessageID != "m1" || added.Emoji != "👍" {
		t.Fatalf("unexpected event: %+v", added)
	}
}

func TestDispatcherError(t *testing.T) {
	var errGot error
	var d Dispatcher
	d.OnError(func(err error) { errGot = err })

	d.Dispatch(Outbound{Type: outboundError, Error: &Error{Code: "unauthorized", Msg: "no token"}})
	if errGot == nil {
		t.Fatalf("expected error callback")
	}
	var ce *ChatError
	if !errors.As(errGot, &ce) || ce.Code != ErrorUnauthorized {
		t.Fatalf("expected unauthorized ChatError, got %v", errGot)
	}
}

func TestDispatcherUnsubscribe(t *testing.T) {
	calls := 0
	var d Dispatcher
	unsub := d.OnNewMessage(func(Message) { calls++ })
	keep := 0
	d.OnNewMessage(func(Message) { keep++ })

	raw, _ := json.Marshal(Message{ID: "m1"})
	d.Dispatch(Outbound{Type: outboundEvent, Event: eventNewMessage, Data: raw})

	unsub()
	unsub() // second call is harmless
	d.Dispatch(Outbound{Type: outboundEvent, Event: eventNewMessage, Data: raw})

	if calls != 1 {
		t.Fatalf("unsubscribed handler still called: %d", calls)
	}
	if keep != 2 {
		t.Fatalf("remaining handler should see both events, got %d", keep)
	}
}

func TestDispatcherBadPayloadFiresError(t *testing.T) {
	var errGot error
	var d Dispatcher
	d.OnNewMessage(func(Message) { t.Fatal("handler must not fire") })
	d.OnError(func(err error) { errGot = err })

	d.Dispatch(Outbound{Type: outboundEvent, Event: eventNewMessage, Data: json.RawMessage(`{"id":`)})

	var ce *ChatError
	if !errors.As(errGot, &ce) || ce.Code != ErrorSerialization {
		t.Fatalf("expected serialization error, got %v", errGot)
	}
}

func TestClientSendNotConnected(t *testing.T) {
	c := NewClient(DefaultConfig())
	err := c.SendMessage(testCtx(), OutgoingMessage{ChatID: "chat-1", Content: "hi"})
	if !errors.Is(err, NewError(ErrorNotConnected, "")) {
		t.Fatalf("expected not_connected error, got %v", err)
	}
}

func TestClientSendMessageValidation(t *testing.T) {
	c := NewClient(DefaultConfig())
	if err := c.SendMessage(testCtx(), OutgoingMessage{Content: "hi"}); !errors.Is(err, NewError(ErrorBadRequest, "")) {
		t.Fatalf("expected bad_request for missing chat id, got %v", err)
	}
	if err := c.SendMessage(testCtx(), OutgoingMessage{ChatID: "chat-1"}); !errors.Is(err, NewError(ErrorInvalidMessage, "")) {
		t.Fatalf("expected invalid_message for empty body, got %v", err)
	}
}

func TestClientLeaveUnjoinedChatIsNoop(t *testing.T) {
	c := NewClient(DefaultConfig())
	if err := c.LeaveChat(testCtx(), "never-joined"); err != nil {
		t.Fatalf("leave of unjoined chat must be a no-op, got %v", err)
	}
}

func TestClientConnectEmptyURL(t *testing.T) {
	c := NewClient(DefaultConfig())
	err := c.Connect(context.Background())
	if !errors.Is(err, NewError(ErrorInvalidConfig, "")) {
		t.Fatalf("expected invalid_config, got %v", err)
	}
}

// testCtx returns a cancellable context for unit tests.
func testCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
