package chatkit

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/pulseapp/chatkit-go/chatkit/internal"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Client is the event channel client: one long-lived connection, room-scoped
// join/leave, fire-and-forget emitters, and per-event subscriptions. It keeps
// no conversation state beyond the set of joined chats.
type Client struct {
	cfg        Config
	logger     Logger
	writeCh    chan Inbound
	dispatcher Dispatcher

	mu     sync.Mutex
	state  ConnectionState
	conn   *internal.Conn
	cancel context.CancelFunc
	joined map[string]struct{}
	closed bool
}

// NewClient constructs a client with provided config.
// Use DefaultConfig() as a starting point and modify as needed.
// Set a timeout to 0 to disable it.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		logger:  noopLogger{},
		writeCh: make(chan Inbound, 16),
		joined:  make(map[string]struct{}),
	}
}

// SetLogger overrides logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// OnNewMessage registers a callback for messages broadcast to joined chats.
func (c *Client) OnNewMessage(fn func(Message)) Unsubscribe { return c.dispatcher.OnNewMessage(fn) }

// OnMessageSent registers a callback for acknowledgments of this client's sends.
func (c *Client) OnMessageSent(fn func(Message)) Unsubscribe { return c.dispatcher.OnMessageSent(fn) }

// OnUserTyping registers a callback for typing-start presence hints.
func (c *Client) OnUserTyping(fn func(TypingEvent)) Unsubscribe {
	return c.dispatcher.OnUserTyping(fn)
}

// OnUserStoppedTyping registers a callback for typing-stop presence hints.
func (c *Client) OnUserStoppedTyping(fn func(TypingEvent)) Unsubscribe {
	return c.dispatcher.OnUserStoppedTyping(fn)
}

// OnReactionAdded registers a callback for reaction additions.
func (c *Client) OnReactionAdded(fn func(ReactionEvent)) Unsubscribe {
	return c.dispatcher.OnReactionAdded(fn)
}

// OnReactionRemoved registers a callback for reaction removals.
func (c *Client) OnReactionRemoved(fn func(ReactionEvent)) Unsubscribe {
	return c.dispatcher.OnReactionRemoved(fn)
}

// OnStateChanged registers a callback for connection state transitions.
func (c *Client) OnStateChanged(fn func(StateEvent)) Unsubscribe {
	return c.dispatcher.OnStateChanged(fn)
}

// OnError registers a callback for transport and protocol errors.
func (c *Client) OnError(fn func(error)) Unsubscribe { return c.dispatcher.OnError(fn) }

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server, sends hello, and starts internal loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return NewError(ErrorConnection, "already connected")
	}
	c.closed = false
	c.mu.Unlock()

	if c.cfg.URL == "" {
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	if _, err := url.Parse(c.cfg.URL); err != nil {
		return WrapError(ErrorInvalidConfig, "invalid URL", err)
	}

	c.setState(StateConnecting, nil)
	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return err
	}
	c.setState(StateConnected, nil)
	return nil
}

// dial establishes a websocket session, performs the hello handshake, and
// starts the read/write loops for the session.
func (c *Client) dial(ctx context.Context) error {
	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return WrapError(ErrorConnection, "dial", err)
	}

	conn := internal.NewConn(ws, c.cfg.ReadTimeout, c.cfg.WriteTimeout)

	hello := Inbound{
		Type: inboundHello,
		Data: HelloPayload{
			Protocol: ProtocolVersion,
			Token:    c.cfg.Token,
			UserID:   c.cfg.UserID,
		},
	}
	if err := conn.Write(ctx, hello); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake error")
		return WrapError(ErrorConnection, "hello", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	go c.readLoop(runCtx, conn, cancel)
	go c.writeLoop(runCtx, conn)
	return nil
}

// JoinChat subscribes this client to a conversation's broadcasts. Joining an
// already-joined chat is a no-op.
func (c *Client) JoinChat(ctx context.Context, chatID string) error {
	if chatID == "" {
		return NewError(ErrorBadRequest, "empty chat id")
	}
	c.mu.Lock()
	if _, ok := c.joined[chatID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.joined[chatID] = struct{}{}
	c.mu.Unlock()

	if err := c.send(ctx, Inbound{Type: inboundJoinChat, Data: ChatPayload{ChatID: chatID}}); err != nil {
		c.mu.Lock()
		delete(c.joined, chatID)
		c.mu.Unlock()
		return err
	}
	return nil
}

// LeaveChat unsubscribes from a conversation. Leaving an unjoined chat is a
// no-op.
func (c *Client) LeaveChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	if _, ok := c.joined[chatID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.joined, chatID)
	c.mu.Unlock()

	return c.send(ctx, Inbound{Type: inboundLeaveChat, Data: ChatPayload{ChatID: chatID}})
}

// SendMessage requests the server persist and broadcast a message. The
// acknowledgment arrives via OnMessageSent, not as a return value.
func (c *Client) SendMessage(ctx context.Context, out OutgoingMessage) error {
	if out.ChatID == "" {
		return NewError(ErrorBadRequest, "empty chat id")
	}
	if out.Content == "" && out.ImageURL == "" && out.VoiceNoteURL == "" {
		return NewError(ErrorInvalidMessage, "message has no content or media")
	}
	if out.Type == "" {
		switch {
		case out.VoiceNoteURL != "":
			out.Type = MessageVoice
		case out.ImageURL != "":
			out.Type = MessageImage
		default:
			out.Type = MessageText
		}
	}
	if out.ClientID == "" {
		out.ClientID = uuid.NewString()
	}
	return c.send(ctx, Inbound{Type: inboundSendMessage, Data: out})
}

// StartTyping emits a typing-start hint for a conversation. Callers are
// expected to rate-limit to one emission per keystroke burst.
func (c *Client) StartTyping(ctx context.Context, chatID string) error {
	return c.send(ctx, Inbound{Type: inboundTypingStart, Data: ChatPayload{ChatID: chatID}})
}

// StopTyping emits a typing-stop hint for a conversation.
func (c *Client) StopTyping(ctx context.Context, chatID string) error {
	return c.send(ctx, Inbound{Type: inboundTypingStop, Data: ChatPayload{ChatID: chatID}})
}

// AddReaction reacts to a message with an emoji.
func (c *Client) AddReaction(ctx context.Context, chatID, messageID, emoji string) error {
	if messageID == "" || emoji == "" {
		return NewError(ErrorBadRequest, "empty message id or emoji")
	}
	return c.send(ctx, Inbound{Type: inboundReactionAdd, Data: ReactionPayload{ChatID: chatID, MessageID: messageID, Emoji: emoji}})
}

// RemoveReaction retracts a reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, chatID, messageID, emoji string) error {
	if messageID == "" || emoji == "" {
		return NewError(ErrorBadRequest, "empty message id or emoji")
	}
	return c.send(ctx, Inbound{Type: inboundReactionRemove, Data: ReactionPayload{ChatID: chatID, MessageID: messageID, Emoji: emoji}})
}

// Close shuts down client and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.mu.Unlock()

	c.setState(StateClosed, nil)
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

func (c *Client) send(ctx context.Context, in Inbound) error {
	c.mu.Lock()
	ok := c.state == StateConnected || c.state == StateReconnecting
	c.mu.Unlock()
	if !ok {
		return NewError(ErrorNotConnected, "not connected")
	}

	select {
	case c.writeCh <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) setState(next ConnectionState, err error) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev != next {
		c.dispatcher.fireState(StateEvent{OldState: prev, NewState: next, Error: err})
	}
}

func (c *Client) readLoop(ctx context.Context, conn *internal.Conn, cancel context.CancelFunc) {
	for {
		var out Outbound
		if err := conn.Read(ctx, &out); err != nil {
			expected := isExpectedDisconnect(ctx, err)
			cancel() // stop the paired write loop
			if expected {
				return
			}
			c.dispatcher.Dispatch(Outbound{Type: outboundError, Error: &Error{Code: "read_error", Msg: err.Error()}})
			c.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			c.disconnected(err)
			return
		}
		c.dispatcher.Dispatch(out)
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *internal.Conn) {
	for {
		select {
		case in := <-c.writeCh:
			if err := conn.Write(ctx, in); err != nil {
				if isExpectedDisconnect(ctx, err) {
					return
				}
				c.dispatcher.Dispatch(Outbound{Type: outboundError, Error: &Error{Code: "write_error", Msg: err.Error()}})
				c.logger.Warn("write loop exit", map[string]any{"error": err.Error()})
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// disconnected handles an unexpected session loss: either begins the
// reconnect loop or settles into StateDisconnected.
func (c *Client) disconnected(cause error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if !c.cfg.AutoReconnect {
		c.setState(StateDisconnected, cause)
		return
	}
	c.setState(StateReconnecting, cause)
	go c.reconnect()
}

// reconnect redials with capped exponential backoff and re-subscribes every
// joined chat on success.
func (c *Client) reconnect() {
	delay := c.cfg.ReconnectInterval
	if delay <= 0 {
		delay = time.Second
	}
	var lastErr error
	for attempt := 1; c.cfg.MaxReconnectTries == 0 || attempt <= c.cfg.MaxReconnectTries; attempt++ {
		time.Sleep(delay)

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		// dial applies the handshake timeout itself
		err := c.dial(context.Background())
		if err == nil {
			c.setState(StateConnected, nil)
			c.rejoin()
			return
		}
		lastErr = err
		c.logger.Warn("reconnect attempt failed", map[string]any{"attempt": attempt, "error": err.Error()})

		delay *= 2
		if c.cfg.MaxReconnectDelay > 0 && delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
	c.setState(StateError, lastErr)
}

// rejoin re-subscribes chats that were joined before the disconnect.
func (c *Client) rejoin() {
	c.mu.Lock()
	chats := make([]string, 0, len(c.joined))
	for id := range c.joined {
		chats = append(chats, id)
	}
	c.mu.Unlock()
	for _, id := range chats {
		if err := c.send(context.Background(), Inbound{Type: inboundJoinChat, Data: ChatPayload{ChatID: id}}); err != nil {
			c.logger.Warn("rejoin failed", map[string]any{"chat": id, "error": err.Error()})
		}
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
