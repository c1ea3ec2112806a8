/*
Package realtime implements the chat channel: a persistent websocket connection with
independent send and receive streams.

A Channel moves Disconnected -> Connecting -> Open -> Disconnected. A dropped connection
is terminal; nothing reconnects until Connect is called again. Each connection gets a
fresh Messages stream that is closed when the connection ends for any reason.
*/
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/logx"
)

const (
	// timeout duration for writing to the connection.
	writeWait = 10 * time.Second

	// maximum time to wait for a pong before the connection is considered dead.
	pongWait = 60 * time.Second

	// frequency of client pings; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// how long Disconnect waits for the server to acknowledge the close frame.
	closeGrace = time.Second

	// maximum inbound message size.
	maxMessageSize = 64 << 10

	sendQueueSize    = 256
	receiveQueueSize = 256
)

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Kind discriminates text and binary frames.
type Kind int

const (
	Text Kind = iota
	Binary
)

// Message is one inbound frame.
type Message struct {
	Kind Kind
	Data []byte
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Data)
}

// RoomURL returns the endpoint of a room's channel below base, e.g. ws://host/ws/{room}.
func RoomURL(base, room string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(room)
}

// Channel is a reconnect-free websocket chat connection. It is safe for concurrent use.
type Channel struct {
	endpoint string
	header   http.Header
	dialer   *websocket.Dialer

	mu       sync.Mutex
	state    State
	gen      uint64
	conn     *connection
	messages chan Message
	err      error

	logger zerolog.Logger
}

// connection is the state of one established socket.
type connection struct {
	ws       *websocket.Conn
	send     chan outbound
	messages chan Message

	// closing is closed when Disconnect is requested.
	closing   chan struct{}
	closeOnce sync.Once

	// done is closed once both pumps have finished.
	done chan struct{}
}

type outbound struct {
	kind int
	data []byte
}

func (c *connection) requestClose() {
	c.closeOnce.Do(func() { close(c.closing) })
}

func (c *connection) closeRequested() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// NewChannel creates a disconnected channel for endpoint. header is sent with the
// handshake and may be nil.
func NewChannel(endpoint string, header http.Header) *Channel {
	closed := make(chan Message)
	close(closed)

	return &Channel{
		endpoint: endpoint,
		header:   header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		messages: closed,
		logger:   logx.Component("realtime").With().Str("endpoint", endpoint).Logger(),
	}
}

// State returns the current connection state.
func (ch *Channel) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Err returns the error that ended the most recent connection, or nil when it was
// closed by Disconnect or is still open.
func (ch *Channel) Err() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.err
}

// Messages returns the inbound stream of the current or most recent connection. The
// stream is closed when that connection ends and is never reopened.
func (ch *Channel) Messages() <-chan Message {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.messages
}

// Connect opens the connection. It fails when the channel is not Disconnected.
func (ch *Channel) Connect(ctx context.Context) error {
	ch.mu.Lock()
	if ch.state != Disconnected {
		state := ch.state
		ch.mu.Unlock()
		return fmt.Errorf("realtime: connect while %s", state)
	}
	ch.gen++
	gen := ch.gen
	ch.state = Connecting
	ch.err = nil
	ch.mu.Unlock()

	ws, resp, err := ch.dialer.DialContext(ctx, ch.endpoint, ch.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		code := errs.ErrNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			code = errs.ErrTimeout
		}
		wrapped := errs.Wrap(code, err)

		ch.mu.Lock()
		if ch.gen == gen {
			ch.state = Disconnected
			ch.err = wrapped
		}
		ch.mu.Unlock()

		ch.logger.Error().Err(err).Msg("Websocket dial failed.")
		return wrapped
	}

	conn := &connection{
		ws:       ws,
		send:     make(chan outbound, sendQueueSize),
		messages: make(chan Message, receiveQueueSize),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	ch.mu.Lock()
	if ch.gen != gen {
		// Disconnect was called while dialing.
		ch.mu.Unlock()
		_ = ws.Close()
		return errs.NewError(errs.ErrNotConnected)
	}
	ch.state = Open
	ch.conn = conn
	ch.messages = conn.messages
	ch.mu.Unlock()

	ch.logger.Info().Msg("Websocket connected.")

	writerDone := make(chan struct{})
	go ch.writePump(conn, writerDone)
	go ch.readPump(conn, writerDone)

	return nil
}

// Send queues a text frame. It never blocks on the network; write failures end the
// connection and surface through Err. After the connection ends it returns
// errs.ErrNotConnected.
func (ch *Channel) Send(text string) error {
	return ch.enqueue(outbound{kind: websocket.TextMessage, data: []byte(text)})
}

// SendBinary queues a binary frame.
func (ch *Channel) SendBinary(data []byte) error {
	return ch.enqueue(outbound{kind: websocket.BinaryMessage, data: data})
}

func (ch *Channel) enqueue(msg outbound) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	conn := ch.conn
	if ch.state != Open || conn == nil || conn.closeRequested() {
		return errs.NewError(errs.ErrNotConnected)
	}

	select {
	case conn.send <- msg:
		return nil
	default:
		ch.logger.Warn().Int("queue_len", len(conn.send)).Msg("Send queue full, dropping message.")
		return errs.Wrap(errs.ErrNetwork, errors.New("send queue full"))
	}
}

// Disconnect closes the connection gracefully and waits for it to end. It is a no-op
// when already disconnected.
func (ch *Channel) Disconnect() {
	ch.mu.Lock()
	ch.gen++
	conn := ch.conn
	ch.conn = nil
	ch.state = Disconnected
	ch.mu.Unlock()

	if conn == nil {
		return
	}

	conn.requestClose()
	<-conn.done

	ch.logger.Info().Msg("Websocket disconnected.")
}

// readPump delivers inbound frames until the connection fails or is closed.
func (ch *Channel) readPump(conn *connection, writerDone <-chan struct{}) {
	var readErr error

	defer func() {
		conn.requestClose()
		<-writerDone
		_ = conn.ws.Close()
		close(conn.messages)
		ch.finish(conn, readErr)
		close(conn.done)
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	if err := conn.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		readErr = err
		return
	}
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !conn.closeRequested() {
				readErr = err
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					ch.logger.Warn().Err(err).Msg("Websocket closed unexpectedly.")
				} else {
					ch.logger.Info().Err(err).Msg("Websocket read ended.")
				}
			}
			return
		}

		msg := Message{Kind: Text, Data: data}
		if messageType == websocket.BinaryMessage {
			msg.Kind = Binary
		}

		select {
		case conn.messages <- msg:
		case <-conn.closing:
			return
		}
	}
}

// writePump writes queued frames and pings. On a requested close it sends a going-away
// close frame and gives the peer closeGrace to answer.
func (ch *Channel) writePump(conn *connection, writerDone chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		close(writerDone)
	}()

	for {
		select {
		case msg := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(msg.kind, msg.data); err != nil {
				ch.logger.Error().Err(err).Msg("Error writing message.")
				_ = conn.ws.Close()
				return
			}

		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				ch.logger.Error().Err(err).Msg("Error writing ping.")
				_ = conn.ws.Close()
				return
			}

		case <-conn.closing:
			closeMessage := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			if err := conn.ws.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
				ch.logger.Debug().Err(err).Msg("Failed to send close frame.")
			}
			// unblock the reader if the peer never answers
			_ = conn.ws.SetReadDeadline(time.Now().Add(closeGrace))
			return
		}
	}
}

// finish records the end of conn if it is still the current connection.
func (ch *Channel) finish(conn *connection, readErr error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.conn != conn {
		return
	}

	ch.conn = nil
	ch.state = Disconnected
	if readErr != nil {
		ch.err = errs.Wrap(errs.ErrNetwork, readErr)
	}
}
