/*
Package chat contains the reference backend's realtime relay.

This file defines the Client struct, representing an active WebSocket connection. It manages
the client's message loops (ReadPump and WritePump) and its membership in a Room.
*/
package chat

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"matchup/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 64 * 1024

	sendQueueSize = 256
)

// Client struct represents an active WebSocket connection.
type Client struct {
	// unique connection identifier.
	ID string

	// the chat room the client belongs to.
	room *Room

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// frames waiting to be written. Closed by the room.
	send chan frame

	// answer to a Join request.
	accepted chan bool

	// structured logger with client and room context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(id string, room *Room, wsConn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		room: room,
		conn: wsConn,
		send: make(chan frame, sendQueueSize),
		logger: logx.Component("chat_client").With().
			Str("client_id", id).
			Str("room_code", room.Code).
			Logger(),
	}
}

// ReadPump reads frames from the connection and hands them to the room until the
// connection fails or closes.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		select {
		case c.room.broadcast <- frame{sender: c, messageType: messageType, data: data}:
		case <-c.room.done:
			return
		}
	}
}

// cleanupOnDisconnect leaves the room and closes the connection.
func (c *Client) cleanupOnDisconnect() {
	select {
	case c.room.unregister <- c:
	case <-c.room.done:
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump writes queued frames to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case f, ok := <-c.send:
			if !c.writeQueuedFrame(f, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes f with its original message type. A closed queue results in a
// close frame. Returns false if the WritePump loop should terminate.
func (c *Client) writeQueuedFrame(f frame, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "")); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
