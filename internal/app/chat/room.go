/*
Package chat contains the reference backend's realtime relay.

This file defines the Room struct, the hub of a single chat channel. It manages client
lifecycles (register/unregister), relays every frame to the other participants and shuts
itself down after a period without members.
*/
package chat

import (
	"time"

	"github.com/rs/zerolog"

	"matchup/internal/pkg/logx"
)

const broadcastChannelBuffer = 1024

// RoomInactivityTimeout is the duration after which an empty room will automatically shut down.
var RoomInactivityTimeout = 5 * time.Minute

// frame is one websocket message received from sender.
type frame struct {
	sender      *Client
	messageType int
	data        []byte
}

// Room struct represents a single, active chat channel.
type Room struct {
	// unique identifier for the room.
	Code string

	// maximum number of clients allowed in the room; 0 means unlimited.
	MaxClients int

	// connected clients, keyed by connection id. Owned by the Run goroutine.
	clients map[string]*Client

	// a buffered channel for incoming frames to be relayed.
	broadcast chan frame

	// a channel for clients requesting to join the room.
	register chan *Client

	// a channel for clients requesting to leave the room.
	unregister chan *Client

	// a write-only channel used to notify the Manager to clean up this room.
	cleanupChan chan<- *Room

	// closed by Stop.
	stopChan chan struct{}

	// closed when Run returns.
	done chan struct{}

	observer Observer

	// structured logger with room context.
	logger zerolog.Logger
}

// NewRoom creates and initializes a new Room instance.
func NewRoom(roomCode string, maxClients int, cleanupChan chan<- *Room, observer Observer) *Room {
	if observer == nil {
		observer = nopObserver{}
	}

	return &Room{
		Code:        roomCode,
		MaxClients:  maxClients,
		clients:     make(map[string]*Client),
		broadcast:   make(chan frame, broadcastChannelBuffer),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		cleanupChan: cleanupChan,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		observer:    observer,
		logger:      logx.Component("chat_room").With().Str("room_code", roomCode).Logger(),
	}
}

// Stop sends a signal to immediately terminate the Room's Run loop.
func (r *Room) Stop() {
	select {
	case <-r.stopChan:
	default:
		r.logger.Info().Msg("Received stop signal. Stopping room immediately.")
		close(r.stopChan)
	}
}

func (r *Room) stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Join hands client to the Run loop. It reports false when the room has stopped or is
// full; the caller then owns the connection.
func (r *Room) Join(client *Client) bool {
	accepted := make(chan bool, 1)
	client.accepted = accepted

	select {
	case r.register <- client:
		return <-accepted
	case <-r.done:
		return false
	}
}

// Run starts the main event loop for the Room.
func (r *Room) Run() {
	shutdownTimer := time.NewTimer(RoomInactivityTimeout)

	defer func() {
		shutdownTimer.Stop()

		for id, client := range r.clients {
			delete(r.clients, id)
			close(client.send)
			r.observer.ClientDisconnected()
		}

		r.observer.RoomStopped()

		// notify before done is closed: Manager.Shutdown waits on done before closing cleanupChan
		select {
		case r.cleanupChan <- r:
		case <-time.After(time.Second):
			r.logger.Warn().Msg("Manager cleanup channel blocked. Skipping cleanup notification.")
		}

		close(r.done)
		r.logger.Info().Msg("Room Run loop finished.")
	}()

	for {
		select {
		case client := <-r.register:
			if r.MaxClients > 0 && len(r.clients) >= r.MaxClients {
				r.logger.Warn().
					Int("max_clients", r.MaxClients).
					Str("client_id", client.ID).
					Msg("Room is full. New client rejected.")
				client.accepted <- false
				continue
			}

			if !shutdownTimer.Stop() {
				select {
				case <-shutdownTimer.C:
				default:
				}
			}

			r.clients[client.ID] = client
			client.accepted <- true
			r.observer.ClientConnected()

			r.logger.Info().
				Str("client_id", client.ID).
				Int("total_clients", len(r.clients)).
				Msg("Client joined room.")

		case client := <-r.unregister:
			r.removeClient(client)

			if len(r.clients) == 0 {
				shutdownTimer.Reset(RoomInactivityTimeout)
			}

		case f := <-r.broadcast:
			r.relay(f)

			if len(r.clients) == 0 {
				shutdownTimer.Reset(RoomInactivityTimeout)
			}

		case <-shutdownTimer.C:
			if len(r.clients) == 0 {
				r.logger.Info().Dur("timeout", RoomInactivityTimeout).Msg("Room inactive. Shutting down.")
				return
			}

		case <-r.stopChan:
			return
		}
	}
}

// relay forwards f to every client except its sender. Clients whose queue is full are
// dropped.
func (r *Room) relay(f frame) {
	for id, client := range r.clients {
		if client == f.sender {
			continue
		}

		select {
		case client.send <- f:
			r.observer.FrameRelayed()
		default:
			r.logger.Warn().Str("client_id", id).Msg("Client send queue full. Dropping client.")
			r.removeClient(client)
		}
	}
}

func (r *Room) removeClient(client *Client) {
	current, ok := r.clients[client.ID]
	if !ok || current != client {
		return
	}

	delete(r.clients, client.ID)
	close(client.send)
	r.observer.ClientDisconnected()

	r.logger.Info().
		Str("client_id", client.ID).
		Int("total_clients", len(r.clients)).
		Msg("Client left room.")
}
