/*
Package chat contains the reference backend's realtime relay: rooms of websocket clients
in which every frame a client sends is forwarded verbatim to the other members.

This file defines the Manager struct, which creates rooms on first use, tracks them and
removes them once they shut down after inactivity.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"matchup/internal/pkg/logx"
)

// LobbyRoom is the room served on the bare /ws endpoint.
const LobbyRoom = "lobby"

// Observer receives lifecycle events, e.g. for metrics.
type Observer interface {
	ClientConnected()
	ClientDisconnected()
	RoomStarted()
	RoomStopped()
	FrameRelayed()
}

type nopObserver struct{}

func (nopObserver) ClientConnected()    {}
func (nopObserver) ClientDisconnected() {}
func (nopObserver) RoomStarted()        {}
func (nopObserver) RoomStopped()        {}
func (nopObserver) FrameRelayed()       {}

// Manager struct is responsible for coordinating and managing all active chat rooms.
type Manager struct {
	// rooms stores all running Room instances, keyed by room code.
	rooms map[string]*Room

	// maxClients caps the members of every room; 0 means unlimited.
	maxClients int

	observer Observer

	// mu protects concurrent access to the rooms map.
	mu sync.Mutex

	// the channel used by Rooms to notify the Manager to clean up and remove them.
	cleanup chan *Room

	// wg is used to wait for the runCleanupLoop goroutine to finish during shutdown.
	wg sync.WaitGroup

	closed bool

	logger zerolog.Logger
}

// NewManager constructs and returns a new Manager. observer may be nil.
func NewManager(maxClients int, observer Observer) *Manager {
	if observer == nil {
		observer = nopObserver{}
	}

	m := &Manager{
		rooms:      make(map[string]*Room),
		maxClients: maxClients,
		observer:   observer,
		cleanup:    make(chan *Room, 16),
		logger:     logx.Component("chat_manager"),
	}

	m.wg.Add(1)
	go m.runCleanupLoop()

	return m
}

// runCleanupLoop removes rooms that reported their shutdown.
func (m *Manager) runCleanupLoop() {
	defer m.wg.Done()

	for room := range m.cleanup {
		m.deleteRoom(room)
	}

	m.logger.Info().Msg("Cleanup loop stopped.")
}

// deleteRoom removes room unless its code has already been reused by a newer room.
func (m *Manager) deleteRoom(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.rooms[room.Code]; ok && current == room {
		delete(m.rooms, room.Code)
		m.logger.Info().Str("room_code", room.Code).Msg("Room removed.")
	}
}

// Room returns the running room for code, starting one when none exists. It returns
// nil after Shutdown.
func (m *Manager) Room(code string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	if room, ok := m.rooms[code]; ok && !room.stopped() {
		return room
	}

	room := NewRoom(code, m.maxClients, m.cleanup, m.observer)
	m.rooms[code] = room
	m.observer.RoomStarted()
	go room.Run()

	m.logger.Info().Str("room_code", code).Msg("Room started.")
	return room
}

// RoomCount returns the number of tracked rooms.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Shutdown stops every room and the cleanup loop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
		<-room.done
	}

	close(m.cleanup)
	m.wg.Wait()

	m.logger.Info().Msg("Manager shutdown complete.")
}
