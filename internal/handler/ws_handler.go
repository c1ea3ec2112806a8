/*
Package handler provides the HTTP handlers and routing of the reference matchup backend.

This file contains HandleWebSocket, which rate limits, upgrades the connection and hands
the client to its chat room.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"matchup/internal/app/chat"
	"matchup/internal/pkg/errs"
	"matchup/internal/pkg/limiter"
	"matchup/internal/pkg/logx"
	"matchup/internal/pkg/randx"
	"matchup/internal/pkg/resp"
)

// HandleWebSocket serves /ws (the lobby) and /ws/{room}.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "remote_addr", r.RemoteAddr)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		roomCode := chi.URLParam(r, "room")
		if roomCode == "" {
			roomCode = chat.LobbyRoom
		}

		if deps.Manager.Room(roomCode) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		clientID := randx.ConnectionID()

		var client *chat.Client
		for range 2 {
			room := deps.Manager.Room(roomCode)
			if room == nil {
				break
			}

			candidate := chat.NewClient(clientID, room, conn)
			if room.Join(candidate) {
				client = candidate
				break
			}
		}

		if client == nil {
			logx.Info("WebSocket connection rejected: Room unavailable or full.", "room_code", roomCode)
			closeMessage := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room unavailable")
			_ = conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}

		logx.Info("WebSocket client registered", "client_id", clientID, "room_code", roomCode)

		go client.WritePump()
		client.ReadPump()
	}
}
