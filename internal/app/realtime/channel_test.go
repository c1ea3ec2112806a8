package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"matchup/internal/pkg/errs"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer returns every frame to its sender.
func echoServer(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func receive(t *testing.T, ch *Channel) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-ch.Messages():
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return Message{}, false
	}
}

func TestChannel_SendReceive(t *testing.T) {
	ch := NewChannel(echoServer(t), nil)

	if ch.State() != Disconnected {
		t.Fatalf("initial state = %s", ch.State())
	}
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ch.Disconnect()

	if ch.State() != Open {
		t.Fatalf("state after Connect = %s", ch.State())
	}

	if err := ch.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg, ok := receive(t, ch)
	if !ok || msg.Kind != Text || msg.Text() != "hello" {
		t.Errorf("received %+v, %v", msg, ok)
	}

	if err := ch.SendBinary([]byte{1, 2, 3}); err != nil {
		t.Fatalf("SendBinary: %v", err)
	}
	msg, _ = receive(t, ch)
	if msg.Kind != Binary || len(msg.Data) != 3 {
		t.Errorf("received %+v", msg)
	}
}

func TestChannel_SendAfterDisconnect(t *testing.T) {
	ch := NewChannel(echoServer(t), nil)
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	messages := ch.Messages()
	ch.Disconnect()

	if ch.State() != Disconnected {
		t.Errorf("state = %s", ch.State())
	}
	if err := ch.Send("late"); !errs.HasCode(err, errs.ErrNotConnected) {
		t.Errorf("Send after Disconnect = %v, want ErrNotConnected", err)
	}
	if ch.Err() != nil {
		t.Errorf("Err after requested close = %v", ch.Err())
	}

	// the stream of the closed connection ends
	select {
	case _, ok := <-messages:
		if ok {
			for range messages {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("messages stream not closed")
	}

	ch.Disconnect()
}

func TestChannel_SendBeforeConnect(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/ws", nil)
	if err := ch.Send("x"); !errs.HasCode(err, errs.ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
	if _, ok := <-ch.Messages(); ok {
		t.Error("Messages before Connect yielded a value")
	}
}

func TestChannel_ServerDropIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("bye"))
		conn.Close()
	}))
	defer server.Close()

	ch := NewChannel("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var got []string
	for msg := range ch.Messages() {
		got = append(got, msg.Text())
	}
	if len(got) != 1 || got[0] != "bye" {
		t.Errorf("messages = %v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ch.State() != Disconnected && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ch.State() != Disconnected {
		t.Fatalf("state = %s after server drop", ch.State())
	}
	if !errs.HasCode(ch.Err(), errs.ErrNetwork) {
		t.Errorf("Err = %v, want ErrNetwork", ch.Err())
	}
	if err := ch.Send("x"); !errs.HasCode(err, errs.ErrNotConnected) {
		t.Errorf("Send after drop = %v", err)
	}
}

func TestChannel_ReconnectGivesFreshStream(t *testing.T) {
	ch := NewChannel(echoServer(t), nil)
	ctx := context.Background()

	if err := ch.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	first := ch.Messages()
	ch.Disconnect()

	if err := ch.Connect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer ch.Disconnect()

	if ch.Messages() == first {
		t.Fatal("reconnect reused the old stream")
	}
	_ = ch.Send("again")
	if msg, _ := receive(t, ch); msg.Text() != "again" {
		t.Errorf("received %q", msg.Text())
	}
}

func TestChannel_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	ch := NewChannel(endpoint, nil)
	if err := ch.Connect(context.Background()); !errs.HasCode(err, errs.ErrNetwork) {
		t.Fatalf("Connect = %v, want ErrNetwork", err)
	}
	if ch.State() != Disconnected {
		t.Errorf("state = %s", ch.State())
	}
}

func TestRoomURL(t *testing.T) {
	if got := RoomURL("ws://localhost:9095/ws/", "a b"); got != "ws://localhost:9095/ws/a%20b" {
		t.Errorf("RoomURL = %q", got)
	}
}
