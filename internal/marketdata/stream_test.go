package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestTickStream_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	stream, err := NewTickStream(context.Background(), wsURL, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTickStream: %v", err)
	}
	defer stream.Close()

	if stream.closed.Load() {
		t.Error("stream should not be closed")
	}
}

func TestTickStream_SubscribeAndReceive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		// Read the subscribe command, then emit ticks for two symbols.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd streamCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			t.Errorf("unmarshal command: %v", err)
			return
		}
		if cmd.Action != "subscribe" || cmd.Symbol != "ACME" {
			t.Errorf("unexpected command %+v", cmd)
		}

		ticks := []streamMessage{
			{Type: "tick", Symbol: "OTHER", Price: 1, Size: 1, TS: 1704103200000},
			{Type: "tick", Symbol: "ACME", Price: 101.5, Size: 200, TS: 1704103260000},
		}
		for _, tick := range ticks {
			if err := conn.WriteJSON(tick); err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	stream, err := NewTickStream(context.Background(), wsURL, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTickStream: %v", err)
	}
	defer stream.Close()

	ch, err := stream.Subscribe("ACME")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case tick := <-ch:
		if tick.Symbol != "ACME" {
			t.Errorf("expected symbol ACME, got %s", tick.Symbol)
		}
		if tick.Price != 101.5 {
			t.Errorf("expected price 101.5, got %v", tick.Price)
		}
		if tick.Size != 200 {
			t.Errorf("expected size 200, got %v", tick.Size)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for tick")
	}

	// The OTHER tick must not have been delivered to the ACME channel.
	select {
	case tick := <-ch:
		t.Errorf("unexpected extra tick %+v", tick)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTickStream_SubscribeTwiceReturnsSameChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	stream, err := NewTickStream(context.Background(), wsURL, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTickStream: %v", err)
	}
	defer stream.Close()

	a, err := stream.Subscribe("ACME")
	if err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	b, err := stream.Subscribe("ACME")
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	if a != b {
		t.Error("expected the same channel for a repeated subscription")
	}
}

func TestTickStream_CloseClosesChannels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	stream, err := NewTickStream(context.Background(), wsURL, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTickStream: %v", err)
	}

	ch, err := stream.Subscribe("ACME")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Close")
	}

	if _, err := stream.Subscribe("OTHER"); err == nil {
		t.Error("expected error subscribing on a closed stream")
	}
}
