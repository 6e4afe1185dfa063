package extended

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func newStreamServer(t *testing.T, ctx context.Context, msgCh chan map[string]any, sendCh chan map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case frame := <-sendCh:
					data, _ := json.Marshal(frame)
					if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
						return
					}
				}
			}
		}()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case msgCh <- msg:
			default:
			}
		}
	}))
}

func streamURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStreamSendsPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	msgCh := make(chan map[string]any, 1)
	sendCh := make(chan map[string]any)
	server := newStreamServer(t, ctx, msgCh, sendCh)
	defer server.Close()

	client := NewStream(Environment{StreamURL: streamURL(server)}, "test-key", zap.NewNop())
	client.reconnectDelay = 10 * time.Millisecond
	client.pingInterval = 20 * time.Millisecond
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, nil)
	}()

	select {
	case msg := <-msgCh:
		if msg["method"] != "PING" {
			t.Fatalf("expected ping message, got %v", msg)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for ping")
	}
}

func TestStreamSubscribeAndDeliver(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msgCh := make(chan map[string]any, 4)
	sendCh := make(chan map[string]any, 1)
	server := newStreamServer(t, ctx, msgCh, sendCh)
	defer server.Close()

	client := NewStream(Environment{StreamURL: streamURL(server)}, "test-key", zap.NewNop())
	client.pingInterval = time.Hour
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.SubscribeOrderbook(ctx, "BTC-USD"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	select {
	case msg := <-msgCh:
		if msg["method"] != "SUBSCRIBE" {
			t.Fatalf("expected subscribe frame, got %v", msg)
		}
		channels, ok := msg["channels"].([]any)
		if !ok || len(channels) != 1 || channels[0] != "orderbooks.BTC-USD" {
			t.Fatalf("unexpected channels %v", msg["channels"])
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for subscribe frame")
	}

	frames := make(chan map[string]any, 1)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, func(frame map[string]any) {
			select {
			case frames <- frame:
			default:
			}
		})
	}()

	sendCh <- map[string]any{"type": "TRADE", "data": map[string]any{"i": 42}}
	select {
	case frame := <-frames:
		if frame["type"] != "TRADE" {
			t.Fatalf("unexpected frame %v", frame)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for delivered frame")
	}
}

func TestStreamSubscribeBeforeConnect(t *testing.T) {
	client := NewStream(Environment{StreamURL: "ws://127.0.0.1:0"}, "", zap.NewNop())
	if err := client.SubscribeAccountTrades(context.Background()); err == nil {
		t.Fatalf("expected error before connect")
	}
	// The subscription is still remembered for replay after connect.
	if len(client.subs) != 1 {
		t.Fatalf("expected recorded subscription, got %d", len(client.subs))
	}
}
