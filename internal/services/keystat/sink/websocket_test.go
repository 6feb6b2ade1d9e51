package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"

	"github.com/gorilla/websocket"
)

func collector(t *testing.T) (url string, got <-chan []byte) {
	t.Helper()
	ch := make(chan []byte, 8)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			_, b, err := c.ReadMessage()
			if err != nil {
				return
			}
			ch <- b
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), ch
}

func TestWebSocket_DeliversRecords(t *testing.T) {
	t.Parallel()

	url, got := collector(t)
	ws := NewWebSocket(url, logger.Nop())
	defer ws.Close()

	for i := 0; i < 2; i++ {
		if err := ws.Emit(context.Background(), snapshot()); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case b := <-got:
			var rec map[string]any
			if err := json.Unmarshal(b, &rec); err != nil || rec["t"] != "1773489900" {
				t.Fatalf("frame %d = %s (%v)", i, b, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d not received", i)
		}
	}
}

func TestWebSocket_DialFailureIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	err := NewWebSocket(url, logger.Nop()).Emit(context.Background(), snapshot())
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) || !perr.Retryable(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestWebSocket_CloseWithoutConnection(t *testing.T) {
	t.Parallel()

	if err := NewWebSocket("ws://127.0.0.1:1/x", logger.Nop()).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
