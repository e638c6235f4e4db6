package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"TitanGate/internal/domain/models"

	"github.com/gorilla/websocket"
)

func startWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSBusConcurrentPublish(t *testing.T) {
	srv := startWSServer(t)
	// Short ping interval so the ping loop writes while publishes are
	// in flight; all writes share one connection.
	b := NewWSBus(wsURL(srv), time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer b.Close()
	b.Read(ctx)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				o := &models.Outcome{SignalID: "sig", Status: models.StatusExecuted, At: time.Now()}
				if err := b.Publish(ctx, o); err != nil {
					t.Errorf("worker %d publish %d: %v", worker, i, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestWSBusPublishAfterClose(t *testing.T) {
	srv := startWSServer(t)
	b := NewWSBus(wsURL(srv), time.Second, time.Second)

	ctx := context.Background()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !b.IsConnected() {
		t.Fatal("not connected after connect")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if b.IsConnected() {
		t.Fatal("still connected after close")
	}
	if err := b.Publish(ctx, &models.Outcome{SignalID: "late"}); err == nil {
		t.Fatal("publish after close did not error")
	}
}

func TestWSBusConnectedFlagConcurrency(t *testing.T) {
	srv := startWSServer(t)
	b := NewWSBus(wsURL(srv), 10*time.Millisecond, time.Second)
	ctx := context.Background()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Readers poll the flag while a reconnect flips it.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = b.IsConnected()
			}
		}()
	}
	if err := b.Reconnect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	wg.Wait()

	if !b.IsConnected() {
		t.Fatal("not connected after reconnect")
	}
	_ = b.Close()
}
