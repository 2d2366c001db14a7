package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/luciancaetano/wsuri"
)

type disconnect struct {
	id        string
	voluntary bool
}

// dialEcho dials the echo server and reports disconnects on the returned channel
func dialEcho(t *testing.T) (wsuri.Conn, <-chan disconnect) {
	t.Helper()

	srv, _ := newEchoServer(t)
	disconnects := make(chan disconnect, 1)

	d, err := New(&DialConfig{
		Logger: newTestLogger(io.Discard),
		OnDisconnect: func(conn wsuri.Conn, voluntary bool) {
			disconnects <- disconnect{id: conn.ID(), voluntary: voluntary}
		},
	})
	if err != nil {
		t.Fatalf("New() unexpected error = %v", err)
	}

	conn, err := d.Dial(context.Background(), wsURL(srv, "/"))
	if err != nil {
		t.Fatalf("Dial() unexpected error = %v", err)
	}
	t.Cleanup(func() { conn.Close(context.Background()) })

	return conn, disconnects
}

func waitDisconnect(t *testing.T, disconnects <-chan disconnect) disconnect {
	t.Helper()

	select {
	case d := <-disconnects:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("OnDisconnect was not called")
		return disconnect{}
	}
}

// TestConnIDFormat tests that connection IDs are unique valid UUIDs
func TestConnIDFormat(t *testing.T) {
	t.Parallel()

	ids := make(map[string]bool)
	for i := 0; i < 5; i++ {
		conn, _ := dialEcho(t)
		id := conn.ID()

		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("ID %s is not a valid UUID: %v", id, err)
		}
		if ids[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

// TestConnLocalClose tests state and callbacks after a local close
func TestConnLocalClose(t *testing.T) {
	t.Parallel()

	conn, disconnects := dialEcho(t)

	if !conn.IsAlive() {
		t.Fatal("new connection should be alive")
	}

	conn.CloseWithCode(context.Background(), websocket.CloseGoingAway, "done")

	if conn.IsAlive() {
		t.Error("connection should not be alive after close")
	}

	select {
	case <-conn.Context().Done():
	case <-time.After(time.Second):
		t.Error("context was not cancelled")
	}

	d := waitDisconnect(t, disconnects)
	if d.id != conn.ID() {
		t.Errorf("disconnect id = %s, want %s", d.id, conn.ID())
	}
	if !d.voluntary {
		t.Error("local close should be reported as voluntary")
	}

	if err := conn.Close(context.Background()); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	err := conn.Send(context.Background(), wsuri.TextMessage, []byte("late"))
	if err == nil || err.Error() != wsuri.ErrConnectionClosed {
		t.Errorf("Send() after close error = %v, want %q", err, wsuri.ErrConnectionClosed)
	}

	if _, _, err := conn.Receive(context.Background()); err == nil || err.Error() != wsuri.ErrConnectionClosed {
		t.Errorf("Receive() after close error = %v, want %q", err, wsuri.ErrConnectionClosed)
	}
}

// TestConnRemoteClose tests that a peer close ends the connection involuntarily
func TestConnRemoteClose(t *testing.T) {
	t.Parallel()

	conn, disconnects := dialEcho(t)

	if err := conn.Send(context.Background(), wsuri.TextMessage, []byte("bye")); err != nil {
		t.Fatalf("Send() unexpected error = %v", err)
	}

	d := waitDisconnect(t, disconnects)
	if d.voluntary {
		t.Error("peer close should not be reported as voluntary")
	}

	if conn.IsAlive() {
		t.Error("connection should not be alive after peer close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, err := conn.Receive(ctx); err == nil || err.Error() != wsuri.ErrConnectionClosed {
		t.Errorf("Receive() error = %v, want %q", err, wsuri.ErrConnectionClosed)
	}
}

// sinkResult is what newSinkServer saw on its single connection
type sinkResult struct {
	received  []string
	closeCode int
}

// newSinkServer starts a WebSocket server that records messages without replying
func newSinkServer(t *testing.T) (string, <-chan sinkResult) {
	t.Helper()

	results := make(chan sinkResult, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var res sinkResult
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) {
					res.closeCode = closeErr.Code
				}
				results <- res
				return
			}
			res.received = append(res.received, string(data))
		}
	}))
	t.Cleanup(srv.Close)

	return wsURL(srv, "/"), results
}

// TestConnCloseFlushesQueue tests that messages accepted by Send reach the
// peer before the close frame
func TestConnCloseFlushesQueue(t *testing.T) {
	t.Parallel()

	raw, results := newSinkServer(t)

	d, err := New(&DialConfig{Logger: newTestLogger(io.Discard)})
	if err != nil {
		t.Fatalf("New() unexpected error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, raw)
	if err != nil {
		t.Fatalf("Dial() unexpected error = %v", err)
	}

	const n = 100
	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("msg-%d", i)
		if err := conn.Send(ctx, wsuri.TextMessage, []byte(want[i])); err != nil {
			t.Fatalf("Send(%d) unexpected error = %v", i, err)
		}
	}

	if err := conn.CloseWithCode(ctx, websocket.CloseGoingAway, "done"); err != nil {
		t.Logf("CloseWithCode() error = %v", err)
	}

	select {
	case res := <-results:
		if len(res.received) != n {
			t.Fatalf("server received %d messages, want %d", len(res.received), n)
		}
		for i := range want {
			if res.received[i] != want[i] {
				t.Errorf("message %d = %q, want %q", i, res.received[i], want[i])
			}
		}
		if res.closeCode != websocket.CloseGoingAway {
			t.Errorf("close code = %d, want %d", res.closeCode, websocket.CloseGoingAway)
		}
	case <-ctx.Done():
		t.Fatal("server never saw the connection end")
	}
}

// TestConnCloseHonorsContext tests that an expired context cuts the close short
func TestConnCloseHonorsContext(t *testing.T) {
	t.Parallel()

	conn, disconnects := dialEcho(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	conn.Close(ctx)
	if elapsed := time.Since(start); elapsed > closeGracePeriod {
		t.Errorf("Close() with a cancelled context took %v", elapsed)
	}
	if conn.IsAlive() {
		t.Error("connection should not be alive after close")
	}
	if d := waitDisconnect(t, disconnects); !d.voluntary {
		t.Error("local close should be reported as voluntary")
	}
}

// TestConnSendUnsupportedType tests that only text and binary messages can be queued
func TestConnSendUnsupportedType(t *testing.T) {
	t.Parallel()

	conn, _ := dialEcho(t)

	for _, messageType := range []int{0, websocket.CloseMessage, websocket.PingMessage, websocket.PongMessage} {
		err := conn.Send(context.Background(), messageType, nil)
		if err == nil || !strings.Contains(err.Error(), wsuri.ErrUnsupportedType) {
			t.Errorf("Send(type %d) error = %v, want %q", messageType, err, wsuri.ErrUnsupportedType)
		}
	}

	if !conn.IsAlive() {
		t.Error("rejected sends must not close the connection")
	}
}

// TestConnReceiveContext tests that Receive honors its context
func TestConnReceiveContext(t *testing.T) {
	t.Parallel()

	conn, _ := dialEcho(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := conn.Receive(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive() error = %v, want DeadlineExceeded", err)
	}
	if !conn.IsAlive() {
		t.Error("receive timeout must not close the connection")
	}
}

// TestConnConcurrentSend tests that concurrent senders are serialized by the write pump
func TestConnConcurrentSend(t *testing.T) {
	t.Parallel()

	conn, _ := dialEcho(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const senders = 10
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := conn.Send(ctx, wsuri.TextMessage, []byte(fmt.Sprintf("msg-%d", i))); err != nil {
				t.Errorf("Send() unexpected error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	got := make(map[string]bool)
	for i := 0; i < senders; i++ {
		_, data, err := conn.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive() unexpected error = %v", err)
		}
		got[string(data)] = true
	}

	for i := 0; i < senders; i++ {
		if want := fmt.Sprintf("msg-%d", i); !got[want] {
			t.Errorf("missing echo %q", want)
		}
	}
}

// BenchmarkUUIDGeneration benchmarks UUID generation
func BenchmarkUUIDGeneration(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = uuid.New().String()
	}
}
