package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer upgrades incoming connections, counts them, and hands each
// one to the given handler.
func wsServer(t *testing.T, handle func(*websocket.Conn)) (*httptest.Server, *int32) {
	t.Helper()
	var dials int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return server, &dials
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func (s *Subscriber) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func TestSubscriberRedialsAfterReadFailure(t *testing.T) {
	server, dials := wsServer(t, func(conn *websocket.Conn) {
		// Drop the connection immediately so the client's read fails.
		conn.Close()
	})

	system := actor.NewActorSystem()
	sub := NewSubscriber(wsURL(server), system.Root, nil, nil)
	defer sub.Stop()

	require.NoError(t, sub.Start("viewer-1"))
	require.Eventually(t, func() bool {
		return !sub.alive()
	}, 2*time.Second, 10*time.Millisecond, "read pump should clear the subscription on failure")

	require.NoError(t, sub.Start("viewer-1"))
	assert.Equal(t, int32(2), atomic.LoadInt32(dials))
}

func TestSubscriberStartKeepsLiveSubscription(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	server, dials := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		<-hold
	})

	system := actor.NewActorSystem()
	sub := NewSubscriber(wsURL(server), system.Root, nil, nil)
	defer sub.Stop()

	require.NoError(t, sub.Start("viewer-1"))
	require.NoError(t, sub.Start("viewer-1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(dials))

	// A different viewer replaces the subscription.
	require.NoError(t, sub.Start("viewer-2"))
	assert.Equal(t, int32(2), atomic.LoadInt32(dials))
}

func TestSubscriberConcurrentStartsDialOnce(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	server, dials := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		<-hold
	})

	system := actor.NewActorSystem()
	sub := NewSubscriber(wsURL(server), system.Root, nil, nil)
	defer sub.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sub.Start("viewer-1"))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(dials))
}
