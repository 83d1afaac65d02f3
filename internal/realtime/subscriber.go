// Package realtime consumes the backend's publish/subscribe channel and
// forwards deltas into the engine actors. Delivery is at best
// "eventually, possibly duplicated"; the actors are written to tolerate
// both.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gorilla/websocket"

	"github.com/WiggoHelgesson/stridefeed/internal/engine/actors"
	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Subscriber is one websocket subscription scoped to a viewer. Start and
// Stop pair with screen appearance and disappearance; a read error tears
// the subscription down and the UI layer restarts it on the next
// appearance, so there is no automatic reconnect here.
type Subscriber struct {
	endpoint  string
	root      *actor.RootContext
	feedPID   *actor.PID
	threadPID *actor.PID

	// dialMu serializes Start and Stop so two concurrent Starts cannot
	// both dial and leak the loser's connection.
	dialMu sync.Mutex

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	viewer string
}

func NewSubscriber(endpoint string, root *actor.RootContext, feedPID, threadPID *actor.PID) *Subscriber {
	return &Subscriber{
		endpoint:  endpoint,
		root:      root,
		feedPID:   feedPID,
		threadPID: threadPID,
	}
}

// Start opens the subscription for a viewer. A live subscription for the
// same viewer is kept; one for another viewer is closed first.
func (s *Subscriber) Start(viewerID string) error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.conn != nil && s.viewer == viewerID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	s.teardown()

	u, err := url.Parse(s.endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("viewerId", viewerID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	s.viewer = viewerID
	done := s.done
	s.mu.Unlock()

	go s.readPump(conn, done)
	go s.pingLoop(conn, done)
	slog.Info("realtime subscription started", "viewer", viewerID)
	return nil
}

// Stop closes the subscription, if any. Safe to call repeatedly.
func (s *Subscriber) Stop() {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()
	s.teardown()
}

func (s *Subscriber) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	close(s.done)
	s.conn.Close()
	s.conn = nil
	s.viewer = ""
	slog.Info("realtime subscription stopped")
}

func (s *Subscriber) readPump(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		// A read failure leaves the subscription dead. Clear the state
		// so the next Start for this viewer redials, but only if this
		// connection is still the current one; Stop (or a newer Start)
		// may already have replaced it.
		s.mu.Lock()
		if s.conn == conn {
			close(s.done)
			s.conn = nil
			s.viewer = ""
		}
		s.mu.Unlock()
		conn.Close()
		slog.Debug("realtime read pump stopped")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Deliberate stop, not an error.
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Warn("realtime read error", "error", err)
				}
			}
			return
		}
		s.dispatch(raw)
	}
}

func (s *Subscriber) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one event envelope and routes it to the owning actor.
// Malformed or unknown events are logged and dropped; a bad event must
// never take the subscription down.
func (s *Subscriber) dispatch(raw []byte) {
	var event models.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		slog.Warn("malformed realtime event", "error", err)
		return
	}

	switch event.Type {
	case models.EventPostLikeDelta:
		var p models.PostLikeDeltaEvent
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			slog.Warn("malformed post like delta", "error", err)
			return
		}
		s.root.Send(s.feedPID, &actors.RemotePostLikeMsg{PostID: p.PostID, ActorID: p.ActorID, Delta: p.Delta})

	case models.EventCommentAdded:
		var p models.CommentAddedEvent
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			slog.Warn("malformed comment added event", "error", err)
			return
		}
		// Routed through the thread actor, which owns the duplicate
		// check and forwards the count delta to the feed.
		s.root.Send(s.threadPID, &actors.RemoteCommentAddedMsg{Comment: &p.Comment})

	case models.EventCommentDeleted:
		var p models.CommentDeletedEvent
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			slog.Warn("malformed comment deleted event", "error", err)
			return
		}
		s.root.Send(s.threadPID, &actors.RemoteCommentDeletedMsg{CommentID: p.CommentID, PostID: p.PostID})

	case models.EventCommentLikeDelta:
		var p models.CommentLikeDeltaEvent
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			slog.Warn("malformed comment like delta", "error", err)
			return
		}
		s.root.Send(s.threadPID, &actors.RemoteCommentLikeMsg{CommentID: p.CommentID, PostID: p.PostID, ActorID: p.ActorID, Delta: p.Delta})

	default:
		slog.Debug("unknown realtime event type", "type", event.Type)
	}
}
