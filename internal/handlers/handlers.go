package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"github.com/WiggoHelgesson/stridefeed/internal/engine"
	"github.com/WiggoHelgesson/stridefeed/internal/presence"
	"github.com/WiggoHelgesson/stridefeed/internal/realtime"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

// Server holds the dependencies of the UI-facing HTTP surface
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Metrics        *utils.MetricsCollector
	Presence       *presence.Poller
	Realtime       *realtime.Subscriber // nil when no realtime endpoint is configured
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(system *actor.ActorSystem, eng *engine.Engine, metrics *utils.MetricsCollector, presencePoller *presence.Poller, subscriber *realtime.Subscriber) *Server {
	return &Server{
		System:         system,
		Context:        system.Root,
		Engine:         eng,
		Metrics:        metrics,
		Presence:       presencePoller,
		Realtime:       subscriber,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// ask sends a message to an actor and waits for the reply, mapping timeouts
// and AppErrors onto HTTP responses. It returns (nil, false) after writing
// an error response.
func (s *Server) ask(w http.ResponseWriter, pid *actor.PID, msg interface{}) (interface{}, bool) {
	s.Metrics.IncrementRequests()

	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		s.Metrics.IncrementErrors()
		writeError(w, utils.NewActorTimeoutError(pid.String()))
		return nil, false
	}
	if appErr, ok := result.(*utils.AppError); ok {
		s.Metrics.IncrementErrors()
		writeError(w, appErr)
		return nil, false
	}
	return result, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, appErr *utils.AppError) {
	writeJSON(w, utils.AppErrorToHTTPStatus(appErr.Code), map[string]string{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
}

// HandleHealth reports engine health and the metrics snapshot
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":       "healthy",
			"trackedPosts": s.Engine.Counters().Len(),
			"metrics":      s.Metrics.Snapshot(),
			"serverTime":   time.Now(),
		})
	}
}
