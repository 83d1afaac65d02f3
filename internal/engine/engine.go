// Package engine wires the actor system that owns all feed state. Every
// mutation funnels through an actor mailbox, so the post list and the
// comment threads each have exactly one writer.
package engine

import (
	"github.com/asynkron/protoactor-go/actor"

	"github.com/WiggoHelgesson/stridefeed/internal/backend"
	"github.com/WiggoHelgesson/stridefeed/internal/cache"
	"github.com/WiggoHelgesson/stridefeed/internal/engine/actors"
	"github.com/WiggoHelgesson/stridefeed/internal/feed"
	"github.com/WiggoHelgesson/stridefeed/internal/prefetch"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

// Engine coordinates the feed and thread actors.
type Engine struct {
	feedActor   *actor.PID
	threadActor *actor.PID
	counters    *feed.KnownGoodCounts
}

func NewEngine(system *actor.ActorSystem, api backend.API, store cache.Store, prefetcher *prefetch.Prefetcher, metrics *utils.MetricsCollector) *Engine {
	context := system.Root

	// The known-good counter cache is shared by every screen that shows
	// posts; both actors write observations into it.
	counters := feed.NewKnownGoodCounts()

	feedProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewFeedActor(api, store, counters, prefetcher, metrics)
	})
	feedPID := context.Spawn(feedProps)

	threadProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewThreadActor(api, feedPID, metrics)
	})
	threadPID := context.Spawn(threadProps)

	return &Engine{
		feedActor:   feedPID,
		threadActor: threadPID,
		counters:    counters,
	}
}

// GetFeedActor returns the PID of the feed actor
func (e *Engine) GetFeedActor() *actor.PID {
	return e.feedActor
}

// GetThreadActor returns the PID of the thread actor
func (e *Engine) GetThreadActor() *actor.PID {
	return e.threadActor
}

// Counters exposes the shared known-good cache, mainly for health reporting.
func (e *Engine) Counters() *feed.KnownGoodCounts {
	return e.counters
}
