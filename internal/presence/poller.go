// Package presence polls the short-lived "friends currently active" state.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/WiggoHelgesson/stridefeed/internal/backend"
	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

const defaultInterval = 30 * time.Second

// Poller re-fetches the active-friends list on a fixed interval while a
// screen that displays it is up. A failed poll keeps the previous snapshot;
// active state is ephemeral and the next tick will correct it.
type Poller struct {
	api      backend.API
	interval time.Duration

	mu      sync.RWMutex
	friends []*models.ActiveFriend
	cancel  context.CancelFunc
	viewer  string
}

func NewPoller(api backend.API, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{api: api, interval: interval}
}

// Start begins polling for a viewer. A run already active for the same
// viewer is left alone; a run for another viewer is stopped first.
func (p *Poller) Start(viewerID string) {
	p.mu.Lock()
	if p.cancel != nil && p.viewer == viewerID {
		p.mu.Unlock()
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.viewer = viewerID
	p.mu.Unlock()

	go p.loop(ctx, viewerID)
}

// Stop halts polling. The last snapshot stays readable.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
		p.viewer = ""
	}
}

// Snapshot returns the most recent active-friends list.
func (p *Poller) Snapshot() []*models.ActiveFriend {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*models.ActiveFriend, len(p.friends))
	copy(out, p.friends)
	return out
}

func (p *Poller) loop(ctx context.Context, viewerID string) {
	p.poll(ctx, viewerID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, viewerID)
		}
	}
}

func (p *Poller) poll(ctx context.Context, viewerID string) {
	friends, err := p.api.ActiveFriends(ctx, viewerID)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("active friends poll failed", "viewer", viewerID, "error", err)
		}
		return
	}
	p.mu.Lock()
	p.friends = friends
	p.mu.Unlock()
	slog.Debug("active friends updated", "viewer", viewerID, "count", len(friends))
}
