// Package prefetch warms the HTTP cache for route and avatar images ahead of
// display. It is advisory: nothing downstream consumes a result, queue
// overflow drops work, and failures are only logged.
package prefetch

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

const (
	queueDepth     = 256
	requestTimeout = 10 * time.Second
)

type Prefetcher struct {
	high   chan string
	low    chan string
	client *http.Client

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPrefetcher(workers int) *Prefetcher {
	if workers <= 0 {
		workers = 2
	}
	p := &Prefetcher{
		high:   make(chan string, queueDepth),
		low:    make(chan string, queueDepth),
		client: &http.Client{Timeout: requestTimeout},
		stop:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue queues URLs for warming. Empty URLs are skipped and a full queue
// drops the remainder.
func (p *Prefetcher) Enqueue(urls []string, priority Priority) {
	queue := p.low
	if priority == PriorityHigh {
		queue = p.high
	}
	for _, u := range urls {
		if u == "" {
			continue
		}
		select {
		case queue <- u:
		default:
			slog.Debug("prefetch queue full, dropping", "url", u)
			return
		}
	}
}

func (p *Prefetcher) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *Prefetcher) worker() {
	defer p.wg.Done()
	for {
		// Drain high-priority work first.
		select {
		case <-p.stop:
			return
		case u := <-p.high:
			p.fetch(u)
			continue
		default:
		}
		select {
		case <-p.stop:
			return
		case u := <-p.high:
			p.fetch(u)
		case u := <-p.low:
			p.fetch(u)
		}
	}
}

func (p *Prefetcher) fetch(url string) {
	resp, err := p.client.Get(url)
	if err != nil {
		slog.Debug("prefetch failed", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
}
