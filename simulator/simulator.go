package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SimConfig struct {
	NumViewers       int
	SimulationTime   time.Duration
	LikeFrequency    float64 // like toggles/viewer/minute
	CommentFrequency float64 // comments/viewer/minute
	RefreshRate      float64 // probability of a refresh per tick
	LoadMoreRate     float64 // probability of paging per tick
	ZipfS            float64 // skew of post popularity; likes pile onto head posts
	TickInterval     time.Duration
	EngineURL        string
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	TotalLikes       int
	TotalComments    int
	TotalRefreshes   int
	TotalPageLoads   int
	RequestLatencies []time.Duration
}

// SimulatedViewer drives one feed session against the engine
type SimulatedViewer struct {
	ID         string
	KnownPosts []string // post ids seen in the last feed response
	Comments   []string // comment ids this viewer created
}

type Simulator struct {
	config  SimConfig
	stats   *SimulationStats
	viewers []*SimulatedViewer
	client  *http.Client
	zipf    *rand.Zipf
	mu      sync.RWMutex
}

func NewSimulator(config SimConfig) *Simulator {
	s := &Simulator{
		config: config,
		stats: &SimulationStats{
			StartTime:        time.Now(),
			RequestLatencies: make([]time.Duration, 0),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if config.ZipfS > 1 {
		s.zipf = rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())), config.ZipfS, 1, 1<<16)
	}
	return s
}

func (s *Simulator) Run(ctx context.Context) error {
	log.Printf("Starting feed simulation...")

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, viewer := range s.viewers {
		wg.Add(1)
		go func(v *SimulatedViewer) {
			defer wg.Done()
			s.driveViewer(ctx, v)
		}(viewer)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

// initialize loads the feed once per viewer so later actions have posts
// to target.
func (s *Simulator) initialize(ctx context.Context) error {
	s.viewers = make([]*SimulatedViewer, 0, s.config.NumViewers)
	for i := 0; i < s.config.NumViewers; i++ {
		viewer := &SimulatedViewer{ID: fmt.Sprintf("sim-viewer-%d", i)}
		if err := s.loadFeed(ctx, viewer); err != nil {
			log.Printf("Initial feed load failed for %s: %v", viewer.ID, err)
		}
		s.viewers = append(s.viewers, viewer)
	}
	log.Printf("Initialized %d viewers", len(s.viewers))
	return nil
}

func (s *Simulator) driveViewer(ctx context.Context, viewer *SimulatedViewer) {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	perTick := s.config.TickInterval.Minutes()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rand.Float64() < s.config.RefreshRate {
				s.refresh(ctx, viewer)
			}
			if rand.Float64() < s.config.LoadMoreRate {
				s.loadMore(ctx, viewer)
			}
			if rand.Float64() < s.config.LikeFrequency*perTick {
				s.toggleLike(ctx, viewer)
			}
			if rand.Float64() < s.config.CommentFrequency*perTick {
				s.addComment(ctx, viewer)
			}
		}
	}
}

type feedResponse struct {
	Posts []struct {
		ID string `json:"id"`
	} `json:"posts"`
	HasMore bool `json:"hasMore"`
}

func (s *Simulator) loadFeed(ctx context.Context, viewer *SimulatedViewer) error {
	var resp feedResponse
	err := s.request(ctx, http.MethodGet, "/feed?viewerId="+url.QueryEscape(viewer.ID), nil, &resp)
	if err != nil {
		return err
	}
	s.recordPosts(viewer, &resp)
	return nil
}

func (s *Simulator) refresh(ctx context.Context, viewer *SimulatedViewer) {
	var resp feedResponse
	err := s.request(ctx, http.MethodPost, "/feed/refresh?viewerId="+url.QueryEscape(viewer.ID), nil, &resp)
	if err != nil {
		return
	}
	s.recordPosts(viewer, &resp)
	s.stats.mu.Lock()
	s.stats.TotalRefreshes++
	s.stats.mu.Unlock()
}

func (s *Simulator) loadMore(ctx context.Context, viewer *SimulatedViewer) {
	var resp feedResponse
	if err := s.request(ctx, http.MethodPost, "/feed/more", nil, &resp); err != nil {
		return
	}
	s.recordPosts(viewer, &resp)
	s.stats.mu.Lock()
	s.stats.TotalPageLoads++
	s.stats.mu.Unlock()
}

func (s *Simulator) toggleLike(ctx context.Context, viewer *SimulatedViewer) {
	postID := s.randomPost(viewer)
	if postID == "" {
		return
	}
	body := map[string]string{"postId": postID, "viewerId": viewer.ID}
	if err := s.request(ctx, http.MethodPost, "/post/like", body, nil); err != nil {
		return
	}
	s.stats.mu.Lock()
	s.stats.TotalLikes++
	s.stats.mu.Unlock()
}

func (s *Simulator) addComment(ctx context.Context, viewer *SimulatedViewer) {
	postID := s.randomPost(viewer)
	if postID == "" {
		return
	}
	body := map[string]string{
		"postId":   postID,
		"authorId": viewer.ID,
		"content":  "simulated comment " + uuid.NewString()[:8],
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := s.request(ctx, http.MethodPost, "/comment", body, &created); err != nil {
		return
	}
	s.mu.Lock()
	viewer.Comments = append(viewer.Comments, created.ID)
	s.mu.Unlock()
	s.stats.mu.Lock()
	s.stats.TotalComments++
	s.stats.mu.Unlock()
}

func (s *Simulator) recordPosts(viewer *SimulatedViewer, resp *feedResponse) {
	ids := make([]string, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		ids = append(ids, p.ID)
	}
	s.mu.Lock()
	viewer.KnownPosts = ids
	s.mu.Unlock()
}

func (s *Simulator) randomPost(viewer *SimulatedViewer) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(viewer.KnownPosts)
	if n == 0 {
		return ""
	}
	// Zipf-skewed popularity: most engagement piles onto the top posts.
	idx := rand.Intn(n)
	if s.zipf != nil {
		if z := int(s.zipf.Uint64()); z < n {
			idx = z
		}
	}
	return viewer.KnownPosts[idx]
}

func (s *Simulator) request(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	s.stats.mu.Lock()
	s.stats.TotalRequests++
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, latency)
	if err != nil || resp.StatusCode >= 400 {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}
	s.stats.mu.Unlock()

	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			log.Printf("Progress: requests=%d success=%d failed=%d likes=%d comments=%d avgLatency=%v",
				m.TotalRequests, m.SuccessRequests, m.FailedRequests, m.TotalLikes, m.TotalComments, m.AverageLatency)
		}
	}
}

// Metrics is a point-in-time copy of the simulation stats
type Metrics struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalLikes      int
	TotalComments   int
	TotalRefreshes  int
	TotalPageLoads  int
	AverageLatency  time.Duration
}

func (s *Simulator) GetMetrics() Metrics {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	var avg time.Duration
	if len(s.stats.RequestLatencies) > 0 {
		var total time.Duration
		for _, l := range s.stats.RequestLatencies {
			total += l
		}
		avg = total / time.Duration(len(s.stats.RequestLatencies))
	}

	return Metrics{
		TotalRequests:   s.stats.TotalRequests,
		SuccessRequests: s.stats.SuccessRequests,
		FailedRequests:  s.stats.FailedRequests,
		TotalLikes:      s.stats.TotalLikes,
		TotalComments:   s.stats.TotalComments,
		TotalRefreshes:  s.stats.TotalRefreshes,
		TotalPageLoads:  s.stats.TotalPageLoads,
		AverageLatency:  avg,
	}
}
