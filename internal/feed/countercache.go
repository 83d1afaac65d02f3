// Package feed holds the reconciliation core: the known-good counter cache,
// the canonical feed ordering, and the comment thread builder. Everything
// here is plain state with no I/O; the engine actors own the orchestration.
package feed

import (
	"sync"

	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

type counterPair struct {
	likes    int
	comments int
}

// KnownGoodCounts remembers the highest like and comment counts observed per
// post in this process lifetime. The backend is eventually consistent and a
// fetch can return stale or missing counts; reconciling through this cache
// keeps displayed counts from regressing, in particular from flashing back
// to zero. Like and comment counts are tracked independently, not as a pair.
//
// The cache is shared by every screen that displays posts, so it is guarded
// by a mutex even though each owning actor is single-threaded. It has no
// eviction: it is bounded by the number of distinct posts seen in a session.
type KnownGoodCounts struct {
	mu     sync.RWMutex
	byPost map[string]counterPair
}

func NewKnownGoodCounts() *KnownGoodCounts {
	return &KnownGoodCounts{
		byPost: make(map[string]counterPair),
	}
}

// Reconcile applies the max-wins merge to a fetched post list. Each post's
// displayed counts become the max of the fetched value and the cached value;
// posts whose counts are already current are passed through untouched so
// callers can diff cheaply. Afterwards every non-zero observed count is
// folded back into the cache.
func (kg *KnownGoodCounts) Reconcile(posts []*models.Post) []*models.Post {
	kg.mu.Lock()
	defer kg.mu.Unlock()

	out := make([]*models.Post, len(posts))
	for i, p := range posts {
		out[i] = kg.reconcileLocked(p)
	}
	return out
}

// ReconcileOne merges a single post, with the same semantics as Reconcile.
func (kg *KnownGoodCounts) ReconcileOne(p *models.Post) *models.Post {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	return kg.reconcileLocked(p)
}

func (kg *KnownGoodCounts) reconcileLocked(p *models.Post) *models.Post {
	cached, hasCached := kg.byPost[p.ID]

	finalLikes := p.Likes()
	finalComments := p.Comments()
	if hasCached {
		if cached.likes > finalLikes {
			finalLikes = cached.likes
		}
		if cached.comments > finalComments {
			finalComments = cached.comments
		}
	}

	changed := finalLikes != p.Likes() || p.LikeCount == nil ||
		finalComments != p.Comments() || p.CommentCount == nil
	if changed {
		p = p.Clone()
		p.SetLikes(finalLikes)
		p.SetComments(finalComments)
	}

	kg.observeLocked(p.ID, finalLikes, finalComments)
	return p
}

// ObserveLikes records a freshly learned like count, keeping the max.
func (kg *KnownGoodCounts) ObserveLikes(postID string, likes int) {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	kg.observeLocked(postID, likes, 0)
}

// ObserveComments records a freshly learned comment count, keeping the max.
func (kg *KnownGoodCounts) ObserveComments(postID string, comments int) {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	kg.observeLocked(postID, 0, comments)
}

func (kg *KnownGoodCounts) observeLocked(postID string, likes, comments int) {
	if likes <= 0 && comments <= 0 {
		// Entries are only created on the first non-zero observation.
		if _, exists := kg.byPost[postID]; !exists {
			return
		}
	}
	entry := kg.byPost[postID]
	if likes > entry.likes {
		entry.likes = likes
	}
	if comments > entry.comments {
		entry.comments = comments
	}
	kg.byPost[postID] = entry
}

// OverrideLikes unconditionally replaces the cached like count. This is the
// one write that bypasses max-comparison: it backs setLikeStatus, where the
// count comes straight from a confirmed user action and must win even when
// lower (unliking a post legitimately decreases the count).
func (kg *KnownGoodCounts) OverrideLikes(postID string, likes int) {
	kg.mu.Lock()
	defer kg.mu.Unlock()
	entry := kg.byPost[postID]
	entry.likes = likes
	kg.byPost[postID] = entry
}

// Lookup returns the cached counts for a post, if any.
func (kg *KnownGoodCounts) Lookup(postID string) (likes, comments int, ok bool) {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	entry, ok := kg.byPost[postID]
	return entry.likes, entry.comments, ok
}

// Len reports how many posts have cached counts.
func (kg *KnownGoodCounts) Len() int {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	return len(kg.byPost)
}
