package feed

import (
	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

// ThreadBuilder maintains the two-level thread view over the flat comment
// list of one post. Raw data may nest arbitrarily deep, but the displayed
// structure is always one root plus a flat reply list; replies to replies
// are attached to the enclosing root.
type ThreadBuilder struct {
	threads []*models.CommentThread
}

func NewThreadBuilder() *ThreadBuilder {
	return &ThreadBuilder{}
}

// Rebuild replaces the thread structure from a flat comment list.
func (b *ThreadBuilder) Rebuild(comments []*models.Comment) {
	byID := make(map[string]*models.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	roots := make([]*models.Comment, 0, len(comments))
	repliesByRoot := make(map[string][]*models.Comment)

	for _, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		rootID, ok := resolveRootID(c, byID)
		if !ok {
			// Parent never loaded; degrade to a standalone thread
			// rather than dropping the comment.
			roots = append(roots, c)
			continue
		}
		repliesByRoot[rootID] = append(repliesByRoot[rootID], c)
	}

	SortOldestFirst(roots)

	threads := make([]*models.CommentThread, 0, len(roots))
	for _, root := range roots {
		replies := repliesByRoot[root.ID]
		SortOldestFirst(replies)
		threads = append(threads, &models.CommentThread{Root: root, Replies: replies})
	}
	b.threads = threads
}

// resolveRootID walks the parent chain up to the root comment. Missing
// parents or cycles report failure; the caller falls back to a standalone
// thread.
func resolveRootID(c *models.Comment, byID map[string]*models.Comment) (string, bool) {
	seen := map[string]bool{c.ID: true}
	cur := c
	for cur.ParentID != nil {
		parent, ok := byID[*cur.ParentID]
		if !ok || seen[parent.ID] {
			return "", false
		}
		seen[parent.ID] = true
		cur = parent
	}
	return cur.ID, true
}

// Append adds a comment to the thread structure. It is idempotent on the
// comment id: an optimistic local copy always wins over its realtime echo,
// and the duplicate is discarded. Returns false when the id already exists.
func (b *ThreadBuilder) Append(c *models.Comment) bool {
	if b.Contains(c.ID) {
		return false
	}
	if c.ParentID == nil {
		b.threads = append(b.threads, &models.CommentThread{Root: c})
		return true
	}
	b.insertReply(c)
	return true
}

// insertReply attaches a reply under the thread owning its parent. The
// parent may be a root, or a reply already flattened into a thread. If the
// parent is not loaded at all, the reply becomes its own standalone thread.
func (b *ThreadBuilder) insertReply(reply *models.Comment) {
	parentID := *reply.ParentID

	for _, t := range b.threads {
		if t.Root.ID == parentID {
			t.Replies = append(t.Replies, reply)
			SortOldestFirst(t.Replies)
			return
		}
	}

	for _, t := range b.threads {
		for _, r := range t.Replies {
			if r.ID == parentID {
				t.Replies = append(t.Replies, reply)
				SortOldestFirst(t.Replies)
				return
			}
		}
	}

	b.threads = append(b.threads, &models.CommentThread{Root: reply})
}

// Remove deletes the comment with the given id, whether it is a root (the
// whole thread goes) or a reply. At most one entity is removed. Returns
// false when the id is not present.
func (b *ThreadBuilder) Remove(commentID string) bool {
	for i, t := range b.threads {
		if t.Root.ID == commentID {
			b.threads = append(b.threads[:i], b.threads[i+1:]...)
			return true
		}
	}
	for _, t := range b.threads {
		for i, r := range t.Replies {
			if r.ID == commentID {
				t.Replies = append(t.Replies[:i], t.Replies[i+1:]...)
				return true
			}
		}
	}
	return false
}

// ToggleLike flips the viewer's like on a comment and moves the count by
// one, floored at zero. Applying the toggle twice restores the exact prior
// state, which is how a failed backend call is rolled back. The second
// return value reports whether the comment was found.
func (b *ThreadBuilder) ToggleLike(commentID string) (nowLiked bool, ok bool) {
	c := b.find(commentID)
	if c == nil {
		return false, false
	}
	c.LikedByViewer = !c.LikedByViewer
	if c.LikedByViewer {
		c.LikeCount++
	} else if c.LikeCount > 0 {
		c.LikeCount--
	}
	return c.LikedByViewer, true
}

// ApplyLikeDelta moves a comment's like count by delta, floored at zero.
// Used for realtime-sourced events from other users.
func (b *ThreadBuilder) ApplyLikeDelta(commentID string, delta int) bool {
	c := b.find(commentID)
	if c == nil {
		return false
	}
	c.LikeCount += delta
	if c.LikeCount < 0 {
		c.LikeCount = 0
	}
	return true
}

func (b *ThreadBuilder) find(commentID string) *models.Comment {
	for _, t := range b.threads {
		if t.Root.ID == commentID {
			return t.Root
		}
		for _, r := range t.Replies {
			if r.ID == commentID {
				return r
			}
		}
	}
	return nil
}

// Contains reports whether a comment id is present as a root or a reply.
func (b *ThreadBuilder) Contains(commentID string) bool {
	return b.find(commentID) != nil
}

// Get returns the live comment with the given id, or nil.
func (b *ThreadBuilder) Get(commentID string) *models.Comment {
	return b.find(commentID)
}

// Threads returns a deep copy of the current thread structure.
func (b *ThreadBuilder) Threads() []*models.CommentThread {
	out := make([]*models.CommentThread, len(b.threads))
	for i, t := range b.threads {
		out[i] = t.Clone()
	}
	return out
}

// Len counts all comments currently held, roots and replies.
func (b *ThreadBuilder) Len() int {
	n := 0
	for _, t := range b.threads {
		n += 1 + len(t.Replies)
	}
	return n
}

// Reset drops all threads, used when the builder is repointed at a new post.
func (b *ThreadBuilder) Reset() {
	b.threads = nil
}
