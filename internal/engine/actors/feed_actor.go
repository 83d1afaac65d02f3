package actors

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"github.com/WiggoHelgesson/stridefeed/internal/backend"
	"github.com/WiggoHelgesson/stridefeed/internal/cache"
	"github.com/WiggoHelgesson/stridefeed/internal/feed"
	"github.com/WiggoHelgesson/stridefeed/internal/models"
	"github.com/WiggoHelgesson/stridefeed/internal/prefetch"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

// Message types for FeedActor
type (
	// LoadFeedMsg asks for the feed, honoring the freshness window: a
	// recent successful fetch makes this a no-op beyond returning the
	// current snapshot (guards against redundant refetch on back
	// navigation). Responds with a *FeedSnapshot immediately; the
	// authoritative fetch continues in the background.
	LoadFeedMsg struct {
		ViewerID string
	}

	// RefreshFeedMsg forces a re-fetch regardless of freshness.
	RefreshFeedMsg struct {
		ViewerID string
	}

	// CancelLoadMsg cancels any in-flight fetch (navigation away).
	CancelLoadMsg struct{}

	// GetFeedMsg responds with the currently visible *FeedSnapshot.
	GetFeedMsg struct{}

	// LoadMoreMsg reveals the next feed page after a short throttle
	// delay. Responds with a *models.StatusResponse acknowledgement.
	LoadMoreMsg struct{}

	// ToggleLikePostMsg flips the viewer's like on a post optimistically
	// and confirms against the backend in the background. Responds with
	// the optimistically updated *models.Post.
	ToggleLikePostMsg struct {
		PostID   string
		ViewerID string
	}

	// SetLikeStatusMsg applies a confirmed like state. User-confirmed
	// values are authoritative and bypass the max-wins merge.
	SetLikeStatusMsg struct {
		PostID    string
		Liked     bool
		LikeCount int
	}

	// ApplyCommentDeltaMsg moves a post's comment count, floored at zero.
	ApplyCommentDeltaMsg struct {
		PostID string
		Delta  int
	}

	// RemotePostLikeMsg is a realtime-sourced like event.
	RemotePostLikeMsg struct {
		PostID  string
		ActorID string
		Delta   int
	}

	// RemovePostMsg deletes a post: backend first, local removal on
	// confirmation. Responds with *models.StatusResponse or *utils.AppError.
	RemovePostMsg struct {
		PostID   string
		ViewerID string
	}

	// InsertPostMsg inserts a post known to be absent from the current
	// feed window, e.g. after a notification deep-link.
	InsertPostMsg struct {
		Post *models.Post
	}

	// Internal messages
	feedFetchedMsg struct {
		seq      uint64
		viewerID string
		posts    []*models.Post
		err      error
	}

	likeResolvedMsg struct {
		postID    string
		liked     bool
		likeCount int
		prevLiked *bool
		prevCount *int
		err       error
	}

	postDeleteResolvedMsg struct {
		postID  string
		err     error
		replyTo *actor.PID
	}

	revealPageMsg struct{}

	profileResolvedMsg struct {
		userID  string
		profile *models.Profile
		err     error
	}
)

// FeedSnapshot is the immutable view handed to readers.
type FeedSnapshot struct {
	Posts   []*models.Post `json:"posts"`
	HasMore bool           `json:"hasMore"`
}

const (
	freshnessWindow    = 30 * time.Second
	defaultPageSize    = 10
	defaultRevealDelay = 400 * time.Millisecond
)

// FeedActor owns the canonical in-memory post list for the current viewer
// and reconciles it against optimistic local mutations, full refetches and
// realtime deltas. All mutation happens inside Receive; background work
// reports back via self-sent messages, so the list has exactly one writer.
type FeedActor struct {
	api        backend.API
	store      cache.Store
	counters   *feed.KnownGoodCounts
	prefetcher *prefetch.Prefetcher
	metrics    *utils.MetricsCollector

	viewerID  string
	posts     []*models.Post
	visible   int
	lastFetch time.Time

	// Sequence fencing for out-of-order fetch responses: a response is
	// applied only if its sequence is newer than the last applied one.
	fetchSeq    uint64
	appliedSeq  uint64
	cancelFetch stdctx.CancelFunc

	pageSize    int
	revealDelay time.Duration
	revealing   bool

	pendingProfiles map[string]bool

	selfPID *actor.PID
	rootCtx *actor.RootContext
}

func NewFeedActor(api backend.API, store cache.Store, counters *feed.KnownGoodCounts, prefetcher *prefetch.Prefetcher, metrics *utils.MetricsCollector) actor.Actor {
	return &FeedActor{
		api:             api,
		store:           store,
		counters:        counters,
		prefetcher:      prefetcher,
		metrics:         metrics,
		pageSize:        defaultPageSize,
		revealDelay:     defaultRevealDelay,
		pendingProfiles: make(map[string]bool),
	}
}

func (a *FeedActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.selfPID = context.Self()
		a.rootCtx = context.ActorSystem().Root
		slog.Info("FeedActor started", "pid", context.Self().String())

	case *LoadFeedMsg:
		a.handleLoad(context, msg.ViewerID, false)

	case *RefreshFeedMsg:
		a.handleLoad(context, msg.ViewerID, true)

	case *CancelLoadMsg:
		if a.cancelFetch != nil {
			a.cancelFetch()
			a.cancelFetch = nil
		}

	case *GetFeedMsg:
		context.Respond(a.snapshot())

	case *LoadMoreMsg:
		a.handleLoadMore(context)

	case *revealPageMsg:
		a.revealing = false
		a.revealPage()

	case *ToggleLikePostMsg:
		a.handleToggleLike(context, msg)

	case *SetLikeStatusMsg:
		a.applyConfirmedLike(msg.PostID, msg.Liked, msg.LikeCount)

	case *ApplyCommentDeltaMsg:
		a.handleCommentDelta(msg)

	case *RemotePostLikeMsg:
		a.handleRemoteLike(msg)

	case *RemovePostMsg:
		a.handleRemovePost(context, msg)

	case *InsertPostMsg:
		a.handleInsertPost(context, msg)

	case *feedFetchedMsg:
		a.handleFetched(msg)

	case *likeResolvedMsg:
		a.handleLikeResolved(msg)

	case *postDeleteResolvedMsg:
		a.handleDeleteResolved(context, msg)

	case *profileResolvedMsg:
		a.handleProfileResolved(msg)

	default:
		slog.Debug("FeedActor: unhandled message", "type", fmt.Sprintf("%T", msg))
	}
}

func (a *FeedActor) handleLoad(context actor.Context, viewerID string, force bool) {
	start := time.Now()
	defer a.metrics.AddOperationLatency("feed_load", time.Since(start))

	if viewerID != a.viewerID {
		// Switching viewers invalidates everything held.
		a.viewerID = viewerID
		a.posts = nil
		a.visible = 0
		a.lastFetch = time.Time{}
	}

	if !force && len(a.posts) > 0 && time.Since(a.lastFetch) < freshnessWindow {
		slog.Debug("feed still fresh, skipping refetch", "viewer", viewerID)
		context.Respond(a.snapshot())
		return
	}

	// Surface the locally cached copy first so the UI paints something
	// while the authoritative fetch runs.
	if len(a.posts) == 0 && a.store != nil {
		if cached, err := a.store.Feed(viewerID); err != nil {
			slog.Warn("feed cache read failed", "viewer", viewerID, "error", err)
		} else if len(cached) > 0 {
			merged := a.counters.Reconcile(cached)
			feed.SortNewestFirst(merged)
			a.posts = merged
			a.visible = min(a.pageSize, len(merged))
			a.prefetchWindow(prefetch.PriorityHigh)
			slog.Info("serving cached feed", "viewer", viewerID, "posts", len(merged))
		}
	}

	context.Respond(a.snapshot())
	a.dispatchFetch(context, viewerID)
}

// dispatchFetch starts a background fetch tagged with the next sequence
// number. The goroutine never touches actor state; it reports back through
// a feedFetchedMsg.
func (a *FeedActor) dispatchFetch(context actor.Context, viewerID string) {
	if a.cancelFetch != nil {
		a.cancelFetch()
	}
	ctx, cancel := stdctx.WithCancel(stdctx.Background())
	a.cancelFetch = cancel

	a.fetchSeq++
	seq := a.fetchSeq

	self := context.Self()
	root := context.ActorSystem().Root
	api := a.api

	go func() {
		posts, err := api.Feed(ctx, viewerID)
		root.Send(self, &feedFetchedMsg{seq: seq, viewerID: viewerID, posts: posts, err: err})
	}()
}

func (a *FeedActor) handleFetched(msg *feedFetchedMsg) {
	if msg.seq <= a.appliedSeq {
		slog.Info("discarding stale feed response", "seq", msg.seq, "applied", a.appliedSeq)
		a.metrics.IncrementStaleFetches()
		return
	}
	if msg.viewerID != a.viewerID {
		slog.Info("discarding feed response for previous viewer", "viewer", msg.viewerID)
		return
	}

	if msg.err != nil {
		// Fetch failures never clear a displayed list; stale beats empty.
		if utils.IsErrorCode(msg.err, utils.ErrCancelled) {
			slog.Debug("feed fetch cancelled", "viewer", msg.viewerID)
		} else {
			slog.Warn("feed fetch failed, keeping current list", "viewer", msg.viewerID, "error", msg.err)
			a.metrics.IncrementErrors()
		}
		return
	}

	if len(msg.posts) == 0 && len(a.posts) > 0 {
		// An empty response while posts are held is treated as a
		// transient backend hiccup, not as "you have zero posts". The
		// freshness timestamp is not advanced so the next load retries.
		slog.Warn("empty feed response with posts held, keeping current list", "viewer", msg.viewerID, "held", len(a.posts))
		a.appliedSeq = msg.seq
		return
	}

	merged := a.counters.Reconcile(msg.posts)
	feed.SortNewestFirst(merged)
	a.posts = merged
	a.appliedSeq = msg.seq
	a.lastFetch = time.Now()
	if a.visible == 0 || a.visible > len(merged) {
		a.visible = min(a.pageSize, len(merged))
	}
	a.persist()
	a.prefetchWindow(prefetch.PriorityHigh)
	a.enrichAuthors()
	slog.Info("feed applied", "viewer", msg.viewerID, "posts", len(merged), "seq", msg.seq)
}

func (a *FeedActor) handleLoadMore(context actor.Context) {
	if a.visible >= len(a.posts) {
		context.Respond(&models.StatusResponse{Success: false, Message: "No more posts"})
		return
	}
	if !a.revealing {
		// The short delay is a deliberate throttle so rapid scrolling
		// doesn't reveal pages faster than the UI can settle.
		a.revealing = true
		self := context.Self()
		root := context.ActorSystem().Root
		time.AfterFunc(a.revealDelay, func() {
			root.Send(self, &revealPageMsg{})
		})
	}
	context.Respond(&models.StatusResponse{Success: true})
}

func (a *FeedActor) revealPage() {
	a.visible = min(a.visible+a.pageSize, len(a.posts))
	a.prefetchWindow(prefetch.PriorityLow)
}

func (a *FeedActor) handleToggleLike(context actor.Context, msg *ToggleLikePostMsg) {
	post := a.find(msg.PostID)
	if post == nil {
		context.Respond(utils.NewPostNotFoundError(msg.PostID))
		return
	}

	prevLiked := post.LikedByViewer
	prevCount := post.LikeCount

	liked := !post.Liked()
	count := post.Likes()
	if liked {
		count++
	} else if count > 0 {
		count--
	}
	post.SetLiked(liked)
	post.SetLikes(count)
	context.Respond(post.Clone())

	self := context.Self()
	root := context.ActorSystem().Root
	api := a.api
	go func() {
		var (
			confirmed int
			err       error
		)
		if liked {
			confirmed, err = api.LikePost(stdctx.Background(), msg.PostID, msg.ViewerID)
		} else {
			confirmed, err = api.UnlikePost(stdctx.Background(), msg.PostID, msg.ViewerID)
		}
		root.Send(self, &likeResolvedMsg{
			postID:    msg.PostID,
			liked:     liked,
			likeCount: confirmed,
			prevLiked: prevLiked,
			prevCount: prevCount,
			err:       err,
		})
	}()
}

func (a *FeedActor) handleLikeResolved(msg *likeResolvedMsg) {
	post := a.find(msg.postID)
	if post == nil {
		return
	}
	if msg.err != nil {
		// Writes are not retried; the optimistic mutation is reversed to
		// its exact pre-mutation value instead.
		slog.Warn("like request failed, rolling back", "post", msg.postID, "error", msg.err)
		post.LikedByViewer = msg.prevLiked
		post.LikeCount = msg.prevCount
		a.metrics.IncrementRollbacks()
		return
	}
	a.applyConfirmedLike(msg.postID, msg.liked, msg.likeCount)
}

// applyConfirmedLike sets a user-confirmed like state. Unlike fetch and
// realtime paths this overwrites unconditionally, including the cached
// known-good value; an unlike legitimately lowers the count.
func (a *FeedActor) applyConfirmedLike(postID string, liked bool, likeCount int) {
	post := a.find(postID)
	if post == nil {
		return
	}
	post.SetLiked(liked)
	post.SetLikes(likeCount)
	a.counters.OverrideLikes(postID, likeCount)
	a.persist()
}

func (a *FeedActor) handleCommentDelta(msg *ApplyCommentDeltaMsg) {
	post := a.find(msg.PostID)
	if post == nil {
		return
	}
	count := post.Comments() + msg.Delta
	if count < 0 {
		count = 0
	}
	post.SetComments(count)
	a.counters.ObserveComments(msg.PostID, count)
}

func (a *FeedActor) handleRemoteLike(msg *RemotePostLikeMsg) {
	post := a.find(msg.PostID)
	if post == nil {
		return
	}
	count := post.Likes() + msg.Delta
	if count < 0 {
		count = 0
	}
	post.SetLikes(count)
	if msg.ActorID == a.viewerID {
		post.SetLiked(msg.Delta > 0)
	}
	a.counters.ObserveLikes(msg.PostID, count)
}

func (a *FeedActor) handleRemovePost(context actor.Context, msg *RemovePostMsg) {
	if a.find(msg.PostID) == nil {
		context.Respond(utils.NewPostNotFoundError(msg.PostID))
		return
	}

	self := context.Self()
	root := context.ActorSystem().Root
	replyTo := context.Sender()
	api := a.api
	go func() {
		err := api.DeletePost(stdctx.Background(), msg.PostID, msg.ViewerID)
		root.Send(self, &postDeleteResolvedMsg{postID: msg.PostID, err: err, replyTo: replyTo})
	}()
}

func (a *FeedActor) handleDeleteResolved(context actor.Context, msg *postDeleteResolvedMsg) {
	if msg.err != nil {
		slog.Warn("post delete failed", "post", msg.postID, "error", msg.err)
		a.metrics.IncrementErrors()
		if msg.replyTo != nil {
			context.Send(msg.replyTo, utils.NewAppError(utils.ErrBackend, "Failed to delete post", msg.err))
		}
		return
	}

	for i, p := range a.posts {
		if p.ID == msg.postID {
			a.posts = append(a.posts[:i], a.posts[i+1:]...)
			break
		}
	}
	if a.visible > len(a.posts) {
		a.visible = len(a.posts)
	}
	a.persist()
	slog.Info("post removed", "post", msg.postID)
	if msg.replyTo != nil {
		context.Send(msg.replyTo, &models.StatusResponse{Success: true, Message: "Post deleted"})
	}
}

func (a *FeedActor) handleInsertPost(context actor.Context, msg *InsertPostMsg) {
	if a.find(msg.Post.ID) != nil {
		context.Respond(&models.StatusResponse{Success: false, Message: "Post already present"})
		return
	}
	merged := a.counters.ReconcileOne(msg.Post)
	a.posts = append([]*models.Post{merged}, a.posts...)
	a.visible++
	a.persist()
	slog.Info("post inserted at top", "post", msg.Post.ID)
	context.Respond(&models.StatusResponse{Success: true})
}

// enrichAuthors kicks off profile lookups for posts whose author metadata is
// still Unknown, deduplicated per author per session.
func (a *FeedActor) enrichAuthors() {
	// Collected here instead of inside the goroutine so state reads stay
	// on the actor.
	var missing []string
	seen := map[string]bool{}
	for _, p := range a.posts {
		if !p.Author.Known() && !a.pendingProfiles[p.AuthorID] && !seen[p.AuthorID] {
			missing = append(missing, p.AuthorID)
			seen[p.AuthorID] = true
		}
	}
	if len(missing) == 0 {
		return
	}

	api := a.api
	self := a.selfPID
	root := a.rootCtx
	for _, userID := range missing {
		a.pendingProfiles[userID] = true
		go func(userID string) {
			profile, err := api.Profile(stdctx.Background(), userID)
			root.Send(self, &profileResolvedMsg{userID: userID, profile: profile, err: err})
		}(userID)
	}
}

func (a *FeedActor) handleProfileResolved(msg *profileResolvedMsg) {
	delete(a.pendingProfiles, msg.userID)
	if msg.err != nil {
		slog.Debug("author profile fetch failed", "user", msg.userID, "error", msg.err)
		return
	}
	author := models.KnownAuthor(msg.profile.Name, msg.profile.AvatarURL, msg.profile.IsPro)
	for _, p := range a.posts {
		if p.AuthorID == msg.userID {
			p.Author = author
		}
	}
}

func (a *FeedActor) find(postID string) *models.Post {
	for _, p := range a.posts {
		if p.ID == postID {
			return p
		}
	}
	return nil
}

func (a *FeedActor) snapshot() *FeedSnapshot {
	visible := a.visible
	if visible > len(a.posts) {
		visible = len(a.posts)
	}
	return &FeedSnapshot{
		Posts:   models.ClonePosts(a.posts[:visible]),
		HasMore: visible < len(a.posts),
	}
}

func (a *FeedActor) persist() {
	if a.store == nil || a.viewerID == "" {
		return
	}
	if err := a.store.SaveFeed(a.viewerID, a.posts); err != nil {
		slog.Warn("feed cache write failed", "viewer", a.viewerID, "error", err)
	}
}

func (a *FeedActor) prefetchWindow(priority prefetch.Priority) {
	if a.prefetcher == nil {
		return
	}
	// Warm the visible window plus the next page.
	end := min(a.visible+a.pageSize, len(a.posts))
	var urls []string
	for _, p := range a.posts[:end] {
		urls = append(urls, p.RouteImageURL, p.UserImageURL)
		if p.Author.Known() {
			urls = append(urls, p.Author.AvatarURL)
		}
	}
	a.prefetcher.Enqueue(urls, priority)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
