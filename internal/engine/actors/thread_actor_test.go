package actors

import (
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiggoHelgesson/stridefeed/internal/models"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

// deltaLog records the comment count deltas a ThreadActor forwards to the
// feed actor.
type deltaLog struct {
	mu      sync.Mutex
	entries []ApplyCommentDeltaMsg
}

func (d *deltaLog) Receive(context actor.Context) {
	if msg, ok := context.Message().(*ApplyCommentDeltaMsg); ok {
		d.mu.Lock()
		d.entries = append(d.entries, *msg)
		d.mu.Unlock()
	}
}

func (d *deltaLog) sum(postID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, e := range d.entries {
		if e.PostID == postID {
			total += e.Delta
		}
	}
	return total
}

func (d *deltaLog) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func makeComment(id, postID, authorID, createdAt string, parentID *string) *models.Comment {
	return &models.Comment{
		ID:         id,
		PostID:     postID,
		AuthorID:   authorID,
		AuthorName: "Author " + authorID,
		Content:    "comment " + id,
		ParentID:   parentID,
		CreatedAt:  createdAt,
	}
}

func spawnThreadActor(t *testing.T, api *fakeAPI) (*actor.ActorSystem, *actor.PID, *deltaLog) {
	t.Helper()
	system := actor.NewActorSystem()

	log := &deltaLog{}
	feedPID := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return log }))

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewThreadActor(api, feedPID, utils.NewMetricsCollector())
	})
	pid := system.Root.Spawn(props)
	return system, pid, log
}

func loadThreads(t *testing.T, system *actor.ActorSystem, pid *actor.PID, postID, viewerID string) *ThreadSnapshot {
	t.Helper()
	future := system.Root.RequestFuture(pid, &LoadThreadsMsg{PostID: postID, ViewerID: viewerID}, 2*time.Second)
	result, err := future.Result()
	require.NoError(t, err)
	snapshot, ok := result.(*ThreadSnapshot)
	require.True(t, ok, "expected *ThreadSnapshot, got %T", result)
	return snapshot
}

func getThreads(t *testing.T, system *actor.ActorSystem, pid *actor.PID) *ThreadSnapshot {
	t.Helper()
	future := system.Root.RequestFuture(pid, &GetThreadsMsg{}, 2*time.Second)
	result, err := future.Result()
	require.NoError(t, err)
	return result.(*ThreadSnapshot)
}

func TestThreadActorLoadFlattensToTwoLevels(t *testing.T) {
	root := "c-root"
	reply := "c-reply"
	api := &fakeAPI{
		commentsFn: func(postID string) ([]*models.Comment, error) {
			return []*models.Comment{
				makeComment("c-root", postID, "u1", "2024-01-01T10:00:00Z", nil),
				makeComment("c-reply", postID, "u2", "2024-01-01T11:00:00Z", &root),
				// Reply to a reply lands under the original root.
				makeComment("c-nested", postID, "u3", "2024-01-01T12:00:00Z", &reply),
				makeComment("c-root2", postID, "u1", "2024-01-02T10:00:00Z", nil),
			}, nil
		},
	}
	system, pid, _ := spawnThreadActor(t, api)

	snapshot := loadThreads(t, system, pid, "post-1", "viewer-1")
	require.Len(t, snapshot.Threads, 2)

	// Roots oldest first, replies oldest first inside each thread.
	assert.Equal(t, "c-root", snapshot.Threads[0].Root.ID)
	require.Len(t, snapshot.Threads[0].Replies, 2)
	assert.Equal(t, "c-reply", snapshot.Threads[0].Replies[0].ID)
	assert.Equal(t, "c-nested", snapshot.Threads[0].Replies[1].ID)
	assert.Equal(t, "c-root2", snapshot.Threads[1].Root.ID)
}

func TestThreadActorLoadFailureKeepsCurrentThreads(t *testing.T) {
	var fail bool
	api := &fakeAPI{}
	api.commentsFn = func(postID string) ([]*models.Comment, error) {
		api.mu.Lock()
		shouldFail := fail
		api.mu.Unlock()
		if shouldFail {
			return nil, utils.NewAppError(utils.ErrNetwork, "connection refused", nil)
		}
		return []*models.Comment{makeComment("c1", postID, "u1", "2024-01-01T10:00:00Z", nil)}, nil
	}
	system, pid, _ := spawnThreadActor(t, api)

	snapshot := loadThreads(t, system, pid, "post-1", "viewer-1")
	require.Len(t, snapshot.Threads, 1)

	api.mu.Lock()
	fail = true
	api.mu.Unlock()

	// A failed reload answers with the threads already held.
	snapshot = loadThreads(t, system, pid, "post-1", "viewer-1")
	require.Len(t, snapshot.Threads, 1)
	assert.Equal(t, "c1", snapshot.Threads[0].Root.ID)
}

func TestThreadActorOptimisticAddAndRealtimeEcho(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(string) ([]*models.Comment, error) { return nil, nil },
	}
	system, pid, log := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	future := system.Root.RequestFuture(pid, &AddCommentMsg{
		PostID:   "post-1",
		AuthorID: "viewer-1",
		Content:  "nice run!",
	}, 2*time.Second)
	result, err := future.Result()
	require.NoError(t, err)

	comment := result.(*models.Comment)
	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, "nice run!", comment.Content)

	require.Eventually(t, func() bool {
		return log.sum("post-1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The realtime echo of the same comment must change nothing.
	system.Root.Send(pid, &RemoteCommentAddedMsg{Comment: comment.Clone()})
	time.Sleep(50 * time.Millisecond)

	snapshot := getThreads(t, system, pid)
	assert.Len(t, snapshot.Threads, 1)
	assert.Equal(t, 1, log.sum("post-1"), "echoed insert must not double the count")
}

func TestThreadActorAddRollbackOnSaveFailure(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(string) ([]*models.Comment, error) { return nil, nil },
		addCommentFn: func(*models.Comment) (*models.Comment, error) {
			return nil, utils.NewAppError(utils.ErrBackend, "save failed", nil)
		},
	}
	system, pid, log := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	future := system.Root.RequestFuture(pid, &AddCommentMsg{
		PostID:   "post-1",
		AuthorID: "viewer-1",
		Content:  "doomed",
	}, 2*time.Second)
	_, err := future.Result()
	require.NoError(t, err)

	// The optimistic copy disappears and the count delta is reversed.
	require.Eventually(t, func() bool {
		return len(getThreads(t, system, pid).Threads) == 0 && log.sum("post-1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestThreadActorDeleteConfirmFirst(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(postID string) ([]*models.Comment, error) {
			return []*models.Comment{makeComment("c1", postID, "viewer-1", "2024-01-01T10:00:00Z", nil)}, nil
		},
	}
	system, pid, log := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	future := system.Root.RequestFuture(pid, &DeleteCommentMsg{CommentID: "c1", AuthorID: "viewer-1"}, 2*time.Second)
	result, err := future.Result()
	require.NoError(t, err)
	assert.True(t, result.(*models.StatusResponse).Success)

	assert.Empty(t, getThreads(t, system, pid).Threads)
	require.Eventually(t, func() bool {
		return log.sum("post-1") == -1
	}, 2*time.Second, 10*time.Millisecond)

	// The realtime echo of the delete must not subtract again.
	system.Root.Send(pid, &RemoteCommentDeletedMsg{CommentID: "c1", PostID: "post-1"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, -1, log.sum("post-1"))
}

func TestThreadActorDeleteKeptOnBackendFailure(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(postID string) ([]*models.Comment, error) {
			return []*models.Comment{makeComment("c1", postID, "viewer-1", "2024-01-01T10:00:00Z", nil)}, nil
		},
		deleteCommentFn: func(string) error {
			return utils.NewAppError(utils.ErrBackend, "delete failed", nil)
		},
	}
	system, pid, _ := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	future := system.Root.RequestFuture(pid, &DeleteCommentMsg{CommentID: "c1", AuthorID: "viewer-1"}, 2*time.Second)
	result, err := future.Result()
	require.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrBackend, appErr.Code)
	assert.Len(t, getThreads(t, system, pid).Threads, 1, "comment must survive a failed delete")
}

func TestThreadActorToggleLikeRollback(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(postID string) ([]*models.Comment, error) {
			return []*models.Comment{makeComment("c1", postID, "u1", "2024-01-01T10:00:00Z", nil)}, nil
		},
		likeCommentFn: func(string) error {
			return utils.NewAppError(utils.ErrBackend, "like failed", nil)
		},
	}
	system, pid, _ := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	future := system.Root.RequestFuture(pid, &ToggleCommentLikeMsg{CommentID: "c1", ViewerID: "viewer-1"}, 2*time.Second)
	result, err := future.Result()
	require.NoError(t, err)

	comment := result.(*models.Comment)
	assert.True(t, comment.LikedByViewer)
	assert.Equal(t, 1, comment.LikeCount)

	// Failed write reverses the toggle.
	require.Eventually(t, func() bool {
		c := getThreads(t, system, pid).Threads[0].Root
		return !c.LikedByViewer && c.LikeCount == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestThreadActorRemoteLikeSkipsOwnEcho(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(postID string) ([]*models.Comment, error) {
			return []*models.Comment{makeComment("c1", postID, "u1", "2024-01-01T10:00:00Z", nil)}, nil
		},
	}
	system, pid, _ := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	future := system.Root.RequestFuture(pid, &ToggleCommentLikeMsg{CommentID: "c1", ViewerID: "viewer-1"}, 2*time.Second)
	_, err := future.Result()
	require.NoError(t, err)

	// The echo of the viewer's own like changes nothing.
	system.Root.Send(pid, &RemoteCommentLikeMsg{CommentID: "c1", PostID: "post-1", ActorID: "viewer-1", Delta: 1})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, getThreads(t, system, pid).Threads[0].Root.LikeCount)

	// A foreign like applies.
	system.Root.Send(pid, &RemoteCommentLikeMsg{CommentID: "c1", PostID: "post-1", ActorID: "someone-else", Delta: 1})
	require.Eventually(t, func() bool {
		return getThreads(t, system, pid).Threads[0].Root.LikeCount == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestThreadActorRemoteAddForOtherPostForwardsDelta(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(string) ([]*models.Comment, error) { return nil, nil },
	}
	system, pid, log := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	// A comment on a post whose thread screen is not open still moves the
	// feed row count.
	system.Root.Send(pid, &RemoteCommentAddedMsg{
		Comment: makeComment("c-far", "post-9", "someone-else", "2024-01-01T10:00:00Z", nil),
	})
	require.Eventually(t, func() bool {
		return log.sum("post-9") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, getThreads(t, system, pid).Threads)

	// But the viewer's own comment elsewhere was already counted
	// optimistically when it was written.
	before := log.count()
	system.Root.Send(pid, &RemoteCommentAddedMsg{
		Comment: makeComment("c-own", "post-9", "viewer-1", "2024-01-01T11:00:00Z", nil),
	})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, log.count())
}

func TestThreadActorDuplicateRemoteDeliveryCountsOnce(t *testing.T) {
	api := &fakeAPI{
		commentsFn: func(string) ([]*models.Comment, error) { return nil, nil },
	}
	system, pid, log := spawnThreadActor(t, api)
	loadThreads(t, system, pid, "post-1", "viewer-1")

	// The realtime channel is at-least-once; a redelivered comment for an
	// unopened post must not bump the feed count twice.
	added := &RemoteCommentAddedMsg{
		Comment: makeComment("c-dup", "post-9", "someone-else", "2024-01-01T10:00:00Z", nil),
	}
	system.Root.Send(pid, added)
	system.Root.Send(pid, added)
	require.Eventually(t, func() bool {
		return log.sum("post-9") == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, log.sum("post-9"))

	// Same for a redelivered delete.
	deleted := &RemoteCommentDeletedMsg{CommentID: "c-dup", PostID: "post-9"}
	system.Root.Send(pid, deleted)
	system.Root.Send(pid, deleted)
	require.Eventually(t, func() bool {
		return log.sum("post-9") == 0
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, log.sum("post-9"))
}
