package models

// Comment is a single comment or reply on a post. ParentID nil means a root
// comment; non-nil means a reply (possibly to another reply).
type Comment struct {
	ID            string  `json:"id"`
	PostID        string  `json:"postId"`
	AuthorID      string  `json:"authorId"`
	AuthorName    string  `json:"authorName,omitempty"`
	AuthorAvatar  string  `json:"authorAvatarUrl,omitempty"`
	Content       string  `json:"content"`
	ParentID      *string `json:"parentCommentId,omitempty"`
	LikeCount     int     `json:"likeCount"`
	LikedByViewer bool    `json:"likedByViewer"`
	CreatedAt     string  `json:"createdAt"`
}

func (c *Comment) Clone() *Comment {
	out := *c
	if c.ParentID != nil {
		v := *c.ParentID
		out.ParentID = &v
	}
	return &out
}

// CommentThread groups one root comment with its replies, ordered by
// creation time ascending. The displayed structure is always exactly two
// levels: replies to replies are flattened onto the root's reply list.
type CommentThread struct {
	Root    *Comment   `json:"root"`
	Replies []*Comment `json:"replies"`
}

func (t *CommentThread) Clone() *CommentThread {
	replies := make([]*Comment, len(t.Replies))
	for i, r := range t.Replies {
		replies[i] = r.Clone()
	}
	return &CommentThread{Root: t.Root.Clone(), Replies: replies}
}
