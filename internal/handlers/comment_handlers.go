package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/WiggoHelgesson/stridefeed/internal/engine/actors"
)

// AddCommentRequest represents a request to add a comment or reply
type AddCommentRequest struct {
	PostID   string  `json:"postId"`
	AuthorID string  `json:"authorId"`
	Content  string  `json:"content"`
	ParentID *string `json:"parentId,omitempty"`
}

// LikeCommentRequest represents a request to toggle a like on a comment
type LikeCommentRequest struct {
	CommentID string `json:"commentId"`
	ViewerID  string `json:"viewerId"`
}

// HandleComments loads and returns the thread view for a post.
func (s *Server) HandleComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		postID := r.URL.Query().Get("postId")
		viewerID := r.URL.Query().Get("viewerId")
		if postID == "" || viewerID == "" {
			http.Error(w, "postId and viewerId are required", http.StatusBadRequest)
			return
		}

		result, ok := s.ask(w, s.Engine.GetThreadActor(), &actors.LoadThreadsMsg{PostID: postID, ViewerID: viewerID})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleComment covers comment mutations: POST adds a comment or reply,
// DELETE removes one after backend confirmation.
func (s *Server) HandleComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req AddCommentRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
			if req.PostID == "" || req.AuthorID == "" || req.Content == "" {
				http.Error(w, "postId, authorId and content are required", http.StatusBadRequest)
				return
			}
			result, ok := s.ask(w, s.Engine.GetThreadActor(), &actors.AddCommentMsg{
				PostID:   req.PostID,
				AuthorID: req.AuthorID,
				Content:  req.Content,
				ParentID: req.ParentID,
			})
			if !ok {
				return
			}
			writeJSON(w, http.StatusCreated, result)

		case http.MethodDelete:
			commentID := r.URL.Query().Get("commentId")
			authorID := r.URL.Query().Get("authorId")
			if commentID == "" || authorID == "" {
				http.Error(w, "commentId and authorId are required", http.StatusBadRequest)
				return
			}
			result, ok := s.ask(w, s.Engine.GetThreadActor(), &actors.DeleteCommentMsg{CommentID: commentID, AuthorID: authorID})
			if !ok {
				return
			}
			writeJSON(w, http.StatusOK, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleCommentLike toggles the viewer's like on a comment.
func (s *Server) HandleCommentLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req LikeCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.CommentID == "" || req.ViewerID == "" {
			http.Error(w, "commentId and viewerId are required", http.StatusBadRequest)
			return
		}

		result, ok := s.ask(w, s.Engine.GetThreadActor(), &actors.ToggleCommentLikeMsg{CommentID: req.CommentID, ViewerID: req.ViewerID})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
