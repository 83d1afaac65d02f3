package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/WiggoHelgesson/stridefeed/internal/engine/actors"
	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

// LikePostRequest represents a request to toggle a like on a post
type LikePostRequest struct {
	PostID   string `json:"postId"`
	ViewerID string `json:"viewerId"`
}

// InsertPostRequest carries a post arriving from a notification deep-link
type InsertPostRequest struct {
	Post *models.Post `json:"post"`
}

// HandleFeed serves the feed: GET returns the visible window, loading it
// if the freshness window has lapsed.
func (s *Server) HandleFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		viewerID := r.URL.Query().Get("viewerId")
		if viewerID == "" {
			http.Error(w, "viewerId is required", http.StatusBadRequest)
			return
		}

		result, ok := s.ask(w, s.Engine.GetFeedActor(), &actors.LoadFeedMsg{ViewerID: viewerID})
		if !ok {
			return
		}

		// The feed appearing also brings up the realtime subscription for
		// this viewer; a dial failure is logged inside Start and the feed
		// still renders.
		if s.Realtime != nil {
			if err := s.Realtime.Start(viewerID); err != nil {
				slog.Warn("realtime subscription failed", "viewer", viewerID, "error", err)
			}
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// HandleFeedRefresh forces a re-fetch regardless of freshness.
func (s *Server) HandleFeedRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		viewerID := r.URL.Query().Get("viewerId")
		if viewerID == "" {
			http.Error(w, "viewerId is required", http.StatusBadRequest)
			return
		}

		result, ok := s.ask(w, s.Engine.GetFeedActor(), &actors.RefreshFeedMsg{ViewerID: viewerID})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleFeedMore reveals the next feed page.
func (s *Server) HandleFeedMore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		result, ok := s.ask(w, s.Engine.GetFeedActor(), &actors.LoadMoreMsg{})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandlePostLike toggles the viewer's like on a post.
func (s *Server) HandlePostLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req LikePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.PostID == "" || req.ViewerID == "" {
			http.Error(w, "postId and viewerId are required", http.StatusBadRequest)
			return
		}

		result, ok := s.ask(w, s.Engine.GetFeedActor(), &actors.ToggleLikePostMsg{PostID: req.PostID, ViewerID: req.ViewerID})
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandlePost covers post mutations: DELETE removes a post, POST inserts a
// deep-linked post at the top of the feed.
func (s *Server) HandlePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			postID := r.URL.Query().Get("postId")
			viewerID := r.URL.Query().Get("viewerId")
			if postID == "" || viewerID == "" {
				http.Error(w, "postId and viewerId are required", http.StatusBadRequest)
				return
			}
			result, ok := s.ask(w, s.Engine.GetFeedActor(), &actors.RemovePostMsg{PostID: postID, ViewerID: viewerID})
			if !ok {
				return
			}
			writeJSON(w, http.StatusOK, result)

		case http.MethodPost:
			var req InsertPostRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Post == nil || req.Post.ID == "" {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
			result, ok := s.ask(w, s.Engine.GetFeedActor(), &actors.InsertPostMsg{Post: req.Post})
			if !ok {
				return
			}
			writeJSON(w, http.StatusOK, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandlePresence serves the latest active-friends snapshot.
func (s *Server) HandlePresence() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if viewerID := r.URL.Query().Get("viewerId"); viewerID != "" {
			s.Presence.Start(viewerID)
		}
		writeJSON(w, http.StatusOK, s.Presence.Snapshot())
	}
}
