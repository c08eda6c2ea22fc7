package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var parentID *string
	if p := r.URL.Query().Get("parentCommentId"); p != "" {
		parentID = &p
	}

	comment, err := h.svc.CreateComment(r.Context(), viewerID(r), chi.URLParam(r, "postId"), parentID, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Comment created successfully.", map[string]any{"comment": comment})
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	comment, err := h.svc.UpdateComment(r.Context(), viewerID(r), chi.URLParam(r, "commentId"), req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Comment updated successfully.", map[string]any{"comment": comment})
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComment(r.Context(), viewerID(r), chi.URLParam(r, "commentId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Comment deleted successfully.", nil)
}

func (h *Handler) postComments(w http.ResponseWriter, r *http.Request) {
	cur, limit := pageParams(r)

	comments, err := h.svc.TopLevelComments(r.Context(), viewerID(r), chi.URLParam(r, "postId"), cur, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Comments fetched successfully.", map[string]any{"comments": comments})
}

func (h *Handler) replies(w http.ResponseWriter, r *http.Request) {
	cur, limit := pageParams(r)

	replies, err := h.svc.Replies(r.Context(), viewerID(r), chi.URLParam(r, "commentId"), cur, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Replies fetched successfully.", map[string]any{"replies": replies})
}

func (h *Handler) toggleCommentLike(w http.ResponseWriter, r *http.Request) {
	comment, err := h.svc.ToggleCommentLike(r.Context(), viewerID(r), chi.URLParam(r, "commentId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	details := "Disliked comment successfully"
	if comment.IsCommentLiked {
		details = "Liked comment successfully"
	}
	writeOK(w, details, map[string]any{"comment": comment})
}
