package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type postRequest struct {
	Category string `json:"category"`
	Content  string `json:"content"`
	FilePath string `json:"filePath"`
}

func (h *Handler) uploadText(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	post, err := h.svc.CreateTextPost(r.Context(), viewerID(r), req.Category, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Upload successful.", map[string]any{"postId": post.ID})
}

func (h *Handler) uploadAudio(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	post, err := h.svc.CreateAudioPost(r.Context(), viewerID(r), req.Category, req.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Upload successful.", map[string]any{"postId": post.ID})
}

func (h *Handler) textFeed(w http.ResponseWriter, r *http.Request) {
	cur, limit := pageParams(r)
	category := r.URL.Query().Get("category")

	feed, err := h.svc.TextFeed(r.Context(), viewerID(r), category, cur, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Text feed fetched successfully.", map[string]any{"feed": feed})
}

func (h *Handler) textPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.svc.TextPost(r.Context(), viewerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Text post fetched successfully.", map[string]any{"textPost": post})
}

// userFeed lists another user's posts when ?userId is given, else the caller's.
func (h *Handler) userFeed(w http.ResponseWriter, r *http.Request) {
	cur, limit := pageParams(r)
	target := r.URL.Query().Get("userId")
	if target == "" {
		target = viewerID(r)
	}

	feed, err := h.svc.UserTextPosts(r.Context(), viewerID(r), target, cur, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "My text posts fetched successfully.", map[string]any{"myTextPosts": feed})
}

func (h *Handler) echoedPosts(w http.ResponseWriter, r *http.Request) {
	cur, limit := pageParams(r)

	feed, err := h.svc.EchoedTextPosts(r.Context(), viewerID(r), cur, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Echoed text posts fetched successfully.", map[string]any{"echoedPosts": feed})
}

func (h *Handler) editTextPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.svc.UpdateTextPost(r.Context(), viewerID(r), chi.URLParam(r, "postId"), req.Category, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Post updated successfully.", map[string]any{"updatedPost": updated})
}

func (h *Handler) deleteTextPost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePost(r.Context(), viewerID(r), chi.URLParam(r, "postId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Post deleted successfully.", nil)
}

func (h *Handler) togglePostLike(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ToggleLike(r.Context(), viewerID(r), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	details := "Disliked successfully"
	if res.Active {
		details = "Liked successfully"
	}
	writeOK(w, details, map[string]any{"likesCount": res.Count})
}

func (h *Handler) togglePostEcho(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ToggleEcho(r.Context(), viewerID(r), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	details := "Unechoed successfully"
	if res.Active {
		details = "Echoed successfully"
	}
	writeOK(w, details, map[string]any{"echoesCount": res.Count})
}
