package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/trossachsgroup/site-backend/internal/posts"
)

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	list, err := h.posts.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list posts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, PostListResponse{Posts: list, Count: len(list)})
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}

	p, err := h.posts.Get(r.Context(), id)
	if err != nil {
		h.postError(w, r, "get post", id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	p, err := h.posts.Create(r.Context(), req.Fields())
	if err != nil {
		h.internalError(w, r, "create post", err)
		return
	}

	w.Header().Set("Location", "/v1/posts/"+strconv.FormatInt(p.ID, 10))
	h.writeJSON(w, http.StatusCreated, p)
}

// UpdatePost replaces every editable field; omitted fields become empty.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}

	var req PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	p, err := h.posts.Update(r.Context(), id, req.Fields())
	if err != nil {
		h.postError(w, r, "update post", id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// DeletePost removes a post. Confirmation is the client's job.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		h.postError(w, r, "delete post", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, CodeInvalidPostID, "post id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) postError(w http.ResponseWriter, r *http.Request, op string, id int64, err error) {
	if errors.Is(err, posts.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, CodePostNotFound, "post "+strconv.FormatInt(id, 10)+" not found")
		return
	}
	h.internalError(w, r, op, err)
}
