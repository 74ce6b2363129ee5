package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"socialsync/internal/httputil"
	"socialsync/internal/model"
	"socialsync/internal/service"
	"socialsync/internal/store"
)

type CommentHandler struct {
	commentService *service.CommentService
	store          *store.Comments
}

func NewCommentHandler(commentService *service.CommentService, st *store.Comments) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		store:          st,
	}
}

type createCommentRequest struct {
	Text     string    `json:"text"`
	ParentID *model.ID `json:"parentId,omitempty"`
}

func postID(r *http.Request) model.ID    { return model.ID(chi.URLParam(r, "id")) }
func commentID(r *http.Request) model.ID { return model.ID(chi.URLParam(r, "commentId")) }

// Open handles POST /posts/{id}/comments/open
// Joins the post's room and loads the first page of root comments.
func (h *CommentHandler) Open(w http.ResponseWriter, r *http.Request) {
	id := postID(r)
	if err := h.commentService.OpenPost(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.View(id))
}

// Close handles DELETE /posts/{id}/comments
func (h *CommentHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.commentService.ClosePost(postID(r))
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /posts/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.store.View(postID(r)))
}

// LoadMore handles POST /posts/{id}/comments/more
func (h *CommentHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	id := postID(r)
	if err := h.commentService.LoadComments(r.Context(), id, false); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.View(id))
}

// Create handles POST /posts/{id}/comments
// A parentId makes it a reply; replies to replies land in the root's thread.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	comment, err := h.commentService.CreateComment(r.Context(), postID(r), req.Text, req.ParentID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Like handles POST /posts/{id}/comments/{commentId}/like
// Works for root comments and replies alike.
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	state, err := h.commentService.ToggleLike(r.Context(), postID(r), commentID(r))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

// Replies handles POST /posts/{id}/comments/{commentId}/replies
// ?more=true continues a loaded thread from its cursor.
func (h *CommentHandler) Replies(w http.ResponseWriter, r *http.Request) {
	id, root := postID(r), commentID(r)
	more := r.URL.Query().Get("more") == "true"

	if err := h.commentService.LoadReplies(r.Context(), id, root, more); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.View(id).Threads[root])
}

// ToggleReplies handles POST /posts/{id}/comments/{commentId}/replies/toggle
func (h *CommentHandler) ToggleReplies(w http.ResponseWriter, r *http.Request) {
	visible, err := h.commentService.ToggleReplies(postID(r), commentID(r))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}
