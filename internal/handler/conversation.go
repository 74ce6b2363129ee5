package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"socialsync/internal/httputil"
	"socialsync/internal/model"
	"socialsync/internal/service"
	"socialsync/internal/store"
)

type ConversationHandler struct {
	messages *service.MessageService
	store    *store.Conversations
}

func NewConversationHandler(messages *service.MessageService, st *store.Conversations) *ConversationHandler {
	return &ConversationHandler{
		messages: messages,
		store:    st,
	}
}

type sendRequest struct {
	RecipientID model.ID `json:"recipientId"`
	Content     string   `json:"content"`
}

type loadMoreResponse struct {
	Added int `json:"added"`
	store.MessagesView
}

// List handles GET /conversations
// ?refresh=true refetches the list from the backend first.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" || !h.store.Loaded() {
		if err := h.messages.LoadConversations(r.Context()); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.View())
}

// Select handles POST /conversations/{id}/select
// Makes the conversation active, loads its newest page and marks it read.
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))
	if err := h.messages.SelectConversation(r.Context(), id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.Messages())
}

// Close handles DELETE /conversations/active
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.messages.CloseConversation()
	w.WriteHeader(http.StatusNoContent)
}

// Messages handles GET /conversations/active/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.store.Messages())
}

// LoadMore handles POST /conversations/{id}/messages/more
// Returns how many older messages were prepended so the caller can keep its
// scroll position.
func (h *ConversationHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))
	added, err := h.messages.LoadMessages(r.Context(), id, false)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loadMoreResponse{Added: added, MessagesView: h.store.Messages()})
}

// Send handles POST /conversations/{id}/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))

	var req sendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messages.SendMessage(r.Context(), id, req.Content)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// SendToRecipient handles POST /messages
// Starts or continues a conversation with a user by id.
func (h *ConversationHandler) SendToRecipient(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.RecipientID == "" {
		httputil.WriteBadRequest(w, "recipientId is required")
		return
	}

	msg, err := h.messages.SendToRecipient(r.Context(), req.RecipientID, req.Content)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// Typing handles POST /conversations/{id}/typing
// One call per keystroke; start/stop events are derived from the burst.
func (h *ConversationHandler) Typing(w http.ResponseWriter, r *http.Request) {
	id := model.ID(chi.URLParam(r, "id"))
	if err := h.messages.Keystroke(id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkRead handles POST /conversations/{id}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.messages.MarkRead(r.Context(), model.ID(chi.URLParam(r, "id")))
	w.WriteHeader(http.StatusNoContent)
}
