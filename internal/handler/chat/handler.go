package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dparedes/motiva/backend/internal/model/chat"
	chatService "github.com/dparedes/motiva/backend/internal/service/chat"
	"github.com/dparedes/motiva/backend/internal/store"
	"github.com/dparedes/motiva/backend/pkg/utils"
)

// fallbackReply is returned to the end user when the completion upstream
// fails; it is never persisted as an assistant message.
const fallbackReply = "I'm having trouble finding the right words right now. Please try again in a moment."

// Handler exposes the chat subsystem over HTTP.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the chat handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes registers all chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/new", h.handleCreateChat)
	r.Get("/chat/{chatID}", h.handleGetChat)
	r.Delete("/chat/{chatID}", h.handleDeleteChat)
	r.Post("/chat/{chatID}/message", h.handleAppendMessage)
	r.Delete("/chat/{chatID}/messages", h.handleClearChat)
	r.Get("/user-chats/{userID}", h.handleListChats)
	r.Get("/chat-history/{userID}", h.handleLegacyHistory)
	r.Delete("/chat-history/{userID}", h.handleLegacyDelete)
	r.Post("/chatbot", h.handleSubmitTurn)
}

func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.UserID)
	if errors.Is(err, store.ErrOwnerRequired) {
		utils.RespondError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	if err != nil {
		log.Printf("[chat] create session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create new chat")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"chatId": session.ID})
}

func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	messages, err := h.chatSvc.Transcript(r.Context(), chatID)
	if errors.Is(err, store.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		log.Printf("[chat] fetch transcript failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch chat")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if err := h.chatSvc.DeleteSession(r.Context(), chatID); err != nil {
		log.Printf("[chat] delete session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var payload struct {
		Type    string `json:"type"`
		Content string `json:"content"`
		Image   string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, ok := roleFromWire(payload.Type)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown message type")
		return
	}

	msg := chat.Message{
		Role:       role,
		Content:    payload.Content,
		Attachment: payload.Image,
	}

	err := h.chatSvc.AppendMessage(r.Context(), chatID, msg)
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, chatService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Printf("[chat] append failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save message")
	default:
		utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (h *Handler) handleClearChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	err := h.chatSvc.ClearSession(r.Context(), chatID)
	if errors.Is(err, store.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		log.Printf("[chat] clear failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear chat messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	summaries, err := h.chatSvc.ListSessions(r.Context(), userID)
	if err != nil {
		log.Printf("[chat] list sessions failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch chats")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": summaries})
}

func (h *Handler) handleLegacyHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	messages, err := h.chatSvc.LegacyTranscript(r.Context(), userID)
	if err != nil {
		log.Printf("[chat] legacy history failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch chat history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleLegacyDelete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.chatSvc.DeleteLegacySession(r.Context(), userID); err != nil {
		log.Printf("[chat] legacy delete failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear chat history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
		ChatID  string `json:"chatId"`
		UserID  string `json:"userId"`
		Image   string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	addr, err := chat.NewAddress(payload.ChatID, payload.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.chatSvc.SubmitTurn(r.Context(), addr, payload.Message, payload.Image)
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, chatService.ErrCompletionDisabled):
		utils.RespondError(w, http.StatusServiceUnavailable, "assistant unavailable")
	case errors.Is(err, chatService.ErrUpstream):
		utils.RespondJSON(w, http.StatusBadGateway, map[string]string{
			"error": "assistant temporarily unavailable",
			"reply": fallbackReply,
		})
	case err != nil:
		log.Printf("[chat] submit turn failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
	default:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

func roleFromWire(wire string) (chat.Role, bool) {
	switch wire {
	case "user":
		return chat.RoleUser, true
	case "bot", "assistant":
		// Older clients send "bot" for assistant turns.
		return chat.RoleAssistant, true
	default:
		return "", false
	}
}
