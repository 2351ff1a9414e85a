package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autama/autama/backend/internal/handler/httperr"
	"github.com/autama/autama/backend/internal/middleware"
	"github.com/autama/autama/backend/internal/model/chat"
	"github.com/autama/autama/backend/internal/model/user"
	chatService "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleCloseSession)
		r.Post("/converse", h.handleConverse)
		r.Get("/messages", h.handleTranscript)
	})
	r.With(middleware.RequireUser).Get("/messages", h.handleListMessages)
}

// currentUserID returns the caller's id, empty for anonymous requests.
func currentUserID(r *http.Request) string {
	u, _ := middleware.UserFrom(r.Context())
	return u.ID
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), strings.TrimSpace(payload.PersonaID), currentUserID(r))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.Authorize(r.Context(), chi.URLParam(r, "sessionID"), currentUserID(r))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.Authorize(r.Context(), sessionID, currentUserID(r)); err != nil {
		httperr.Write(w, err)
		return
	}
	if err := h.chatSvc.CloseSession(r.Context(), sessionID); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConverse 处理一轮对话
func (h *Handler) handleConverse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.chatSvc.Authorize(r.Context(), sessionID, currentUserID(r)); err != nil {
		httperr.Write(w, err)
		return
	}

	turn, err := h.chatSvc.Converse(r.Context(), sessionID, payload.Message)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, turn)
}

// handleTranscript returns the recorded messages of one session, including
// sessions that have been closed.
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	_, err = h.chatSvc.Authorize(r.Context(), sessionID, currentUserID(r))
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		// closed session: ownership comes from the recorded messages
		if len(messages) > 0 && !visibleTo(messages[0], r) {
			httperr.Write(w, chatService.ErrForbidden)
			return
		}
	case err != nil:
		httperr.Write(w, err)
		return
	}

	if messages == nil {
		messages = []chat.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleListMessages lists recorded messages. Staff see every message,
// other users only their own. "?session=" narrows to one session.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFrom(r.Context())
	sessionID := r.URL.Query().Get("session")

	var (
		messages []chat.Message
		err      error
	)
	if sessionID != "" {
		messages, err = h.chatSvc.LoadTranscript(r.Context(), sessionID)
	} else {
		messages, err = h.chatSvc.ListMessages(r.Context())
	}
	if err != nil {
		httperr.Write(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, filterVisible(messages, u))
}

func visibleTo(m chat.Message, r *http.Request) bool {
	u, _ := middleware.UserFrom(r.Context())
	return m.UserID == "" || u.IsStaff || m.UserID == u.ID
}

func filterVisible(messages []chat.Message, u user.User) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if u.IsStaff || m.UserID == u.ID {
			out = append(out, m)
		}
	}
	return out
}
