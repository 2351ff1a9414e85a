package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autama/autama/backend/internal/handler/httperr"
	"github.com/autama/autama/backend/internal/middleware"
	"github.com/autama/autama/backend/internal/model/chat"
	"github.com/autama/autama/backend/internal/model/persona"
	chatService "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/pkg/utils"
)

// Handler delivers conversation turns via Server-Sent Events
type Handler struct {
	chatSvc  *chatService.Service
	personas persona.Store
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, personas persona.Store) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		personas: personas,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string            `json:"event"`
	Content   string            `json:"content,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Turn      *chatService.Turn `json:"turn,omitempty"`
	Finished  bool              `json:"finished,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")
	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	u, _ := middleware.UserFrom(r.Context())
	session, err := h.chatSvc.Authorize(r.Context(), sessionID, u.ID)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, session, userMessage); err != nil {
		log.Printf("[stream] error handling request: %v", err)
	}
}

// HandleStreamRequest runs one conversation turn and reports it as a
// start, delta..., message, end event sequence. Failures after the stream
// opened are sent as an error event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, session chat.Session, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	p, err := h.personas.FindByID(ctx, session.PersonaID)
	if err != nil {
		httperr.Write(w, err)
		return fmt.Errorf("failed to get session persona: %w", err)
	}

	utils.SetupSSEHeaders(w)

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: session.ID,
		Content:   p.Name,
	})

	turn, err := h.chatSvc.Converse(ctx, session.ID, userMessage)
	if err != nil {
		h.sendSSEError(w, flusher, session.ID, err)
		return err
	}

	for _, word := range strings.Fields(turn.Reply.Content) {
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: session.ID,
			Content:   word,
		})
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: session.ID,
		Content:   turn.Reply.Content,
		Turn:      &turn,
	})

	// Send completion signal
	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: session.ID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s, persona=%s", session.ID, p.ID)
	return nil
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEEvent(w, flusher, response.Event, response); err != nil {
		log.Printf("[stream] failed to send %s event: %v", response.Event, err)
	}
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, sessionID string, err error) {
	message := err.Error()
	if httperr.Status(err) == http.StatusInternalServerError {
		message = "internal server error"
	}
	h.sendSSE(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     message,
	})
}
