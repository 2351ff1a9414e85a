package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/autama/autama/backend/internal/handler/httperr"
	"github.com/autama/autama/backend/internal/middleware"
	"github.com/autama/autama/backend/internal/model/persona"
	chatservice "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler WebSocket对话处理器
type WebSocketHandler struct {
	chatSvc      *chatservice.Service
	personaStore persona.Store
	upgrader     websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service, personaStore persona.Store) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteMessage(websocket.TextMessage, data)
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	u, _ := middleware.UserFrom(r.Context())

	session, err := h.chatSvc.Authorize(r.Context(), sessionID, u.ID)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	p, err := h.personaStore.FindByID(r.Context(), session.PersonaID)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	c := &conn{Conn: ws}
	defer c.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c.SetReadLimit(utils.MaxBodyBytes)
	_ = c.SetReadDeadline(time.Now().Add(readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, c)

	h.sendInfo(c, sessionID, map[string]any{
		"type":    "connected",
		"persona": p.ID,
		"name":    p.Name,
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.sendError(c, "invalid message")
			continue
		}
		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(c, "session mismatch")
			continue
		}

		h.handleMessage(ctx, c, sessionID, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, c *conn, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, c, sessionID, msg.Data)
	case "history":
		h.handleHistory(ctx, c, sessionID)
	case "ping":
		if err := c.writeJSON(outgoingMessage{Type: "pong", SessionID: sessionID, Timestamp: time.Now().Unix()}); err != nil {
			log.Printf("[websocket] write pong failed: %v", err)
		}
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, c *conn, sessionID string, raw json.RawMessage) {
	var text TextMessage
	if err := sonic.Unmarshal(raw, &text); err != nil {
		h.sendError(c, "invalid text payload")
		return
	}
	if strings.TrimSpace(text.Text) == "" {
		h.sendError(c, "text is required")
		return
	}

	turn, err := h.chatSvc.Converse(ctx, sessionID, text.Text)
	if err != nil {
		if httperr.Status(err) == http.StatusInternalServerError {
			log.Printf("[websocket] converse failed session=%s: %v", sessionID, err)
			h.sendError(c, "internal server error")
			return
		}
		h.sendError(c, err.Error())
		return
	}

	h.sendInfo(c, sessionID, map[string]any{
		"type":        "reply",
		"userMessage": turn.UserMessage,
		"reply":       turn.Reply,
	})
}

func (h *WebSocketHandler) handleHistory(ctx context.Context, c *conn, sessionID string) {
	messages, err := h.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.sendInfo(c, sessionID, map[string]any{
		"type":     "history",
		"messages": messages,
	})
}

func (h *WebSocketHandler) sendInfo(c *conn, sessionID string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		log.Printf("[websocket] write info failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(c *conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
