package live

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/autama/autama/backend/internal/model/chat"
	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/nucleus"
	chatservice "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/internal/service/engine"
	"github.com/autama/autama/backend/pkg/utils"
)

type cannedModel struct {
	tok nucleus.Tokenizer
}

func (m cannedModel) Sample(context.Context, nucleus.Persona, []nucleus.Utterance, nucleus.SamplingConfig) ([]int, error) {
	return m.tok.Encode("i am listening")
}

func startServer(t *testing.T) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	tok := nucleus.NewWordTokenizer(nil)
	eng := engine.NewFromParts("", tok, cannedModel{tok: tok}, nucleus.DefaultSamplingConfig(), nil)
	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(store, chat.NewMemoryMessageStore(), eng, 0)

	r := chi.NewRouter()
	NewWebSocketHandler(chatSvc, store).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial err: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) outgoingMessage {
	t.Helper()
	var msg outgoingMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON err: %v", err)
	}
	return msg
}

func TestWebSocketConversation(t *testing.T) {
	srv, chatSvc := startServer(t)
	session, err := chatSvc.CreateSession(context.Background(), persona.Seed()[1].ID, "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	ws := dial(t, srv, session.ID)

	hello := readMessage(t, ws)
	data, _ := hello.Data.(map[string]interface{})
	if hello.Type != "result" || data["type"] != "connected" || data["persona"] != persona.Seed()[1].ID {
		t.Fatalf("unexpected greeting %+v", hello)
	}

	if err := ws.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "hello"}}); err != nil {
		t.Fatalf("WriteJSON err: %v", err)
	}
	reply := readMessage(t, ws)
	data, _ = reply.Data.(map[string]interface{})
	if data["type"] != "reply" {
		t.Fatalf("expected reply, got %+v", reply)
	}
	replyMsg, _ := data["reply"].(map[string]interface{})
	if replyMsg["content"] != "i am listening" {
		t.Fatalf("unexpected reply payload %+v", data)
	}

	if err := ws.WriteJSON(map[string]any{"type": "history"}); err != nil {
		t.Fatalf("WriteJSON err: %v", err)
	}
	history := readMessage(t, ws)
	data, _ = history.Data.(map[string]interface{})
	if messages, _ := data["messages"].([]interface{}); len(messages) != 2 {
		t.Fatalf("expected 2 recorded messages, got %+v", data)
	}
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	srv, chatSvc := startServer(t)
	session, _ := chatSvc.CreateSession(context.Background(), persona.Seed()[0].ID, "")
	ws := dial(t, srv, session.ID)
	readMessage(t, ws)

	cases := []map[string]any{
		{"type": "dance"},
		{"type": "text", "sessionId": "other"},
		{"type": "text", "data": map[string]string{"text": "  "}},
	}
	for _, msg := range cases {
		if err := ws.WriteJSON(msg); err != nil {
			t.Fatalf("WriteJSON err: %v", err)
		}
		if got := readMessage(t, ws); got.Type != "error" {
			t.Fatalf("%v: expected error, got %+v", msg, got)
		}
	}
}

func TestWebSocketClosesOnOversizedFrame(t *testing.T) {
	srv, chatSvc := startServer(t)
	session, _ := chatSvc.CreateSession(context.Background(), persona.Seed()[0].ID, "")
	ws := dial(t, srv, session.ID)
	readMessage(t, ws)

	// the server may drop the connection before the whole frame is written
	big := strings.Repeat("a", utils.MaxBodyBytes+1)
	if err := ws.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": big}}); err != nil {
		return
	}
	_, data, err := ws.ReadMessage()
	if err == nil {
		t.Fatalf("expected connection to close, got message %s", data)
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseMessageTooBig {
		t.Fatalf("expected close 1009, got %d", closeErr.Code)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv, _ := startServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %+v", resp)
	}
}
