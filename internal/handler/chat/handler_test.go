package chat

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/autama/autama/backend/internal/middleware"
	"github.com/autama/autama/backend/internal/model/chat"
	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/model/user"
	"github.com/autama/autama/backend/internal/nucleus"
	chatservice "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/internal/service/engine"
)

type cannedModel struct {
	tok   nucleus.Tokenizer
	reply string
}

func (m cannedModel) Sample(context.Context, nucleus.Persona, []nucleus.Utterance, nucleus.SamplingConfig) ([]int, error) {
	return m.tok.Encode(m.reply)
}

var (
	alice = user.User{ID: "u-alice", Username: "alice"}
	bob   = user.User{ID: "u-bob", Username: "bob"}
	staff = user.User{ID: "u-root", Username: "root", IsStaff: true}
)

func setupRouter() (*chi.Mux, *chatservice.Service) {
	tok := nucleus.NewWordTokenizer(nil)
	eng := engine.NewFromParts("", tok, cannedModel{tok: tok, reply: "nice to meet you"}, nucleus.DefaultSamplingConfig(), nil)
	chatSvc := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), chat.NewMemoryMessageStore(), eng, 0)

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc
}

func send(r http.Handler, method, target, body string, u *user.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), *u))
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler, u *user.User) chat.Session {
	t.Helper()
	resp := send(r, http.MethodPost, "/session", `{"personaId":"`+persona.Seed()[0].ID+`"}`, u)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var session chat.Session
	if err := sonic.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _ := setupRouter()
	session := createSession(t, r, &alice)
	if session.UserID != alice.ID || session.PersonaID != persona.Seed()[0].ID {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter()
	if resp := send(r, http.MethodPost, "/session", `{"personaId":"non-existent"}`, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := send(r, http.MethodPost, "/session", `{}`, nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestConverseReturnsTurn(t *testing.T) {
	r, _ := setupRouter()
	session := createSession(t, r, nil)

	resp := send(r, http.MethodPost, "/session/"+session.ID+"/converse", `{"message":"hello"}`, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var turn chatservice.Turn
	if err := sonic.Unmarshal(resp.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if turn.UserMessage.Content != "hello" || turn.Reply.Content != "nice to meet you" {
		t.Fatalf("unexpected turn %+v", turn)
	}

	resp = send(r, http.MethodGet, "/session/"+session.ID+"/messages", "", nil)
	var transcript []chat.Message
	if err := sonic.Unmarshal(resp.Body.Bytes(), &transcript); err != nil || len(transcript) != 2 {
		t.Fatalf("expected 2 recorded messages, got %s (err=%v)", resp.Body.String(), err)
	}
}

func TestConverseRejectsBadInput(t *testing.T) {
	r, _ := setupRouter()
	session := createSession(t, r, nil)

	if resp := send(r, http.MethodPost, "/session/"+session.ID+"/converse", `{"message":"   "}`, nil); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank message, got %d", resp.Code)
	}
	if resp := send(r, http.MethodPost, "/session/missing/converse", `{"message":"hi"}`, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSessionOwnership(t *testing.T) {
	r, _ := setupRouter()
	session := createSession(t, r, &alice)

	if resp := send(r, http.MethodPost, "/session/"+session.ID+"/converse", `{"message":"hi"}`, &bob); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", resp.Code)
	}
	if resp := send(r, http.MethodGet, "/session/"+session.ID, "", nil); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous caller, got %d", resp.Code)
	}
	if resp := send(r, http.MethodGet, "/session/"+session.ID, "", &alice); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", resp.Code)
	}
}

func TestCloseSessionKeepsTranscript(t *testing.T) {
	r, _ := setupRouter()
	session := createSession(t, r, &alice)
	send(r, http.MethodPost, "/session/"+session.ID+"/converse", `{"message":"hi"}`, &alice)

	if resp := send(r, http.MethodDelete, "/session/"+session.ID, "", &alice); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := send(r, http.MethodPost, "/session/"+session.ID+"/converse", `{"message":"hi"}`, &alice); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", resp.Code)
	}

	if resp := send(r, http.MethodGet, "/session/"+session.ID+"/messages", "", &bob); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's transcript, got %d", resp.Code)
	}
	resp := send(r, http.MethodGet, "/session/"+session.ID+"/messages", "", &alice)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "nice to meet you") {
		t.Fatalf("unexpected transcript %d %s", resp.Code, resp.Body.String())
	}
}

func TestListMessagesVisibility(t *testing.T) {
	r, _ := setupRouter()
	mine := createSession(t, r, &alice)
	theirs := createSession(t, r, &bob)
	send(r, http.MethodPost, "/session/"+mine.ID+"/converse", `{"message":"from alice"}`, &alice)
	send(r, http.MethodPost, "/session/"+theirs.ID+"/converse", `{"message":"from bob"}`, &bob)

	if resp := send(r, http.MethodGet, "/messages", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	var list []chat.Message
	resp := send(r, http.MethodGet, "/messages", "", &alice)
	if err := sonic.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || strings.Contains(resp.Body.String(), "from bob") {
		t.Fatalf("alice should only see her own messages: %s", resp.Body.String())
	}

	resp = send(r, http.MethodGet, "/messages", "", &staff)
	if err := sonic.Unmarshal(resp.Body.Bytes(), &list); err != nil || len(list) != 4 {
		t.Fatalf("staff should see all messages: %s", resp.Body.String())
	}

	resp = send(r, http.MethodGet, "/messages?session="+theirs.ID, "", &staff)
	if err := sonic.Unmarshal(resp.Body.Bytes(), &list); err != nil || len(list) != 2 || list[0].SessionID != theirs.ID {
		t.Fatalf("expected bob's session only: %s", resp.Body.String())
	}
}
