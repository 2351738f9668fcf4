package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/dparedes/motiva/backend/internal/service/ai"
	service "github.com/dparedes/motiva/backend/internal/service/chat"
	"github.com/dparedes/motiva/backend/internal/store"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (c *fakeCompleter) Complete(_ context.Context, _ []*schema.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func setupRouter(t *testing.T, completer service.Completer) *chi.Mux {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := service.NewService(st, ai.NewAssembler(10), completer, 5*time.Second)
	handler := New(svc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createChat(t *testing.T, r http.Handler, userID string) string {
	t.Helper()
	resp := doJSON(t, r, http.MethodPost, "/chat/new", map[string]string{"userId": userID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var out struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return out.ChatID
}

func TestCreateChat(t *testing.T) {
	r := setupRouter(t, nil)

	chatID := createChat(t, r, "u1")
	if chatID == "" {
		t.Fatal("expected a chat id")
	}
}

func TestCreateChatMissingUserID(t *testing.T) {
	r := setupRouter(t, nil)

	resp := doJSON(t, r, http.MethodPost, "/chat/new", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetChatNotFound(t *testing.T) {
	r := setupRouter(t, nil)

	resp := doJSON(t, r, http.MethodGet, "/chat/missing", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDeleteChatIdempotent(t *testing.T) {
	r := setupRouter(t, nil)

	chatID := createChat(t, r, "u1")

	for i := 0; i < 2; i++ {
		resp := doJSON(t, r, http.MethodDelete, "/chat/"+chatID, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("delete attempt %d: expected 200, got %d", i+1, resp.Code)
		}
	}
}

func TestAppendAndListChats(t *testing.T) {
	r := setupRouter(t, nil)

	chatID := createChat(t, r, "u1")

	resp := doJSON(t, r, http.MethodPost, "/chat/"+chatID+"/message",
		map[string]string{"type": "user", "content": "hi"})
	if resp.Code != http.StatusOK {
		t.Fatalf("append user: expected 200, got %d", resp.Code)
	}
	resp = doJSON(t, r, http.MethodPost, "/chat/"+chatID+"/message",
		map[string]string{"type": "bot", "content": "hello!"})
	if resp.Code != http.StatusOK {
		t.Fatalf("append bot: expected 200, got %d", resp.Code)
	}

	resp = doJSON(t, r, http.MethodGet, "/user-chats/u1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.Code)
	}

	var out struct {
		Chats []struct {
			ChatID       string  `json:"chatId"`
			Title        string  `json:"title"`
			LastMessage  *string `json:"lastMessage"`
			MessageCount int     `json:"messageCount"`
		} `json:"chats"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(out.Chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(out.Chats))
	}

	got := out.Chats[0]
	if got.Title != "hi" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.LastMessage == nil || *got.LastMessage != "Bot: hello!" {
		t.Fatalf("unexpected last message: %v", got.LastMessage)
	}
	if got.MessageCount != 2 {
		t.Fatalf("unexpected message count: %d", got.MessageCount)
	}
}

func TestAppendUnknownRole(t *testing.T) {
	r := setupRouter(t, nil)

	chatID := createChat(t, r, "u1")
	resp := doJSON(t, r, http.MethodPost, "/chat/"+chatID+"/message",
		map[string]string{"type": "narrator", "content": "hi"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestClearChat(t *testing.T) {
	r := setupRouter(t, nil)

	chatID := createChat(t, r, "u1")
	doJSON(t, r, http.MethodPost, "/chat/"+chatID+"/message",
		map[string]string{"type": "user", "content": "hi"})

	resp := doJSON(t, r, http.MethodDelete, "/chat/"+chatID+"/messages", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", resp.Code)
	}

	resp = doJSON(t, r, http.MethodGet, "/chat/"+chatID, nil)
	var out struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(out.Messages) != 0 {
		t.Fatalf("expected empty transcript, got %d messages", len(out.Messages))
	}
}

func TestLegacyHistoryEmptyWithoutSession(t *testing.T) {
	r := setupRouter(t, nil)

	resp := doJSON(t, r, http.MethodGet, "/chat-history/nobody", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var out struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(out.Messages))
	}
}

func TestSubmitTurn(t *testing.T) {
	r := setupRouter(t, &fakeCompleter{reply: "stay strong!"})

	chatID := createChat(t, r, "u1")
	resp := doJSON(t, r, http.MethodPost, "/chatbot",
		map[string]string{"message": "I feel down", "chatId": chatID})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if out.Reply != "stay strong!" {
		t.Fatalf("unexpected reply: %q", out.Reply)
	}
}

func TestSubmitTurnNoAddress(t *testing.T) {
	r := setupRouter(t, &fakeCompleter{reply: "x"})

	resp := doJSON(t, r, http.MethodPost, "/chatbot", map[string]string{"message": "hi"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSubmitTurnUpstreamFailureReturnsFallback(t *testing.T) {
	r := setupRouter(t, &fakeCompleter{err: errors.New("timeout")})

	chatID := createChat(t, r, "u1")
	resp := doJSON(t, r, http.MethodPost, "/chatbot",
		map[string]string{"message": "hi", "chatId": chatID})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}

	var out struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", out.Reply)
	}
	if out.Error == "" {
		t.Fatal("expected an error field")
	}

	// The failed turn must not have been recorded.
	resp = doJSON(t, r, http.MethodGet, "/chat/"+chatID, nil)
	var transcript struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript.Messages) != 0 {
		t.Fatalf("expected no persisted messages, got %d", len(transcript.Messages))
	}
}

func TestSubmitTurnWithoutCompleter(t *testing.T) {
	r := setupRouter(t, nil)

	chatID := createChat(t, r, "u1")
	resp := doJSON(t, r, http.MethodPost, "/chatbot",
		map[string]string{"message": "hi", "chatId": chatID})
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestSubmitTurnLegacyOwnerAddressing(t *testing.T) {
	r := setupRouter(t, &fakeCompleter{reply: "welcome back"})

	resp := doJSON(t, r, http.MethodPost, "/chatbot",
		map[string]string{"message": "hi", "userId": "legacy-u"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	// The owner-keyed turn landed in the legacy session.
	resp = doJSON(t, r, http.MethodGet, "/chat-history/legacy-u", nil)
	var out struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out.Messages))
	}
	if out.Messages[0].Role != "user" || out.Messages[0].Content != "hi" {
		t.Fatalf("unexpected first message: %+v", out.Messages[0])
	}
	if out.Messages[1].Role != "assistant" || out.Messages[1].Content != "welcome back" {
		t.Fatalf("unexpected second message: %+v", out.Messages[1])
	}
}
