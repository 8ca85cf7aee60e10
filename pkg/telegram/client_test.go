package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_SendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"ok":true,"result":{"message_id":42,"chat":{"id":7},"text":"hi"}}`)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", WithBaseURL(srv.URL), WithRate(0))
	id, err := c.SendMessage(context.Background(), 7, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != 42 {
		t.Fatalf("unexpected message id %d", id)
	}
	if got["text"] != "hi" || got["chat_id"].(float64) != 7 {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
		default:
			io.WriteString(w, `{"ok":false}`)
		}
	}))
	defer srv.Close()

	c := NewClient("TOKEN", WithBaseURL(srv.URL), WithRate(0))
	_, err := c.SendMessage(context.Background(), 1, "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api description in error, got %v", err)
	}
	if err := c.SetCommands(context.Background(), []BotCommand{{Command: "subscribe", Description: "d"}}); err == nil {
		t.Fatalf("expected not ok error")
	}
}

func TestClient_GetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("offset") != "11" || q.Get("timeout") != "2" {
			t.Errorf("unexpected query %v", q)
		}
		io.WriteString(w, `{"ok":true,"result":[
			{"update_id":11,"message":{"message_id":1,"from":{"id":5,"is_bot":false},"chat":{"id":9},"text":"/subscriptions"}},
			{"update_id":12}
		]}`)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", WithBaseURL(srv.URL), WithPollTimeout(2*time.Second))
	updates, err := c.GetUpdates(context.Background(), 11)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("unexpected updates %+v", updates)
	}
	m := updates[0].Message
	if m == nil || m.From == nil || m.From.ID != 5 || m.Chat.ID != 9 || m.Text != "/subscriptions" {
		t.Fatalf("unexpected message %+v", m)
	}
	if updates[1].Message != nil {
		t.Fatalf("expected empty update")
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", WithBaseURL(srv.URL), WithRate(0.001))
	if _, err := c.SendMessage(context.Background(), 1, "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.SendMessage(ctx, 1, "second"); err == nil {
		t.Fatalf("expected limiter to refuse within deadline")
	}
}
