package telegram

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []map[string]string
	failSend bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Recorder","username":"recorder_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failSend {
				io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
				return
			}
			f.mu.Lock()
			f.sent = append(f.sent, map[string]string{
				"chat_id": r.PostForm.Get("chat_id"),
				"text":    r.PostForm.Get("text"),
			})
			f.mu.Unlock()
			io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":1760745600,"chat":{"id":-100123,"type":"channel"},"text":"ok"}}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestNotifier(t *testing.T, chatID string) (*Notifier, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := NewNotifier("123:abc", chatID, srv.Client(), srv.URL+"/bot%s/%s", logger)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	return n, fake
}

func TestSendNumericChat(t *testing.T) {
	n, fake := newTestNotifier(t, "-100123")

	if err := n.Send("📊 report"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fake.sent))
	}
	if fake.sent[0]["chat_id"] != "-100123" || fake.sent[0]["text"] != "📊 report" {
		t.Errorf("sent = %v", fake.sent[0])
	}
}

func TestSendChannel(t *testing.T) {
	n, fake := newTestNotifier(t, "@market_daily")

	if err := n.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fake.sent[0]["chat_id"] != "@market_daily" {
		t.Errorf("chat_id = %q, want @market_daily", fake.sent[0]["chat_id"])
	}
}

func TestSendTruncatesLongText(t *testing.T) {
	n, fake := newTestNotifier(t, "1")

	if err := n.Send(strings.Repeat("✅", maxMessageLen+10)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := len([]rune(fake.sent[0]["text"])); got != maxMessageLen {
		t.Errorf("text length = %d runes, want %d", got, maxMessageLen)
	}
}

func TestSendAPIError(t *testing.T) {
	n, fake := newTestNotifier(t, "1")
	fake.failSend = true

	err := n.Send("hello")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("err = %v, want chat not found", err)
	}
}

func TestNewNotifierValidation(t *testing.T) {
	if _, err := NewNotifier("", "1", nil, "", nil); err == nil {
		t.Error("empty token: expected error")
	}
	if _, err := NewNotifier("123:abc", " ", nil, "", nil); err != ErrNoChat {
		t.Errorf("empty chat: err = %v, want ErrNoChat", err)
	}

	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	if _, err := NewNotifier("123:abc", "not-a-number", srv.Client(), srv.URL+"/bot%s/%s", nil); err == nil {
		t.Error("bad chat id: expected error")
	}
}
