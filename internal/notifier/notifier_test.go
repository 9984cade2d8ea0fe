package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"MarketArchive/internal/recorder"
)

func TestSend_PostsHTMLMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", srv.Client())
	tn.APIURL = srv.URL
	if err := tn.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "<b>hi</b>" || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSendWithRetry_GivesUp(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"ok":false}`, http.StatusForbidden)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", srv.Client())
	tn.APIURL = srv.URL
	err := tn.SendWithRetry(context.Background(), "x", 0)
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Errorf("expected 403 error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestStartPolling_OnlyConfiguredChat(t *testing.T) {
	var mu sync.Mutex
	served := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if served {
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
			return
		}
		served = true
		fmt.Fprint(w, `{"ok":true,"result":[
			{"update_id":1,"message":{"text":"/collect","chat":{"id":999}}},
			{"update_id":2,"message":{"text":" /status ","chat":{"id":42}}}
		]}`)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", srv.Client())
	tn.APIURL = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var commands []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		tn.StartPolling(ctx, func(_ context.Context, cmd string) string {
			commands = append(commands, cmd)
			cancel()
			return ""
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	if len(commands) != 1 || commands[0] != "/status" {
		t.Errorf("expected only /status from chat 42, got %v", commands)
	}
}

func TestFormatCycleAlert(t *testing.T) {
	evt := &recorder.CycleEvent{
		RunID:     "run-1",
		StartedAt: time.Date(2024, 2, 14, 8, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Market:    true,
		Error:     "financial: <panic>",
	}
	msg := FormatCycleAlert("financial exhausted all sources", evt)
	for _, want := range []string{"run-1", "2024-02-14 08:00", "1m30s", "Market: ✅", "Financial: ❌", "&lt;panic&gt;"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %s", want, msg)
		}
	}
}

func TestFormatStatus_NoCycle(t *testing.T) {
	msg := FormatStatus(nil, time.Time{})
	if !strings.Contains(msg, "No cycle") || strings.Contains(msg, "Next run") {
		t.Errorf("unexpected status %s", msg)
	}
}
