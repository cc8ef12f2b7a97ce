package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBotClientNotifyAndReply(t *testing.T) {
	type hit struct {
		path string
		body map[string]any
	}
	var hits []hit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		hits = append(hits, hit{path: r.URL.Path, body: body})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, time.Second)
	if err := c.Notify(context.Background(), -100, 42, "processed"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := c.Reply(context.Background(), -100, 42, "boom"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(hits))
	}
	if hits[0].path != "/api/sending/reactions" || hits[0].body["status"] != "processed" || hits[0].body["message_id"] != float64(42) {
		t.Fatalf("unexpected reaction request: %+v", hits[0])
	}
	if hits[1].path != "/api/sending/replies" || hits[1].body["text"] != "boom" {
		t.Fatalf("unexpected reply request: %+v", hits[1])
	}
}

func TestBotClientNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewBotClient(srv.URL, time.Second).Notify(context.Background(), 1, 2, "spam")
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestPubSubPublisher(t *testing.T) {
	var gotTopic string
	var gotEvent StatusEvent
	var gotAttrs map[string]string
	p := &PubSubPublisher{
		Topic: "message-status",
		Publish: func(ctx context.Context, topic string, obj interface{}, attrs map[string]string) (string, error) {
			gotTopic = topic
			gotEvent = obj.(StatusEvent)
			gotAttrs = attrs
			return "1", nil
		},
		Now: func() time.Time { return time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC) },
	}
	if err := p.Notify(context.Background(), 7, 8, "failed"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotTopic != "message-status" || gotEvent.Status != "failed" || gotEvent.Kind != "status" || gotAttrs["chat_id"] != "7" {
		t.Fatalf("unexpected publish: %s %+v %v", gotTopic, gotEvent, gotAttrs)
	}
}

type recordingRelay struct {
	notified int
	err      error
}

func (r *recordingRelay) Notify(ctx context.Context, chatID, threadID int64, status string) error {
	r.notified++
	return r.err
}

func (r *recordingRelay) Reply(ctx context.Context, chatID, threadID int64, text string) error {
	return r.err
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingRelay{}
	bad := &recordingRelay{err: errors.New("down")}
	m := Multi{bad, ok}

	err := m.Notify(context.Background(), 1, 2, "processed")
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if ok.notified != 1 || bad.notified != 1 {
		t.Fatalf("every relay should be called once")
	}
	if err := (Multi{ok}).Reply(context.Background(), 1, 2, "x"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
}
