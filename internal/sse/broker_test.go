package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: DeckCreated, Data: map[string]string{"path": "a.deck"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\n") {
			t.Errorf("missing id in %q", s)
		}
		if !strings.Contains(s, "event: deck.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.deck"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDeckEvent_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDeckEvent(DeckCreated, "a.deck")
	b.PublishDeckEvent(DeckUpdated, "b.deck")

	time.Sleep(50 * time.Millisecond)
	graphCount := 0
	deckCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), GraphUpdated) {
				graphCount++
			} else {
				deckCount++
			}
		default:
			break loop
		}
	}

	if deckCount != 2 {
		t.Errorf("deck events = %d, want 2", deckCount)
	}
	if graphCount != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graphCount)
	}
}

func TestHeartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(10*time.Millisecond))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case msg := <-ch:
		if string(msg) != ": ping\n\n" {
			t.Errorf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: DeckUpdated, Data: map[string]string{"path": "x.deck"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.Body.String(); !strings.Contains(body, "event: deck.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// capacity is 64; the extra publishes must not block
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: DeckUpdated, Data: map[string]string{"path": "x.deck"}})
	b.PublishDeckEvent(DeckUpdated, "x.deck")
}

func TestEncode(t *testing.T) {
	raw, err := Encode(0, Event{Type: LayoutDone, Data: []int{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "event: layout.done\ndata: [1,2]\n\n" {
		t.Errorf("got %q", raw)
	}

	if _, err := Encode(1, Event{Type: "bad", Data: make(chan int)}); err == nil {
		t.Error("expected marshal error")
	}
}

type noFlush struct{ http.ResponseWriter }

func TestStream(t *testing.T) {
	rec := httptest.NewRecorder()
	write, err := Stream(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := write(Event{Type: LayoutFrame, Data: map[string]int{"n": 1}}); err != nil {
		t.Fatal(err)
	}
	if err := write(Event{Type: LayoutDone, Data: map[string]int{}}); err != nil {
		t.Fatal(err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := "id: 1\nevent: layout.frame\ndata: {\"n\":1}\n\nid: 2\nevent: layout.done\ndata: {}\n\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q", rec.Body.String())
	}

	if _, err := Stream(noFlush{rec}); err == nil {
		t.Error("expected error for non-flushing writer")
	}
}
