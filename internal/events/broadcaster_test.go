package events

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestSubscriberCount(t *testing.T) {
	b := NewBroadcaster()
	a, c := b.Subscribe(), b.Subscribe()

	for _, step := range []struct {
		unsubscribe chan Event
		want        int
	}{
		{nil, 2},
		{a, 1},
		{a, 1}, // repeat is a no-op
		{c, 0},
	} {
		if step.unsubscribe != nil {
			b.Unsubscribe(step.unsubscribe)
		}
		if got := b.Count(); got != step.want {
			t.Fatalf("Count() = %d, want %d", got, step.want)
		}
	}
	if _, open := <-a; open {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestPublishDelivers(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventFolderUnlocked, UserID: "u1", FolderID: "f2"})

	var got Event
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	if got.Type != EventFolderUnlocked || got.FolderID != "f2" || got.UserID != "u1" {
		t.Errorf("got %+v", got)
	}
	if got.ID == "" || got.Timestamp == 0 {
		t.Errorf("Publish should stamp id and timestamp: %+v", got)
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 200; i++ {
		b.Publish(Event{Type: EventFileUploaded, UserID: "u1"})
	}
	if len(ch) != 64 {
		t.Errorf("buffered %d events, want 64", len(ch))
	}
}

func TestBroadcasterRecent(t *testing.T) {
	b := NewBroadcaster()
	for i := 0; i < 150; i++ {
		b.Publish(Event{Type: EventAdminLogin, UserID: fmt.Sprintf("u%d", i)})
	}

	recent := b.Recent()
	if len(recent) != 100 {
		t.Fatalf("Recent returned %d events, want 100", len(recent))
	}
	if recent[0].UserID != "u50" || recent[99].UserID != "u149" {
		t.Errorf("Recent order: first=%s last=%s", recent[0].UserID, recent[99].UserID)
	}
}

func TestNilBroadcasterPublish(t *testing.T) {
	var b *Broadcaster
	b.Publish(Event{Type: EventAdminLogin})
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(Event{ID: "e1", Type: EventSessionExpired, UserID: "u1", Timestamp: 42})
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["type"] != EventSessionExpired || m["user_id"] != "u1" {
		t.Errorf("unexpected JSON %s", data)
	}
	if _, ok := m["folder_id"]; ok {
		t.Error("empty folder_id should be omitted")
	}
}
