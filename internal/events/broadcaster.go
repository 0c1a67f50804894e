// Package events fans audit events out to SSE subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foldergate/foldergate/internal/metrics"
)

const (
	EventAdminLogin          = "admin_login"
	EventAdminLoginFailed    = "admin_login_failed"
	EventFolderUnlocked      = "folder_unlocked"
	EventFolderDenied        = "folder_denied"
	EventDirectAccessGranted = "direct_access_granted"
	EventDirectAccessDenied  = "direct_access_denied"
	EventCredentialsChanged  = "credentials_changed"
	EventFileUploaded        = "file_uploaded"
	EventSessionFinished     = "session_finished"
	EventSessionExpired      = "session_expired"
)

const (
	// recentSize is how many events Recent can return.
	recentSize = 100

	subscriberBuffer = 64
)

// Event is an audit record. It never carries a secret.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	FolderID  string `json:"folder_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster fans audit events out to subscribed channels and keeps a
// short history for late readers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}

	recentMu sync.Mutex
	recent   []Event
	next     int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		recent: make([]Event, 0, recentSize),
	}
}

// Subscribe registers a buffered channel that receives every later event.
// Release it with Unsubscribe.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	metrics.SetAuditSubscribers(b.Count())
	return ch
}

// Unsubscribe drops ch and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
	metrics.SetAuditSubscribers(b.Count())
}

// Publish stamps event with an id and time, records it, and offers it to
// each subscriber. Full subscriber buffers miss the event. Publishing on a
// nil Broadcaster is a no-op.
func (b *Broadcaster) Publish(event Event) {
	if b == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	b.remember(event)

	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	b.mu.RUnlock()
	metrics.RecordAuditEvent(event.Type)
}

func (b *Broadcaster) remember(event Event) {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()
	if len(b.recent) < recentSize {
		b.recent = append(b.recent, event)
		return
	}
	b.recent[b.next] = event
	b.next = (b.next + 1) % recentSize
}

// Recent returns up to the last 100 events, oldest first.
func (b *Broadcaster) Recent() []Event {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()
	out := make([]Event, 0, len(b.recent))
	out = append(out, b.recent[b.next:]...)
	out = append(out, b.recent[:b.next]...)
	return out
}

// Count reports how many channels are subscribed.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return n
}

// MarshalEvent encodes e as the JSON payload of an SSE data line.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
