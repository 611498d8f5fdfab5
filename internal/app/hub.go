package app

import (
	"sync"
	"time"
)

// Update kinds published by the synchronizer. Consumers subscribe for
// change notifications instead of watching the collection, which keeps the
// rendering layer's lifetime decoupled from the synchronizer's.
const (
	UpdateConversationsReplaced = "conversations.replaced"
	UpdateConversationChanged   = "conversation.updated"
	UpdatePresenceChanged       = "presence.changed"
	UpdateActiveChanged         = "active.changed"
)

// Update is one change notification. Seq increases monotonically so a
// re-subscribing consumer can ask for everything it missed.
type Update struct {
	Seq     int64
	Kind    string
	Payload any
	At      time.Time
}

// UpdateHub fans change notifications out to subscribers and keeps a bounded
// backlog for replay. A subscriber that stops draining its channel is dropped.
type UpdateHub struct {
	mu      sync.Mutex
	nextSeq int64
	limit   int
	backlog []Update
	subs    map[int]chan Update
	nextSub int
}

func NewUpdateHub(backlogLimit int) *UpdateHub {
	if backlogLimit < 1 {
		backlogLimit = 1
	}
	return &UpdateHub{
		limit: backlogLimit,
		subs:  make(map[int]chan Update),
	}
}

// Publish appends the update to the backlog and delivers it to every live
// subscriber without blocking.
func (h *UpdateHub) Publish(kind string, payload any) Update {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	u := Update{
		Seq:     h.nextSeq,
		Kind:    kind,
		Payload: payload,
		At:      time.Now().UTC(),
	}
	h.backlog = append(h.backlog, u)
	if len(h.backlog) > h.limit {
		h.backlog = append([]Update(nil), h.backlog[len(h.backlog)-h.limit:]...)
	}

	for id, ch := range h.subs {
		select {
		case ch <- u:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}
	return u
}

// Subscribe returns the retained updates newer than fromSeq, a channel for
// live ones, and a cancel function.
func (h *UpdateHub) Subscribe(fromSeq int64) ([]Update, <-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var replay []Update
	for _, u := range h.backlog {
		if u.Seq > fromSeq {
			replay = append(replay, u)
		}
	}

	id := h.nextSub
	h.nextSub++
	ch := make(chan Update, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return replay, ch, cancel
}

func (h *UpdateHub) BacklogSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.backlog)
}
