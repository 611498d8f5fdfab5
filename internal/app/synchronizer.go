package app

import (
	"context"
	"log/slog"
	"sync"

	"pulse-chat/go-client/internal/platform/metrics"
	"pulse-chat/go-client/internal/platform/ratelimiter"
	"pulse-chat/go-client/internal/storage"
	"pulse-chat/go-client/pkg/models"
)

const defaultHubBacklog = 256

// Options wires the synchronizer's collaborators. Gateway and Push are
// required; everything else degrades to a no-op when absent.
type Options struct {
	Gateway     MessageGateway
	Push        PushChannel
	Store       *storage.CollectionStore
	Logger      *slog.Logger
	Metrics     *metrics.SyncMetrics
	SendLimiter *ratelimiter.KeyedLimiter
	HubBacklog  int
}

// activeRef is the copy of the active conversation's identity taken at
// activation time. Every "is this the open conversation" decision reads it;
// messages are always read from the collection, never from here.
type activeRef struct {
	set            bool
	conversationID string
	otherUserID    string
}

// Synchronizer owns the in-memory conversation collection. All mutations go
// through its operation methods and each one is a single atomic transition:
// the affected conversation is cloned, reworked, then swapped in, so readers
// only ever observe fully-applied states.
type Synchronizer struct {
	gateway MessageGateway
	push    PushChannel
	store   *storage.CollectionStore
	logger  *slog.Logger
	metrics *metrics.SyncMetrics
	limiter *ratelimiter.KeyedLimiter
	hub     *UpdateHub

	mu            sync.Mutex
	conversations []*models.Conversation
	active        activeRef
	started       bool
	unsubscribe   func()
}

func NewSynchronizer(opts Options) *Synchronizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backlog := opts.HubBacklog
	if backlog <= 0 {
		backlog = defaultHubBacklog
	}
	return &Synchronizer{
		gateway: opts.Gateway,
		push:    opts.Push,
		store:   opts.Store,
		logger:  logger,
		metrics: opts.Metrics,
		limiter: opts.SendLimiter,
		hub:     NewUpdateHub(backlog),
	}
}

// Start loads the local snapshot, subscribes to push-channel events and then
// replaces local state with a full fetch. A failed fetch is transient: the
// snapshot (possibly empty) stands until the next successful fetch.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if cached, err := s.store.Load(); err != nil {
		s.logger.Warn("local snapshot unreadable, starting empty", "error", err)
	} else if len(cached) > 0 {
		s.replaceCollection(cached, false)
	}

	if s.push != nil {
		unsubscribe, err := s.push.Subscribe(func(ev InboundEvent) {
			s.HandleEvent(ctx, ev)
		})
		if err != nil {
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
			return err
		}
		s.mu.Lock()
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial fetch failed, serving local snapshot", "error", err)
	}
	return nil
}

// Stop unsubscribes from the push channel and writes a final snapshot.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	snapshot := s.snapshotValuesLocked()
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if err := s.store.Save(snapshot); err != nil {
		s.logger.Warn("final snapshot write failed", "error", err)
	}
	return nil
}

// Refresh fetches the full conversation collection and replaces local state
// wholesale.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	fetched, err := s.gateway.FetchConversations(ctx)
	if err != nil {
		return categorized(CategoryTransientSync, err)
	}
	s.replaceCollection(fetched, true)
	return nil
}

// HandleEvent dispatches one inbound push-channel event. Inconsistent events
// are logged and dropped here; the synchronizer never propagates them as
// fatal.
func (s *Synchronizer) HandleEvent(ctx context.Context, ev InboundEvent) {
	var err error
	switch e := ev.(type) {
	case NewMessageEvent:
		err = s.IngestMessage(ctx, e)
	case ReadMessagesEvent:
		err = s.ApplyReadReceipts(ctx, e.Messages, e.ConversationID)
	case PresenceEvent:
		if e.Online {
			s.SetUserOnline(e.UserID)
		} else {
			s.SetUserOffline(e.UserID)
		}
	default:
		s.logger.Warn("unknown inbound event", "event", ev)
	}
	if err != nil {
		s.logger.Warn("inbound event dropped", "error", err)
	}
}

// Updates subscribes to change notifications starting after fromSeq.
func (s *Synchronizer) Updates(fromSeq int64) ([]Update, <-chan Update, func()) {
	return s.hub.Subscribe(fromSeq)
}

// Conversations returns a snapshot of the collection. The returned
// conversations are never mutated in place by the synchronizer; a later
// transition replaces the affected entry with a fresh clone, so entries that
// did not change keep their identity across snapshots.
func (s *Synchronizer) Conversations() []*models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Conversation(nil), s.conversations...)
}

// ActiveConversationID returns the active conversation's id copy, if any.
// The id is empty when the active conversation is an ephemeral placeholder.
func (s *Synchronizer) ActiveConversationID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.conversationID, s.active.set
}

func (s *Synchronizer) replaceCollection(conversations []models.Conversation, persist bool) {
	next := make([]*models.Conversation, 0, len(conversations))
	for i := range conversations {
		c := conversations[i].Clone()
		// The cached count is re-derived on load so a stale or hand-edited
		// snapshot cannot violate the unread invariant.
		c.UnreadMessageCount = c.CountUnread()
		next = append(next, c)
	}

	s.mu.Lock()
	s.conversations = next
	snapshot := s.snapshotValuesLocked()
	s.mu.Unlock()

	s.metrics.SetConversations(len(next))
	if persist {
		if err := s.store.Save(snapshot); err != nil {
			s.logger.Warn("snapshot write failed", "error", err)
		}
	}
	s.hub.Publish(UpdateConversationsReplaced, len(next))
}

// indexByConversationIDLocked matches by persisted id only; the absent id of
// an ephemeral conversation never matches anything.
func (s *Synchronizer) indexByConversationIDLocked(conversationID string) int {
	if conversationID == "" {
		return -1
	}
	for i, c := range s.conversations {
		if c.ID == conversationID {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) indexByOtherUserLocked(userID string) int {
	if userID == "" {
		return -1
	}
	for i, c := range s.conversations {
		if c.OtherUser.ID == userID {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) activeMatchesLocked(conversationID string) bool {
	return s.active.set && conversationID != "" && s.active.conversationID == conversationID
}

// applyMessageLocked applies one persisted message to a cloned conversation:
// unread accounting, the immediate-read rule for the open conversation, the
// last-read marker, the append and the cached latest text. It returns the
// messages that became read by arrival and must be acknowledged outward.
func (s *Synchronizer) applyMessageLocked(c *models.Conversation, msg models.Message) []models.Message {
	var newlyRead []models.Message
	if !msg.IsRead && msg.SenderID == c.OtherUser.ID {
		if s.activeMatchesLocked(c.ID) {
			// Receiving a message while its conversation is open means the
			// viewer saw it; flip it before it ever renders as unread.
			msg.IsRead = true
			newlyRead = append(newlyRead, msg)
		} else {
			c.UnreadMessageCount++
		}
	}
	if msg.IsRead && msg.SenderID != c.OtherUser.ID {
		last := msg
		c.LastReadMessage = &last
	}
	c.Messages = append(c.Messages, msg)
	c.LatestMessageText = msg.Text
	return newlyRead
}

func (s *Synchronizer) snapshotValuesLocked() []models.Conversation {
	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		// Ephemeral placeholders are search-session state, not chat state.
		if c.Ephemeral() {
			continue
		}
		out = append(out, *c)
	}
	return out
}
