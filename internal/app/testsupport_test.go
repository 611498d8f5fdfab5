package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"pulse-chat/go-client/pkg/models"
)

type fakeGateway struct {
	mu         sync.Mutex
	createFn   func(models.SendRequest) (models.SendResult, error)
	markErr    error
	markCalls  [][]models.Message
	fetchConvs []models.Conversation
	fetchErr   error
}

func (g *fakeGateway) CreateMessage(_ context.Context, req models.SendRequest) (models.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createFn == nil {
		return models.SendResult{}, errors.New("no createFn configured")
	}
	return g.createFn(req)
}

func (g *fakeGateway) MarkMessagesRead(_ context.Context, messages []models.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markCalls = append(g.markCalls, append([]models.Message(nil), messages...))
	return g.markErr
}

func (g *fakeGateway) FetchConversations(_ context.Context) ([]models.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetchConvs, g.fetchErr
}

func (g *fakeGateway) markedBatches() [][]models.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]models.Message(nil), g.markCalls...)
}

type broadcastRecord struct {
	Message     models.Message
	RecipientID string
	Sender      *models.User
}

type receiptRecord struct {
	Messages       []models.Message
	ConversationID string
}

type fakePush struct {
	mu         sync.Mutex
	handler    func(InboundEvent)
	subscribed bool
	broadcasts []broadcastRecord
	receipts   []receiptRecord
	emitErr    error
}

func (p *fakePush) Subscribe(handler func(InboundEvent)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
	p.subscribed = true
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.subscribed = false
	}, nil
}

func (p *fakePush) BroadcastNewMessage(_ context.Context, msg models.Message, recipientID string, sender *models.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, broadcastRecord{Message: msg, RecipientID: recipientID, Sender: sender})
	return p.emitErr
}

func (p *fakePush) BroadcastReadReceipts(_ context.Context, messages []models.Message, conversationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, receiptRecord{
		Messages:       append([]models.Message(nil), messages...),
		ConversationID: conversationID,
	})
	return p.emitErr
}

func (p *fakePush) sentReceipts() []receiptRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]receiptRecord(nil), p.receipts...)
}

func (p *fakePush) sentBroadcasts() []broadcastRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]broadcastRecord(nil), p.broadcasts...)
}

func newTestSynchronizer(gateway *fakeGateway, push *fakePush) *Synchronizer {
	opts := Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if gateway != nil {
		opts.Gateway = gateway
	}
	if push != nil {
		opts.Push = push
	}
	return NewSynchronizer(opts)
}

// seed installs a collection directly, bypassing transports.
func seed(s *Synchronizer, conversations ...models.Conversation) {
	s.replaceCollection(conversations, false)
}

func findConversation(t *testing.T, s *Synchronizer, conversationID string) *models.Conversation {
	t.Helper()
	for _, c := range s.Conversations() {
		if c.ID == conversationID {
			return c
		}
	}
	t.Fatalf("conversation %q not found", conversationID)
	return nil
}

// checkInvariants asserts the structural invariants that must hold after
// every transition: accurate unread counts, one conversation per contact and
// no duplicated message identities.
func checkInvariants(t *testing.T, s *Synchronizer) {
	t.Helper()
	seenUsers := make(map[string]bool)
	for _, c := range s.Conversations() {
		if c.UnreadMessageCount != c.CountUnread() {
			t.Fatalf("conversation %q: cached unread %d, actual %d",
				c.ID, c.UnreadMessageCount, c.CountUnread())
		}
		if c.OtherUser.ID != "" {
			if seenUsers[c.OtherUser.ID] {
				t.Fatalf("two conversations share other user %q", c.OtherUser.ID)
			}
			seenUsers[c.OtherUser.ID] = true
		}
		seenMessages := make(map[string]bool)
		for _, m := range c.Messages {
			if seenMessages[m.ID] {
				t.Fatalf("conversation %q holds message %q twice", c.ID, m.ID)
			}
			seenMessages[m.ID] = true
		}
	}
}
