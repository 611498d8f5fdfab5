package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pulse-chat/go-client/internal/platform/ratelimiter"
	"pulse-chat/go-client/pkg/models"
)

func okCreate(serverConvoID string) func(models.SendRequest) (models.SendResult, error) {
	seq := 0
	return func(req models.SendRequest) (models.SendResult, error) {
		seq++
		convoID := req.ConversationID
		if convoID == "" {
			convoID = serverConvoID
		}
		return models.SendResult{
			Message: models.Message{
				ID:             "srv-m" + string(rune('0'+seq)),
				ConversationID: convoID,
				SenderID:       "u1",
				RecipientID:    req.RecipientID,
				Text:           req.Text,
				IsRead:         req.IsRead,
			},
		}, nil
	}
}

func TestSendWhileConversationOpen(t *testing.T) {
	gateway := &fakeGateway{createFn: okCreate("")}
	push := &fakePush{}
	s := newTestSynchronizer(gateway, push)
	seed(s, models.Conversation{ID: "cB", OtherUser: models.User{ID: "u3"}})
	s.ActivateConversation(context.Background(), findConversation(t, s, "cB"))

	msg, err := s.SendMessage(context.Background(), models.SendRequest{
		RecipientID:    "u3",
		Text:           "hi",
		ConversationID: "cB",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.IsRead {
		t.Fatal("recipient is the open conversation's other user, pre-read must be false")
	}

	c := findConversation(t, s, "cB")
	if len(c.Messages) != 1 || c.Messages[0].ID != msg.ID {
		t.Fatalf("message not appended: %+v", c.Messages)
	}
	if c.LatestMessageText != "hi" {
		t.Fatalf("latest text not cached: %q", c.LatestMessageText)
	}

	broadcasts := push.sentBroadcasts()
	if len(broadcasts) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(broadcasts))
	}
	if broadcasts[0].Sender != nil {
		t.Fatal("broadcast sender must be absent for an existing conversation")
	}
	if broadcasts[0].RecipientID != "u3" {
		t.Fatalf("unexpected broadcast recipient %q", broadcasts[0].RecipientID)
	}
	if len(push.sentReceipts()) != 0 {
		t.Fatal("no read receipt expected for a pre-read=false send")
	}
	checkInvariants(t, s)
}

func TestSendPreReadPredicateHoldsForThirdPartyRecipient(t *testing.T) {
	// The draft targets the open conversation but names a different
	// recipient. The predicate is preserved from the reference behavior even
	// though it is degenerate for normal sends.
	gateway := &fakeGateway{createFn: okCreate("")}
	push := &fakePush{}
	s := newTestSynchronizer(gateway, push)
	seed(s,
		models.Conversation{ID: "cB", OtherUser: models.User{ID: "u3"}},
		models.Conversation{ID: "cC", OtherUser: models.User{ID: "u4"}},
	)
	s.ActivateConversation(context.Background(), findConversation(t, s, "cB"))

	msg, err := s.SendMessage(context.Background(), models.SendRequest{
		RecipientID:    "u4",
		Text:           "fyi",
		ConversationID: "cB",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !msg.IsRead {
		t.Fatal("predicate must evaluate true when recipient differs from the open conversation's other user")
	}
	receipts := push.sentReceipts()
	if len(receipts) != 1 || receipts[0].ConversationID != "cB" || len(receipts[0].Messages) != 1 {
		t.Fatalf("expected a single-message receipt batch, got %+v", receipts)
	}
}

func TestSendWithoutConversationIDStampsPlaceholder(t *testing.T) {
	gateway := &fakeGateway{createFn: okCreate("c-new")}
	push := &fakePush{}
	s := newTestSynchronizer(gateway, push)
	s.AddSearchResults([]models.User{{ID: "u9", Username: "kit"}})
	s.ActivateConversation(context.Background(), s.Conversations()[0])

	msg, err := s.SendMessage(context.Background(), models.SendRequest{
		RecipientID: "u9",
		Text:        "first contact",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.IsRead {
		t.Fatal("an absent conversation id must never satisfy the pre-read predicate")
	}

	c := findConversation(t, s, "c-new")
	if c.Ephemeral() {
		t.Fatal("placeholder must be stamped with the server-assigned id")
	}
	if len(c.Messages) != 1 || c.Messages[0].Text != "first contact" {
		t.Fatalf("message not merged into placeholder: %+v", c.Messages)
	}
	checkInvariants(t, s)
}

func TestSendMergeIsNoOpWhenMessageAlreadyLanded(t *testing.T) {
	// The push channel can deliver a sent message before the persist response
	// returns; the merge must then leave the conversation as it is.
	fixedCreate := func(serverConvoID string) func(models.SendRequest) (models.SendResult, error) {
		return func(req models.SendRequest) (models.SendResult, error) {
			convoID := req.ConversationID
			if convoID == "" {
				convoID = serverConvoID
			}
			return models.SendResult{
				Message: models.Message{
					ID:             "m-landed",
					ConversationID: convoID,
					SenderID:       "u1",
					RecipientID:    req.RecipientID,
					Text:           req.Text,
				},
			}, nil
		}
	}
	landed := models.Message{ID: "m-landed", ConversationID: "cB", SenderID: "u1", RecipientID: "u3", Text: "hi"}

	t.Run("merge by conversation id", func(t *testing.T) {
		gateway := &fakeGateway{createFn: fixedCreate("")}
		s := newTestSynchronizer(gateway, &fakePush{})
		seed(s, models.Conversation{
			ID:        "cB",
			OtherUser: models.User{ID: "u3"},
			Messages:  []models.Message{landed},
		})

		_, err := s.SendMessage(context.Background(), models.SendRequest{
			RecipientID:    "u3",
			Text:           "hi",
			ConversationID: "cB",
		})
		if err != nil {
			t.Fatalf("send failed: %v", err)
		}
		if got := len(findConversation(t, s, "cB").Messages); got != 1 {
			t.Fatalf("already-landed message must not be appended again, got %d messages", got)
		}
		checkInvariants(t, s)
	})

	t.Run("merge by recipient", func(t *testing.T) {
		gateway := &fakeGateway{createFn: fixedCreate("cB")}
		s := newTestSynchronizer(gateway, &fakePush{})
		seed(s, models.Conversation{
			ID:        "cB",
			OtherUser: models.User{ID: "u3"},
			Messages:  []models.Message{landed},
		})

		_, err := s.SendMessage(context.Background(), models.SendRequest{
			RecipientID: "u3",
			Text:        "hi",
		})
		if err != nil {
			t.Fatalf("send failed: %v", err)
		}
		if got := len(findConversation(t, s, "cB").Messages); got != 1 {
			t.Fatalf("already-landed message must not be appended again, got %d messages", got)
		}
		checkInvariants(t, s)
	})
}

func TestSendPersistenceFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("persist down")
	gateway := &fakeGateway{createFn: func(models.SendRequest) (models.SendResult, error) {
		return models.SendResult{}, boom
	}}
	push := &fakePush{}
	s := newTestSynchronizer(gateway, push)
	seed(s, models.Conversation{ID: "cB", OtherUser: models.User{ID: "u3"}})

	_, err := s.SendMessage(context.Background(), models.SendRequest{
		RecipientID:    "u3",
		Text:           "hi",
		ConversationID: "cB",
	})
	if !IsCategory(err, CategoryPersistence) {
		t.Fatalf("expected persistence category, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("underlying error must be preserved, got %v", err)
	}
	if len(findConversation(t, s, "cB").Messages) != 0 {
		t.Fatal("failed persist must leave the collection untouched")
	}
	if len(push.sentBroadcasts()) != 0 {
		t.Fatal("failed persist must not broadcast")
	}
}

func TestSendBroadcastFailureKeepsLocalMerge(t *testing.T) {
	gateway := &fakeGateway{createFn: okCreate("")}
	push := &fakePush{emitErr: errors.New("socket gone")}
	s := newTestSynchronizer(gateway, push)
	seed(s, models.Conversation{ID: "cB", OtherUser: models.User{ID: "u3"}})

	msg, err := s.SendMessage(context.Background(), models.SendRequest{
		RecipientID:    "u3",
		Text:           "hi",
		ConversationID: "cB",
	})
	if err != nil {
		t.Fatalf("broadcast failure must not surface: %v", err)
	}
	if len(findConversation(t, s, "cB").Messages) != 1 {
		t.Fatal("local merge must stand after broadcast failure")
	}
	if msg.ID == "" {
		t.Fatal("persisted message must be returned")
	}
}

func TestSendRejectsEmptyDraftAndRateLimit(t *testing.T) {
	gateway := &fakeGateway{createFn: okCreate("")}
	s := NewSynchronizer(Options{
		Gateway:     gateway,
		Push:        &fakePush{},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		SendLimiter: ratelimiter.New(0.001, 1, time.Minute),
	})
	seed(s, models.Conversation{ID: "cB", OtherUser: models.User{ID: "u3"}})

	if _, err := s.SendMessage(context.Background(), models.SendRequest{RecipientID: "u3", Text: "  "}); err == nil {
		t.Fatal("blank text must be rejected")
	}

	if _, err := s.SendMessage(context.Background(), models.SendRequest{
		RecipientID: "u3", Text: "one", ConversationID: "cB",
	}); err != nil {
		t.Fatalf("first send should pass: %v", err)
	}
	_, err := s.SendMessage(context.Background(), models.SendRequest{
		RecipientID: "u3", Text: "two", ConversationID: "cB",
	})
	if !IsCategory(err, CategoryRateLimited) {
		t.Fatalf("expected rate-limited category, got %v", err)
	}
}
