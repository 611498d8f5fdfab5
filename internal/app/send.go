package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"pulse-chat/go-client/pkg/models"
)

// SendMessage runs the ordered local-send sequence: persist, merge into local
// state, broadcast, then acknowledge. Persistence failure surfaces to the
// caller with no local effect; anything after a successful persist is logged
// but never rolled back; the message is durable and the next full fetch
// reconciles.
func (s *Synchronizer) SendMessage(ctx context.Context, req models.SendRequest) (models.Message, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.RecipientID == "" || req.Text == "" {
		return models.Message{}, errors.New("send requires a recipient and text")
	}
	if !s.limiter.Allow(req.RecipientID, time.Now()) {
		return models.Message{}, categorized(CategoryRateLimited, errors.New("send rate exceeded for recipient"))
	}

	req.IsRead = s.preReadForSend(req)

	s.metrics.SendAttempted()
	result, err := s.gateway.CreateMessage(ctx, req)
	if err != nil {
		s.metrics.SendFailed()
		return models.Message{}, categorized(CategoryPersistence, err)
	}
	msg := result.Message

	s.mu.Lock()
	var changed *models.Conversation
	if req.ConversationID == "" {
		changed = s.mergeByRecipientLocked(req.RecipientID, msg)
	} else {
		changed = s.mergeByConversationLocked(req.ConversationID, msg)
	}
	s.mu.Unlock()

	s.metrics.MessageIngested()
	if changed != nil {
		s.hub.Publish(UpdateConversationChanged, changed)
	} else {
		s.logger.Warn("sent message has no local conversation, awaiting next fetch",
			"conversation_id", msg.ConversationID, "recipient_id", req.RecipientID)
	}

	if s.push != nil {
		if err := s.push.BroadcastNewMessage(ctx, msg, req.RecipientID, result.Sender); err != nil {
			s.logger.Warn("message broadcast failed", "message_id", msg.ID, "error", err)
		}
	}
	if req.IsRead {
		s.emitReadReceipts(ctx, []models.Message{msg}, req.ConversationID, false)
	}
	return msg, nil
}

// preReadForSend computes the pre-read flag for a draft: the draft targets the
// open conversation and the recipient is not that conversation's other user.
// An absent conversation id never compares equal to anything, the active
// conversation's absent id included.
func (s *Synchronizer) preReadForSend(req models.SendRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeMatchesLocked(req.ConversationID) && req.RecipientID != s.active.otherUserID
}

// mergeByRecipientLocked lands a send that had no conversation id yet: the
// placeholder is matched by recipient, stamped with the server-assigned id
// and given the message.
func (s *Synchronizer) mergeByRecipientLocked(recipientID string, msg models.Message) *models.Conversation {
	j := s.indexByOtherUserLocked(recipientID)
	if j < 0 {
		return nil
	}
	if s.conversations[j].ContainsMessage(msg.ID) {
		s.metrics.DuplicateDropped()
		return s.conversations[j]
	}
	c := s.conversations[j].Clone()
	c.ID = msg.ConversationID
	s.applyMessageLocked(c, msg)
	s.conversations[j] = c
	return c
}

func (s *Synchronizer) mergeByConversationLocked(conversationID string, msg models.Message) *models.Conversation {
	idx := s.indexByConversationIDLocked(conversationID)
	if idx < 0 {
		return nil
	}
	if s.conversations[idx].ContainsMessage(msg.ID) {
		s.metrics.DuplicateDropped()
		return s.conversations[idx]
	}
	c := s.conversations[idx].Clone()
	s.applyMessageLocked(c, msg)
	s.conversations[idx] = c
	return c
}
