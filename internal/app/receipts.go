package app

import (
	"context"
	"errors"

	"pulse-chat/go-client/pkg/models"
)

// ApplyReadReceipts merges an externally-reported "now read" batch into the
// matching conversation. Messages are replaced by identity; receipts for
// messages not yet known locally are a benign race and skipped. The merge is
// optimistic: the batch is persisted afterwards fire-and-confirm, and a
// persistence failure never undoes the local flip.
func (s *Synchronizer) ApplyReadReceipts(ctx context.Context, messages []models.Message, conversationID string) error {
	if len(messages) == 0 {
		return nil
	}
	if conversationID == "" {
		s.metrics.InconsistentEvent()
		return categorized(CategoryInconsistentEvent, errors.New("read receipts without conversation id"))
	}

	s.mu.Lock()
	idx := s.indexByConversationIDLocked(conversationID)
	if idx < 0 {
		s.mu.Unlock()
		s.metrics.InconsistentEvent()
		s.logger.Warn("read receipts for unknown conversation dropped", "conversation_id", conversationID)
		return categorized(CategoryInconsistentEvent, errors.New("read receipts reference unknown conversation"))
	}

	c := s.conversations[idx].Clone()
	for _, incoming := range messages {
		for i := range c.Messages {
			if c.Messages[i].ID != incoming.ID {
				continue
			}
			c.Messages[i] = incoming
			if incoming.IsRead && incoming.SenderID != c.OtherUser.ID {
				last := incoming
				c.LastReadMessage = &last
			}
			break
		}
	}
	// A receipt can flip an incoming message this viewer never opened (read
	// from another session), so the cached count is re-derived rather than
	// patched.
	c.UnreadMessageCount = c.CountUnread()
	s.conversations[idx] = c
	s.mu.Unlock()

	s.hub.Publish(UpdateConversationChanged, c)

	if s.gateway != nil {
		if err := s.gateway.MarkMessagesRead(ctx, messages); err != nil {
			s.logger.Warn("read receipt persistence failed",
				"conversation_id", conversationID, "error", err)
		}
	}
	return nil
}

// emitReadReceipts acknowledges newly-read messages outward on the push
// channel, optionally persisting the batch as well. Failures are transient:
// logged, never retried, never rolled back.
func (s *Synchronizer) emitReadReceipts(ctx context.Context, messages []models.Message, conversationID string, persist bool) {
	if len(messages) == 0 {
		return
	}
	if s.push != nil {
		if err := s.push.BroadcastReadReceipts(ctx, messages, conversationID); err != nil {
			s.logger.Warn("read receipt broadcast failed",
				"conversation_id", conversationID, "error", err)
		}
	}
	if persist && s.gateway != nil {
		if err := s.gateway.MarkMessagesRead(ctx, messages); err != nil {
			s.logger.Warn("read receipt persistence failed",
				"conversation_id", conversationID, "error", err)
		}
	}
	s.metrics.ReadReceiptsEmitted(len(messages))
}
