package app

import (
	"context"

	"pulse-chat/go-client/pkg/models"
)

// ActivateConversation switches the open conversation. Every unread incoming
// message in it flips to read in one transition, the unread count resets, and
// the batch is acknowledged outward, broadcast to the other party and
// persisted. Activating an ephemeral placeholder only moves the reference;
// there is nothing to mark.
func (s *Synchronizer) ActivateConversation(ctx context.Context, conversation *models.Conversation) {
	if conversation == nil {
		return
	}

	s.mu.Lock()
	s.active = activeRef{
		set:            true,
		conversationID: conversation.ID,
		otherUserID:    conversation.OtherUser.ID,
	}

	idx := s.indexByConversationIDLocked(conversation.ID)
	if idx < 0 {
		s.mu.Unlock()
		s.hub.Publish(UpdateActiveChanged, conversation.ID)
		if !conversation.Ephemeral() {
			s.logger.Warn("activated conversation not in collection", "conversation_id", conversation.ID)
		}
		return
	}

	c := s.conversations[idx].Clone()
	var newlyRead []models.Message
	for i := range c.Messages {
		m := &c.Messages[i]
		if !m.IsRead && m.SenderID == c.OtherUser.ID {
			m.IsRead = true
			newlyRead = append(newlyRead, *m)
		}
		if m.IsRead && m.SenderID != c.OtherUser.ID {
			last := *m
			c.LastReadMessage = &last
		}
	}
	c.UnreadMessageCount = 0
	s.conversations[idx] = c
	s.mu.Unlock()

	s.hub.Publish(UpdateActiveChanged, conversation.ID)
	if len(newlyRead) > 0 {
		s.hub.Publish(UpdateConversationChanged, c)
		s.emitReadReceipts(ctx, newlyRead, conversation.ID, true)
	}
}
