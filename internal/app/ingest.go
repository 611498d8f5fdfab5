package app

import (
	"context"
	"errors"

	"pulse-chat/go-client/pkg/models"
)

// IngestMessage applies a push-channel message event to the collection.
// A populated Sender means the message opens a brand-new conversation; with
// no Sender the message must land in a conversation already known locally,
// otherwise the event is inconsistent and dropped. Re-delivery of a message
// identity already present is a no-op.
func (s *Synchronizer) IngestMessage(ctx context.Context, ev NewMessageEvent) error {
	msg := ev.Message
	if msg.ID == "" || msg.ConversationID == "" {
		s.metrics.InconsistentEvent()
		return categorized(CategoryInconsistentEvent, errors.New("message event without identity"))
	}

	s.mu.Lock()
	idx := s.indexByConversationIDLocked(msg.ConversationID)

	if idx < 0 && ev.Sender != nil {
		// A contact can hold at most one conversation. A second persisted id
		// for a sender whose conversation is already known is a contradiction
		// between sources, not a new conversation.
		if j := s.indexByOtherUserLocked(ev.Sender.ID); j >= 0 && !s.conversations[j].Ephemeral() {
			s.mu.Unlock()
			s.metrics.InconsistentEvent()
			s.logger.Warn("conflicting conversation id for known contact, message dropped",
				"conversation_id", msg.ConversationID, "sender_id", ev.Sender.ID)
			return categorized(CategoryInconsistentEvent, errors.New("sender already has a conversation"))
		}
		c, newlyRead := s.admitNewConversationLocked(msg, *ev.Sender)
		count := len(s.conversations)
		s.mu.Unlock()

		s.metrics.MessageIngested()
		s.metrics.SetConversations(count)
		s.hub.Publish(UpdateConversationChanged, c)
		s.emitReadReceipts(ctx, newlyRead, msg.ConversationID, false)
		return nil
	}

	if idx < 0 {
		s.mu.Unlock()
		s.metrics.InconsistentEvent()
		s.logger.Warn("message for unknown conversation dropped",
			"conversation_id", msg.ConversationID, "message_id", msg.ID)
		return categorized(CategoryInconsistentEvent, errors.New("message references unknown conversation"))
	}

	if s.conversations[idx].ContainsMessage(msg.ID) {
		s.mu.Unlock()
		s.metrics.DuplicateDropped()
		s.logger.Debug("replayed message ignored", "message_id", msg.ID)
		return nil
	}

	c := s.conversations[idx].Clone()
	newlyRead := s.applyMessageLocked(c, msg)
	s.conversations[idx] = c
	s.mu.Unlock()

	s.metrics.MessageIngested()
	s.hub.Publish(UpdateConversationChanged, c)
	s.emitReadReceipts(ctx, newlyRead, msg.ConversationID, false)
	return nil
}

// admitNewConversationLocked installs the conversation a first message opens.
// When an ephemeral placeholder for the same user already exists it is
// adopted (stamped with the persisted id) instead of creating a sibling,
// keeping the one-conversation-per-contact invariant intact.
func (s *Synchronizer) admitNewConversationLocked(msg models.Message, sender models.User) (*models.Conversation, []models.Message) {
	if j := s.indexByOtherUserLocked(sender.ID); j >= 0 && s.conversations[j].Ephemeral() {
		c := s.conversations[j].Clone()
		c.ID = msg.ConversationID
		c.OtherUser = sender
		newlyRead := s.applyMessageLocked(c, msg)
		// Newest conversation moves to the front of the collection.
		rest := append(append([]*models.Conversation(nil), s.conversations[:j]...), s.conversations[j+1:]...)
		s.conversations = append([]*models.Conversation{c}, rest...)
		return c, newlyRead
	}

	c := &models.Conversation{
		ID:        msg.ConversationID,
		OtherUser: sender,
		Messages:  []models.Message{},
	}
	newlyRead := s.applyMessageLocked(c, msg)
	s.conversations = append([]*models.Conversation{c}, s.conversations...)
	return c, newlyRead
}
