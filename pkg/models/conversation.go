package models

// Ephemeral reports whether the conversation is a search-result placeholder
// that has never been persisted.
func (c *Conversation) Ephemeral() bool {
	return c.ID == ""
}

// ContainsMessage reports whether a message with the given id is already part
// of the conversation. Ingestion uses it as the replay guard: re-delivery of a
// known message identity must be a no-op.
func (c *Conversation) ContainsMessage(messageID string) bool {
	if messageID == "" {
		return false
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return true
		}
	}
	return false
}

// CountUnread recomputes the unread count from the message list: messages
// sent by the other party that the viewer has not read yet. The cached
// UnreadMessageCount field must always equal this value.
func (c *Conversation) CountUnread() int {
	n := 0
	for i := range c.Messages {
		if !c.Messages[i].IsRead && c.Messages[i].SenderID == c.OtherUser.ID {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the conversation. Mutation operations work on
// clones so a snapshot handed to a reader is never modified in place.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	if c.LastReadMessage != nil {
		last := *c.LastReadMessage
		out.LastReadMessage = &last
	}
	return &out
}
