package app

import "pulse-chat/go-client/pkg/models"

// InboundEvent is an event delivered by the push channel. The transport
// adapter translates its wire envelopes into these types; arrival order
// carries no guarantee relative to local sends in flight.
type InboundEvent interface {
	inboundEvent()
}

// NewMessageEvent carries a persisted message. Sender is set only when the
// message opens a brand-new conversation, so the receiving client can build
// the conversation from the event alone.
type NewMessageEvent struct {
	Message models.Message
	Sender  *models.User
}

// ReadMessagesEvent reports that the given messages became read, batched by
// conversation.
type ReadMessagesEvent struct {
	Messages       []models.Message
	ConversationID string
}

// PresenceEvent reports a contact going online or offline.
type PresenceEvent struct {
	UserID string
	Online bool
}

func (NewMessageEvent) inboundEvent()   {}
func (ReadMessagesEvent) inboundEvent() {}
func (PresenceEvent) inboundEvent()     {}
