package app

import (
	"context"

	"pulse-chat/go-client/pkg/models"
)

// MessageGateway is the request/response channel to the persistence tier.
type MessageGateway interface {
	// CreateMessage persists a draft and returns its persisted form, plus the
	// sender profile when the send opened a brand-new conversation.
	CreateMessage(ctx context.Context, req models.SendRequest) (models.SendResult, error)
	// MarkMessagesRead durably records a batch of read flags. Fire-and-confirm:
	// the synchronizer merges optimistically and only logs failures.
	MarkMessagesRead(ctx context.Context, messages []models.Message) error
	// FetchConversations returns the full conversation collection.
	FetchConversations(ctx context.Context) ([]models.Conversation, error)
}

// PushChannel is the live event transport between clients. Inbound events are
// best effort and unordered; outbound emissions are fire-and-forget from the
// synchronizer's perspective.
type PushChannel interface {
	// Subscribe registers the handler for inbound events and returns an
	// unsubscribe function. The transport invokes the handler sequentially.
	Subscribe(handler func(InboundEvent)) (func(), error)
	// BroadcastNewMessage announces a persisted message to the recipient's
	// client. Sender is set only for brand-new conversations.
	BroadcastNewMessage(ctx context.Context, msg models.Message, recipientID string, sender *models.User) error
	// BroadcastReadReceipts announces that the given messages became visible
	// to this viewer, batched by conversation.
	BroadcastReadReceipts(ctx context.Context, messages []models.Message, conversationID string) error
}
