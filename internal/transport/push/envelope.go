// Package push carries live chat events between clients over a websocket
// relay. Inbound envelopes are translated into synchronizer events; outbound
// broadcasts announce what this client already persisted through the REST
// gateway.
package push

import (
	"encoding/json"
	"fmt"

	"pulse-chat/go-client/internal/app"
	"pulse-chat/go-client/pkg/models"
)

// Event names on the wire.
const (
	eventNewMessage   = "new-message"
	eventReadMessages = "read-messages"
	eventUserOnline   = "add-online-user"
	eventUserOffline  = "remove-offline-user"
)

// envelope is the wire format for every event. Origin is the sending
// client's session id; the relay fans events out to every participant, so a
// client uses it to drop its own echoes.
type envelope struct {
	Type    string          `json:"type"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type newMessagePayload struct {
	Message     models.Message `json:"message"`
	RecipientID string         `json:"recipientId"`
	Sender      *models.User   `json:"sender,omitempty"`
}

type readMessagesPayload struct {
	Messages       []models.Message `json:"messages"`
	ConversationID string           `json:"conversationId"`
}

type presencePayload struct {
	UserID string `json:"userId"`
}

// decodeEvent translates one inbound envelope into a synchronizer event.
// Unknown event types return (nil, nil); the caller skips them.
func decodeEvent(env envelope) (app.InboundEvent, error) {
	switch env.Type {
	case eventNewMessage:
		var p newMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("push: decode %s: %w", env.Type, err)
		}
		return app.NewMessageEvent{Message: p.Message, Sender: p.Sender}, nil
	case eventReadMessages:
		var p readMessagesPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("push: decode %s: %w", env.Type, err)
		}
		return app.ReadMessagesEvent{Messages: p.Messages, ConversationID: p.ConversationID}, nil
	case eventUserOnline, eventUserOffline:
		var p presencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("push: decode %s: %w", env.Type, err)
		}
		return app.PresenceEvent{UserID: p.UserID, Online: env.Type == eventUserOnline}, nil
	default:
		return nil, nil
	}
}
