package models

import "time"

// User is a contact profile as embedded in a conversation. Only the Online
// field ever changes after the copy is made; everything else is an immutable
// snapshot of the profile.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	PhotoURL string    `json:"photoUrl,omitempty"`
	Online   bool      `json:"online"`
	JoinedAt time.Time `json:"joinedAt,omitempty"`
}

// Message is a persisted chat message. The ID is assigned by the persistence
// tier; the synchronizer only ever sees messages in their persisted form.
// After creation the IsRead flag is the only field that changes.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId,omitempty"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// Conversation is a per-contact thread plus its derived visibility metadata.
// An empty ID marks an ephemeral conversation: a search-result placeholder
// that has never been persisted.
type Conversation struct {
	ID                 string    `json:"id,omitempty"`
	OtherUser          User      `json:"otherUser"`
	Messages           []Message `json:"messages"`
	LatestMessageText  string    `json:"latestMessageText,omitempty"`
	UnreadMessageCount int       `json:"unreadMessageCount"`
	LastReadMessage    *Message  `json:"lastReadMessage,omitempty"`
}

// SendRequest is the draft body of a local send. ConversationID is empty when
// no persisted conversation with the recipient exists yet.
type SendRequest struct {
	RecipientID    string `json:"recipientId"`
	Text           string `json:"text"`
	ConversationID string `json:"conversationId,omitempty"`
	Sender         *User  `json:"sender,omitempty"`
	IsRead         bool   `json:"isRead"`
}

// SendResult is what the persistence tier returns for a send. Sender is
// populated only when the message created a brand-new conversation, so the
// recipient's client can build the conversation from the broadcast alone.
type SendResult struct {
	Message Message `json:"message"`
	Sender  *User   `json:"sender,omitempty"`
}
