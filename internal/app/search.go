package app

import "pulse-chat/go-client/pkg/models"

// AddSearchResults appends an ephemeral placeholder conversation for every
// searched user the viewer has no conversation with yet. Users already
// present, with a real conversation or an earlier placeholder, are skipped.
func (s *Synchronizer) AddSearchResults(users []models.User) {
	s.mu.Lock()
	added := 0
	for _, user := range users {
		if user.ID == "" || s.indexByOtherUserLocked(user.ID) >= 0 {
			continue
		}
		s.conversations = append(s.conversations, &models.Conversation{
			OtherUser: user,
			Messages:  []models.Message{},
		})
		added++
	}
	count := len(s.conversations)
	s.mu.Unlock()

	if added > 0 {
		s.metrics.SetConversations(count)
		s.hub.Publish(UpdateConversationsReplaced, count)
	}
}

// ClearSearchResults removes every ephemeral placeholder. Persisted
// conversations are kept whether or not they have messages.
func (s *Synchronizer) ClearSearchResults() {
	s.mu.Lock()
	next := s.conversations[:0:0]
	for _, c := range s.conversations {
		if !c.Ephemeral() {
			next = append(next, c)
		}
	}
	removed := len(s.conversations) - len(next)
	s.conversations = next
	count := len(next)
	s.mu.Unlock()

	if removed > 0 {
		s.metrics.SetConversations(count)
		s.hub.Publish(UpdateConversationsReplaced, count)
	}
}
