package app

// SetUserOnline marks the contact as online in its conversation.
func (s *Synchronizer) SetUserOnline(userID string) {
	s.setPresence(userID, true)
}

// SetUserOffline marks the contact as offline in its conversation.
func (s *Synchronizer) SetUserOffline(userID string) {
	s.setPresence(userID, false)
}

// setPresence replaces only the matching conversation; every other entry
// keeps its identity so change detection by reference stays quiet. Presence
// for a user without a conversation is silently ignored.
func (s *Synchronizer) setPresence(userID string, online bool) {
	s.mu.Lock()
	idx := s.indexByOtherUserLocked(userID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	if s.conversations[idx].OtherUser.Online == online {
		s.mu.Unlock()
		return
	}
	c := s.conversations[idx].Clone()
	c.OtherUser.Online = online
	s.conversations[idx] = c
	s.mu.Unlock()

	s.hub.Publish(UpdatePresenceChanged, c)
}
