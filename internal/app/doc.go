// Package app holds the conversation state synchronizer: the single owner of
// the client-side conversation collection. Messages reach it from two
// independent, unordered sources (the request/response channel confirming a
// local send and the push channel delivering live events) and every mutation
// it applies is an atomic transition over the whole collection, so unread
// counts, last-read markers and the message lists never drift apart from a
// reader's point of view.
package app
