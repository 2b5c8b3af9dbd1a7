package chat

// Deliver fans a persisted message out to its entitled connections. Callers
// must only invoke it after the store write succeeded.
//
// Two notification classes are produced:
//
//   - Room events (receiveMessage) carry the full message body and go only
//     to connections currently viewing the conversation.
//   - Recency events (updateConversation) carry the refreshed conversation
//     snapshot and go to every other participant connection, so their list
//     reorders without a re-fetch.
//
// The originating connection is excluded from both classes: the sender
// already holds the authoritative copy from the persistence response.
// Delivery is fire-and-forget; an unavailable connection loses the event and
// reconciles through its next full fetch.
func (h *Hub) Deliver(msg Message, conv Conversation, originConnID string) {
	conv = h.Decorate(conv)

	delivered := make(map[string]struct{})

	for _, connID := range h.rooms.MembersOf(conv.ID) {
		if connID == originConnID {
			continue
		}

		target, ok := h.registry.Conn(connID)
		if !ok {
			// Stale room membership of a connection mid-teardown.
			continue
		}

		if err := target.Enqueue(EventReceiveMessage, msg); err != nil {
			h.logger.Warn().Err(err).
				Str("conn_id", connID).
				Str("message_id", msg.ID).
				Msg("Room event delivery dropped")
			continue
		}

		delivered[connID] = struct{}{}
	}

	for _, p := range conv.Participants {
		for _, target := range h.registry.ActiveConnections(p.ID) {
			if target.ID() == originConnID {
				continue
			}
			if _, alreadySent := delivered[target.ID()]; alreadySent {
				// Viewing connections bump recency from the message itself.
				continue
			}

			if err := target.Enqueue(EventUpdateConversation, conv); err != nil {
				h.logger.Warn().Err(err).
					Str("conn_id", target.ID()).
					Str("conversation_id", conv.ID).
					Msg("Recency event delivery dropped")
			}
		}
	}
}
