package handler

import (
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"pulsechat/internal/app/chat"
	"pulsechat/internal/pkg/auth/jwt"
	"pulsechat/internal/pkg/errs"
	"pulsechat/internal/pkg/logx"
	"pulsechat/internal/pkg/req"
	"pulsechat/internal/pkg/resp"
)

// HandleListMessages returns a conversation's history in persisted order,
// the ground truth clients reconcile their live-updated cache against.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		conversationID := chi.URLParam(r, "conversationID")
		if conversationID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		isParticipant, err := deps.Conversations.IsParticipant(r.Context(), conversationID, identity.ID)
		if err != nil {
			logx.Error(err, "Participant check failed", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !isParticipant {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		msgs, err := deps.Messages.History(r.Context(), conversationID)
		if err != nil {
			logx.Error(err, "Failed to list messages", "conversation_id", conversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, msgs)
	}
}

type CreateMessageInput struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

// HandleCreateMessage durably persists a message and returns the
// authoritative copy. This is the pure persistence step of the two-step
// send: live notification of other participants happens over the socket's
// sendMessage event, never here, so REST-driven senders cannot receive a
// duplicate of their own message.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input CreateMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ConversationID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if input.Text == "" || utf8.RuneCountInString(input.Text) > chat.MaxMessageChars {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageTextInvalid, chat.MaxMessageChars))
			return
		}

		isParticipant, err := deps.Conversations.IsParticipant(r.Context(), input.ConversationID, identity.ID)
		if err != nil {
			logx.Error(err, "Participant check failed", "conversation_id", input.ConversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !isParticipant {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		msg, _, err := deps.Messages.Append(r.Context(), input.ConversationID, identity.ID, input.Text)
		if err != nil {
			logx.Error(err, "Failed to persist message", "conversation_id", input.ConversationID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}
