package handler

import (
	"net/http"
	"strings"

	"github.com/samber/lo"

	"pulsechat/internal/pkg/auth/jwt"
	"pulsechat/internal/pkg/errs"
	"pulsechat/internal/pkg/logx"
	"pulsechat/internal/pkg/req"
	"pulsechat/internal/pkg/resp"
)

// HandleListConversations returns the caller's conversations, most recently
// updated first, with live presence overlaid on the participants.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		convs, err := deps.Conversations.ForUser(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "Failed to list conversations", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		for i := range convs {
			convs[i] = deps.Hub.Decorate(convs[i])
		}

		resp.RespondSuccess(w, r, convs)
	}
}

type CreateConversationInput struct {
	ParticipantIDs []string `json:"participantIds"`
	IsGroup        bool     `json:"isGroup"`
	GroupName      string   `json:"groupName,omitempty"`
}

// HandleCreateConversation creates a direct or group conversation. The
// caller is always included in the participant set; other participants'
// live connections get a newConversation event.
func HandleCreateConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input CreateConversationInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		participantIDs := lo.Uniq(append(input.ParticipantIDs, identity.ID))

		if len(participantIDs) < 2 {
			resp.RespondError(w, r, errs.NewError(errs.ErrConversationInvalid))
			return
		}
		if !input.IsGroup && len(participantIDs) != 2 {
			resp.RespondError(w, r, errs.NewError(errs.ErrConversationInvalid))
			return
		}
		if input.IsGroup && strings.TrimSpace(input.GroupName) == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrConversationInvalid))
			return
		}

		conv, err := deps.Conversations.Create(r.Context(), participantIDs, input.IsGroup, strings.TrimSpace(input.GroupName))
		if err != nil {
			logx.Error(err, "Failed to create conversation")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		deps.Hub.NotifyConversationCreated(conv)

		resp.RespondSuccess(w, r, deps.Hub.Decorate(conv))
	}
}
