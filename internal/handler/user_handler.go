package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pulsechat/internal/app/storage"
	"pulsechat/internal/app/user"
	"pulsechat/internal/pkg/auth/jwt"
	"pulsechat/internal/pkg/errs"
	"pulsechat/internal/pkg/logx"
	"pulsechat/internal/pkg/req"
	"pulsechat/internal/pkg/resp"
)

// userView is the REST shape of a user, with live presence overlaid.
type userView struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	FullName string      `json:"fullName"`
	Status   user.Status `json:"status"`
}

func viewOf(deps *AppDeps, u user.User) userView {
	// Live presence, defaulting to offline for users with no entry.
	return userView{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Status:   deps.Hub.StatusOf(u.ID),
	}
}

// HandleListUsers returns every other account for the sidebar contact list.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		accounts, err := deps.Users.Sidebar(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "Failed to list users")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		views := make([]userView, 0, len(accounts))
		for _, account := range accounts {
			views = append(views, viewOf(deps, account))
		}

		resp.RespondSuccess(w, r, views)
	}
}

// HandleGetUserByUsername returns one account by its unique login name.
func HandleGetUserByUsername(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		if !usernameRegex.MatchString(username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		account, err := deps.Users.ByUsername(r.Context(), username)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		resp.RespondSuccess(w, r, viewOf(deps, account))
	}
}

// HandleGetUser returns one account by id.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		account, err := deps.Users.ByID(r.Context(), id)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		resp.RespondSuccess(w, r, viewOf(deps, account))
	}
}

type UpdateStatusInput struct {
	Status string `json:"status"`
}

// HandleUpdateStatus applies a status change arriving over REST. The change
// routes through the hub, so live contacts see it exactly like one sent over
// the socket.
func HandleUpdateStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input UpdateStatusInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		status, err := user.ParseStatus(input.Status)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidStatus))
			return
		}

		if err := deps.Hub.UpdateStatus(r.Context(), identity.ID, status); err != nil {
			if customErr, ok := err.(*errs.CustomError); ok {
				resp.RespondError(w, r, customErr)
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"userId": identity.ID,
			"status": status,
		})
	}
}

type PresignAvatarInput struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignAvatar validates the declared upload and mints a presigned
// URL for it, recording the object key on the account.
func HandlePresignAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		identity := jwt.GetPayloadFromContext(r)

		var input PresignAvatarInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := storage.ValidateAvatar(input.FileName, input.MimeType, input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key := fmt.Sprintf("avatars/%s", identity.ID)

		uploadURL, err := deps.Storage.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		if err := deps.Users.SetAvatarKey(r.Context(), identity.ID, key); err != nil {
			logx.Error(err, "Failed to record avatar key", "user_id", identity.ID)
		}

		resp.RespondSuccess(w, r, map[string]any{
			"uploadUrl": uploadURL,
			"fileKey":   key,
		})
	}
}
