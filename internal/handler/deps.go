package handler

import (
	"pulsechat/internal/app/chat"
	"pulsechat/internal/app/storage"
	"pulsechat/internal/app/store"
	"pulsechat/internal/configs"
)

// AppDeps bundles everything the handlers need.
type AppDeps struct {
	Hub    *chat.Hub
	Config *configs.AppConfig

	Users         *store.Users
	Conversations *store.Conversations
	Messages      *store.Messages

	// Storage is nil when no S3 bucket is configured; avatar endpoints then
	// answer with a storage failure.
	Storage storage.Service
}
