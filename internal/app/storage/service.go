/*
Package storage handles avatar objects in S3-compatible storage. Uploads and
downloads go directly between client and bucket via presigned URLs; the
server only mints the URLs.
*/
package storage

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"pulsechat/internal/pkg/errs"
)

const (
	// MaxAvatarSize caps avatar uploads at 2 MB.
	MaxAvatarSize int64 = 2 * 1024 * 1024

	// PresignedURLDuration is how long a minted upload URL stays valid.
	PresignedURLDuration = 5 * time.Minute
)

// allowedAvatarMIME is the closed set of accepted avatar content types.
var allowedAvatarMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ServiceConfig holds the bucket connection settings.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service is the interface the handlers consume.
type Service interface {
	// PresignUpload mints a time-limited URL for uploading an object.
	PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error)

	// PresignDownload mints a time-limited URL for fetching an object.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes an object.
	Delete(ctx context.Context, key string) error
}

// NewService builds the S3-backed implementation.
func NewService(cfg ServiceConfig) (Service, error) {
	return newS3Client(cfg)
}

// ValidateAvatar checks the declared file name, MIME type, and size of an
// avatar upload before a URL is minted.
func ValidateAvatar(fileName, mimeType string, fileSize int64) *errs.CustomError {
	if fileSize <= 0 || fileSize > MaxAvatarSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	expected, ok := allowedAvatarMIME[ext]
	if !ok || expected != strings.ToLower(mimeType) {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	return nil
}
