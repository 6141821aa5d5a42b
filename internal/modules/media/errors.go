package media

import "errors"

var (
	ErrEmptyFile            = errors.New("uploaded file is empty or missing")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrMissingContentType   = errors.New("content type is missing")
	ErrUnsupportedMediaType = errors.New("content type is not allowed")
	ErrInvalidFilename      = errors.New("invalid filename")
	ErrQuotaExceeded        = errors.New("organisation storage quota exceeded")
	ErrMediaNotFound        = errors.New("media not found")
	ErrNotOwner             = errors.New("you do not own this media")
	ErrUploadFailed         = errors.New("media upload failed")
)
