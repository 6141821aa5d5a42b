package media

import (
	"fmt"
	"strings"

	"mediastore/internal/domain"
)

// AllowedTypes is the explicit MIME allow-list per category. An unlisted
// content type is a validation failure, never a fallback guess.
type AllowedTypes struct {
	Image    []string
	Video    []string
	Audio    []string
	Document []string
}

// DefaultAllowedTypes lists the MIME types the WhatsApp platform accepts.
func DefaultAllowedTypes() AllowedTypes {
	return AllowedTypes{
		Image: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		Video: []string{"video/mp4", "video/3gpp", "video/webm"},
		Audio: []string{"audio/aac", "audio/mp4", "audio/mpeg", "audio/amr", "audio/ogg"},
		Document: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"text/plain",
		},
	}
}

// Validator performs the side-effect-free upload checks: size ceilings,
// content-type allow-lists and filename hygiene.
type Validator struct {
	maxUploadBytes int64
	allowed        AllowedTypes
}

func NewValidator(maxUploadBytes int64, allowed AllowedTypes) *Validator {
	if maxUploadBytes <= 0 {
		maxUploadBytes = domain.AbsoluteMaxBytes
	}
	return &Validator{maxUploadBytes: maxUploadBytes, allowed: allowed}
}

// ValidateFile runs the pre-storage checks. It never touches storage or
// the network.
func (v *Validator) ValidateFile(filename, contentType string, size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > v.maxUploadBytes {
		return fmt.Errorf("%w: %d bytes exceeds global limit of %d", ErrFileTooLarge, size, v.maxUploadBytes)
	}
	if contentType == "" {
		return ErrMissingContentType
	}
	if _, err := v.DetectCategory(contentType); err != nil {
		return err
	}
	return v.validateFilename(filename)
}

// ValidateCategorySize enforces the per-category ceiling, independent of
// the global maximum.
func (v *Validator) ValidateCategorySize(category domain.MediaCategory, size int64) error {
	if max := category.MaxBytes(); size > max {
		return fmt.Errorf("%w: %d bytes exceeds %s limit of %d", ErrFileTooLarge, size, category, max)
	}
	return nil
}

// DetectCategory maps a content type to its category via the allow-lists.
func (v *Validator) DetectCategory(contentType string) (domain.MediaCategory, error) {
	mime := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if mime == "" {
		return "", ErrMissingContentType
	}
	switch {
	case contains(v.allowed.Image, mime):
		return domain.CategoryImage, nil
	case contains(v.allowed.Video, mime):
		return domain.CategoryVideo, nil
	case contains(v.allowed.Audio, mime):
		return domain.CategoryAudio, nil
	case contains(v.allowed.Document, mime):
		return domain.CategoryDocument, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mime)
}

func (v *Validator) validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is missing", ErrInvalidFilename)
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("%w: path traversal detected", ErrInvalidFilename)
	}
	if !strings.Contains(filename, ".") {
		return fmt.Errorf("%w: file must have an extension", ErrInvalidFilename)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
