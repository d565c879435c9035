package common

import (
	"errors"
	"path/filepath"
	"strings"
)

// MaxImageBytes is the upload limit for memory and comment images.
const MaxImageBytes int64 = 5 * 1024 * 1024

var (
	ErrInvalidImageType = errors.New("invalid file type. Only JPEG and PNG images are allowed")
	ErrImageTooLarge    = errors.New("file size too large. Maximum size is 5MB")
)

// ImageType is one of the accepted upload formats.
type ImageType string

const (
	ImageTypeJPEG ImageType = "jpeg"
	ImageTypePNG  ImageType = "png"
)

func (it ImageType) String() string {
	return string(it)
}

func (it ImageType) IsValid() bool {
	return it == ImageTypeJPEG || it == ImageTypePNG
}

func (it ImageType) MimeType() string {
	switch it {
	case ImageTypeJPEG:
		return "image/jpeg"
	case ImageTypePNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// ImageExtension returns the lower-cased extension of filename without the dot.
func ImageExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// DetectImageType maps a file name to its image type by extension.
func DetectImageType(filename string) (ImageType, error) {
	switch ImageExtension(filename) {
	case "jpg", "jpeg":
		return ImageTypeJPEG, nil
	case "png":
		return ImageTypePNG, nil
	default:
		return "", ErrInvalidImageType
	}
}

// ValidateImage checks the extension and size of an upload.
func ValidateImage(filename string, size, limit int64) (ImageType, error) {
	it, err := DetectImageType(filename)
	if err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = MaxImageBytes
	}
	if size > limit {
		return "", ErrImageTooLarge
	}
	return it, nil
}

// ContentTypeFor is used by the media server when no metadata is stored.
func ContentTypeFor(filename string) string {
	it, err := DetectImageType(filename)
	if err != nil {
		return "application/octet-stream"
	}
	return it.MimeType()
}
