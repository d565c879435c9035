package common

import (
	"context"
	"io"
)

// BlobStore keeps uploaded images. URLs returned by Upload are public.
type BlobStore interface {
	Upload(ctx context.Context, filename string, it ImageType, content io.Reader) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}
