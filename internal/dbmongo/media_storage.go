package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memorywall/internal/common"
)

var ErrFileNotFound = errors.New("file not found")

// ImageStorage is the GridFS-backed common.BlobStore.
type ImageStorage struct {
	gridFS  *gridfs.Bucket
	baseURL string
	now     func() time.Time
}

func NewImageStorage(mongoClient *MongoClient, mediaBaseURL string) *ImageStorage {
	return &ImageStorage{
		gridFS:  mongoClient.GridFS,
		baseURL: mediaBaseURL,
		now:     time.Now,
	}
}

type ImageFile struct {
	ID         string           `json:"id"`       // GridFS ObjectID
	Filename   string           `json:"filename"` // Stored name, <unixmillis>-<random>.<ext>
	Size       int64            `json:"size"`
	ImageType  common.ImageType `json:"image_type"`
	UploadedAt time.Time        `json:"uploaded_at"`
}

// StoredFileName builds the GridFS name for an upload.
func StoredFileName(now time.Time, original string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), suffix, common.ImageExtension(original))
}

// PublicURL joins the media base URL and a file id.
func PublicURL(baseURL, fileID string) string {
	if baseURL == "" {
		return fileID
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + fileID
}

// FileIDFromURL resolves the GridFS id from the last path segment of an image URL.
func FileIDFromURL(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url: %w", err)
	}
	id := path.Base(u.Path)
	if id == "" || id == "/" || id == "." {
		return "", fmt.Errorf("invalid image url: %q", imageURL)
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return "", fmt.Errorf("invalid file ID: %w", err)
	}
	return id, nil
}

func (s *ImageStorage) UploadFile(ctx context.Context, original string, it common.ImageType, content io.Reader) (*ImageFile, error) {
	uploadedAt := s.now()
	filename := StoredFileName(uploadedAt, original)

	metadata := bson.M{
		"image_type":    it.String(),
		"mime_type":     it.MimeType(),
		"original_name": original,
		"uploaded_at":   uploadedAt,
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := s.gridFS.OpenUploadStream(filename, opts)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	size, err := io.Copy(stream, content)
	if err != nil {
		_ = stream.Abort()
		return nil, fmt.Errorf("file copy failed: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("upload close failed: %w", err)
	}

	return &ImageFile{
		ID:         stream.FileID.(primitive.ObjectID).Hex(),
		Filename:   filename,
		Size:       size,
		ImageType:  it,
		UploadedAt: uploadedAt,
	}, nil
}

// Upload stores the image and returns its public URL.
func (s *ImageStorage) Upload(ctx context.Context, filename string, it common.ImageType, content io.Reader) (string, error) {
	file, err := s.UploadFile(ctx, filename, it, content)
	if err != nil {
		return "", err
	}
	return PublicURL(s.baseURL, file.ID), nil
}

func (s *ImageStorage) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *ImageFile, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid file ID: %w", err)
	}

	stream, err := s.gridFS.OpenDownloadStream(objectID)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}

	fileInfo := stream.GetFile()
	var metadata bson.M
	if fileInfo.Metadata != nil {
		_ = bson.Unmarshal(fileInfo.Metadata, &metadata)
	}

	imageType := common.ImageType(getStringFromMap(metadata, "image_type"))
	if !imageType.IsValid() {
		imageType, _ = common.DetectImageType(fileInfo.Name)
	}

	return stream, &ImageFile{
		ID:         fileID,
		Filename:   fileInfo.Name,
		Size:       fileInfo.Length,
		ImageType:  imageType,
		UploadedAt: fileInfo.UploadDate,
	}, nil
}

func (s *ImageStorage) DeleteFile(ctx context.Context, fileID string) error {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return fmt.Errorf("invalid file ID: %w", err)
	}
	if err := s.gridFS.Delete(objectID); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	return nil
}

func (s *ImageStorage) DeleteByURL(ctx context.Context, imageURL string) error {
	fileID, err := FileIDFromURL(imageURL)
	if err != nil {
		return err
	}
	return s.DeleteFile(ctx, fileID)
}

// Helper function for metadata extraction
func getStringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

var _ common.BlobStore = (*ImageStorage)(nil)
