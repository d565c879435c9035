package dbmongo

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorywall/internal/common"
	"memorywall/internal/config"
)

// Runs against the MongoDB from docker-compose when MONGO_INTEGRATION=1.
func integrationConfig(t *testing.T) *config.Config {
	t.Helper()
	if os.Getenv("MONGO_INTEGRATION") != "1" {
		t.Skip("set MONGO_INTEGRATION=1 to run against a live MongoDB")
	}
	return &config.Config{
		MongoDB: config.MongoDBConfig{
			Host:     getEnvOrDefault("MONGO_HOST", "localhost"),
			Port:     getEnvOrDefault("MONGO_PORT", "27017"),
			Username: getEnvOrDefault("MONGO_USERNAME", "admin"),
			Password: getEnvOrDefault("MONGO_PASSWORD", "admin123"),
			Database: getEnvOrDefault("MONGO_DATABASE", "memorywall_test"),
			Bucket:   "memory_images_test",
		},
	}
}

func TestImageStorage_WithExistingMongoDB(t *testing.T) {
	cfg := integrationConfig(t)
	ctx := context.Background()

	client, err := NewMongoConnection(cfg)
	require.NoError(t, err, "Ensure MongoDB is running")
	defer client.Close(ctx)

	storage := NewImageStorage(client, "http://localhost:8080/media/")

	t.Run("upload_download_delete", func(t *testing.T) {
		content := "fake-png-bytes"
		url, err := storage.Upload(ctx, "photo.png", common.ImageTypePNG, strings.NewReader(content))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "http://localhost:8080/media/"))

		id, err := FileIDFromURL(url)
		require.NoError(t, err)

		reader, file, err := storage.DownloadFile(ctx, id)
		require.NoError(t, err)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		_ = reader.Close()

		assert.Equal(t, content, string(data))
		assert.Equal(t, common.ImageTypePNG, file.ImageType)
		assert.Equal(t, int64(len(content)), file.Size)

		require.NoError(t, storage.DeleteByURL(ctx, url))
		_, _, err = storage.DownloadFile(ctx, id)
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("delete_nonexistent_file", func(t *testing.T) {
		err := storage.DeleteFile(ctx, "507f1f77bcf86cd799439011")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("invalid_objectid_handling", func(t *testing.T) {
		_, _, err := storage.DownloadFile(ctx, "invalid-objectid")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid file ID")
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
