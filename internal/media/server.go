// Package media serves uploaded memory images out of GridFS.
package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"memorywall/internal/common"
	"memorywall/internal/dbmongo"
)

// Downloader is the read side of dbmongo.ImageStorage.
type Downloader interface {
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.ImageFile, error)
}

type HTTPServer struct {
	storage Downloader
	router  *mux.Router
	logger  *zap.Logger
}

func NewHTTPServer(storage Downloader, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HTTPServer{storage: storage, router: mux.NewRouter(), logger: logger}

	// GET /media/{fileId}
	s.router.HandleFunc("/media/{fileId}", s.serveFile).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *HTTPServer) serveFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	reader, file, err := s.storage.DownloadFile(r.Context(), fileID)
	if err != nil {
		if !errors.Is(err, dbmongo.ErrFileNotFound) {
			s.logger.Debug("media lookup failed", zap.String("file_id", fileID), zap.Error(err))
		}
		common.WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	defer reader.Close()

	contentType := file.ImageType.MimeType()
	if !file.ImageType.IsValid() {
		contentType = common.ContentTypeFor(file.Filename)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Warn("error streaming file", zap.String("file_id", fileID), zap.Error(err))
	}
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "media",
	})
}
