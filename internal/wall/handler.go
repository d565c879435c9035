package wall

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"memorywall/internal/common"
	"memorywall/internal/dbmysql"
	"memorywall/internal/feed"
)

// Usecase is what the HTTP layer needs from Service.
type Usecase interface {
	FetchApproved(ctx context.Context) ([]feed.Post, error)
	FetchVisible(ctx context.Context) ([]feed.Post, error)
	FetchPending(ctx context.Context) ([]feed.Post, error)
	FetchAll(ctx context.Context, filter common.DateFilter) ([]feed.Post, error)
	Create(ctx context.Context, sub feed.Submission) (feed.Post, error)
	SetStatus(ctx context.Context, id string, status common.PostStatus) (feed.Post, error)
	SetVisibility(ctx context.Context, id string, visible bool) (feed.Post, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, postID, actorID string) (bool, int, error)
	LikeStatus(ctx context.Context, postID, actorID string) (bool, error)
	AddReaction(ctx context.Context, postID, emoji string) (*dbmysql.Reaction, error)
	RemoveReaction(ctx context.Context, id string) error
	ReactionCounts(ctx context.Context, postID string) (map[string]int, error)
	AddComment(ctx context.Context, postID string, in CommentInput) (*dbmysql.Comment, error)
	ListComments(ctx context.Context, postID string, limit, offset int) ([]dbmysql.Comment, error)
}

type Handler struct {
	svc       Usecase
	auth      *AdminAuth
	issuer    *common.TokenIssuer
	stream    http.Handler
	logger    *zap.Logger
	maxUpload int64
}

func NewHandler(svc Usecase, auth *AdminAuth, issuer *common.TokenIssuer, stream http.Handler, logger *zap.Logger, maxImageBytes int64) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxImageBytes <= 0 {
		maxImageBytes = common.MaxImageBytes
	}
	return &Handler{
		svc:    svc,
		auth:   auth,
		issuer: issuer,
		stream: stream,
		logger: logger,
		// room for the other form fields
		maxUpload: maxImageBytes + 1<<20,
	}
}

// Routes registers the API under /api/v1.
func (h *Handler) Routes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(common.Authenticate(h.issuer))

	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/visitor", h.issueVisitorToken).Methods(http.MethodPost)

	api.HandleFunc("/posts", h.listApproved).Methods(http.MethodGet)
	api.HandleFunc("/posts", h.createPost).Methods(http.MethodPost)
	api.HandleFunc("/posts/visible", h.listVisible).Methods(http.MethodGet)
	if h.stream != nil {
		api.Handle("/posts/stream", h.stream).Methods(http.MethodGet)
	}
	api.HandleFunc("/posts/{id}/like", h.toggleLike).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id}/like", h.likeStatus).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}/reactions", h.reactionCounts).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}/reactions", h.addReaction).Methods(http.MethodPost)
	api.HandleFunc("/reactions/{id}", h.removeReaction).Methods(http.MethodDelete)
	api.HandleFunc("/posts/{id}/comments", h.listComments).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}/comments", h.addComment).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(common.SecurityHeaders)
	admin.HandleFunc("/login", h.login).Methods(http.MethodPost)
	admin.HandleFunc("/logout", h.logout).Methods(http.MethodPost)

	requireAdmin := common.RequireRole(h.issuer, common.RoleAdmin)
	admin.Handle("/posts", requireAdmin(http.HandlerFunc(h.listAll))).Methods(http.MethodGet)
	admin.Handle("/posts/pending", requireAdmin(http.HandlerFunc(h.listPending))).Methods(http.MethodGet)
	admin.Handle("/posts/{id}/status", requireAdmin(http.HandlerFunc(h.setStatus))).Methods(http.MethodPut)
	admin.Handle("/posts/{id}/visibility", requireAdmin(http.HandlerFunc(h.setVisibility))).Methods(http.MethodPut)
	admin.Handle("/posts/{id}", requireAdmin(http.HandlerFunc(h.deletePost))).Methods(http.MethodDelete)
}

// writeServiceError maps an error kind to a status. Internal details are
// logged, not returned.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var we *Error
	msg := err.Error()
	if errors.As(err, &we) {
		msg = we.Err.Error()
	}

	switch KindOf(err) {
	case KindValidation:
		common.WriteError(w, http.StatusBadRequest, msg)
	case KindNotFound:
		common.WriteError(w, http.StatusNotFound, msg)
	case KindUnauthorized:
		common.WriteError(w, http.StatusUnauthorized, msg)
	default:
		h.logger.Error(fallback, zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "memorywall",
	})
}

func (h *Handler) issueVisitorToken(w http.ResponseWriter, r *http.Request) {
	token, actorID, err := h.issuer.VisitorToken()
	if err != nil {
		h.logger.Error("failed to issue visitor token", zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, "failed to issue visitor token")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"actorId": actorID,
	})
}

// --------- POSTS ---------

func (h *Handler) writePosts(w http.ResponseWriter, posts []feed.Post) {
	if posts == nil {
		posts = []feed.Post{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"posts":   posts,
	})
}

func (h *Handler) listApproved(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.FetchApproved(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch memories")
		return
	}
	h.writePosts(w, posts)
}

func (h *Handler) listVisible(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.FetchVisible(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch memories")
		return
	}
	h.writePosts(w, posts)
}

type createPostRequest struct {
	Content     string            `json:"content"`
	Name        string            `json:"name"`
	IsAnonymous bool              `json:"isAnonymous"`
	SocialLinks *feed.SocialLinks `json:"socialLinks"`
}

// createPost accepts multipart/form-data (with an optional "image" file) or
// a JSON body without an image.
func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	sub, cleanup, err := h.parseSubmission(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteError(w, http.StatusRequestEntityTooLarge, common.ErrImageTooLarge.Error())
			return
		}
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	post, err := h.svc.Create(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, err, "failed to post memory")
		return
	}

	common.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"postId":  post.ID,
		"post":    post,
		"message": "Memory posted successfully!",
	})
}

func (h *Handler) parseSubmission(r *http.Request) (feed.Submission, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req createPostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return feed.Submission{}, noop, err
		}
		return feed.Submission{
			Content:     req.Content,
			Name:        req.Name,
			IsAnonymous: req.IsAnonymous,
			SocialLinks: req.SocialLinks,
		}, noop, nil
	}

	cleanup, err := h.parseForm(r)
	if err != nil {
		return feed.Submission{}, noop, err
	}

	anonymous, _ := strconv.ParseBool(r.FormValue("isAnonymous"))
	sub := feed.Submission{
		Content:     r.FormValue("content"),
		Name:        r.FormValue("name"),
		IsAnonymous: anonymous,
	}

	if raw := strings.TrimSpace(r.FormValue("socialLinks")); raw != "" {
		var links feed.SocialLinks
		if err := json.Unmarshal([]byte(raw), &links); err != nil {
			cleanup()
			return feed.Submission{}, noop, errors.New("socialLinks must be a JSON object")
		}
		sub.SocialLinks = &links
	}

	file, header, err := formImage(r)
	if err != nil {
		cleanup()
		return feed.Submission{}, noop, err
	}
	if file == nil {
		return sub, cleanup, nil
	}
	sub.Image = file
	sub.ImageName = header.Filename
	sub.ImageSize = header.Size
	return sub, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

// parseComment reads a comment from JSON, a urlencoded form, or a multipart
// form carrying an optional image.
func (h *Handler) parseComment(r *http.Request) (CommentInput, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return CommentInput{}, noop, err
		}
		return CommentInput{Content: req.Content}, noop, nil
	}

	cleanup, err := h.parseForm(r)
	if err != nil {
		return CommentInput{}, noop, err
	}
	in := CommentInput{Content: r.FormValue("content")}

	file, header, err := formImage(r)
	if err != nil {
		cleanup()
		return CommentInput{}, noop, err
	}
	if file == nil {
		return in, cleanup, nil
	}
	in.Image = file
	in.ImageName = header.Filename
	in.ImageSize = header.Size
	return in, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

// parseForm parses a multipart or urlencoded body. The cleanup func removes
// any upload spooled to disk.
func (h *Handler) parseForm(r *http.Request) (func(), error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	if r.MultipartForm == nil {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return func() {}, nil
	}
	return func() { _ = r.MultipartForm.RemoveAll() }, nil
}

// formImage returns the optional "image" file part; file is nil when the
// form has none.
func formImage(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil, nil, nil
	case err != nil:
		return nil, nil, err
	}
	return file, header, nil
}

// --------- ENGAGEMENT ---------

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	actorID, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "visitor token required")
		return
	}
	liked, count, err := h.svc.ToggleLike(r.Context(), mux.Vars(r)["id"], actorID)
	if err != nil {
		h.writeServiceError(w, err, "failed to update like")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"liked":      liked,
		"likesCount": count,
	})
}

func (h *Handler) likeStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _ := common.ActorFromContext(r.Context())
	liked, err := h.svc.LikeStatus(r.Context(), mux.Vars(r)["id"], actorID)
	if err != nil {
		h.writeServiceError(w, err, "failed to check like status")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "liked": liked})
}

func (h *Handler) reactionCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.ReactionCounts(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch reactions")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "reactions": counts})
}

func (h *Handler) addReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reaction, err := h.svc.AddReaction(r.Context(), mux.Vars(r)["id"], req.Emoji)
	if err != nil {
		h.writeServiceError(w, err, "failed to add reaction")
		return
	}
	common.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "reaction": reaction})
}

func (h *Handler) removeReaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveReaction(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err, "failed to remove reaction")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	comments, err := h.svc.ListComments(r.Context(), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch comments")
		return
	}
	if comments == nil {
		comments = []dbmysql.Comment{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "comments": comments})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	in, cleanup, err := h.parseComment(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteError(w, http.StatusRequestEntityTooLarge, common.ErrImageTooLarge.Error())
			return
		}
		common.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer cleanup()

	comment, err := h.svc.AddComment(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.writeServiceError(w, err, "failed to add comment")
		return
	}
	common.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "comment": comment})
}

// --------- ADMIN ---------

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("admin login failed", zap.String("remote", r.RemoteAddr))
		h.writeServiceError(w, err, "login failed")
		return
	}

	h.auth.SetCookie(w, token, expires)
	common.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.auth.ClearCookie(w)
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	filter := common.DateFilter(r.URL.Query().Get("filter"))
	switch filter {
	case "":
		filter = common.FilterAll
	case common.FilterAll, common.FilterToday, common.FilterWeek, common.FilterMonth:
	default:
		common.WriteError(w, http.StatusBadRequest, "filter must be all, today, week or month")
		return
	}

	posts, err := h.svc.FetchAll(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch posts")
		return
	}
	h.writePosts(w, posts)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.FetchPending(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch pending posts")
		return
	}
	h.writePosts(w, posts)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := common.ParsePostStatus(req.Status)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.svc.SetStatus(r.Context(), mux.Vars(r)["id"], status)
	if err != nil {
		h.writeServiceError(w, err, "failed to update status")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "post": post})
}

func (h *Handler) setVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsVisible *bool `json:"is_visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsVisible == nil {
		common.WriteError(w, http.StatusBadRequest, "is_visible is required")
		return
	}

	post, err := h.svc.SetVisibility(r.Context(), mux.Vars(r)["id"], *req.IsVisible)
	if err != nil {
		h.writeServiceError(w, err, "failed to update visibility")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "post": post})
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err, "failed to delete post")
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
