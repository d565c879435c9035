package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the wall's HTTP API. It serves as Source and Submitter
// for sessions that run outside the server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      token,
	}
}

type postsResponse struct {
	Success bool   `json:"success"`
	Posts   []Post `json:"posts"`
	Error   string `json:"error"`
}

type createResponse struct {
	Success bool   `json:"success"`
	PostID  string `json:"postId"`
	Post    Post   `json:"post"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Error     string    `json:"error"`
}

// FetchApproved returns approved posts, newest first.
func (c *Client) FetchApproved(ctx context.Context) ([]Post, error) {
	return c.fetch(ctx, "/api/v1/posts")
}

// FetchAll returns every post regardless of status. Requires an admin token.
func (c *Client) FetchAll(ctx context.Context) ([]Post, error) {
	return c.fetch(ctx, "/api/v1/admin/posts")
}

func (c *Client) fetch(ctx context.Context, path string) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	var body postsResponse
	if err := c.do(req, &body); err != nil {
		return nil, err
	}
	return body.Posts, nil
}

func (c *Client) Create(ctx context.Context, sub Submission) (Post, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	_ = mw.WriteField("content", sub.Content)
	_ = mw.WriteField("name", sub.Name)
	_ = mw.WriteField("isAnonymous", strconv.FormatBool(sub.IsAnonymous))
	if sub.SocialLinks != nil {
		links, err := json.Marshal(sub.SocialLinks)
		if err != nil {
			return Post{}, err
		}
		_ = mw.WriteField("socialLinks", string(links))
	}
	if sub.Image != nil {
		part, err := mw.CreateFormFile("image", sub.ImageName)
		if err != nil {
			return Post{}, err
		}
		if _, err := io.Copy(part, sub.Image); err != nil {
			return Post{}, fmt.Errorf("read image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return Post{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/posts", &buf)
	if err != nil {
		return Post{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var body createResponse
	if err := c.do(req, &body); err != nil {
		return Post{}, err
	}
	return body.Post, nil
}

// Login exchanges admin credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/admin/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var body loginResponse
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	c.token = body.Token
	return body.Token, nil
}

func (c *Client) Token() string {
	return c.token
}

// StreamURL is the WebSocket change-feed address for scope "approved" or "all".
func (c *Client) StreamURL(scope string) (string, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/posts/stream")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("scope", scope)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wall api: %d %s", e.Status, e.Message)
}
