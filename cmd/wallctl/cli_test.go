package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorywall/internal/common"
	"memorywall/internal/feed"
)

func newTestCmd(in string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(in))
	cmd.SetContext(context.Background())
	return cmd, out
}

func TestHashPassword(t *testing.T) {
	cmd, out := newTestCmd("")
	require.NoError(t, runHashPassword(cmd, []string{"s3cret"}))
	hash := strings.TrimSpace(out.String())
	assert.NoError(t, common.CheckPassword("s3cret", hash))

	cmd, out = newTestCmd("from-stdin\n")
	require.NoError(t, runHashPassword(cmd, nil))
	assert.NoError(t, common.CheckPassword("from-stdin", strings.TrimSpace(out.String())))

	cmd, _ = newTestCmd("")
	assert.Error(t, runHashPassword(cmd, nil))
}

func TestSubmit(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/posts", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		got = map[string]string{
			"content":     r.FormValue("content"),
			"name":        r.FormValue("name"),
			"socialLinks": r.FormValue("socialLinks"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"postId":  "p-42",
			"post":    map[string]any{"id": "p-42", "content": "hello"},
		})
	}))
	defer srv.Close()

	serverURL, timeout = srv.URL, 5*time.Second
	submitName, submitLinks = "Asha", feed.SocialLinks{Instagram: "@asha"}
	defer func() {
		serverURL, submitName, submitLinks = "", "", feed.SocialLinks{}
	}()

	cmd, out := newTestCmd("")
	require.NoError(t, runSubmit(cmd, []string{"hello"}))
	assert.Equal(t, "posted p-42\n", out.String())
	assert.Equal(t, "hello", got["content"])
	assert.Equal(t, "Asha", got["name"])
	assert.Contains(t, got["socialLinks"], "@asha")
}

func TestCompose(t *testing.T) {
	var mu sync.Mutex
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		content := r.FormValue("content")

		mu.Lock()
		names = append(names, r.FormValue("name"))
		id := fmt.Sprintf("p-%d", len(names))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if content == "rejected" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "please write something about your memory"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"postId":  id,
			"post": map[string]any{
				"id": id, "content": content, "status": "approved", "is_visible": true,
				"created_at": time.Now().UTC().Format(time.RFC3339Nano),
			},
		})
	}))
	defer srv.Close()

	submitName = "Asha"
	defer func() { submitName = "" }()

	var screen bytes.Buffer
	empty := feed.SourceFunc(func(context.Context) ([]feed.Post, error) { return nil, nil })
	session := feed.NewSession(empty, nil, nil,
		feed.WithSubmitter(feed.NewClient(srv.URL, "")),
		feed.WithPollInterval(time.Hour),
		feed.WithOnChange(func(view []feed.Post) { render(&screen, view, 0) }),
	)
	ctx := context.Background()
	require.NoError(t, session.Start(ctx))
	defer session.Close()

	var out bytes.Buffer
	require.NoError(t, compose(ctx, session, strings.NewReader("first memory\n\n  \nrejected\nsecond memory\n"), &out))

	assert.Equal(t, "posted p-1\n", strings.SplitAfter(out.String(), "\n")[0])
	assert.Contains(t, out.String(), "not posted: wall api: 400 please write something about your memory")
	assert.Contains(t, out.String(), "posted p-3\n")

	// both accepted posts are on the wall before any stream echo
	view := session.View()
	require.Len(t, view, 2)
	ids := []string{view[0].ID, view[1].ID}
	assert.ElementsMatch(t, []string{"p-1", "p-3"}, ids)
	assert.Contains(t, screen.String(), "second memory")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Asha", "Asha", "Asha"}, names)
}

func TestCompose_StopsOnCancel(t *testing.T) {
	session := feed.NewSession(feed.SourceFunc(func(context.Context) ([]feed.Post, error) { return nil, nil }), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pw.Close()
	var out bytes.Buffer
	assert.NoError(t, compose(ctx, session, pr, &out))
	assert.Empty(t, out.String())
}

func TestFormatPost(t *testing.T) {
	name := "Ravi"
	img := "http://localhost:8080/media/abc"
	p := feed.Post{
		ID:         "a",
		Content:    "line one\nline   two " + strings.Repeat("x", 80),
		AuthorName: &name,
		ImageURL:   &img,
		Status:     common.StatusApproved,
		LikesCount: 3,
		CreatedAt:  time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}

	line := formatPost(p)
	assert.Contains(t, line, "approved")
	assert.Contains(t, line, "Ravi")
	assert.Contains(t, line, "line one line two")
	assert.Contains(t, line, "...")
	assert.Contains(t, line, "[img]")
	assert.Contains(t, line, "♥3")

	p.AuthorName, p.ImageURL, p.LikesCount = nil, nil, 0
	line = formatPost(p)
	assert.Contains(t, line, "anonymous")
	assert.NotContains(t, line, "[img]")
}

func TestRenderLimit(t *testing.T) {
	view := []feed.Post{{ID: "1", Content: "one"}, {ID: "2", Content: "two"}, {ID: "3", Content: "three"}}

	var buf bytes.Buffer
	render(&buf, view, 2)
	assert.Contains(t, buf.String(), "3 memories")
	assert.Contains(t, buf.String(), "two")
	assert.NotContains(t, buf.String(), "three")
}

func TestReport(t *testing.T) {
	checks := []check{{name: "mysql"}, {name: "mongodb"}}

	var buf bytes.Buffer
	require.NoError(t, report(&buf, checks, []error{nil, nil}))
	assert.Equal(t, 2, strings.Count(buf.String(), "ok"))

	buf.Reset()
	err := report(&buf, checks, []error{nil, errors.New("connection refused")})
	assert.EqualError(t, err, "1 of 2 checks failed")
	assert.Contains(t, buf.String(), "connection refused")
}
