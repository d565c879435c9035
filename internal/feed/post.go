// Package feed keeps a session's view of the wall: a duplicate-free list of
// posts, newest first, merged from an initial fetch, pushed change events,
// periodic poll snapshots and the viewer's own submissions.
package feed

import (
	"fmt"
	"io"
	"time"

	"memorywall/internal/common"
)

// Post is the wire shape of a memory.
type Post struct {
	ID          string            `json:"id"`
	Content     string            `json:"content"`
	AuthorName  *string           `json:"name"`
	IsAnonymous bool              `json:"is_anonymous"`
	ImageURL    *string           `json:"image_url"`
	Status      common.PostStatus `json:"status"`
	IsVisible   bool              `json:"is_visible"`
	LikesCount  int               `json:"likes_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Event is one change-feed message: {"event":"insert|update|delete","record":{...}}.
// Delete events only need record.id.
type Event struct {
	Type   common.EventType `json:"event"`
	Record Post             `json:"record"`
}

// Change converts a change-feed event into a reconciler input.
func (e Event) Change() (Change, error) {
	switch e.Type {
	case common.EventInsert:
		return Insert(e.Record), nil
	case common.EventUpdate:
		return Update(e.Record), nil
	case common.EventDelete:
		return Delete(e.Record.ID), nil
	default:
		return Change{}, fmt.Errorf("unknown event type %q", e.Type)
	}
}

type SocialLinks struct {
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Threads   string `json:"threads,omitempty"`
	X         string `json:"x,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`
}

// Submission is what a visitor sends to create a memory.
type Submission struct {
	Content     string
	Name        string
	IsAnonymous bool
	SocialLinks *SocialLinks

	// Image is optional; ImageName carries the client file name (for its extension).
	Image     io.Reader
	ImageName string
	ImageSize int64
}

func (s Submission) HasImage() bool {
	return s.Image != nil && s.ImageSize > 0
}
