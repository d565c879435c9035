package common

import (
	"fmt"
	"time"
)

type PostStatus string

const (
	StatusPending  PostStatus = "pending"
	StatusApproved PostStatus = "approved"
	StatusRejected PostStatus = "rejected"
)

func (s PostStatus) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

func ParsePostStatus(s string) (PostStatus, error) {
	status := PostStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid status %q: must be pending, approved or rejected", s)
	}
	return status, nil
}

// EventType is the kind of a change-feed event.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

func (e EventType) IsValid() bool {
	return e == EventInsert || e == EventUpdate || e == EventDelete
}

// DateFilter narrows admin listings by creation time.
type DateFilter string

const (
	FilterAll   DateFilter = "all"
	FilterToday DateFilter = "today"
	FilterWeek  DateFilter = "week"
	FilterMonth DateFilter = "month"
)

// Since returns the inclusive lower bound for the filter relative to now.
// The zero time means no bound.
func (f DateFilter) Since(now time.Time) time.Time {
	switch f {
	case FilterToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case FilterWeek:
		return now.Add(-7 * 24 * time.Hour)
	case FilterMonth:
		y, m, _ := now.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleVisitor Role = "visitor"
)
