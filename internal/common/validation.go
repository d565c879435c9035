package common

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxContentLength = 500
	MaxNameLength    = 100
	MaxEmojiLength   = 16
	MaxLinkLength    = 255

	DefaultAuthorName = "Anonymous"
)

// ValidateContent applies the memory/comment length rule, counted in runes.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("please write something about your memory")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return errors.New("memory must be less than 500 characters")
	}
	return nil
}

func ValidateComment(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return errors.New("comment must be less than 500 characters")
	}
	return nil
}

func ValidateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.New("name must be less than 100 characters")
	}
	return nil
}

// AuthorName resolves the stored name: nil for anonymous posts,
// the default name when none was given.
func AuthorName(name string, anonymous bool) *string {
	if anonymous {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultAuthorName
	}
	return &name
}

func ValidateEmoji(emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return errors.New("emoji is required")
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiLength {
		return errors.New("emoji is too long")
	}
	return nil
}

func ValidateLink(link string) error {
	if len(link) > MaxLinkLength {
		return errors.New("social link is too long")
	}
	return nil
}
